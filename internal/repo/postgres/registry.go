package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

type monitoredAPIModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	Name               string    `gorm:"column:name"`
	URL                string    `gorm:"column:url"`
	HTTPMethod         string    `gorm:"column:http_method"`
	ExpectedStatusCode int       `gorm:"column:expected_status_code"`
	LatencyThresholdMS int       `gorm:"column:latency_threshold_ms"`
	Active             bool      `gorm:"column:active"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (monitoredAPIModel) TableName() string { return "monitored_apis" }

func toModel(a *domain.MonitoredAPI) monitoredAPIModel {
	return monitoredAPIModel{
		ID:                 string(a.ID),
		Name:               a.Name,
		URL:                a.URL,
		HTTPMethod:         a.HTTPMethod,
		ExpectedStatusCode: a.ExpectedStatusCode,
		LatencyThresholdMS: a.LatencyThresholdMS,
		Active:             a.Active,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// toDomain rebuilds the entity without re-running validation.
func (m monitoredAPIModel) toDomain() *domain.MonitoredAPI {
	return &domain.MonitoredAPI{
		ID:                 domain.APIID(m.ID),
		Name:               m.Name,
		URL:                m.URL,
		HTTPMethod:         m.HTTPMethod,
		ExpectedStatusCode: m.ExpectedStatusCode,
		LatencyThresholdMS: m.LatencyThresholdMS,
		Active:             m.Active,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type RegistryStore struct {
	db *gorm.DB
}

func NewRegistryStore(db *gorm.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

func (s *RegistryStore) Save(ctx context.Context, api *domain.MonitoredAPI) error {
	m := toModel(api)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "url", "http_method", "expected_status_code",
			"latency_threshold_ms", "active", "updated_at",
		}),
	}).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.DuplicateURL(api.URL)
	}
	if err != nil {
		return fmt.Errorf("save monitored api: %w", err)
	}
	return nil
}

func (s *RegistryStore) FindByID(ctx context.Context, id domain.APIID) (*domain.MonitoredAPI, error) {
	var m monitoredAPIModel
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find monitored api: %w", err)
	}
	return m.toDomain(), nil
}

func (s *RegistryStore) FindAllActive(ctx context.Context) ([]*domain.MonitoredAPI, error) {
	return s.list(s.db.WithContext(ctx).Where("active = ?", true))
}

func (s *RegistryStore) FindAll(ctx context.Context) ([]*domain.MonitoredAPI, error) {
	return s.list(s.db.WithContext(ctx))
}

func (s *RegistryStore) list(q *gorm.DB) ([]*domain.MonitoredAPI, error) {
	var rows []monitoredAPIModel
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list monitored apis: %w", err)
	}
	out := make([]*domain.MonitoredAPI, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *RegistryStore) DeleteByID(ctx context.Context, id domain.APIID) error {
	res := s.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&monitoredAPIModel{})
	if res.Error != nil {
		return fmt.Errorf("delete monitored api: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RegistryStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&monitoredAPIModel{}).Where("url = ?", url).Count(&n).Error; err != nil {
		return false, fmt.Errorf("exists by url: %w", err)
	}
	return n > 0, nil
}

var _ repo.RegistryStore = (*RegistryStore)(nil)
