package repo

import (
	"context"
	"time"

	"github.com/hamed0406/apiwatcher/internal/domain"
)

// Default sizes for the "most recent N" history queries.
const (
	DefaultRecentChecks        = 50
	DefaultRecentRegistrations = 10
)

// RegistryStore holds monitored-API definitions. Lists are ordered by
// creation time, oldest first.
//
// Save is an upsert keyed by ID. A URL owned by a different API fails with
// domain.ErrDuplicateURL; FindByID and DeleteByID return domain.ErrNotFound
// for unknown ids.
type RegistryStore interface {
	Save(ctx context.Context, api *domain.MonitoredAPI) error
	FindByID(ctx context.Context, id domain.APIID) (*domain.MonitoredAPI, error)
	FindAllActive(ctx context.Context) ([]*domain.MonitoredAPI, error)
	FindAll(ctx context.Context) ([]*domain.MonitoredAPI, error)
	DeleteByID(ctx context.Context, id domain.APIID) error
	ExistsByURL(ctx context.Context, url string) (bool, error)
}

// HistoryWriter appends history records. Implementations must be safe for
// concurrent use; records are never updated.
type HistoryWriter interface {
	SaveRegistration(ctx context.Context, r *domain.RegistrationRecord) error
	SaveHealthCheck(ctx context.Context, r *domain.HealthCheckRecord) error
}

// HistoryReader answers history queries. Check lists are newest first,
// latency series oldest first. Time ranges are inclusive on both ends.
type HistoryReader interface {
	ChecksByAPI(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error)
	ChecksByAPIInRange(ctx context.Context, apiID domain.APIID, from, to time.Time) ([]domain.HealthCheckRecord, error)
	FailedChecks(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error)
	ExceededChecks(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error)
	RecentChecks(ctx context.Context, apiID domain.APIID, n int) ([]domain.HealthCheckRecord, error)
	CountFailures(ctx context.Context, apiID domain.APIID, from, to time.Time) (int64, error)
	LatencySeries(ctx context.Context, apiID domain.APIID, from, to time.Time) ([]domain.LatencyPoint, error)

	RegistrationsByAPI(ctx context.Context, apiID domain.APIID) ([]domain.RegistrationRecord, error)
	RegistrationsInRange(ctx context.Context, from, to time.Time) ([]domain.RegistrationRecord, error)
	RecentRegistrations(ctx context.Context, n int) ([]domain.RegistrationRecord, error)
}

type HistoryStore interface {
	HistoryWriter
	HistoryReader
}
