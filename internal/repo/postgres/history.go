package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// HistoryStore keeps history on a pgx pool of its own; writes come from the
// consumer side and never share a transaction with the registry.
type HistoryStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewHistoryStore(pool *pgxpool.Pool, log *zap.Logger) *HistoryStore {
	return &HistoryStore{pool: pool, log: log}
}

func (s *HistoryStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *HistoryStore) SaveRegistration(ctx context.Context, r *domain.RegistrationRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_registration_history
		   (api_id, name, url, http_method, expected_status_code, latency_threshold_ms,
		    registered_at, event_id, event_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		string(r.APIID), r.Name, r.URL, r.HTTPMethod, r.ExpectedStatusCode, r.LatencyThresholdMS,
		r.RegisteredAt, r.EventID, r.EventType,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert registration history: %w", err)
	}
	return nil
}

func (s *HistoryStore) SaveHealthCheck(ctx context.Context, r *domain.HealthCheckRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO health_check_history
		   (api_id, api_name, api_url, success, status_code, latency_ms, error_message,
		    exceeded_threshold, threshold_ms, checked_at, event_id, event_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		string(r.APIID), r.APIName, r.APIURL, r.Success, r.StatusCode, r.LatencyMS, r.ErrorMessage,
		r.ExceededThreshold, r.ThresholdMS, r.CheckedAt, r.EventID, r.EventType,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert health check history: %w", err)
	}
	return nil
}

const checkColumns = `id, api_id, api_name, api_url, success, status_code, latency_ms, error_message,
       exceeded_threshold, threshold_ms, checked_at, event_id, event_type`

const newestChecksFirst = ` ORDER BY checked_at DESC, id DESC`

func (s *HistoryStore) queryChecks(ctx context.Context, tail string, args ...any) ([]domain.HealthCheckRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+checkColumns+`
		   FROM health_check_history `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query health checks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HealthCheckRecord, 0)
	for rows.Next() {
		var (
			r     domain.HealthCheckRecord
			apiID string
		)
		if err := rows.Scan(&r.ID, &apiID, &r.APIName, &r.APIURL, &r.Success, &r.StatusCode,
			&r.LatencyMS, &r.ErrorMessage, &r.ExceededThreshold, &r.ThresholdMS, &r.CheckedAt,
			&r.EventID, &r.EventType); err != nil {
			return nil, fmt.Errorf("scan health check: %w", err)
		}
		r.APIID = domain.APIID(apiID)
		r.CheckedAt = r.CheckedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *HistoryStore) ChecksByAPI(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error) {
	return s.queryChecks(ctx, `WHERE api_id = $1`+newestChecksFirst, string(apiID))
}

func (s *HistoryStore) ChecksByAPIInRange(ctx context.Context, apiID domain.APIID, from, to time.Time) ([]domain.HealthCheckRecord, error) {
	return s.queryChecks(ctx,
		`WHERE api_id = $1 AND checked_at BETWEEN $2 AND $3`+newestChecksFirst, string(apiID), from, to)
}

func (s *HistoryStore) FailedChecks(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error) {
	return s.queryChecks(ctx, `WHERE api_id = $1 AND NOT success`+newestChecksFirst, string(apiID))
}

func (s *HistoryStore) ExceededChecks(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error) {
	return s.queryChecks(ctx, `WHERE api_id = $1 AND exceeded_threshold`+newestChecksFirst, string(apiID))
}

func (s *HistoryStore) RecentChecks(ctx context.Context, apiID domain.APIID, n int) ([]domain.HealthCheckRecord, error) {
	if n <= 0 {
		n = repo.DefaultRecentChecks
	}
	return s.queryChecks(ctx, `WHERE api_id = $1`+newestChecksFirst+` LIMIT $2`, string(apiID), n)
}

func (s *HistoryStore) CountFailures(ctx context.Context, apiID domain.APIID, from, to time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*)
		   FROM health_check_history
		  WHERE api_id = $1 AND NOT success AND checked_at BETWEEN $2 AND $3`,
		string(apiID), from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}

func (s *HistoryStore) LatencySeries(ctx context.Context, apiID domain.APIID, from, to time.Time) ([]domain.LatencyPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT checked_at, latency_ms, success
		   FROM health_check_history
		  WHERE api_id = $1 AND checked_at BETWEEN $2 AND $3
		  ORDER BY checked_at ASC, id ASC`,
		string(apiID), from, to)
	if err != nil {
		return nil, fmt.Errorf("latency series: %w", err)
	}
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LatencyPoint, error) {
		var p domain.LatencyPoint
		err := row.Scan(&p.CheckedAt, &p.LatencyMS, &p.Success)
		p.CheckedAt = p.CheckedAt.UTC()
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan latency point: %w", err)
	}
	return points, nil
}

const registrationColumns = `id, api_id, name, url, http_method, expected_status_code,
       latency_threshold_ms, registered_at, event_id, event_type`

func (s *HistoryStore) queryRegistrations(ctx context.Context, tail string, args ...any) ([]domain.RegistrationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+registrationColumns+`
		   FROM api_registration_history `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RegistrationRecord, 0)
	for rows.Next() {
		var (
			r     domain.RegistrationRecord
			apiID string
		)
		if err := rows.Scan(&r.ID, &apiID, &r.Name, &r.URL, &r.HTTPMethod, &r.ExpectedStatusCode,
			&r.LatencyThresholdMS, &r.RegisteredAt, &r.EventID, &r.EventType); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		r.APIID = domain.APIID(apiID)
		r.RegisteredAt = r.RegisteredAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *HistoryStore) RegistrationsByAPI(ctx context.Context, apiID domain.APIID) ([]domain.RegistrationRecord, error) {
	return s.queryRegistrations(ctx,
		`WHERE api_id = $1 ORDER BY registered_at DESC, id DESC`, string(apiID))
}

func (s *HistoryStore) RegistrationsInRange(ctx context.Context, from, to time.Time) ([]domain.RegistrationRecord, error) {
	return s.queryRegistrations(ctx,
		`WHERE registered_at BETWEEN $1 AND $2 ORDER BY registered_at DESC, id DESC`, from, to)
}

func (s *HistoryStore) RecentRegistrations(ctx context.Context, n int) ([]domain.RegistrationRecord, error) {
	if n <= 0 {
		n = repo.DefaultRecentRegistrations
	}
	return s.queryRegistrations(ctx,
		`ORDER BY registered_at DESC, id DESC LIMIT $1`, n)
}

var _ repo.HistoryStore = (*HistoryStore)(nil)
