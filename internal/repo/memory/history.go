package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// History is an append-only in-process HistoryStore.
type History struct {
	mu            sync.RWMutex
	nextID        int64
	checks        []domain.HealthCheckRecord
	registrations []domain.RegistrationRecord
}

func NewHistory() *History {
	return &History{
		checks:        make([]domain.HealthCheckRecord, 0, 128),
		registrations: make([]domain.RegistrationRecord, 0, 16),
	}
}

func (h *History) SaveRegistration(ctx context.Context, r *domain.RegistrationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	r.ID = h.nextID
	h.registrations = append(h.registrations, *r)
	return nil
}

func (h *History) SaveHealthCheck(ctx context.Context, r *domain.HealthCheckRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	r.ID = h.nextID
	h.checks = append(h.checks, *r)
	return nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// filterChecks returns matching records newest first.
func (h *History) filterChecks(keep func(domain.HealthCheckRecord) bool) []domain.HealthCheckRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.HealthCheckRecord, 0)
	for _, r := range h.checks {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CheckedAt.Equal(out[j].CheckedAt) {
			return out[i].CheckedAt.After(out[j].CheckedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (h *History) ChecksByAPI(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error) {
	return h.filterChecks(func(r domain.HealthCheckRecord) bool { return r.APIID == apiID }), nil
}

func (h *History) ChecksByAPIInRange(ctx context.Context, apiID domain.APIID, from, to time.Time) ([]domain.HealthCheckRecord, error) {
	return h.filterChecks(func(r domain.HealthCheckRecord) bool {
		return r.APIID == apiID && inRange(r.CheckedAt, from, to)
	}), nil
}

func (h *History) FailedChecks(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error) {
	return h.filterChecks(func(r domain.HealthCheckRecord) bool { return r.APIID == apiID && !r.Success }), nil
}

func (h *History) ExceededChecks(ctx context.Context, apiID domain.APIID) ([]domain.HealthCheckRecord, error) {
	return h.filterChecks(func(r domain.HealthCheckRecord) bool { return r.APIID == apiID && r.ExceededThreshold }), nil
}

func (h *History) RecentChecks(ctx context.Context, apiID domain.APIID, n int) ([]domain.HealthCheckRecord, error) {
	if n <= 0 {
		n = repo.DefaultRecentChecks
	}
	out, _ := h.ChecksByAPI(ctx, apiID)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (h *History) CountFailures(ctx context.Context, apiID domain.APIID, from, to time.Time) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int64
	for _, r := range h.checks {
		if r.APIID == apiID && !r.Success && inRange(r.CheckedAt, from, to) {
			n++
		}
	}
	return n, nil
}

func (h *History) LatencySeries(ctx context.Context, apiID domain.APIID, from, to time.Time) ([]domain.LatencyPoint, error) {
	recs, _ := h.ChecksByAPIInRange(ctx, apiID, from, to)
	out := make([]domain.LatencyPoint, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = domain.LatencyPoint{CheckedAt: r.CheckedAt, LatencyMS: r.LatencyMS, Success: r.Success}
	}
	return out, nil
}

func (h *History) filterRegistrations(keep func(domain.RegistrationRecord) bool) []domain.RegistrationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.RegistrationRecord, 0)
	for _, r := range h.registrations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.After(out[j].RegisteredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (h *History) RegistrationsByAPI(ctx context.Context, apiID domain.APIID) ([]domain.RegistrationRecord, error) {
	return h.filterRegistrations(func(r domain.RegistrationRecord) bool { return r.APIID == apiID }), nil
}

func (h *History) RegistrationsInRange(ctx context.Context, from, to time.Time) ([]domain.RegistrationRecord, error) {
	return h.filterRegistrations(func(r domain.RegistrationRecord) bool { return inRange(r.RegisteredAt, from, to) }), nil
}

func (h *History) RecentRegistrations(ctx context.Context, n int) ([]domain.RegistrationRecord, error) {
	if n <= 0 {
		n = repo.DefaultRecentRegistrations
	}
	out := h.filterRegistrations(func(domain.RegistrationRecord) bool { return true })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

var _ repo.HistoryStore = (*History)(nil)
