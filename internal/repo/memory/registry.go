package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// Registry is the in-process RegistryStore used when no database is
// configured. It stores and hands out copies so callers cannot mutate
// stored state behind its back.
type Registry struct {
	mu   sync.RWMutex
	apis map[domain.APIID]*domain.MonitoredAPI
}

func NewRegistry() *Registry {
	return &Registry{apis: make(map[domain.APIID]*domain.MonitoredAPI)}
}

func (m *Registry) Save(ctx context.Context, api *domain.MonitoredAPI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cur := range m.apis {
		if id != api.ID && cur.URL == api.URL {
			return domain.DuplicateURL(api.URL)
		}
	}
	cp := *api
	m.apis[api.ID] = &cp
	return nil
}

func (m *Registry) FindByID(ctx context.Context, id domain.APIID) (*domain.MonitoredAPI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.apis[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Registry) FindAllActive(ctx context.Context) ([]*domain.MonitoredAPI, error) {
	return m.list(func(a *domain.MonitoredAPI) bool { return a.Active }), nil
}

func (m *Registry) FindAll(ctx context.Context) ([]*domain.MonitoredAPI, error) {
	return m.list(func(*domain.MonitoredAPI) bool { return true }), nil
}

func (m *Registry) list(keep func(*domain.MonitoredAPI) bool) []*domain.MonitoredAPI {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.MonitoredAPI, 0, len(m.apis))
	for _, a := range m.apis {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Registry) DeleteByID(ctx context.Context, id domain.APIID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apis[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.apis, id)
	return nil
}

func (m *Registry) ExistsByURL(ctx context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.apis {
		if a.URL == url {
			return true, nil
		}
	}
	return false, nil
}

var _ repo.RegistryStore = (*Registry)(nil)
