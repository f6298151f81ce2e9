package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/metrics"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// TTLs bounds how long each query shape may be served from cache.
type TTLs struct {
	Active time.Duration
	ByID   time.Duration
	All    time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Active: 5 * time.Minute, ByID: 15 * time.Minute, All: 10 * time.Minute}
}

const defaultPrefix = "apiwatcher:registry"

// Registry is a cache-aside decorator over a RegistryStore.
//
// Every cached key embeds a generation number. Writes go to the store first
// and then bump the generation, so once Save or DeleteByID returns no reader
// can reach an entry filled before the write. Entries from old generations
// are never read again and age out through their TTL.
//
// A write that reached the store succeeds even if the bump fails. That
// failure is logged as registry_cache_invalidate_failed and counted as an
// "invalidate"/"error" cache outcome; readers may see the previous state
// until the affected entries expire.
type Registry struct {
	store   repo.RegistryStore
	backend Backend
	ttl     TTLs
	prefix  string
	log     *zap.Logger
	metrics metrics.Collector
}

func NewRegistry(store repo.RegistryStore, backend Backend, ttl TTLs, log *zap.Logger, m metrics.Collector) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Registry{
		store:   store,
		backend: backend,
		ttl:     ttl,
		prefix:  defaultPrefix,
		log:     log,
		metrics: m,
	}
}

func (c *Registry) genKey() string { return c.prefix + ":gen" }

func (c *Registry) key(gen int64, shape string) string {
	return c.prefix + ":g" + strconv.FormatInt(gen, 10) + ":" + shape
}

func (c *Registry) generation(ctx context.Context) (int64, error) {
	raw, ok, err := c.backend.Get(ctx, c.genKey())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return decodeInt(raw), nil
}

func (c *Registry) invalidate(ctx context.Context, op string) {
	if _, err := c.backend.Incr(ctx, c.genKey()); err != nil {
		c.log.Error("registry_cache_invalidate_failed", zap.String("op", op), zap.Error(err))
		c.metrics.CacheLookup("invalidate", "error")
		return
	}
	c.metrics.CacheLookup("invalidate", "ok")
}

// lookup serves one query shape. Backend errors never fail the read: an
// unreadable generation bypasses the cache, any other error is a miss.
func lookup[T any](ctx context.Context, c *Registry, query, shape string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("registry_cache_unavailable", zap.String("query", query), zap.Error(err))
		c.metrics.CacheLookup(query, "bypass")
		return load(ctx)
	}

	key := c.key(gen, shape)
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.Warn("registry_cache_get_failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.metrics.CacheLookup(query, "hit")
			return v, nil
		}
		c.log.Warn("registry_cache_decode_failed", zap.String("key", key))
	}

	c.metrics.CacheLookup(query, "miss")
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		if err := c.backend.Set(ctx, key, b, ttl); err != nil {
			c.log.Warn("registry_cache_set_failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

func (c *Registry) Save(ctx context.Context, api *domain.MonitoredAPI) error {
	if err := c.store.Save(ctx, api); err != nil {
		return err
	}
	c.invalidate(ctx, "save")
	return nil
}

func (c *Registry) DeleteByID(ctx context.Context, id domain.APIID) error {
	if err := c.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, "delete")
	return nil
}

// FindByID does not cache domain.ErrNotFound.
func (c *Registry) FindByID(ctx context.Context, id domain.APIID) (*domain.MonitoredAPI, error) {
	return lookup(ctx, c, "by_id", "id:"+string(id), c.ttl.ByID, func(ctx context.Context) (*domain.MonitoredAPI, error) {
		return c.store.FindByID(ctx, id)
	})
}

func (c *Registry) FindAllActive(ctx context.Context) ([]*domain.MonitoredAPI, error) {
	return lookup(ctx, c, "active", "active", c.ttl.Active, c.store.FindAllActive)
}

func (c *Registry) FindAll(ctx context.Context) ([]*domain.MonitoredAPI, error) {
	return lookup(ctx, c, "all", "all", c.ttl.All, c.store.FindAll)
}

// ExistsByURL always reads the store; uniqueness must not see stale data.
func (c *Registry) ExistsByURL(ctx context.Context, url string) (bool, error) {
	return c.store.ExistsByURL(ctx, url)
}

func encodeInt(n int64) []byte { return []byte(strconv.FormatInt(n, 10)) }

func decodeInt(b []byte) int64 {
	n, _ := strconv.ParseInt(string(b), 10, 64)
	return n
}

var _ repo.RegistryStore = (*Registry)(nil)
