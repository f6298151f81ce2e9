// Package monitoring drives probes over the registry and manages its
// lifecycle (registration, activation, thresholds).
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/events"
	"github.com/hamed0406/apiwatcher/internal/metrics"
	"github.com/hamed0406/apiwatcher/internal/probe"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// HealthChecker probes every active API once per run and emits one
// health-check event per probe.
type HealthChecker struct {
	Logger      *zap.Logger
	Registry    repo.RegistryStore
	Prober      probe.Prober
	Publisher   events.Publisher
	Metrics     metrics.Collector
	Timeout     time.Duration
	Concurrency int
}

func NewHealthChecker(
	logger *zap.Logger,
	registry repo.RegistryStore,
	prober probe.Prober,
	publisher events.Publisher,
	m metrics.Collector,
	timeout time.Duration,
	concurrency int,
) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &HealthChecker{
		Logger:      logger,
		Registry:    registry,
		Prober:      prober,
		Publisher:   publisher,
		Metrics:     m,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// RunAll returns exactly one result per active API, in the order the
// registry listed them. Only a failure to list the registry is an error.
func (h *HealthChecker) RunAll(ctx context.Context) ([]domain.CheckResult, error) {
	apis, err := h.Registry.FindAllActive(ctx)
	if err != nil {
		h.Metrics.HealthCheckRun("error")
		return nil, fmt.Errorf("list active apis: %w", err)
	}

	results := make([]domain.CheckResult, len(apis))
	sem := make(chan struct{}, h.Concurrency)
	var wg sync.WaitGroup

	for i, api := range apis {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = h.checkOne(ctx, api)
		}()
	}
	wg.Wait()

	var up, degraded, down int
	for i, r := range results {
		switch domain.DeriveStatus(r.Success, r.ExceededThreshold(apis[i].LatencyThresholdMS)) {
		case domain.StatusUp:
			up++
		case domain.StatusDegraded:
			degraded++
		default:
			down++
		}
	}
	h.Metrics.HealthCheckRun("ok")
	h.Logger.Info("health_check_run_complete",
		zap.Int("total", len(results)),
		zap.Int("up", up),
		zap.Int("degraded", degraded),
		zap.Int("down", down),
	)
	return results, nil
}

func (h *HealthChecker) checkOne(ctx context.Context, api *domain.MonitoredAPI) domain.CheckResult {
	res := h.probe(ctx, api)
	exceeded := res.ExceededThreshold(api.LatencyThresholdMS)
	h.Metrics.ProbeCompleted(string(domain.DeriveStatus(res.Success, exceeded)), res.LatencyMS)

	fields := []zap.Field{
		zap.String("api_id", string(api.ID)),
		zap.String("name", api.Name),
		zap.String("url", api.URL),
		zap.Int("status", res.StatusCode),
		zap.Int64("latency_ms", res.LatencyMS),
	}
	switch {
	case !res.Success:
		h.Logger.Error("health_check_failed", append(fields, zap.String("error", res.ErrorMessage))...)
	case res.IsHealthy() && exceeded:
		h.Logger.Warn("health_check_degraded", append(fields, zap.Int("threshold_ms", api.LatencyThresholdMS))...)
	default:
		h.Logger.Debug("health_check_ok", fields...)
	}

	publish(ctx, h.Publisher, h.Logger, events.NewHealthCheckExecuted(res, api.Name, api.URL, api.LatencyThresholdMS))
	return res
}

// probe bounds one probe by Timeout and turns a prober panic into a failed
// result.
func (h *HealthChecker) probe(ctx context.Context, api *domain.MonitoredAPI) (res domain.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.ErrorResult(api.ID, fmt.Sprintf("probe panic: %v", r))
		}
	}()
	pctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	return h.Prober.Probe(pctx, api)
}
