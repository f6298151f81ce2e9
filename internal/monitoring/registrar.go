package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/events"
	"github.com/hamed0406/apiwatcher/internal/probe"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// Threshold suggestion bounds for TestAPI.
const (
	minSuggestedThresholdMS     = 500
	maxSuggestedThresholdMS     = 30000
	fallbackSuggestedThreshold  = 5000
	fallbackSuggestedStatusCode = http.StatusOK
)

type RegisterInput struct {
	Name               string
	URL                string
	HTTPMethod         string
	ExpectedStatusCode int
	LatencyThresholdMS int
}

// TestOutcome is the result of probing a URL that is not registered yet,
// with the values a registration should use.
type TestOutcome struct {
	Success              bool   `json:"success"`
	StatusCode           int    `json:"status_code"`
	LatencyMS            int64  `json:"latency_ms"`
	ErrorMessage         string `json:"error_message,omitempty"`
	SuggestedThresholdMS int    `json:"suggested_threshold_ms"`
	SuggestedStatusCode  int    `json:"suggested_expected_status_code"`
	Recommendation       string `json:"recommendation"`
}

// Registrar owns every write to the registry.
type Registrar struct {
	Logger    *zap.Logger
	Registry  repo.RegistryStore
	Fetcher   probe.Fetcher
	Publisher events.Publisher
	Timeout   time.Duration
	// HonorMethod makes TestAPI send the requested method instead of GET.
	HonorMethod bool
}

func NewRegistrar(logger *zap.Logger, registry repo.RegistryStore, fetcher probe.Fetcher, publisher events.Publisher, timeout time.Duration) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Registrar{
		Logger:    logger,
		Registry:  registry,
		Fetcher:   fetcher,
		Publisher: publisher,
		Timeout:   timeout,
	}
}

// Register validates and stores a new API, then announces it. A URL that is
// already registered fails with domain.ErrDuplicateURL and emits nothing.
func (r *Registrar) Register(ctx context.Context, in RegisterInput) (*domain.MonitoredAPI, error) {
	if err := r.ensureUnique(ctx, in.URL); err != nil {
		return nil, err
	}
	method := in.HTTPMethod
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}
	api, err := domain.NewMonitoredAPI(in.Name, in.URL, method, in.ExpectedStatusCode, in.LatencyThresholdMS)
	if err != nil {
		return nil, err
	}
	if err := r.Registry.Save(ctx, api); err != nil {
		return nil, err
	}

	publish(ctx, r.Publisher, r.Logger, events.NewAPIRegistered(api))
	r.Logger.Info("api_registered",
		zap.String("api_id", string(api.ID)),
		zap.String("name", api.Name),
		zap.String("url", api.URL),
		zap.Int("threshold_ms", api.LatencyThresholdMS),
	)
	return api, nil
}

func (r *Registrar) ensureUnique(ctx context.Context, url string) error {
	exists, err := r.Registry.ExistsByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("check url: %w", err)
	}
	if exists {
		return domain.DuplicateURL(url)
	}
	return nil
}

// TestAPI probes url once without registering it. A 2xx or 3xx answer
// suggests 1.5x the observed latency, clamped to [500ms, 30s], and the
// observed status. Anything else suggests 5000ms and 200.
func (r *Registrar) TestAPI(ctx context.Context, url, method string) TestOutcome {
	if !r.HonorMethod || strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	resp := r.Fetcher.Fetch(ctx, strings.ToUpper(method), url)
	out := TestOutcome{
		StatusCode:           resp.StatusCode,
		LatencyMS:            resp.LatencyMS,
		SuggestedThresholdMS: fallbackSuggestedThreshold,
		SuggestedStatusCode:  fallbackSuggestedStatusCode,
	}

	switch {
	case resp.Err != nil:
		out.ErrorMessage = resp.Err.Error()
		out.Recommendation = "Could not connect to the API. Check the URL and try again."
	case resp.StatusCode >= 400:
		out.ErrorMessage = fmt.Sprintf("HTTP %d", resp.StatusCode)
		out.Recommendation = "The API returned an error status. Check that the URL is correct."
	default:
		out.Success = true
		out.SuggestedThresholdMS = SuggestThreshold(resp.LatencyMS)
		out.SuggestedStatusCode = resp.StatusCode
		out.Recommendation = fmt.Sprintf("API answered in %dms. Suggested threshold: %dms (50%% margin).",
			resp.LatencyMS, out.SuggestedThresholdMS)
	}

	r.Logger.Info("api_tested",
		zap.String("url", url),
		zap.Bool("success", out.Success),
		zap.Int("status", out.StatusCode),
		zap.Int64("latency_ms", out.LatencyMS),
	)
	return out
}

// SuggestThreshold adds a 50% margin to an observed latency.
func SuggestThreshold(latencyMS int64) int {
	s := latencyMS * 3 / 2
	switch {
	case s < minSuggestedThresholdMS:
		return minSuggestedThresholdMS
	case s > maxSuggestedThresholdMS:
		return maxSuggestedThresholdMS
	default:
		return int(s)
	}
}

// TestAndRegister tests url and registers it with the suggested values.
// Registration goes ahead even when the test fails.
func (r *Registrar) TestAndRegister(ctx context.Context, name, url, method string) (TestOutcome, *domain.MonitoredAPI, error) {
	if err := r.ensureUnique(ctx, url); err != nil {
		return TestOutcome{}, nil, err
	}

	out := r.TestAPI(ctx, url, method)
	if !out.Success {
		r.Logger.Warn("api_test_failed_registering_with_defaults",
			zap.String("url", url),
			zap.String("error", out.ErrorMessage),
		)
	}

	api, err := r.Register(ctx, RegisterInput{
		Name:               name,
		URL:                url,
		HTTPMethod:         method,
		ExpectedStatusCode: out.SuggestedStatusCode,
		LatencyThresholdMS: out.SuggestedThresholdMS,
	})
	if err != nil {
		return out, nil, err
	}
	return out, api, nil
}

func (r *Registrar) Activate(ctx context.Context, id domain.APIID) (*domain.MonitoredAPI, error) {
	return r.mutate(ctx, id, "api_activated", func(a *domain.MonitoredAPI) error {
		a.Activate()
		return nil
	})
}

func (r *Registrar) Deactivate(ctx context.Context, id domain.APIID) (*domain.MonitoredAPI, error) {
	return r.mutate(ctx, id, "api_deactivated", func(a *domain.MonitoredAPI) error {
		a.Deactivate()
		return nil
	})
}

func (r *Registrar) UpdateThreshold(ctx context.Context, id domain.APIID, ms int) (*domain.MonitoredAPI, error) {
	return r.mutate(ctx, id, "api_threshold_updated", func(a *domain.MonitoredAPI) error {
		return a.UpdateThreshold(ms)
	})
}

// Update applies whichever of active and thresholdMS is non-nil in one save.
// A rejected threshold leaves the stored API untouched.
func (r *Registrar) Update(ctx context.Context, id domain.APIID, active *bool, thresholdMS *int) (*domain.MonitoredAPI, error) {
	return r.mutate(ctx, id, "api_updated", func(a *domain.MonitoredAPI) error {
		if thresholdMS != nil {
			if err := a.UpdateThreshold(*thresholdMS); err != nil {
				return err
			}
		}
		if active != nil {
			if *active {
				a.Activate()
			} else {
				a.Deactivate()
			}
		}
		return nil
	})
}

func (r *Registrar) mutate(ctx context.Context, id domain.APIID, logMsg string, fn func(*domain.MonitoredAPI) error) (*domain.MonitoredAPI, error) {
	api, err := r.Registry.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(api); err != nil {
		return nil, err
	}
	if err := r.Registry.Save(ctx, api); err != nil {
		return nil, err
	}
	r.Logger.Info(logMsg,
		zap.String("api_id", string(api.ID)),
		zap.Bool("active", api.Active),
		zap.Int("threshold_ms", api.LatencyThresholdMS),
	)
	return api, nil
}

func (r *Registrar) Delete(ctx context.Context, id domain.APIID) error {
	if err := r.Registry.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.Logger.Info("api_deleted", zap.String("api_id", string(id)))
	return nil
}
