package probe

import (
	"context"

	"github.com/hamed0406/apiwatcher/internal/domain"
)

// Prober performs one health probe against a monitored API. It never returns
// an error: every failure mode is encoded in the CheckResult.
type Prober interface {
	Probe(ctx context.Context, api *domain.MonitoredAPI) domain.CheckResult
}

// Response is the raw outcome of a single HTTP request.
//
// Fields:
//   - StatusCode: 0 when no response was received.
//   - LatencyMS: wall-clock time until headers arrived; 0 on transport errors.
//   - Err: transport, DNS, or timeout error.
type Response struct {
	StatusCode int
	LatencyMS  int64
	Err        error
}

// Fetcher issues a raw request without classifying it. Used when testing an
// endpoint before it is registered.
type Fetcher interface {
	Fetch(ctx context.Context, method, url string) Response
}
