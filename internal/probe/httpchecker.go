package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hamed0406/apiwatcher/internal/domain"
)

// maxDrain bounds how much of a response body is read so keep-alive
// connections can be reused.
const maxDrain = 64 << 10

type HTTPChecker struct {
	Client *http.Client
	// HonorMethod sends the API's configured method instead of GET.
	HonorMethod bool
	// DNSDiagnostics appends a DNS classification to transport failures.
	DNSDiagnostics bool
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPChecker) Probe(ctx context.Context, api *domain.MonitoredAPI) domain.CheckResult {
	method := http.MethodGet
	if h.HonorMethod && api.HTTPMethod != "" {
		method = api.HTTPMethod
	}

	resp := h.Fetch(ctx, method, api.URL)
	if resp.Err != nil {
		msg := resp.Err.Error()
		if h.DNSDiagnostics {
			if dns := CheckDNS(ctx, extractHost(api.URL)); dns.Class != DNSResolves {
				msg = fmt.Sprintf("%s dns=%s", msg, dns.Class)
			}
		}
		return domain.ErrorResult(api.ID, msg)
	}

	if resp.StatusCode == api.ExpectedStatusCode {
		return domain.SuccessResult(api.ID, resp.StatusCode, resp.LatencyMS)
	}
	msg := fmt.Sprintf("expected %d, got %d", api.ExpectedStatusCode, resp.StatusCode)
	return domain.FailureResult(api.ID, resp.StatusCode, resp.LatencyMS, msg)
}

// Fetch sends a single request with no retry.
func (h *HTTPChecker) Fetch(ctx context.Context, method, target string) Response {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return Response{Err: err}
	}
	req.Header.Set("User-Agent", "apiwatcher-probe/1.0")

	start := time.Now()
	resp, err := h.Client.Do(req)
	if err != nil {
		return Response{Err: err}
	}
	latency := time.Since(start).Milliseconds()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	resp.Body.Close()

	return Response{StatusCode: resp.StatusCode, LatencyMS: latency}
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

var (
	_ Prober  = (*HTTPChecker)(nil)
	_ Fetcher = (*HTTPChecker)(nil)
)
