package monitoring

import (
	"context"
	"errors"
	"sync"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/events"
	"github.com/hamed0406/apiwatcher/internal/probe"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
	panics bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	if p.panics {
		panic("publisher exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// scriptedProber returns a canned result per URL.
type scriptedProber struct {
	byURL map[string]func(*domain.MonitoredAPI) domain.CheckResult
}

func (s scriptedProber) Probe(_ context.Context, api *domain.MonitoredAPI) domain.CheckResult {
	if f, ok := s.byURL[api.URL]; ok {
		return f(api)
	}
	return domain.SuccessResult(api.ID, api.ExpectedStatusCode, 1)
}

type fixedFetcher struct {
	resp   probe.Response
	method string
}

func (f *fixedFetcher) Fetch(_ context.Context, method, _ string) probe.Response {
	f.method = method
	return f.resp
}

var errBroker = errors.New("broker unavailable")
