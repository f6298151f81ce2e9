package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/events"
	"github.com/hamed0406/apiwatcher/internal/repo/memory"
)

func testAPI(t *testing.T) *domain.MonitoredAPI {
	t.Helper()
	api, err := domain.NewMonitoredAPI("orders", "https://ok.example/health", "GET", 200, 300)
	require.NoError(t, err)
	return api
}

func message(t *testing.T, e events.Event) events.Message {
	t.Helper()
	b, err := events.Encode(e)
	require.NoError(t, err)
	meta := e.Meta()
	return events.Message{Topic: events.DefaultTopics().For(meta.EventType), Key: []byte(meta.EventID), Value: b}
}

func TestConsumer_HealthCheckMapping(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)

	api := testAPI(t)
	e := events.NewHealthCheckExecuted(domain.SuccessResult(api.ID, 200, 500), api.Name, api.URL, api.LatencyThresholdMS)
	c.HandleMessage(ctx, message(t, e))

	recs, err := store.ChecksByAPI(ctx, api.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "orders", r.APIName)
	assert.Equal(t, api.URL, r.APIURL)
	assert.True(t, r.Success)
	assert.Equal(t, 200, r.StatusCode)
	assert.EqualValues(t, 500, r.LatencyMS)
	assert.True(t, r.ExceededThreshold)
	assert.Equal(t, 300, r.ThresholdMS)
	assert.Equal(t, domain.StatusDegraded, r.Status())
	assert.True(t, e.CheckedAt.Equal(r.CheckedAt))
	assert.Equal(t, e.EventID, r.EventID)
	assert.Equal(t, events.TypeHealthCheckExecuted, r.EventType)
}

func TestConsumer_RegistrationMapping(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)

	api := testAPI(t)
	e := events.NewAPIRegistered(api)
	c.HandleMessage(ctx, message(t, e))

	recs, err := store.RegistrationsByAPI(ctx, api.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "GET", recs[0].HTTPMethod)
	assert.Equal(t, 200, recs[0].ExpectedStatusCode)
	assert.Equal(t, 300, recs[0].LatencyThresholdMS)
	assert.True(t, e.OccurredOn.Equal(recs[0].RegisteredAt))
	assert.Equal(t, e.EventID, recs[0].EventID)
}

func TestConsumer_GenericPayloadWithArrayTimestamp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)

	raw := `{"eventId":"e-1","apiId":"api-1","apiName":"x","apiUrl":"http://x",
		"success":false,"statusCode":503,"latencyMs":12,"errorMessage":"expected 200, got 503",
		"exceededThreshold":false,"thresholdMs":100,"checkedAt":[2024,3,9,14,5,7,500]}`
	// no eventType: routed by topic
	c.HandleMessage(ctx, events.Message{Topic: "health-check", Value: []byte(raw)})

	recs, _ := store.ChecksByAPI(ctx, "api-1")
	require.Len(t, recs, 1)
	assert.Equal(t, time.Date(2024, 3, 9, 14, 5, 7, 500, time.UTC), recs[0].CheckedAt)
	assert.Equal(t, domain.StatusDown, recs[0].Status())
}

func TestConsumer_MissingTimestampUsesNow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)

	before := time.Now().UTC().Add(-time.Second)
	c.HandleMessage(ctx, events.Message{
		Topic: "api-registered",
		Value: []byte(`{"eventId":"e-2","eventType":"api.registered","apiId":"api-2","name":"n"}`),
	})

	recs, _ := store.RegistrationsByAPI(ctx, "api-2")
	require.Len(t, recs, 1)
	assert.True(t, recs[0].RegisteredAt.After(before))
}

func TestConsumer_MalformedMessagesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewConsumer(store, events.DefaultTopics(), zap.New(core), nil)

	api := testAPI(t)
	good := events.NewHealthCheckExecuted(domain.SuccessResult(api.ID, 200, 10), api.Name, api.URL, 300)

	c.HandleMessage(ctx, events.Message{Topic: "health-check", Value: []byte("not json")})
	c.HandleMessage(ctx, events.Message{Topic: "health-check", Value: []byte(`{"eventType":"health-check.executed","apiId":"a","statusCode":"x"}`)})
	c.HandleMessage(ctx, events.Message{Topic: "health-check", Value: []byte(`{"eventType":"health-check.executed","statusCode":200}`)})
	c.HandleMessage(ctx, events.Message{Topic: "health-check", Value: []byte(`{"eventType":"health-check.executed","apiId":"a","checkedAt":[2024,13,1,0,0,0]}`)})
	c.HandleMessage(ctx, events.Message{Topic: "domain-events", Value: []byte(`{"eventType":"billing.invoiced"}`)})
	c.HandleMessage(ctx, message(t, good))

	recs, _ := store.ChecksByAPI(ctx, api.ID)
	assert.Len(t, recs, 1, "a good message after bad ones must still be stored")
	assert.Equal(t, 4, logs.FilterMessage("history_save_failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("history_unknown_event").Len())
}

type failingWriter struct {
	calls atomic.Int32
	panic bool
}

func (f *failingWriter) SaveRegistration(context.Context, *domain.RegistrationRecord) error {
	f.calls.Add(1)
	return errors.New("store down")
}

func (f *failingWriter) SaveHealthCheck(context.Context, *domain.HealthCheckRecord) error {
	f.calls.Add(1)
	if f.panic {
		panic("driver bug")
	}
	return errors.New("store down")
}

func TestConsumer_StoreFailuresAreLoggedNotPropagated(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.ErrorLevel)
	w := &failingWriter{}
	c := NewConsumer(w, events.DefaultTopics(), zap.New(core), nil)

	api := testAPI(t)
	c.HandleMessage(ctx, message(t, events.NewAPIRegistered(api)))
	c.HandleMessage(ctx, message(t, events.NewHealthCheckExecuted(domain.ErrorResult(api.ID, "refused"), api.Name, api.URL, 300)))

	w.panic = true
	assert.NotPanics(t, func() {
		c.HandleMessage(ctx, message(t, events.NewHealthCheckExecuted(domain.ErrorResult(api.ID, "refused"), api.Name, api.URL, 300)))
	})

	assert.EqualValues(t, 3, w.calls.Load())
	failed := logs.FilterMessage("history_save_failed").All()
	require.Len(t, failed, 3)
	assert.Equal(t, "store_error", failed[0].ContextMap()["outcome"])
	assert.Equal(t, "panic", failed[2].ContextMap()["outcome"])
}

func TestConsumer_RedeliveryIsStoredTwice(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)

	api := testAPI(t)
	m := message(t, events.NewHealthCheckExecuted(domain.SuccessResult(api.ID, 200, 10), api.Name, api.URL, 300))
	c.HandleMessage(ctx, m)
	c.HandleMessage(ctx, m)

	recs, _ := store.ChecksByAPI(ctx, api.ID)
	require.Len(t, recs, 2)
	assert.Equal(t, recs[0].EventID, recs[1].EventID)
}

func TestConsumer_ConcurrentDelivery(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := domain.APIID(fmt.Sprintf("api-%d", w))
				e := events.NewHealthCheckExecuted(domain.SuccessResult(id, 200, int64(i)), "n", "http://x", 100)
				c.HandleMessage(ctx, message(t, e))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		recs, _ := store.ChecksByAPI(ctx, domain.APIID(fmt.Sprintf("api-%d", w)))
		assert.Len(t, recs, perWorker)
	}
}

func TestConsumer_OverMemoryBus(t *testing.T) {
	store := memory.NewHistory()
	c := NewConsumer(store, events.DefaultTopics(), zap.NewNop(), nil)
	bus := events.NewMemoryBus(events.DefaultTopics(), 16, 3, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx, c.HandleMessage)

	api := testAPI(t)
	require.NoError(t, bus.Publish(ctx, events.NewAPIRegistered(api)))
	require.NoError(t, bus.Publish(ctx, events.NewHealthCheckExecuted(domain.SuccessResult(api.ID, 200, 1), api.Name, api.URL, 300)))

	require.Eventually(t, func() bool {
		regs, _ := store.RegistrationsByAPI(context.Background(), api.ID)
		checks, _ := store.ChecksByAPI(context.Background(), api.ID)
		return len(regs) == 1 && len(checks) == 1
	}, time.Second, 5*time.Millisecond)
}
