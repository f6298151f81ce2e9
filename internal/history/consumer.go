// Package history turns consumed domain events into durable history records.
package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/events"
	"github.com/hamed0406/apiwatcher/internal/metrics"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

const (
	kindRegistration = "registration"
	kindHealthCheck  = "health_check"
	kindUnknown      = "unknown"
)

// Consumer writes one history record per event. Every message is isolated:
// a decode, mapping, or store failure is logged and the message is dropped.
// Redelivered events are stored again; records carry the event id so
// readers can tell duplicates apart.
type Consumer struct {
	store   repo.HistoryWriter
	topics  events.Topics
	log     *zap.Logger
	metrics metrics.Collector
}

func NewConsumer(store repo.HistoryWriter, topics events.Topics, log *zap.Logger, m metrics.Collector) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Consumer{store: store, topics: topics, log: log, metrics: m}
}

// HandleMessage dispatches on the event type tag, falling back to the topic
// when a producer omitted it. It satisfies events.Handler.
func (c *Consumer) HandleMessage(ctx context.Context, m events.Message) {
	defer c.recoverMessage(kindUnknown, string(m.Key))

	p, err := events.DecodePayload(m.Value)
	if err != nil {
		c.fail(kindUnknown, string(m.Key), "malformed", err,
			zap.String("topic", m.Topic), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		return
	}

	switch eventType := p.EventType(); {
	case eventType == events.TypeAPIRegistered,
		eventType == "" && m.Topic == c.topics.Registration:
		c.OnAPIRegistered(ctx, p)
	case eventType == events.TypeHealthCheckExecuted,
		eventType == "" && m.Topic == c.topics.HealthCheck:
		c.OnHealthCheckExecuted(ctx, p)
	default:
		c.metrics.HistoryRecorded(kindUnknown, "skipped")
		c.log.Warn("history_unknown_event",
			zap.String("topic", m.Topic),
			zap.String("event_type", eventType),
			zap.String("event_id", p.EventID()),
		)
	}
}

func (c *Consumer) OnAPIRegistered(ctx context.Context, p events.Payload) {
	defer c.recoverMessage(kindRegistration, p.EventID())

	rec, err := registrationRecord(p)
	if err != nil {
		c.fail(kindRegistration, p.EventID(), "malformed", err)
		return
	}
	if err := c.store.SaveRegistration(ctx, rec); err != nil {
		c.fail(kindRegistration, rec.EventID, "store_error", err, zap.String("api_id", string(rec.APIID)))
		return
	}
	c.metrics.HistoryRecorded(kindRegistration, "ok")
	c.log.Info("registration_history_saved",
		zap.String("api_id", string(rec.APIID)),
		zap.String("name", rec.Name),
		zap.String("event_id", rec.EventID),
	)
}

func (c *Consumer) OnHealthCheckExecuted(ctx context.Context, p events.Payload) {
	defer c.recoverMessage(kindHealthCheck, p.EventID())

	rec, err := healthCheckRecord(p)
	if err != nil {
		c.fail(kindHealthCheck, p.EventID(), "malformed", err)
		return
	}
	if err := c.store.SaveHealthCheck(ctx, rec); err != nil {
		c.fail(kindHealthCheck, rec.EventID, "store_error", err, zap.String("api_id", string(rec.APIID)))
		return
	}
	c.metrics.HistoryRecorded(kindHealthCheck, "ok")
	c.log.Debug("health_check_history_saved",
		zap.String("api_id", string(rec.APIID)),
		zap.String("status", string(rec.Status())),
		zap.String("event_id", rec.EventID),
	)
}

func (c *Consumer) fail(kind, eventID, outcome string, err error, fields ...zap.Field) {
	c.metrics.HistoryRecorded(kind, outcome)
	c.log.Error("history_save_failed", append([]zap.Field{
		zap.String("kind", kind),
		zap.String("event_id", eventID),
		zap.String("outcome", outcome),
		zap.Error(err),
	}, fields...)...)
}

func (c *Consumer) recoverMessage(kind, eventID string) {
	if r := recover(); r != nil {
		c.fail(kind, eventID, "panic", fmt.Errorf("panic: %v", r))
	}
}

func registrationRecord(p events.Payload) (*domain.RegistrationRecord, error) {
	apiID := p.String("apiId")
	if apiID == "" {
		return nil, fmt.Errorf("%w: apiId missing", events.ErrMalformedPayload)
	}
	status, err := p.Int("expectedStatusCode")
	if err != nil {
		return nil, err
	}
	threshold, err := p.Int("latencyThresholdMs")
	if err != nil {
		return nil, err
	}
	at, err := p.Time("occurredOn")
	if err != nil {
		return nil, err
	}
	return &domain.RegistrationRecord{
		APIID:              domain.APIID(apiID),
		Name:               p.String("name"),
		URL:                p.String("url"),
		HTTPMethod:         p.String("httpMethod"),
		ExpectedStatusCode: int(status),
		LatencyThresholdMS: int(threshold),
		RegisteredAt:       at,
		EventID:            p.EventID(),
		EventType:          p.EventType(),
	}, nil
}

func healthCheckRecord(p events.Payload) (*domain.HealthCheckRecord, error) {
	apiID := p.String("apiId")
	if apiID == "" {
		return nil, fmt.Errorf("%w: apiId missing", events.ErrMalformedPayload)
	}
	success, err := p.Bool("success")
	if err != nil {
		return nil, err
	}
	status, err := p.Int("statusCode")
	if err != nil {
		return nil, err
	}
	latency, err := p.Int("latencyMs")
	if err != nil {
		return nil, err
	}
	exceeded, err := p.Bool("exceededThreshold")
	if err != nil {
		return nil, err
	}
	threshold, err := p.Int("thresholdMs")
	if err != nil {
		return nil, err
	}
	at, err := p.Time("checkedAt")
	if err != nil {
		return nil, err
	}
	return &domain.HealthCheckRecord{
		APIID:             domain.APIID(apiID),
		APIName:           p.String("apiName"),
		APIURL:            p.String("apiUrl"),
		Success:           success,
		StatusCode:        int(status),
		LatencyMS:         latency,
		ErrorMessage:      p.String("errorMessage"),
		ExceededThreshold: exceeded,
		ThresholdMS:       int(threshold),
		CheckedAt:         at,
		EventID:           p.EventID(),
		EventType:         p.EventType(),
	}, nil
}
