package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends events through an async kafka writer. The broker's
// verdict arrives later on the completion callback, which only logs.
type KafkaPublisher struct {
	writer  messageWriter
	topics  Topics
	log     *zap.Logger
	metrics metrics.Collector
}

func NewKafkaPublisher(brokers []string, topics Topics, log *zap.Logger, m metrics.Collector) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	p := newKafkaPublisher(nil, topics, log, m)
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Completion:             p.onCompletion,
	}
	return p, nil
}

func newKafkaPublisher(w messageWriter, topics Topics, log *zap.Logger, m metrics.Collector) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &KafkaPublisher{writer: w, topics: topics, log: log, metrics: m}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	meta := e.Meta()
	topic := p.topics.For(meta.EventType)

	value, err := Encode(e)
	if err != nil {
		p.metrics.EventPublished(topic, "encode_error")
		return fmt.Errorf("encode %s: %w", meta.EventType, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(meta.EventID),
		Value: value,
		Time:  meta.OccurredOn,
	}
	// the writer is async, so this only enqueues; the caller's cancellation
	// must not abort a send that was already accepted
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.metrics.EventPublished(topic, "rejected")
		return fmt.Errorf("enqueue %s: %w", meta.EventType, err)
	}

	p.log.Debug("event_enqueued",
		zap.String("topic", topic),
		zap.String("event_id", meta.EventID),
		zap.String("event_type", meta.EventType),
	)
	return nil
}

func (p *KafkaPublisher) onCompletion(msgs []kafka.Message, err error) {
	for _, m := range msgs {
		if err != nil {
			p.metrics.EventPublished(m.Topic, "failed")
			p.log.Error("event_publish_failed",
				zap.String("topic", m.Topic),
				zap.String("event_id", string(m.Key)),
				zap.Error(err),
			)
			continue
		}
		p.metrics.EventPublished(m.Topic, "ok")
		p.log.Debug("event_published",
			zap.String("topic", m.Topic),
			zap.String("event_id", string(m.Key)),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
