package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/metrics"
)

var ErrBusFull = errors.New("event bus full")

// MemoryBus is the in-process stand-in for the broker. Events are encoded
// exactly as they would be for kafka, so subscribers see the same bytes.
type MemoryBus struct {
	topics  Topics
	queue   chan Message
	workers int
	log     *zap.Logger
	metrics metrics.Collector
	offset  atomic.Int64
}

func NewMemoryBus(topics Topics, buffer, workers int, log *zap.Logger, m metrics.Collector) *MemoryBus {
	if buffer <= 0 {
		buffer = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &MemoryBus{
		topics:  topics,
		queue:   make(chan Message, buffer),
		workers: workers,
		log:     log,
		metrics: m,
	}
}

// Publish never blocks. A full queue drops the event and reports ErrBusFull.
func (b *MemoryBus) Publish(_ context.Context, e Event) error {
	meta := e.Meta()
	topic := b.topics.For(meta.EventType)

	value, err := Encode(e)
	if err != nil {
		b.metrics.EventPublished(topic, "encode_error")
		return fmt.Errorf("encode %s: %w", meta.EventType, err)
	}

	msg := Message{
		Topic:  topic,
		Key:    []byte(meta.EventID),
		Value:  value,
		Offset: b.offset.Add(1) - 1,
	}
	select {
	case b.queue <- msg:
		b.metrics.EventPublished(topic, "ok")
		return nil
	default:
		b.metrics.EventPublished(topic, "rejected")
		return fmt.Errorf("%w: dropped %s", ErrBusFull, meta.EventID)
	}
}

// Run delivers queued messages with a fixed pool of workers until ctx ends.
// Messages still queued at that point are discarded.
func (b *MemoryBus) Run(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-b.queue:
					h(ctx, m)
				}
			}
		}()
	}
	wg.Wait()

	if n := len(b.queue); n > 0 {
		b.log.Warn("event_bus_discarded", zap.Int("pending", n))
	}
	return nil
}

var (
	_ Publisher  = (*MemoryBus)(nil)
	_ Subscriber = (*MemoryBus)(nil)
)
