package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubscriber runs a fixed number of readers in one consumer group.
// Offsets are committed after the handler returns, so a crash between the
// two redelivers the message.
type KafkaSubscriber struct {
	log         *zap.Logger
	concurrency int
	newReader   func() messageReader
	backoff     time.Duration
}

func NewKafkaSubscriber(brokers []string, groupID string, topics []string, concurrency int, log *zap.Logger) (*KafkaSubscriber, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka subscriber requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka subscriber requires group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka subscriber requires at least one topic")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSubscriber{
		log:         log,
		concurrency: concurrency,
		backoff:     time.Second,
		newReader: func() messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:     brokers,
				GroupID:     groupID,
				GroupTopics: topics,
				MinBytes:    1,
				MaxBytes:    10e6,
				MaxWait:     500 * time.Millisecond,
			})
		},
	}, nil
}

func (s *KafkaSubscriber) Run(ctx context.Context, h Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		r := s.newReader()
		g.Go(func() error {
			defer r.Close()
			return s.consume(gctx, i, r, h)
		})
	}
	return g.Wait()
}

func (s *KafkaSubscriber) consume(ctx context.Context, worker int, r messageReader, h Handler) error {
	log := s.log.With(zap.Int("worker", worker))
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("kafka_fetch_failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.backoff):
			}
			continue
		}

		h(ctx, Message{
			Topic:     m.Topic,
			Key:       m.Key,
			Value:     m.Value,
			Partition: m.Partition,
			Offset:    m.Offset,
		})

		if err := r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("kafka_commit_failed",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

var _ Subscriber = (*KafkaSubscriber)(nil)
