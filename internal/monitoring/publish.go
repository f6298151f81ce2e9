package monitoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/events"
)

// publish hands e to pub and swallows every failure, panics included.
// Callers never fail because the history pipeline is unavailable.
func publish(ctx context.Context, pub events.Publisher, log *zap.Logger, e events.Event) {
	meta := e.Meta()
	defer func() {
		if r := recover(); r != nil {
			log.Error("event_publish_failed",
				zap.String("event_id", meta.EventID),
				zap.String("event_type", meta.EventType),
				zap.Error(fmt.Errorf("panic: %v", r)),
			)
		}
	}()
	if err := pub.Publish(ctx, e); err != nil {
		log.Error("event_publish_failed",
			zap.String("event_id", meta.EventID),
			zap.String("event_type", meta.EventType),
			zap.Error(err),
		)
	}
}
