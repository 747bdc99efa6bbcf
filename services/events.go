// services/events.go
package services

import (
	"context"
	"fmt"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"github.com/redis/go-redis/v9"
)

const (
	EventContestEnded = "contest_ended"

	defaultEventStreamMaxLen = 100000
)

// EventSink hands events to the notification pipeline. Callers treat
// delivery as best effort.
type EventSink interface {
	Publish(ctx context.Context, event models.ActivityEvent) error
}

// RedisStreamSink appends events to a Redis stream read by the
// notification service's consumer group.
type RedisStreamSink struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamSink(rdb *redis.Client, stream string) *RedisStreamSink {
	return &RedisStreamSink{rdb: rdb, stream: stream, maxLen: defaultEventStreamMaxLen}
}

func (s *RedisStreamSink) Publish(ctx context.Context, e models.ActivityEvent) error {
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      e.EventType,
			"user_id":   e.UserID,
			"category":  e.Category,
			"section":   e.Section,
			"unique_id": e.UniqueID,
			"content":   e.Content,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// LogSink only logs. Used when no stream is configured.
type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Publish(_ context.Context, e models.ActivityEvent) error {
	logger.OrNop(s.Log).Info("activity event",
		"type", e.EventType, "user_id", e.UserID, "section", e.Section, "unique_id", e.UniqueID)
	return nil
}
