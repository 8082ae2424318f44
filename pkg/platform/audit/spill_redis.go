package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultSpillKey = "audit:spill"

// RedisSpill queues undeliverable events in a Redis list so they survive the
// process and can be replayed once the sink recovers.
type RedisSpill struct {
	client *redis.Client
	key    string
}

func NewRedisSpill(client *redis.Client) *RedisSpill {
	return &RedisSpill{client: client, key: defaultSpillKey}
}

func (s *RedisSpill) Push(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal spilled event: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("push spilled event: %w", err)
	}
	return nil
}

// Pop removes the oldest spilled event. The second return is false when the
// queue is empty.
func (s *RedisSpill) Pop(ctx context.Context) (Event, bool, error) {
	payload, err := s.client.RPop(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("pop spilled event: %w", err)
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, false, fmt.Errorf("decode spilled event: %w", err)
	}
	return event, true, nil
}

// Len reports queued events. Test helper.
func (s *RedisSpill) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}
