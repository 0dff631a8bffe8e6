package autoattendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStatusKey is where RedisRecorder keeps the last outcome.
const DefaultStatusKey = "shams:auto_attendance:last_outcome"

// RunRecorder keeps the most recent outcome for the status endpoint.
type RunRecorder interface {
	Record(ctx context.Context, out Outcome) error
	Last(ctx context.Context) (Outcome, bool, error)
}

type MemoryRecorder struct {
	mu   sync.RWMutex
	last *Outcome
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, out Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &out
	return nil
}

func (m *MemoryRecorder) Last(_ context.Context) (Outcome, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Outcome{}, false, nil
	}
	return *m.last, true, nil
}

// RedisRecorder stores the last outcome as JSON so it survives restarts and
// is visible to every API instance.
type RedisRecorder struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisRecorder(client redis.Cmdable, key string, ttl time.Duration) *RedisRecorder {
	if key == "" {
		key = DefaultStatusKey
	}
	return &RedisRecorder{client: client, key: key, ttl: ttl}
}

func (r *RedisRecorder) Record(ctx context.Context, out Outcome) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := r.client.Set(ctx, r.key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("store outcome: %w", err)
	}
	return nil
}

func (r *RedisRecorder) Last(ctx context.Context) (Outcome, bool, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("load outcome: %w", err)
	}

	var out Outcome
	if err := json.Unmarshal(payload, &out); err != nil {
		return Outcome{}, false, fmt.Errorf("decode outcome: %w", err)
	}
	return out, true, nil
}
