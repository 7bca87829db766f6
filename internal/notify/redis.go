package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists notification state in redis, keyed per employee and
// device. The shown log is a list capped with LTRIM; the snapshot is a JSON
// blob under a single key.
type RedisStore struct {
	client       *redis.Client
	logKey       string
	dismissedKey string
	cap          int64
}

func NewRedisStore(client *redis.Client, employeeID, deviceID string, logCap int) *RedisStore {
	if logCap <= 0 {
		logCap = 50
	}
	return &RedisStore{
		client:       client,
		logKey:       fmt.Sprintf("notify_log:%s:%s", employeeID, deviceID),
		dismissedKey: fmt.Sprintf("dismissed_shift:%s:%s", employeeID, deviceID),
		cap:          int64(logCap),
	}
}

func (s *RedisStore) HasBeenShown(ctx context.Context, key string) (bool, error) {
	values, err := s.client.LRange(ctx, s.logKey, 0, -1).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, value := range values {
		if value == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) RecordShown(ctx context.Context, key string) error {
	if err := s.client.LPush(ctx, s.logKey, key).Err(); err != nil {
		return err
	}
	// Newest at the head; trimming the tail evicts the oldest entries.
	return s.client.LTrim(ctx, s.logKey, 0, s.cap-1).Err()
}

func (s *RedisStore) SaveDismissed(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.dismissedKey, data, 0).Err()
}

func (s *RedisStore) LoadDismissed(ctx context.Context) (Snapshot, bool, error) {
	value, err := s.client.Get(ctx, s.dismissedKey).Result()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		// Corrupt snapshot: drop it and report none.
		_ = s.client.Del(ctx, s.dismissedKey).Err()
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *RedisStore) ClearDismissed(ctx context.Context) error {
	return s.client.Del(ctx, s.dismissedKey).Err()
}
