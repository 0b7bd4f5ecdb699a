package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hempies/coasync/internal/domain"
)

const (
	keyRunning   = "coasync:sync:running"
	keyQueue     = "coasync:sync:queue"
	keyTotal     = "coasync:sync:total"
	keyProcessed = "coasync:sync:processed"
	keyLog       = "coasync:sync:log"
)

type redisStore struct {
	redisClient *redis.Client
}

// NewRedisStore returns a Store backed by Redis, durable across process
// restarts. The running flag lives behind SETNX so concurrent starts
// cannot both win.
func NewRedisStore(redisClient *redis.Client) Store {
	return &redisStore{redisClient: redisClient}
}

func (s *redisStore) TryStart(ctx context.Context) (bool, error) {
	ok, err := s.redisClient.SetNX(ctx, keyRunning, "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim running flag: %w", err)
	}
	return ok, nil
}

func (s *redisStore) SetRunning(ctx context.Context, running bool) error {
	if running {
		if err := s.redisClient.Set(ctx, keyRunning, "1", 0).Err(); err != nil {
			return fmt.Errorf("failed to set running flag: %w", err)
		}
		return nil
	}
	if err := s.redisClient.Del(ctx, keyRunning).Err(); err != nil {
		return fmt.Errorf("failed to clear running flag: %w", err)
	}
	return nil
}

func (s *redisStore) Running(ctx context.Context) (bool, error) {
	val, err := s.redisClient.Get(ctx, keyRunning).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get running flag: %w", err)
	}
	return val == "1", nil
}

func (s *redisStore) ReplaceQueue(ctx context.Context, items []domain.CatalogItem) error {
	if err := s.redisClient.Del(ctx, keyQueue).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to serialize queue item %s: %w", item.SKU, err)
		}
		values = append(values, string(data))
	}
	if err := s.redisClient.RPush(ctx, keyQueue, values...).Err(); err != nil {
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	return nil
}

func (s *redisStore) PopBatch(ctx context.Context, n int) ([]domain.CatalogItem, error) {
	raw, err := s.redisClient.LPopCount(ctx, keyQueue, n).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop queue batch: %w", err)
	}
	items := make([]domain.CatalogItem, 0, len(raw))
	for _, data := range raw {
		var item domain.CatalogItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to decode queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *redisStore) QueueLen(ctx context.Context) (int, error) {
	n, err := s.redisClient.LLen(ctx, keyQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(n), nil
}

func (s *redisStore) ClearQueue(ctx context.Context) error {
	if err := s.redisClient.Del(ctx, keyQueue).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (s *redisStore) SetTotal(ctx context.Context, n int) error {
	if err := s.redisClient.Set(ctx, keyTotal, n, 0).Err(); err != nil {
		return fmt.Errorf("failed to set total: %w", err)
	}
	return nil
}

func (s *redisStore) Total(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyTotal)
}

func (s *redisStore) SetProcessed(ctx context.Context, n int) error {
	if err := s.redisClient.Set(ctx, keyProcessed, n, 0).Err(); err != nil {
		return fmt.Errorf("failed to set processed: %w", err)
	}
	return nil
}

func (s *redisStore) IncrProcessed(ctx context.Context) error {
	if err := s.redisClient.Incr(ctx, keyProcessed).Err(); err != nil {
		return fmt.Errorf("failed to increment processed: %w", err)
	}
	return nil
}

func (s *redisStore) Processed(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyProcessed)
}

func (s *redisStore) AppendLog(ctx context.Context, message string) error {
	data, err := json.Marshal(newLogEntry(message))
	if err != nil {
		return fmt.Errorf("failed to serialize log entry: %w", err)
	}
	pipe := s.redisClient.TxPipeline()
	pipe.RPush(ctx, keyLog, string(data))
	pipe.LTrim(ctx, keyLog, -MaxLogEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func (s *redisStore) Log(ctx context.Context) ([]domain.LogEntry, error) {
	raw, err := s.redisClient.LRange(ctx, keyLog, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	entries := make([]domain.LogEntry, 0, len(raw))
	for _, data := range raw {
		var e domain.LogEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("failed to decode log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *redisStore) ResetLog(ctx context.Context) error {
	if err := s.redisClient.Del(ctx, keyLog).Err(); err != nil {
		return fmt.Errorf("failed to reset log: %w", err)
	}
	return nil
}

func (s *redisStore) getInt(ctx context.Context, key string) (int, error) {
	val, err := s.redisClient.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}
