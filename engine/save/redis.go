package save

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "talecore:save:"
	redisIndexKey  = "talecore:saves"
)

// RedisStore keeps snapshots as string values with a sorted-set index
// scored by update time.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr string, logger *slog.Logger) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: addr}), logger)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisStore{client: client, logger: logger, now: time.Now}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Put(ctx context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	now := r.now()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeyPrefix+slot, data, 0)
		p.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(now.UnixMilli()), Member: slot})
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save snapshot", "slot", slot, "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, redisKeyPrefix+slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", slot, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to load snapshot", "slot", slot, "error", err)
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

func (r *RedisStore) List(ctx context.Context) ([]SlotInfo, error) {
	members, err := r.client.ZRangeWithScores(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	out := make([]SlotInfo, 0, len(members))
	for _, m := range members {
		name, ok := m.Member.(string)
		if !ok {
			continue
		}
		size, err := r.client.StrLen(ctx, redisKeyPrefix+name).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		out = append(out, SlotInfo{
			Name:      name,
			Size:      size,
			UpdatedAt: time.UnixMilli(int64(m.Score)),
		})
	}
	return out, nil
}

func (r *RedisStore) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	n, err := r.client.Del(ctx, redisKeyPrefix+slot).Result()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := r.client.ZRem(ctx, redisIndexKey, slot).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", slot, ErrNotFound)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
