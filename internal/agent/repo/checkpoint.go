package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/lorcraft-poc/server/internal/core/error"
	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// RedisCheckpointStore persists one checkpoint per thread as a JSON blob.
// Each Save replaces the previous snapshot and extends the TTL, so an active
// conversation never expires mid-pause while abandoned threads age out.
type RedisCheckpointStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCheckpointStore(rdb redis.Cmdable, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{rdb: rdb, ttl: ttl}
}

func (s *RedisCheckpointStore) checkpointKey(threadID string) string {
	return fmt.Sprintf("thread:%s:checkpoint", threadID)
}

func (s *RedisCheckpointStore) Save(ctx context.Context, cp *model.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint missing thread id")
	}
	cp.UpdatedAt = time.Now().UTC()

	b, err := json.Marshal(cp)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", cp.ThreadID).Msg("failed to marshal checkpoint")
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	key := s.checkpointKey(cp.ThreadID)
	if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisCheckpointStore) Load(ctx context.Context, threadID string) (*model.Checkpoint, error) {
	key := s.checkpointKey(threadID)

	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to unmarshal checkpoint")
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *RedisCheckpointStore) Delete(ctx context.Context, threadID string) error {
	key := s.checkpointKey(threadID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete checkpoint from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.CheckpointStore = (*RedisCheckpointStore)(nil)
