package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inboxpilot/internal/models"
)

const draftKeyPrefix = "draftstate:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long an abandoned-in-place draft survives; zero
	// means no expiry.
	TTL time.Duration
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Get(ctx context.Context, threadID string) (*models.DraftState, error) {
	payload, err := s.rdb.Get(ctx, draftKeyPrefix+threadID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft state: %w", err)
	}

	var state models.DraftState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode draft state: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Replace(ctx context.Context, state *models.DraftState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode draft state: %w", err)
	}

	if err := s.rdb.Set(ctx, draftKeyPrefix+state.ThreadID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store draft state: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, threadID string) error {
	if err := s.rdb.Del(ctx, draftKeyPrefix+threadID).Err(); err != nil {
		return fmt.Errorf("clear draft state: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
