// Package redisstore implements persistence.Store on top of go-redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/persistence"
)

// Store keeps blobs in plain string keys and per-id records in hashes.
type Store struct {
	client redis.UniversalClient
}

var _ persistence.Store = (*Store)(nil)

// New wraps an existing client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Dial opens a client for cfg and checks connectivity. cfg.DB must be set.
func Dial(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("%w: redis db is missing", config.ErrImproperlyConfigured)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       *cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Persist.Error("redis ping failed",
			slog.String("event", "store.connect"),
			slog.String("backend", config.BackendRedis),
			slog.String("addr", cfg.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Persist.Info("redis connected",
		slog.String("event", "store.connect"),
		slog.String("backend", config.BackendRedis),
		slog.String("addr", cfg.Addr),
		slog.Int("db", *cfg.DB),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return New(client), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	return b, mapErr(err)
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Store) HGet(ctx context.Context, key, field string) ([]byte, error) {
	b, err := s.client.HGet(ctx, key, field).Bytes()
	return b, mapErr(err)
}

func (s *Store) HSet(ctx context.Context, key, field string, value []byte) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.client.HDel(ctx, key, fields...).Err()
}

func (s *Store) HKeys(ctx context.Context, key string) ([]string, error) {
	return s.client.HKeys(ctx, key).Result()
}

// HUpdate runs the deletes and sets inside MULTI/EXEC so readers never
// observe a half-applied flush.
func (s *Store) HUpdate(ctx context.Context, key string, set map[string][]byte, del []string) error {
	if len(set) == 0 && len(del) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(del) > 0 {
			pipe.HDel(ctx, key, del...)
		}
		if len(set) == 0 {
			return nil
		}
		args := make([]any, 0, len(set)*2)
		for field, v := range set {
			args = append(args, field, v)
		}
		pipe.HSet(ctx, key, args...)
		return nil
	})
	return err
}

func (s *Store) Close() error {
	return s.client.Close()
}

func mapErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return persistence.ErrNotFound
	}
	return err
}
