package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/config"
	"github.com/tunebridge/console/internal/models"
)

// ErrCacheMiss is returned by the stores when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

func ConnectRedis(cfg *config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", client.Options().Addr))
	return client, nil
}

func CloseRedis(client *redis.Client) error {
	return client.Close()
}

// SessionStore is a thin JSON layer over Redis shared by the session
// blacklist, bulk progress and the list cache.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, expiration).Err()
}

func (s *SessionStore) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *SessionStore) Exists(ctx context.Context, key string) (bool, error) {
	result, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) BlacklistToken(ctx context.Context, token string, expiration time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", token)
	return s.client.Set(ctx, key, "1", expiration).Err()
}

func (s *SessionStore) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", token)
	return s.Exists(ctx, key)
}

func bulkProgressKey(runID uuid.UUID) string {
	return fmt.Sprintf("bulk:progress:%s", runID)
}

func (s *SessionStore) SetBulkProgress(ctx context.Context, p models.BulkProgress, expiration time.Duration) error {
	return s.Set(ctx, bulkProgressKey(p.RunID), p, expiration)
}

func (s *SessionStore) GetBulkProgress(ctx context.Context, runID uuid.UUID) (*models.BulkProgress, error) {
	var p models.BulkProgress
	if err := s.Get(ctx, bulkProgressKey(runID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func listCacheKey(operatorID, key string) string {
	return fmt.Sprintf("list:%s:%s", operatorID, key)
}

// CacheList stores a list page for one operator and query key.
func (s *SessionStore) CacheList(ctx context.Context, operatorID, key string, page *models.EntityPage, expiration time.Duration) error {
	return s.Set(ctx, listCacheKey(operatorID, key), page, expiration)
}

func (s *SessionStore) CachedList(ctx context.Context, operatorID, key string) (*models.EntityPage, error) {
	var page models.EntityPage
	if err := s.Get(ctx, listCacheKey(operatorID, key), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// InvalidateLists drops every cached page of an operator. Called after a
// mutation so the next read goes to the backend.
func (s *SessionStore) InvalidateLists(ctx context.Context, operatorID string) error {
	iter := s.client.Scan(ctx, 0, listCacheKey(operatorID, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
