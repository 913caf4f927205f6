package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pos:session:"

// redisClient is the subset of *redis.Client the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore keeps sessions as JSON values whose TTL matches the session expiry.
type RedisStore struct {
	client redisClient
	now    func() time.Time
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Start(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cannot ping Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Stop(ctx context.Context) error {
	return s.client.Close()
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}

	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("cannot encode session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cannot save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("cannot decode session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrExpired
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("cannot delete session: %w", err)
	}
	return nil
}
