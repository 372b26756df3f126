package store

import (
	"context"
	"errors"
	"fmt"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/sticker"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a case under one Redis key. Image references are
// stored as given.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to url and checks the connection.
func NewRedisStore(ctx context.Context, url, key string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if key == "" {
		key = "ortho:case"
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

// Key returns the key the case is stored under.
func (s *RedisStore) Key() string { return s.key }

// Load reads the case. A missing key is a NotFound error.
func (s *RedisStore) Load(ctx context.Context, r sticker.Resolver) (*document.Case, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NewNotFound("load case", s.key)
		}
		return nil, apperr.NewStorageFailed("load case", s.key, err)
	}
	c, err := Decode(data, "", r)
	if err != nil {
		return nil, apperr.NewStorageFailed("load case", s.key, err)
	}
	return c, nil
}

// Save overwrites the case.
func (s *RedisStore) Save(ctx context.Context, c *document.Case) error {
	data, err := Encode(c, "")
	if err != nil {
		return apperr.NewStorageFailed("save case", s.key, err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return apperr.NewStorageFailed("save case", s.key, err)
	}
	logging.For("store").Debug("case saved", "key", s.key, "bytes", len(data))
	return nil
}

// Delete removes the case.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return apperr.NewStorageFailed("delete case", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
