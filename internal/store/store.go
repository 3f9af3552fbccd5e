package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aescanero/dago-template/internal/eval/template"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a template is not in the store
var ErrNotFound = errors.New("template not found in store")

// Client is the subset of the Redis client used by the store
type Client interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HLen(ctx context.Context, key string) *redis.IntCmd
}

// Store keeps template sources in a Redis hash keyed by template name
type Store struct {
	client Client
	key    string
	logger *zap.Logger
}

// New creates a store backed by the hash at key
func New(client Client, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Key returns the Redis hash key
func (s *Store) Key() string { return s.key }

// Load returns the source of a template
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	src, err := s.client.HGet(ctx, s.key, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to load template: %w", err)
	}
	return src, nil
}

// Put compiles source and, if it compiles, saves it under name
func (s *Store) Put(ctx context.Context, name, source string) error {
	if _, err := template.Compile(name, source); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, name, source).Err(); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Debug("stored template",
		zap.String("template", name),
		zap.String("hash", s.key),
	)
	return nil
}

// Delete removes a template. Deleting a missing template is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// List returns all stored template names, sorted
func (s *Store) List(ctx context.Context) ([]string, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of stored templates
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return n, nil
}

// RegisterAll registers every stored template with reg in name order.
// The first compile error stops the load.
func (s *Store) RegisterAll(ctx context.Context, reg *template.Registry) ([]string, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if err := reg.RegisterTemplate(name, all[name]); err != nil {
			return names[:i], fmt.Errorf("template %s from %s: %w", name, s.key, err)
		}
	}

	s.logger.Info("registered templates from redis",
		zap.String("hash", s.key),
		zap.Int("count", len(names)),
	)
	return names, nil
}

var _ Client = (*redis.Client)(nil)
