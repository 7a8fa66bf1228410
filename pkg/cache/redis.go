package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "issueflow"
	defaultTTL       = 10 * time.Minute
)

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithNamespace sets the key prefix.
func WithNamespace(ns string) RedisOption {
	return func(c *RedisCache) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithTTL sets how long a snapshot lives without being invalidated.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// RedisCache keeps JSON encoded definitions under "<namespace>:workflow:<id>".
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:    client,
		namespace: defaultNamespace,
		ttl:       defaultTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect opens a client for a redis:// URL and checks it answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func (c *RedisCache) key(workflowID string) string {
	return c.namespace + ":workflow:" + workflowID
}

func (c *RedisCache) Get(ctx context.Context, workflowID string) (*models.WorkflowDefinition, bool, error) {
	payload, err := c.client.Get(ctx, c.key(workflowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached workflow %s: %w", workflowID, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached workflow %s: %w", workflowID, err)
	}

	return &def, true, nil
}

func (c *RedisCache) Set(ctx context.Context, def *models.WorkflowDefinition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", def.Workflow.ID, err)
	}

	if err := c.client.Set(ctx, c.key(def.Workflow.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache workflow %s: %w", def.Workflow.ID, err)
	}

	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, workflowID string) error {
	if err := c.client.Del(ctx, c.key(workflowID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate workflow %s: %w", workflowID, err)
	}

	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
