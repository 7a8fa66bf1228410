package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/issueflow/pkg/cache"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/persistence/file"
	"github.com/dukex/issueflow/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by the URL scheme. A URL without a
// known scheme is taken as a file store directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, location := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(location), nil
	}
}

// WithSnapshotCache wraps the store with the Redis snapshot cache. An empty
// URL returns the store unchanged.
func WithSnapshotCache(
	ctx context.Context,
	logger *slog.Logger,
	p persistence.Persistence,
	redisURL string,
	ttl time.Duration,
) (persistence.Persistence, error) {
	if redisURL == "" {
		return p, nil
	}

	client, err := cache.Connect(ctx, redisURL)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Workflow snapshot cache enabled", "ttl", ttl)

	return cache.NewPersistence(p, cache.NewRedisCache(client, cache.WithTTL(ttl)), logger), nil
}

func parsePersistenceProvider(databaseURL string) (string, string) {
	provider, location, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider, location
		}
	}

	return "file", databaseURL
}
