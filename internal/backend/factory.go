package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finhouse/internal/changefeed"
	"finhouse/internal/docstore"
	"finhouse/internal/docstore/memory"
	"finhouse/internal/docstore/sqlstore"
	"finhouse/internal/storage"
)

// Open creates the store described by config, migrating SQL databases, and
// returns it with a repository bound to config.Location.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*BackendResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	feed, err := openFeed(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	var store docstore.Store
	switch config.Type {
	case MemoryBackend:
		store = memory.New(
			memory.WithUniqueIndex(storage.Bills, storage.BillUniqueFields...),
			memory.WithFeed(feed))
		logger.Info("Initialized memory backend")
	case SQLiteBackend:
		store, err = sqlstore.OpenSQLite(config.SQLiteDBPath, sqlstore.WithFeed(feed))
		if err != nil {
			return nil, closeFeed(feed, fmt.Errorf("failed to initialize SQLite store: %w", err))
		}
		logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		store, err = sqlstore.Open(sqlstore.Postgres, config.PostgresDSN, sqlstore.WithFeed(feed))
		if err != nil {
			return nil, closeFeed(feed, fmt.Errorf("failed to initialize Postgres store: %w", err))
		}
		logger.Info("Initialized Postgres backend")
	default:
		return nil, closeFeed(feed, fmt.Errorf("unsupported backend type: %s", config.Type))
	}

	var opts []storage.Option
	if config.Location != nil {
		opts = append(opts, storage.WithLocation(config.Location))
	}

	return &BackendResult{
		Store:      store,
		Repository: storage.NewRepository(store, opts...),
		Cleanup:    store.Close,
	}, nil
}

func openFeed(ctx context.Context, config Config, logger *slog.Logger) (changefeed.Feed, error) {
	if config.RedisAddr == "" {
		return changefeed.NewHub(), nil
	}
	feed, err := changefeed.NewRedisFeed(ctx, config.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect change feed: %w", err)
	}
	logger.Info("Sharing change signals through Redis", "addr", config.RedisAddr)
	return feed, nil
}

func closeFeed(feed changefeed.Feed, err error) error {
	if cerr := feed.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
