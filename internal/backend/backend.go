// Package backend opens the document store selected by configuration and
// wraps it in a storage.Repository.
package backend

import (
	"fmt"
	"time"

	"finhouse/internal/config"
	"finhouse/internal/docstore"
	"finhouse/internal/storage"
)

// BackendType names a document store implementation.
type BackendType string

const (
	MemoryBackend   BackendType = config.BackendMemory
	SQLiteBackend   BackendType = config.BackendSQLite
	PostgresBackend BackendType = config.BackendPostgres
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is an opened store with the repository built on top of it.
type BackendResult struct {
	Store      docstore.Store
	Repository *storage.Repository
	Cleanup    CleanupFunc
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	// RedisAddr shares change signals between processes. Empty keeps them
	// in process.
	RedisAddr string

	Location *time.Location
}

// FromAppConfig converts the application config to a backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, fmt.Errorf("load billing timezone: %w", err)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,
		RedisAddr:    appConfig.RedisAddr,
		Location:     loc,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	}
	return nil
}
