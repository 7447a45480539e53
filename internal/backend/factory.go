// Package backend selects and builds the session store.
package backend

import (
	"fmt"
	"time"

	"fincontrol/internal/config"
	"fincontrol/internal/log"
	"fincontrol/internal/session"
	"fincontrol/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.SessionBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid session backend in config: %s", appConfig.SessionBackend)
	}
	return Config{
		Type:                  backendType,
		SQLiteDBPath:          appConfig.SQLiteDBPath,
		MemoryCleanupInterval: 10 * time.Minute,
	}, nil
}

// NewSessionStore builds the store selected by cfg.
func NewSessionStore(cfg Config, logger *log.Logger) (*BackendResult, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStorage)

	switch cfg.Type {
	case SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite session store: %w", err)
		}
		logger.Info("Initialized SQLite session store", "db_path", cfg.SQLiteDBPath)
		return &BackendResult{
			Store:   repo,
			Cleaner: repo,
			Ping:    repo.Ping,
			Cleanup: repo.Close,
		}, nil
	case MemoryBackend:
		interval := cfg.MemoryCleanupInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		logger.Info("Initialized memory session store")
		return &BackendResult{Store: session.NewMemoryStore(interval)}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
