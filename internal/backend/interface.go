package backend

import (
	"context"
	"time"

	"fincontrol/internal/cache"
	"fincontrol/internal/session"
)

// BackendType names a session store implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (t BackendType) IsValid() bool {
	return t == MemoryBackend || t == SQLiteBackend
}

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready session store plus what the caller needs to
// manage it. Cleaner, Ping and Cleanup are nil when the store needs none.
type BackendResult struct {
	Store   session.Store
	Cleaner cache.Cleaner
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	// MemoryCleanupInterval is how often the memory store drops expired
	// sessions.
	MemoryCleanupInterval time.Duration
}
