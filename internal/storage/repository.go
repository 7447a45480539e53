// Package storage persists server-side sessions in SQLite so they survive
// restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/session"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements session.Store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := MigrateSessionSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Debug("Session schema ready", "schema_version", version)
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Save(ctx context.Context, s session.Session) error {
	if s.Expired(r.now()) {
		return session.ErrExpired
	}
	err := r.queries.UpsertSession(ctx, SessionRow{
		ID:        s.ID,
		Token:     s.Token,
		UserID:    s.User.ID,
		UserName:  s.User.Name,
		UserEmail: s.User.Email,
		ExpiresAt: s.ExpiresAt.Unix(),
		CreatedAt: r.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (session.Session, error) {
	row, err := r.queries.GetSession(ctx, id, r.now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session.Session{
		ID:    row.ID,
		Token: row.Token,
		User: core.User{
			ID:    row.UserID,
			Name:  row.UserName,
			Email: row.UserEmail,
		},
		ExpiresAt: time.Unix(row.ExpiresAt, 0),
	}, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if err := r.queries.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpired removes expired sessions. It lets a cache.Manager drive the
// purge alongside the in-memory caches.
func (r *SQLiteRepository) CleanExpired() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := r.queries.DeleteExpiredSessions(ctx, r.now().Unix())
	if err != nil {
		r.logger.Error("Failed to purge expired sessions", log.FieldError, err)
		return 0
	}
	return int(n)
}
