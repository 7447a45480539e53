package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/session"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "sessions.db"), log.New(cfg))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := session.Session{
		ID:        "sess-1",
		Token:     "tok",
		User:      core.User{ID: "7", Name: "Ana", Email: "ana@example.com"},
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}

	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != "tok" || got.User != s.User || !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Fatalf("got %+v, want %+v", got, s)
	}

	s.Token = "tok2"
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	if got, _ := repo.Get(ctx, "sess-1"); got.Token != "tok2" {
		t.Fatalf("token not updated: %q", got.Token)
	}

	if err := repo.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "sess-1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
}

func TestExpiredSessionsAreHiddenAndPurged(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"a", "b"} {
		if err := repo.Save(ctx, session.Session{ID: id, Token: "t", User: core.User{ID: "7"}, ExpiresAt: now.Add(time.Minute)}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := repo.Save(ctx, session.Session{ID: "c", Token: "t", User: core.User{ID: "7"}, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	repo.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expired Get = %v", err)
	}
	if n := repo.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired = %d, want 2", n)
	}
	if _, err := repo.Get(ctx, "c"); err != nil {
		t.Fatalf("live session lost: %v", err)
	}
}

func TestMigrateSessionSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		version, err := MigrateSessionSchema(path)
		if err != nil {
			t.Fatalf("MigrateSessionSchema #%d: %v", i+1, err)
		}
		if version != 1 {
			t.Fatalf("MigrateSessionSchema #%d: version = %d, want 1", i+1, version)
		}
	}
}

func TestSQLiteRepositoryIsASessionStore(t *testing.T) {
	var _ session.Store = (*SQLiteRepository)(nil)
}
