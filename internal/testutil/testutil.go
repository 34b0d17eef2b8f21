// Package testutil provides shared test helpers for table stores and
// repositories.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/cache"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/repository"
	"github.com/starford/habithub/internal/storage"
)

// Quiet is a logger that discards everything.
var Quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// TestStore creates a temporary SQLite table store that is automatically
// cleaned up.
func TestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "habithub-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo wraps a backend in a repository with an in-memory cache.
func TestRepo(t *testing.T, b storage.Backend) *repository.Repository {
	t.Helper()
	return repository.New([]storage.RecordSource{b}, b, b, cache.NewMemory(), repository.WithLogger(Quiet))
}

// FlakyBackend wraps a Backend and fails habit writes for selected owners.
type FlakyBackend struct {
	storage.Backend

	mu      sync.Mutex
	failFor map[string]error
	saves   []string
}

// NewFlakyBackend wraps b.
func NewFlakyBackend(b storage.Backend) *FlakyBackend {
	return &FlakyBackend{Backend: b, failFor: make(map[string]error)}
}

// FailSaves makes SaveHabit for email return err. A nil err means
// apperr.ErrWriteFailed.
func (f *FlakyBackend) FailSaves(email string, err error) {
	if err == nil {
		err = apperr.ErrWriteFailed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[models.NormalizeEmail(email)] = err
}

// SaveHabit implements storage.Writer.
func (f *FlakyBackend) SaveHabit(ctx context.Context, email, habitID string, habit *models.Habit, logs models.Logs) error {
	email = models.NormalizeEmail(email)
	f.mu.Lock()
	err := f.failFor[email]
	f.saves = append(f.saves, email+"/"+habitID)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Backend.SaveHabit(ctx, email, habitID, habit, logs)
}

// Saves returns the attempted writes as "email/habitID".
func (f *FlakyBackend) Saves() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.saves...)
}
