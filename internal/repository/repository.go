// Package repository is the read side of the table store: a cached full
// read of the records table behind an ordered chain of sources, plus users
// and friend edges.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/habithub/internal/cache"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/rowstore"
	"github.com/starford/habithub/internal/storage"
)

// DefaultTTL is how long a full records read is served from cache.
const DefaultTTL = 5 * time.Minute

const (
	keyRecords = "records"
	keyFriends = "friends"
)

// FriendSource reads the friends table.
type FriendSource interface {
	FetchFriends(ctx context.Context) ([]rowstore.Row, error)
}

// Repository serves records, users and friends.
type Repository struct {
	sources []storage.RecordSource
	users   storage.UserSource
	friends FriendSource
	cache   cache.Cache
	ttl     atomic.Int64
	log     *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithTTL sets the records cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Repository) { r.ttl.Store(int64(ttl)) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// New creates a repository reading records from sources in order.
func New(sources []storage.RecordSource, users storage.UserSource, friends FriendSource, c cache.Cache, opts ...Option) *Repository {
	if c == nil {
		c = cache.NewMemory()
	}
	r := &Repository{
		sources: sources,
		users:   users,
		friends: friends,
		cache:   c,
		log:     slog.Default(),
	}
	r.ttl.Store(int64(DefaultTTL))
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetTTL changes the records TTL for subsequent stores.
func (r *Repository) SetTTL(ttl time.Duration) {
	r.ttl.Store(int64(ttl))
}

// TTL returns the current records TTL.
func (r *Repository) TTL() time.Duration {
	return time.Duration(r.ttl.Load())
}

// Invalidate drops every cached read.
func (r *Repository) Invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx); err != nil {
		r.log.Warn("cache invalidate failed", "error", err)
	}
}

// Records returns the full records table, including rows whose habit could
// not be parsed. When every source fails the result is empty and nothing is
// cached.
func (r *Repository) Records(ctx context.Context, forceRefresh bool) []models.HabitRecord {
	if !forceRefresh {
		var cached []models.HabitRecord
		if r.load(ctx, keyRecords, &cached) {
			return cached
		}
	}

	gen, genErr := r.cache.Generation(ctx)
	rows, err := r.fetchRecords(ctx)
	if err != nil {
		r.log.Warn("records fetch failed", "error", err)
		return []models.HabitRecord{}
	}
	records := rowstore.ParseRecords(rows)
	if genErr == nil {
		r.store(ctx, keyRecords, gen, records, r.TTL())
	}
	return records
}

// fetchRecords walks the source chain. The first source yielding at least
// one row wins; an empty but successful read counts only if nothing later
// yields rows.
func (r *Repository) fetchRecords(ctx context.Context) ([]rowstore.Row, error) {
	var (
		errs      []error
		succeeded bool
	)
	for _, src := range r.sources {
		rows, err := src.FetchRecords(ctx)
		if err != nil {
			r.log.Debug("record source failed", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		succeeded = true
		if len(rows) > 0 {
			return rows, nil
		}
	}
	if succeeded {
		return nil, nil
	}
	if len(errs) == 0 {
		return nil, errors.New("repository: no record sources")
	}
	return nil, errors.Join(errs...)
}

// RecordsFor returns the rows owned by email that carry a habit.
func (r *Repository) RecordsFor(ctx context.Context, email string) []models.HabitRecord {
	email = models.NormalizeEmail(email)
	var out []models.HabitRecord
	for _, rec := range r.Records(ctx, false) {
		if rec.OwnerEmail == email && rec.Habit != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Find returns the owner's row for habitID.
func (r *Repository) Find(ctx context.Context, email, habitID string) (models.HabitRecord, bool) {
	for _, rec := range r.RecordsFor(ctx, email) {
		if rec.HabitID == habitID {
			return rec, true
		}
	}
	return models.HabitRecord{}, false
}

// Users reads the users table uncached.
func (r *Repository) Users(ctx context.Context) ([]models.User, error) {
	rows, err := r.users.FetchUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: fetch users: %w", err)
	}
	return rowstore.ParseUsers(rows), nil
}

// AllFriends returns every friend edge, cached until the next invalidation.
func (r *Repository) AllFriends(ctx context.Context) ([]models.Friend, error) {
	var cached []models.Friend
	if r.load(ctx, keyFriends, &cached) {
		return cached, nil
	}
	gen, genErr := r.cache.Generation(ctx)
	rows, err := r.friends.FetchFriends(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: fetch friends: %w", err)
	}
	edges := rowstore.ParseFriends(rows)
	if genErr == nil {
		r.store(ctx, keyFriends, gen, edges, 0)
	}
	return edges, nil
}

// Friends returns the edges involving email.
func (r *Repository) Friends(ctx context.Context, email string) ([]models.Friend, error) {
	all, err := r.AllFriends(ctx)
	if err != nil {
		return nil, err
	}
	email = models.NormalizeEmail(email)
	out := make([]models.Friend, 0)
	for _, f := range all {
		if f.Involves(email) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *Repository) load(ctx context.Context, key string, v any) bool {
	raw, ok, err := r.cache.Load(ctx, key)
	if err != nil {
		r.log.Warn("cache load failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		r.log.Warn("cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (r *Repository) store(ctx context.Context, key string, gen uint64, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	err = r.cache.Store(ctx, key, gen, raw, ttl)
	switch {
	case errors.Is(err, cache.ErrStale):
		r.log.Debug("dropping read from before invalidation", "key", key)
	case err != nil:
		r.log.Warn("cache store failed", "key", key, "error", err)
	}
}
