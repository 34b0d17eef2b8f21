package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/starford/habithub/internal/cache"
	"github.com/starford/habithub/internal/rowstore"
	"github.com/starford/habithub/internal/storage"
)

type fakeSource struct {
	name  string
	rows  []rowstore.Row
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchRecords(context.Context) ([]rowstore.Row, error) {
	f.calls.Add(1)
	return f.rows, f.err
}

func (f *fakeSource) FetchUsers(context.Context) ([]rowstore.Row, error) {
	return []rowstore.Row{{"Ann", "ANN@x.com"}, {"nobody", ""}}, nil
}

func (f *fakeSource) FetchFriends(context.Context) ([]rowstore.Row, error) {
	f.calls.Add(1)
	return []rowstore.Row{
		{"requester", "receiver", "status", "updated_at"},
		{"a@x.com", "b@x.com", "accepted", ""},
		{"c@x.com", "d@x.com", "pending", ""},
	}, f.err
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func habitRow(email, id string) rowstore.Row {
	return rowstore.Row{email, id, `{"id":"` + id + `","name":"Run"}`, `{"2024-06-01":true}`}
}

func newRepo(sources ...storage.RecordSource) *Repository {
	return New(sources, &fakeSource{}, &fakeSource{}, cache.NewMemory(), WithLogger(quiet))
}

func TestRecords_CachedUntilInvalidated(t *testing.T) {
	src := &fakeSource{name: "primary", rows: []rowstore.Row{habitRow("a@x.com", "h1")}}
	repo := newRepo(src)
	ctx := context.Background()

	first := repo.Records(ctx, false)
	second := repo.Records(ctx, false)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("len = %d, %d; want 1, 1", len(first), len(second))
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	if !second[0].Logs["2024-06-01"] {
		t.Error("logs lost through the cache")
	}

	repo.Invalidate(ctx)
	repo.Records(ctx, false)
	if got := src.calls.Load(); got != 2 {
		t.Errorf("fetches after invalidate = %d, want 2", got)
	}

	repo.Records(ctx, true)
	if got := src.calls.Load(); got != 3 {
		t.Errorf("fetches after force = %d, want 3", got)
	}
}

func TestRecords_FallbackChain(t *testing.T) {
	failing := &fakeSource{name: "gviz", err: errors.New("boom")}
	empty := &fakeSource{name: "empty"}
	rpc := &fakeSource{name: "rpc", rows: []rowstore.Row{habitRow("a@x.com", "h1"), habitRow("b@x.com", "h2")}}
	repo := newRepo(failing, empty, rpc)

	got := repo.Records(context.Background(), false)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if rpc.calls.Load() != 1 {
		t.Error("fallback source not consulted")
	}
}

func TestRecords_FirstNonEmptyWins(t *testing.T) {
	first := &fakeSource{name: "first", rows: []rowstore.Row{habitRow("a@x.com", "h1")}}
	second := &fakeSource{name: "second", rows: []rowstore.Row{habitRow("b@x.com", "h2")}}
	repo := newRepo(first, second)

	got := repo.Records(context.Background(), false)
	if len(got) != 1 || got[0].HabitID != "h1" {
		t.Fatalf("got %+v", got)
	}
	if second.calls.Load() != 0 {
		t.Error("second source should not be read")
	}
}

func TestRecords_FailureNotCached(t *testing.T) {
	src := &fakeSource{name: "gviz", err: errors.New("down")}
	repo := newRepo(src)
	ctx := context.Background()

	if got := repo.Records(ctx, false); len(got) != 0 || got == nil {
		t.Fatalf("got %v, want empty non-nil slice", got)
	}
	src.err = nil
	src.rows = []rowstore.Row{habitRow("a@x.com", "h1")}
	if got := repo.Records(ctx, false); len(got) != 1 {
		t.Fatalf("len = %d after recovery, want 1", len(got))
	}
}

func TestRecordsFor_FiltersOwnerAndNilHabit(t *testing.T) {
	src := &fakeSource{name: "s", rows: []rowstore.Row{
		habitRow("A@x.com ", "h1"),
		{"a@x.com", "h2", "not json", ""},
		habitRow("b@x.com", "h3"),
	}}
	repo := newRepo(src)

	got := repo.RecordsFor(context.Background(), "a@x.com")
	if len(got) != 1 || got[0].HabitID != "h1" {
		t.Fatalf("got %+v", got)
	}
	if _, ok := repo.Find(context.Background(), "a@x.com", "h3"); ok {
		t.Error("Find matched another owner's row")
	}
}

func TestFriends_CachedAndFiltered(t *testing.T) {
	fr := &fakeSource{}
	repo := New(nil, &fakeSource{}, fr, cache.NewMemory(), WithLogger(quiet))
	ctx := context.Background()

	edges, err := repo.Friends(ctx, "B@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].Requester != "a@x.com" {
		t.Fatalf("edges = %+v", edges)
	}
	_, _ = repo.Friends(ctx, "c@x.com")
	if fr.calls.Load() != 1 {
		t.Errorf("friend fetches = %d, want 1", fr.calls.Load())
	}
	repo.Invalidate(ctx)
	_, _ = repo.Friends(ctx, "c@x.com")
	if fr.calls.Load() != 2 {
		t.Errorf("friend fetches after invalidate = %d, want 2", fr.calls.Load())
	}
}

func TestUsers(t *testing.T) {
	repo := newRepo()
	users, err := repo.Users(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Name != "Ann" {
		t.Fatalf("users = %+v", users)
	}
}
