package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/rowstore"
)

func tempSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "habithub.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_SaveHabitUpserts(t *testing.T) {
	db := tempSQLite(t)
	ctx := context.Background()
	h := &models.Habit{ID: "h-1", Name: "Run", Status: models.StatusActive}

	if err := db.SaveHabit(ctx, "A@x.com", "h-1", h, models.Logs{"2024-06-01": true}); err != nil {
		t.Fatalf("SaveHabit: %v", err)
	}
	h.Status = models.StatusDeleted
	if err := db.SaveHabit(ctx, "a@x.com", "h-1", h, models.Logs{}); err != nil {
		t.Fatalf("SaveHabit overwrite: %v", err)
	}

	rows, err := db.FetchRecords(ctx)
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (upsert)", len(rows))
	}
	rec := rowstore.ParseRecord(rows[0])
	if rec.Habit.Status != models.StatusDeleted || len(rec.Logs) != 0 {
		t.Errorf("record = %+v", rec)
	}
}

func TestSQLite_RecordsKeepInsertionOrder(t *testing.T) {
	db := tempSQLite(t)
	ctx := context.Background()
	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		if err := db.SaveHabit(ctx, email, "h-1", &models.Habit{ID: "h-1"}, nil); err != nil {
			t.Fatal(err)
		}
	}
	rows, _ := db.FetchRecords(ctx)
	if len(rows) != 3 || rows[0][0] != "c@x.com" || rows[2][0] != "b@x.com" {
		t.Errorf("rows = %v", rows)
	}
}

func TestSQLite_Users(t *testing.T) {
	db := tempSQLite(t)
	ctx := context.Background()
	if err := db.CreateUser(ctx, models.User{Name: "Ann", Email: "Ann@x.com"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := db.CreateUser(ctx, models.User{Name: "Ann", Email: "ann@x.com"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
	rows, err := db.FetchUsers(ctx)
	if err != nil || len(rows) != 1 || rows[0][1] != "ann@x.com" {
		t.Errorf("users = %v, %v", rows, err)
	}
}

func TestSQLite_FriendLifecycle(t *testing.T) {
	db := tempSQLite(t)
	ctx := context.Background()
	if err := db.RequestFriend(ctx, "a@x.com", "b@x.com"); err != nil {
		t.Fatal(err)
	}
	if err := db.RespondFriend(ctx, "a@x.com", "b@x.com", models.FriendAccepted); err != nil {
		t.Fatal(err)
	}
	if err := db.RespondFriend(ctx, "b@x.com", "a@x.com", models.FriendAccepted); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("responding to a missing edge = %v", err)
	}
	friends := rowstore.ParseFriends(mustRows(t)(db.FetchFriends(ctx)))
	if len(friends) != 1 || friends[0].Status != models.FriendAccepted {
		t.Fatalf("friends = %+v", friends)
	}
	if err := db.RemoveFriend(ctx, "b@x.com", "a@x.com"); err != nil {
		t.Fatal(err)
	}
	if rows := mustRows(t)(db.FetchFriends(ctx)); len(rows) != 0 {
		t.Errorf("rows after remove = %v", rows)
	}
}

func TestSQLite_ImportKeepsMalformedRows(t *testing.T) {
	db := tempSQLite(t)
	ctx := context.Background()
	err := db.ImportRecords(ctx, []rowstore.Row{
		{"a@x.com", "h-1", `{"id":"h-1"}`, `{}`},
		{"a@x.com", "h-2", `{broken`, nil},
		{"b@x.com", "h-3", map[string]any{"id": "h-3"}},
	})
	if err != nil {
		t.Fatalf("ImportRecords: %v", err)
	}
	recs := rowstore.ParseRecords(mustRows(t)(db.FetchRecords(ctx)))
	if len(recs) != 3 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[1].Habit != nil {
		t.Error("malformed habit should stay malformed")
	}
	if recs[2].Habit == nil || recs[2].Habit.ID != "h-3" {
		t.Errorf("structured cell = %+v", recs[2].Habit)
	}
}

func mustRows(t *testing.T) func([]rowstore.Row, error) []rowstore.Row {
	t.Helper()
	return func(rows []rowstore.Row, err error) []rowstore.Row {
		if err != nil {
			t.Fatal(err)
		}
		return rows
	}
}
