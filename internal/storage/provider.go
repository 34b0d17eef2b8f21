// Package storage defines the remote table store abstraction and its backends.
//
// The store is a set of plain tables (users, records, friends) reachable
// through a read path that returns raw rows and a single action-tagged write
// path. Backends hand back raw rows; turning them into typed values is the
// job of package rowstore.
package storage

import (
	"context"

	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/rowstore"
)

// RecordSource reads the full records table.
type RecordSource interface {
	// Name identifies the source in logs.
	Name() string
	// FetchRecords returns every row of [email, habit_id, habit_json, logs_json].
	FetchRecords(ctx context.Context) ([]rowstore.Row, error)
}

// UserSource reads the users table.
type UserSource interface {
	// FetchUsers returns every row of [name, email].
	FetchUsers(ctx context.Context) ([]rowstore.Row, error)
}

// Writer is the write RPC. Every method maps to one action.
//
// Errors wrap apperr.ErrWriteFailed when the endpoint reports a failure and
// apperr.ErrNotConfigured when the endpoint is unreachable by configuration.
type Writer interface {
	// SaveHabit upserts one row keyed by (email, habitID), overwriting config and logs.
	SaveHabit(ctx context.Context, email, habitID string, habit *models.Habit, logs models.Logs) error
	// CreateUser appends a user.
	CreateUser(ctx context.Context, user models.User) error
	// FetchFriends returns every row of [requester, receiver, status, updated_at].
	FetchFriends(ctx context.Context) ([]rowstore.Row, error)
	// RequestFriend creates a pending edge.
	RequestFriend(ctx context.Context, requester, receiver string) error
	// RespondFriend sets the status of the edge requester → receiver.
	RespondFriend(ctx context.Context, requester, receiver string, status models.FriendStatus) error
	// RemoveFriend deletes the edge between me and friend in either direction.
	RemoveFriend(ctx context.Context, me, friend string) error
}

// Backend is a store that serves both paths.
type Backend interface {
	RecordSource
	UserSource
	Writer
}
