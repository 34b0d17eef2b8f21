package api

import (
	"github.com/starford/habithub/internal/habitservice"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/stats"
)

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email string `json:"email" example:"ana@example.com" validate:"required"`
}

// SignupRequest is the request body for signup. Name defaults to the email
// local part.
type SignupRequest struct {
	Name  string `json:"name" example:"Ana"`
	Email string `json:"email" example:"ana@example.com" validate:"required"`
}

// CreateHabitRequest is the request body for creating a habit. Invitees are
// only allowed for together habits.
type CreateHabitRequest struct {
	Habit    models.Habit `json:"habit" validate:"required"`
	Invitees []string     `json:"invitees,omitempty" example:"bo@example.com"`
	Logs     models.Logs  `json:"logs,omitempty"`
}

// UpdateHabitRequest carries the config fields to change.
type UpdateHabitRequest = habitservice.HabitChanges

// HabitResult is returned by create and update.
type HabitResult = habitservice.HabitResult

// ToggleRequest names the day to toggle. An empty date means today.
type ToggleRequest struct {
	Date string `json:"date" example:"2024-06-01"`
}

// ToggleResponse is the log state after a toggle.
type ToggleResponse struct {
	Date  string      `json:"date" example:"2024-06-01" validate:"required"`
	State string      `json:"state" example:"done" validate:"required"`
	Logs  models.Logs `json:"logs" validate:"required"`
}

// SetLogsRequest replaces every log entry of a row.
type SetLogsRequest struct {
	Logs models.Logs `json:"logs" validate:"required"`
}

// RespondInviteRequest accepts or rejects a pending invite.
type RespondInviteRequest struct {
	Accept bool `json:"accept"`
}

// FriendRequest asks email to become a friend.
type FriendRequest struct {
	Email string `json:"email" example:"bo@example.com" validate:"required"`
}

// RespondFriendRequest answers a pending request from Requester.
type RespondFriendRequest struct {
	Requester string `json:"requester" example:"bo@example.com" validate:"required"`
	Accept    bool   `json:"accept"`
}

// HabitListResponse wraps a user's visible habits.
type HabitListResponse struct {
	Habits []habitservice.HabitView `json:"habits" validate:"required"`
}

// HeatmapResponse is the classified 53-week grid.
type HeatmapResponse = stats.Grid

// LeaderboardResponse wraps the ranked entries.
type LeaderboardResponse struct {
	Entries []stats.Ranked `json:"entries" validate:"required"`
}

// FriendListResponse wraps friendship edges.
type FriendListResponse struct {
	Friends []models.Friend `json:"friends" validate:"required"`
}

// FriendSummaryResponse wraps per-friend weakest habits.
type FriendSummaryResponse struct {
	Friends []stats.FriendSummary `json:"friends" validate:"required"`
}

// UserListResponse wraps user search results.
type UserListResponse struct {
	Users []models.User `json:"users" validate:"required"`
}
