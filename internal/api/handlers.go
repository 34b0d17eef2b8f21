package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/habithub/internal/checksum"
	"github.com/starford/habithub/internal/habitservice"
	"github.com/starford/habithub/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *habitservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *habitservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pathParam returns a decoded URL parameter. Clients may escape the @ of an
// email.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListHabits handles GET /api/users/{email}/habits.
//
//	@Summary		Reconciled habits of a user with weekly rates
//	@Tags			habits
//	@Produce		json
//	@Param			email			path		string	true	"User email"
//	@Param			If-None-Match	header		string	false	"ETag of a previous response"
//	@Success		200				{object}	HabitListResponse
//	@Success		304				"Not modified"
//	@Security		BearerAuth
//	@Router			/users/{email}/habits [get]
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	email := models.NormalizeEmail(pathParam(r, "email"))
	body, err := json.Marshal(HabitListResponse{Habits: h.svc.Habits(r.Context(), email)})
	if err != nil {
		writeError(w, r, "list habits", err)
		return
	}
	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HabitsDue handles GET /api/users/{email}/habits/today.
//
//	@Summary		Active habits expected on a date
//	@Tags			habits
//	@Produce		json
//	@Param			email	path		string	true	"User email"
//	@Param			date	query		string	false	"YYYY-MM-DD, default today"
//	@Success		200		{object}	HabitListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/{email}/habits/today [get]
func (h *Handler) HabitsDue(w http.ResponseWriter, r *http.Request) {
	date, err := h.svc.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, "habits due", err)
		return
	}
	email := models.NormalizeEmail(pathParam(r, "email"))
	writeJSON(w, http.StatusOK, HabitListResponse{Habits: h.svc.HabitsDue(r.Context(), email, date)})
}

// Heatmap handles GET /api/users/{email}/habits/{habitID}/heatmap.
//
//	@Summary		Classified 53-week grid for one habit
//	@Tags			habits
//	@Produce		json
//	@Param			email	path		string	true	"User email"
//	@Param			habitID	path		string	true	"Habit id or invite id"
//	@Success		200		{object}	HeatmapResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/{email}/habits/{habitID}/heatmap [get]
func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	grid, err := h.svc.Heatmap(r.Context(), pathParam(r, "email"), pathParam(r, "habitID"))
	if err != nil {
		writeError(w, r, "heatmap", err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// CreateHabit handles POST /api/habits.
//
//	@Summary		Create a habit and invite members
//	@Tags			habits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateHabitRequest	true	"Habit to create"
//	@Success		201		{object}	HabitResult
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits [post]
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req CreateHabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateHabit(r.Context(), CurrentUser(r.Context()), req.Habit, req.Invitees, req.Logs)
	if err != nil {
		writeError(w, r, "create habit", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// UpdateHabit handles PUT /api/habits/{habitID}. Only the creator may edit.
func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	var req UpdateHabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.UpdateHabit(r.Context(), CurrentUser(r.Context()), pathParam(r, "habitID"), req)
	if err != nil {
		writeError(w, r, "update habit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteHabit handles DELETE /api/habits/{habitID}. The row is soft-deleted
// and returned.
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.DeleteHabit(r.Context(), CurrentUser(r.Context()), pathParam(r, "habitID"))
	if err != nil {
		writeError(w, r, "delete habit", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ToggleLog handles POST /api/habits/{habitID}/toggle.
//
//	@Summary		Cycle a day through done, failed and unlogged
//	@Tags			logs
//	@Accept			json
//	@Produce		json
//	@Param			habitID	path		string			true	"Habit id"
//	@Param			body	body		ToggleRequest	false	"Day to toggle"
//	@Success		200		{object}	ToggleResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits/{habitID}/toggle [post]
func (h *Handler) ToggleLog(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = models.FormatDate(h.svc.Today())
	}
	state, logs, err := h.svc.ToggleLog(r.Context(), CurrentUser(r.Context()), pathParam(r, "habitID"), req.Date)
	if err != nil {
		writeError(w, r, "toggle log", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{Date: req.Date, State: state.String(), Logs: logs})
}

// SetLogs handles PUT /api/habits/{habitID}/logs.
func (h *Handler) SetLogs(w http.ResponseWriter, r *http.Request) {
	var req SetLogsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Logs == nil {
		req.Logs = models.Logs{}
	}
	if err := h.svc.SetLogs(r.Context(), CurrentUser(r.Context()), pathParam(r, "habitID"), req.Logs); err != nil {
		writeError(w, r, "set logs", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RespondInvite handles POST /api/invites/{habitID}/respond. habitID may be
// the invite id or the shared habit id.
func (h *Handler) RespondInvite(w http.ResponseWriter, r *http.Request) {
	var req RespondInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.svc.RespondToInviteByID(r.Context(), CurrentUser(r.Context()), pathParam(r, "habitID"), req.Accept)
	if err != nil {
		writeError(w, r, "respond invite", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Leaderboard handles GET /api/leaderboard.
//
//	@Summary		Rank the user against accepted friends
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	LeaderboardResponse
//	@Security		BearerAuth
//	@Router			/leaderboard [get]
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: h.svc.Leaderboard(r.Context(), CurrentUser(r.Context()))})
}
