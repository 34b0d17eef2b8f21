package api

import (
	"net/http"

	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/stats"
)

// Login handles POST /api/auth/login.
//
//	@Summary		Look a user up by email
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Email"
//	@Success		200		{object}	models.User
//	@Failure		404		{object}	errResponse
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.Login(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.SignUp(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, r, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// SearchUsers handles GET /api/users/search?q=.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.SearchUsers(r.Context(), CurrentUser(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, "search users", err)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

// ListFriends handles GET /api/friends.
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	edges, err := h.svc.Friends(r.Context(), CurrentUser(r.Context()))
	if err != nil {
		writeError(w, r, "list friends", err)
		return
	}
	if edges == nil {
		edges = []models.Friend{}
	}
	writeJSON(w, http.StatusOK, FriendListResponse{Friends: edges})
}

// RequestFriend handles POST /api/friends/requests.
//
//	@Summary		Send a friend request
//	@Tags			friends
//	@Accept			json
//	@Param			body	body	FriendRequest	true	"Receiver"
//	@Success		202		"Request sent"
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/friends/requests [post]
func (h *Handler) RequestFriend(w http.ResponseWriter, r *http.Request) {
	var req FriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.RequestFriend(r.Context(), CurrentUser(r.Context()), req.Email); err != nil {
		writeError(w, r, "request friend", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RespondFriend handles POST /api/friends/respond.
func (h *Handler) RespondFriend(w http.ResponseWriter, r *http.Request) {
	var req RespondFriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.RespondFriend(r.Context(), CurrentUser(r.Context()), req.Requester, req.Accept); err != nil {
		writeError(w, r, "respond friend", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFriend handles DELETE /api/friends/{email}.
func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveFriend(r.Context(), CurrentUser(r.Context()), pathParam(r, "email")); err != nil {
		writeError(w, r, "remove friend", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FriendSummaries handles GET /api/friends/summaries.
func (h *Handler) FriendSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.FriendSummaries(r.Context(), CurrentUser(r.Context()))
	if err != nil {
		writeError(w, r, "friend summaries", err)
		return
	}
	if summaries == nil {
		summaries = []stats.FriendSummary{}
	}
	writeJSON(w, http.StatusOK, FriendSummaryResponse{Friends: summaries})
}
