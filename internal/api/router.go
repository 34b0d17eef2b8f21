package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/habithub/internal/habitservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group;
// it identifies its user itself since EventSource cannot set headers.
func NewRouter(svc *habitservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/auth/login", h.Login)
	r.Post("/auth/signup", h.Signup)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Get("/users/search", h.SearchUsers)
		r.Route("/users/{email}/habits", func(r chi.Router) {
			r.Get("/", h.ListHabits)
			r.Get("/today", h.HabitsDue)
			r.Get("/{habitID}/heatmap", h.Heatmap)
		})

		r.Post("/habits", h.CreateHabit)
		r.Put("/habits/{habitID}", h.UpdateHabit)
		r.Delete("/habits/{habitID}", h.DeleteHabit)
		r.Post("/habits/{habitID}/toggle", h.ToggleLog)
		r.Put("/habits/{habitID}/logs", h.SetLogs)

		r.Post("/invites/{habitID}/respond", h.RespondInvite)

		r.Get("/friends", h.ListFriends)
		r.Post("/friends/requests", h.RequestFriend)
		r.Post("/friends/respond", h.RespondFriend)
		r.Get("/friends/summaries", h.FriendSummaries)
		r.Delete("/friends/{email}", h.RemoveFriend)

		r.Get("/leaderboard", h.Leaderboard)
	})

	return r
}
