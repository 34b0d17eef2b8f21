// Package habitservice is the application layer: it reads through the
// repository, derives per-user views and statistics, and turns user actions
// into row writes.
//
// Every write invalidates the read cache before it is issued and again after
// it lands, so a read racing the write is never served a cache filled between
// the two.
package habitservice

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/reconcile"
	"github.com/starford/habithub/internal/repository"
	"github.com/starford/habithub/internal/stats"
	"github.com/starford/habithub/internal/storage"
)

// Notifier is told which users' data changed after a successful write.
type Notifier interface {
	Notify(kind string, emails ...string)
}

// Change kinds passed to Notifier.
const (
	KindRecords = "records.changed"
	KindFriends = "friends.changed"
)

type nopNotifier struct{}

func (nopNotifier) Notify(string, ...string) {}

// Service coordinates reads and writes.
type Service struct {
	repo     *repository.Repository
	writer   storage.Writer
	notifier Notifier
	now      func() time.Time
	loc      *time.Location
	sharedID func() string
	fanout   int
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone calendar dates are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithFanoutLimit bounds concurrent invitee writes.
func WithFanoutLimit(n int) Option {
	return func(s *Service) { s.fanout = n }
}

// NewService creates a service.
func NewService(repo *repository.Repository, writer storage.Writer, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		writer:   writer,
		notifier: nopNotifier{},
		now:      time.Now,
		loc:      time.Local,
		sharedID: uuid.NewString,
		fanout:   4,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Today is the current time in the service location.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// Location returns the zone calendar dates are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ParseDate reads a YYYY-MM-DD key in the service location. An empty string
// means today.
func (s *Service) ParseDate(date string) (time.Time, error) {
	if date == "" {
		return s.Today(), nil
	}
	t, err := time.ParseInLocation(models.DateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, invalid("date %q: want YYYY-MM-DD", date)
	}
	return t, nil
}

func (s *Service) habitID() string {
	return "h-" + strconv.FormatInt(s.now().UnixMilli(), 10)
}

// HabitView is one dashboard entry.
type HabitView struct {
	MyRecord    models.HabitRecord   `json:"myRecord"`
	PeerRecords []models.HabitRecord `json:"peerRecords"`
	WeeklyRate  int                  `json:"weeklyRate"`
	IsCreator   bool                 `json:"isCreator"`
}

func (s *Service) view(email string, data []models.SharedHabitData, asOf time.Time) []HabitView {
	out := make([]HabitView, len(data))
	for i, d := range data {
		out[i] = HabitView{
			MyRecord:    d.MyRecord,
			PeerRecords: d.PeerRecords,
			WeeklyRate:  stats.WeeklyRate(d.MyRecord.Habit, d.MyRecord.Logs, asOf),
			IsCreator:   d.MyRecord.Habit.Creator() == models.NormalizeEmail(email),
		}
	}
	return out
}

// Habits returns every habit visible to email, including pending invites.
func (s *Service) Habits(ctx context.Context, email string) []HabitView {
	all := s.repo.Records(ctx, false)
	return s.view(email, reconcile.Reconcile(email, all), s.Today())
}

// HabitsDue returns the active habits of email expected on date.
func (s *Service) HabitsDue(ctx context.Context, email string, date time.Time) []HabitView {
	all := s.repo.Records(ctx, false)
	due := stats.DueOn(reconcile.Reconcile(email, all), date)
	return s.view(email, due, s.Today())
}

// Heatmap builds the grid for one of email's habits.
func (s *Service) Heatmap(ctx context.Context, email, habitID string) (stats.Grid, error) {
	d, ok := reconcile.Find(email, habitID, s.repo.Records(ctx, false))
	if !ok {
		return stats.Grid{}, apperr.ErrNotFound
	}
	return stats.Heatmap(d.MyRecord, d.PeerRecords, s.Today()), nil
}

// Leaderboard ranks email against their accepted friends. A friends read
// failure degrades to ranking email alone.
func (s *Service) Leaderboard(ctx context.Context, email string) []stats.Ranked {
	email = models.NormalizeEmail(email)
	edges, err := s.repo.Friends(ctx, email)
	if err != nil {
		s.log.Warn("leaderboard: friends unavailable", "email", email, "error", err)
		edges = nil
	}
	self := models.User{Email: email, Name: s.displayName(ctx, email)}
	return stats.Leaderboard(self, edges, s.repo.Records(ctx, false), s.Today())
}

// FriendSummaries lists the weakest habits of each accepted friend.
func (s *Service) FriendSummaries(ctx context.Context, email string) ([]stats.FriendSummary, error) {
	edges, err := s.repo.Friends(ctx, email)
	if err != nil {
		return nil, err
	}
	return stats.FriendSummaries(email, edges, s.repo.Records(ctx, false)), nil
}

func (s *Service) displayName(ctx context.Context, email string) string {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return models.DisplayName(email)
	}
	for _, u := range users {
		if models.NormalizeEmail(u.Email) == email && u.Name != "" {
			return u.Name
		}
	}
	return models.DisplayName(email)
}
