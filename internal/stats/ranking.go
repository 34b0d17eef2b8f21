package stats

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/starford/habithub/internal/models"
)

// Ranked is one leaderboard entry.
type Ranked struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	AvgRate int    `json:"avgRate"`
	Rank    int    `json:"rank"`
	IsMe    bool   `json:"isMe"`
}

// AverageRate averages the unrounded weekly rates of email's explicitly active
// habits, skipping habits with no expected day in the window, and rounds the
// mean. Legacy rows without a status do not count. A user with no qualifying
// habit scores 0.
func AverageRate(email string, all []models.HabitRecord, asOf time.Time) int {
	email = models.NormalizeEmail(email)
	var sum float64
	n := 0
	for _, rec := range all {
		if rec.OwnerEmail != email || rec.Habit == nil || rec.Habit.Status != models.StatusActive {
			continue
		}
		expected, done := Window(rec.Habit, rec.Logs, asOf)
		if expected == 0 {
			continue
		}
		sum += 100 * float64(done) / float64(expected)
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(sum / float64(n)))
}

// Rank sorts entries by AvgRate descending, keeping input order among ties,
// and assigns competition ranks: tied rates share a rank and the next lower
// rate takes its 1-based position.
func Rank(entries []Ranked) []Ranked {
	out := slices.Clone(entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgRate > out[j].AvgRate })
	for i := range out {
		if i > 0 && out[i].AvgRate == out[i-1].AvgRate {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

// Leaderboard ranks self and every accepted friend. Friends are named by the
// local part of their email.
func Leaderboard(self models.User, edges []models.Friend, all []models.HabitRecord, asOf time.Time) []Ranked {
	me := models.NormalizeEmail(self.Email)
	emails := models.DedupeEmails(append([]string{me}, models.AcceptedFriends(me, edges)...)...)

	entries := make([]Ranked, 0, len(emails))
	for _, email := range emails {
		e := Ranked{
			Name:    models.DisplayName(email),
			Email:   email,
			AvgRate: AverageRate(email, all, asOf),
			IsMe:    email == me,
		}
		if e.IsMe && self.Name != "" {
			e.Name = self.Name
		}
		entries = append(entries, e)
	}
	return Rank(entries)
}

// HabitSummary is one habit on a friend card.
type HabitSummary struct {
	HabitName string      `json:"habitName"`
	Kind      models.Kind `json:"type"`
	Rate      int         `json:"rate"`
	Color     string      `json:"color"`
}

// FriendSummary is a friend with their weakest habits.
type FriendSummary struct {
	Friendship models.Friend  `json:"friendship"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Stats      []HabitSummary `json:"stats"`
}

// SummaryLimit is how many habits a friend summary lists.
const SummaryLimit = 3

// FriendSummaries lists, per accepted friend of me, the SummaryLimit active
// habits with the lowest lifetime success rate.
func FriendSummaries(me string, edges []models.Friend, all []models.HabitRecord) []FriendSummary {
	me = models.NormalizeEmail(me)
	out := make([]FriendSummary, 0)
	for _, f := range edges {
		if f.Status != models.FriendAccepted || !f.Involves(me) {
			continue
		}
		email := f.Other(me)
		summary := FriendSummary{
			Friendship: f,
			Name:       models.DisplayName(email),
			Email:      email,
			Stats:      []HabitSummary{},
		}
		for _, rec := range all {
			if rec.OwnerEmail != email || rec.Habit == nil || rec.Habit.Status != models.StatusActive {
				continue
			}
			summary.Stats = append(summary.Stats, HabitSummary{
				HabitName: rec.Habit.Name,
				Kind:      rec.Habit.Kind,
				Rate:      LifetimeRate(rec.Logs),
				Color:     rec.Habit.Color,
			})
		}
		sort.SliceStable(summary.Stats, func(i, j int) bool { return summary.Stats[i].Rate < summary.Stats[j].Rate })
		if len(summary.Stats) > SummaryLimit {
			summary.Stats = summary.Stats[:SummaryLimit]
		}
		out = append(out, summary)
	}
	return out
}
