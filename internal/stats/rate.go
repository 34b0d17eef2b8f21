// Package stats derives completion rates, heatmap grids and rankings from
// habit records. Everything here is a pure function of its inputs; callers
// supply "today" explicitly.
package stats

import (
	"math"
	"time"

	"github.com/starford/habithub/internal/models"
)

// WindowDays is the length of the trailing completion-rate window.
const WindowDays = 7

// Window returns the expected and completed day counts over the WindowDays
// calendar days ending on asOf inclusive.
//
// weekly_count habits count every day of the window as expected, not only N
// of them, so their rate is diluted relative to the target.
func Window(h *models.Habit, logs models.Logs, asOf time.Time) (expected, done int) {
	if h == nil {
		return 0, 0
	}
	y, m, d := asOf.Date()
	for i := 0; i < WindowDays; i++ {
		day := time.Date(y, m, d-i, 12, 0, 0, 0, asOf.Location())
		if !h.Frequency.Expects(day.Weekday()) {
			continue
		}
		expected++
		if logs.State(models.FormatDate(day)) == models.LogDone {
			done++
		}
	}
	return expected, done
}

// WeeklyRate is the percentage of expected days done in the trailing window,
// rounded half away from zero. It is 0 when no day is expected.
func WeeklyRate(h *models.Habit, logs models.Logs, asOf time.Time) int {
	expected, done := Window(h, logs, asOf)
	if expected == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(expected)))
}

// LifetimeRate is done entries over logged entries, as a rounded percentage.
func LifetimeRate(logs models.Logs) int {
	total, done := 0, 0
	for _, v := range logs {
		total++
		if v {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// DueOn filters view to active habits expected on date. Pending invites are
// left out.
func DueOn(view []models.SharedHabitData, date time.Time) []models.SharedHabitData {
	out := make([]models.SharedHabitData, 0, len(view))
	for _, d := range view {
		h := d.MyRecord.Habit
		if h == nil || h.Status.Effective() != models.StatusActive {
			continue
		}
		if h.Frequency.Expects(date.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}
