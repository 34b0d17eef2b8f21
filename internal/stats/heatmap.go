package stats

import (
	"fmt"
	"time"

	"github.com/starford/habithub/internal/models"
)

// CellClass is the visual state of one heatmap day.
type CellClass string

const (
	CellSolidGreen  CellClass = "solid-green"
	CellHollowGreen CellClass = "hollow-green"
	CellSolidRed    CellClass = "solid-red"
	CellHollowRed   CellClass = "hollow-red"
	CellEmpty       CellClass = "empty"
	// CellTransparent marks days before the habit was tracked at all.
	CellTransparent CellClass = "transparent"
)

// Classify decides the class of a tracked day from the owner's entry, the
// habit mode and the peers' entries for the same date.
//
//	mine    mode      peers            class
//	failed  any       -                solid-red
//	done    personal  -                solid-green
//	done    together  all done         solid-green
//	done    together  any not done     hollow-green
//	absent  together  any done         hollow-red
//	absent  otherwise                  empty
func Classify(mine models.LogState, mode models.Mode, peers []models.LogState) CellClass {
	together := mode == models.ModeTogether
	switch mine {
	case models.LogFailed:
		return CellSolidRed
	case models.LogDone:
		if !together {
			return CellSolidGreen
		}
		for _, p := range peers {
			if p != models.LogDone {
				return CellHollowGreen
			}
		}
		return CellSolidGreen
	case models.LogAbsent:
		if !together {
			return CellEmpty
		}
		for _, p := range peers {
			if p == models.LogDone {
				return CellHollowRed
			}
		}
		return CellEmpty
	}
	return CellEmpty
}

// HeatmapWeeks is the number of week columns in a grid.
const HeatmapWeeks = 53

// Cell is one day of a heatmap grid.
type Cell struct {
	Date    string    `json:"date"`
	Class   CellClass `json:"status"`
	Visible bool      `json:"isVisible"`
	Today   bool      `json:"today,omitempty"`
}

// Grid is a heatmap: HeatmapWeeks columns of Sunday..Saturday cells.
type Grid struct {
	Floor  string   `json:"floor"`
	Start  string   `json:"start"`
	Labels []string `json:"weekLabels"`
	Weeks  [][]Cell `json:"weeks"`
}

// Floor is the first tracked day of a record: the earlier of its creation
// day and its first log, at local midnight. A habit without a readable
// creation time is treated as created today.
func Floor(rec models.HabitRecord, today time.Time) time.Time {
	loc := today.Location()
	floor := midnight(today)
	if rec.Habit != nil {
		if created, ok := rec.Habit.CreatedTime(); ok {
			floor = midnight(created.In(loc))
		}
	}
	for _, key := range rec.Logs.Dates() {
		d, err := time.ParseInLocation(models.DateLayout, key, loc)
		if err != nil {
			continue
		}
		if d.Before(floor) {
			floor = d
		}
		break
	}
	return floor
}

// Heatmap lays out HeatmapWeeks weeks starting on the Sunday on or before the
// record's floor. Days before the floor are transparent. today is the caller's
// current local time and only marks the matching cell.
func Heatmap(mine models.HabitRecord, peers []models.HabitRecord, today time.Time) Grid {
	floor := Floor(mine, today)
	start := floor.AddDate(0, 0, -int(floor.Weekday()))
	todayKey := models.FormatDate(today)

	mode := models.ModePersonal
	if mine.Habit != nil {
		mode = mine.Habit.EffectiveMode()
	}

	g := Grid{
		Floor:  models.FormatDate(floor),
		Start:  models.FormatDate(start),
		Labels: weekLabels(HeatmapWeeks),
		Weeks:  make([][]Cell, HeatmapWeeks),
	}
	y, m, d := start.Date()
	peerStates := make([]models.LogState, len(peers))
	for w := 0; w < HeatmapWeeks; w++ {
		week := make([]Cell, 7)
		for i := range week {
			day := time.Date(y, m, d+w*7+i, 0, 0, 0, 0, start.Location())
			key := models.FormatDate(day)
			c := Cell{Date: key, Class: CellTransparent}
			if !day.Before(floor) {
				for j, p := range peers {
					peerStates[j] = p.Logs.State(key)
				}
				c.Visible = true
				c.Class = Classify(mine.Logs.State(key), mode, peerStates)
				c.Today = key == todayKey
			}
			week[i] = c
		}
		g.Weeks[w] = week
	}
	return g
}

// weekLabels labels the first column and every fourth after it, up to W49.
func weekLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		if i%4 == 0 && i+1 <= 49 {
			out[i] = fmt.Sprintf("W%d", i+1)
		}
	}
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
