package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar-date key format used in logs.
const DateLayout = "2006-01-02"

// VirtualInvitePrefix marks habit ids of invite records that have no backing row.
const VirtualInvitePrefix = "invited-"

// FormatDate renders t as a local calendar-date key in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidDate reports whether key is a well-formed date key.
func ValidDate(key string) bool {
	_, err := time.Parse(DateLayout, key)
	return err == nil
}

// LogState is the tri-state value of one log entry.
type LogState int

const (
	LogAbsent LogState = iota
	LogDone
	LogFailed
)

// String implements fmt.Stringer.
func (s LogState) String() string {
	switch s {
	case LogDone:
		return "done"
	case LogFailed:
		return "failed"
	}
	return "absent"
}

// Next returns the toggle successor: absent → done → failed → absent.
func (s LogState) Next() LogState {
	switch s {
	case LogAbsent:
		return LogDone
	case LogDone:
		return LogFailed
	}
	return LogAbsent
}

// Logs maps a date key to done (true) or failed (false). A missing key is absent.
type Logs map[string]bool

// State returns the tri-state value for date.
func (l Logs) State(date string) LogState {
	v, ok := l[date]
	switch {
	case !ok:
		return LogAbsent
	case v:
		return LogDone
	default:
		return LogFailed
	}
}

// With returns a copy of l with date set to state.
func (l Logs) With(date string, state LogState) Logs {
	out := l.Clone()
	switch state {
	case LogDone:
		out[date] = true
	case LogFailed:
		out[date] = false
	default:
		delete(out, date)
	}
	return out
}

// Clone returns a copy that is never nil.
func (l Logs) Clone() Logs {
	out := make(Logs, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Dates returns the logged date keys in ascending order.
func (l Logs) Dates() []string {
	out := make([]string, 0, len(l))
	for k := range l {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UnmarshalJSON keeps boolean entries and drops everything else, so a stray
// null or string in the stored blob does not turn into a failed day.
func (l *Logs) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Logs, len(raw))
	for k, v := range raw {
		if b, ok := v.(bool); ok {
			out[strings.TrimSpace(k)] = b
		}
	}
	*l = out
	return nil
}

// HabitRecord is one storage row: one user's copy of one habit plus its logs.
// Habit is nil when the stored config could not be parsed.
type HabitRecord struct {
	OwnerEmail string `json:"email"`
	HabitID    string `json:"habit_id"`
	Habit      *Habit `json:"habit"`
	Logs       Logs   `json:"logs"`
}

// IsVirtual reports whether the record is a synthesized invite with no row.
func (r *HabitRecord) IsVirtual() bool {
	return strings.HasPrefix(r.HabitID, VirtualInvitePrefix)
}

// Status returns the row's participation status, or unset for a nil habit.
func (r *HabitRecord) Status() ParticipationStatus {
	if r.Habit == nil {
		return StatusUnset
	}
	return r.Habit.Status
}

// SharedHabitData is one visible habit for a user together with peer rows.
type SharedHabitData struct {
	MyRecord    HabitRecord   `json:"myRecord"`
	PeerRecords []HabitRecord `json:"peerRecords"`
}
