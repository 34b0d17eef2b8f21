// Package models defines the domain types for HabitHub.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes habits to build from habits to avoid.
type Kind string

const (
	KindDo   Kind = "do"
	KindDont Kind = "dont"
)

// Mode tells whether a habit is tracked alone or shared with peers.
type Mode string

const (
	ModePersonal Mode = "personal"
	ModeTogether Mode = "together"
)

// ParticipationStatus is the per-user, per-row lifecycle state of a habit.
// The empty value is how legacy rows without a status are stored.
type ParticipationStatus string

const (
	StatusUnset    ParticipationStatus = ""
	StatusActive   ParticipationStatus = "active"
	StatusInvited  ParticipationStatus = "invited"
	StatusRejected ParticipationStatus = "rejected"
	StatusDeleted  ParticipationStatus = "deleted"
	StatusLeft     ParticipationStatus = "left"
)

// Visible reports whether a row with this status is shown to its owner.
func (s ParticipationStatus) Visible() bool {
	switch s {
	case StatusUnset, StatusActive, StatusInvited:
		return true
	case StatusRejected, StatusDeleted, StatusLeft:
		return false
	}
	return false
}

// Participating reports whether a peer row with this status counts as a peer.
// Unlike Visible, legacy rows without status are not peers.
func (s ParticipationStatus) Participating() bool {
	return s == StatusActive || s == StatusInvited
}

// Effective maps the legacy empty status to active.
func (s ParticipationStatus) Effective() ParticipationStatus {
	if s == StatusUnset {
		return StatusActive
	}
	return s
}

// FrequencyType is the closed set of schedule kinds.
type FrequencyType string

const (
	FrequencyDaily        FrequencyType = "daily"
	FrequencySpecificDays FrequencyType = "specific_days"
	FrequencyWeeklyCount  FrequencyType = "weekly_count"
)

// Frequency describes when a habit is expected to be done.
type Frequency struct {
	Type  FrequencyType `json:"type"`
	Days  []int         `json:"days,omitempty"`  // 0 (Sunday) .. 6 (Saturday), specific_days only
	Value int           `json:"value,omitempty"` // times per week, weekly_count only
}

// Expects reports whether the given weekday counts as an expected day.
//
// weekly_count counts every day: the target N is not used to size the
// denominator, which inflates it for N < 7.
func (f Frequency) Expects(day time.Weekday) bool {
	switch f.Type {
	case FrequencyDaily:
		return true
	case FrequencySpecificDays:
		for _, d := range f.Days {
			if d == int(day) {
				return true
			}
		}
		return false
	case FrequencyWeeklyCount:
		return true
	}
	return false
}

// Validate checks the frequency shape.
func (f Frequency) Validate() error {
	switch f.Type {
	case FrequencyDaily:
		return nil
	case FrequencySpecificDays:
		if len(f.Days) == 0 {
			return fmt.Errorf("frequency: specific_days needs at least one day")
		}
		for _, d := range f.Days {
			if d < 0 || d > 6 {
				return fmt.Errorf("frequency: day %d out of range 0..6", d)
			}
		}
		return nil
	case FrequencyWeeklyCount:
		if f.Value < 1 || f.Value > 7 {
			return fmt.Errorf("frequency: weekly_count value %d out of range 1..7", f.Value)
		}
		return nil
	}
	return fmt.Errorf("frequency: unknown type %q", f.Type)
}

// Habit is the configuration blob stored in a record row. JSON names are the
// storage wire names and must not change.
type Habit struct {
	ID           string              `json:"id"`
	SharedID     string              `json:"sharedId,omitempty"`
	OwnerEmail   string              `json:"userEmail"`
	CreatorEmail string              `json:"creatorEmail,omitempty"`
	Name         string              `json:"name"`
	Color        string              `json:"color"`
	Kind         Kind                `json:"type"`
	Goal         float64             `json:"goal"`
	Unit         string              `json:"unit"`
	Frequency    Frequency           `json:"frequency"`
	CreatedAt    string              `json:"createdAt"`
	Mode         Mode                `json:"mode,omitempty"`
	Members      []string            `json:"members,omitempty"`
	Status       ParticipationStatus `json:"recordStatus,omitempty"`
}

// IsTogether reports whether the habit is a shared habit instance.
func (h *Habit) IsTogether() bool {
	return h.Mode == ModeTogether
}

// EffectiveMode maps an absent mode to personal.
func (h *Habit) EffectiveMode() Mode {
	if h.Mode == "" {
		return ModePersonal
	}
	return h.Mode
}

// HasMember reports whether email is on the roster (case-insensitive).
func (h *Habit) HasMember(email string) bool {
	email = NormalizeEmail(email)
	for _, m := range h.Members {
		if NormalizeEmail(m) == email {
			return true
		}
	}
	return false
}

// Creator returns the creator email, falling back to the owner for rows
// written before creatorEmail existed.
func (h *Habit) Creator() string {
	if h.CreatorEmail != "" {
		return NormalizeEmail(h.CreatorEmail)
	}
	return NormalizeEmail(h.OwnerEmail)
}

// CreatedTime parses CreatedAt. ok is false when the value is empty or malformed.
func (h *Habit) CreatedTime() (t time.Time, ok bool) {
	if h.CreatedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, DateLayout} {
		if t, err := time.Parse(layout, h.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a deep copy.
func (h *Habit) Clone() *Habit {
	if h == nil {
		return nil
	}
	c := *h
	c.Members = append([]string(nil), h.Members...)
	c.Frequency.Days = append([]int(nil), h.Frequency.Days...)
	return &c
}

// SameConfig reports whether two rows carry the same shared configuration.
func (h *Habit) SameConfig(o *Habit) bool {
	a, _ := json.Marshal(configView(h))
	b, _ := json.Marshal(configView(o))
	return string(a) == string(b)
}

func configView(h *Habit) any {
	return struct {
		Name      string
		Color     string
		Kind      Kind
		Goal      float64
		Unit      string
		Frequency Frequency
		Members   []string
	}{h.Name, h.Color, h.Kind, h.Goal, h.Unit, h.Frequency, h.Members}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DedupeEmails normalizes emails and drops blanks and duplicates, keeping
// first-seen order.
func DedupeEmails(emails ...string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
