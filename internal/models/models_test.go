package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFrequencyExpects(t *testing.T) {
	cases := []struct {
		name string
		f    Frequency
		day  time.Weekday
		want bool
	}{
		{"daily", Frequency{Type: FrequencyDaily}, time.Tuesday, true},
		{"specific hit", Frequency{Type: FrequencySpecificDays, Days: []int{1, 3}}, time.Wednesday, true},
		{"specific miss", Frequency{Type: FrequencySpecificDays, Days: []int{1, 3}}, time.Sunday, false},
		{"weekly count counts every day", Frequency{Type: FrequencyWeeklyCount, Value: 3}, time.Saturday, true},
		{"unknown", Frequency{Type: "monthly"}, time.Monday, false},
	}
	for _, tc := range cases {
		if got := tc.f.Expects(tc.day); got != tc.want {
			t.Errorf("%s: Expects(%v) = %v, want %v", tc.name, tc.day, got, tc.want)
		}
	}
}

func TestFrequencyValidate(t *testing.T) {
	if err := (Frequency{Type: FrequencySpecificDays}).Validate(); err == nil {
		t.Error("specific_days without days should fail")
	}
	if err := (Frequency{Type: FrequencySpecificDays, Days: []int{7}}).Validate(); err == nil {
		t.Error("day 7 should fail")
	}
	if err := (Frequency{Type: FrequencyWeeklyCount, Value: 3}).Validate(); err != nil {
		t.Errorf("weekly_count 3: %v", err)
	}
}

func TestLogsUnmarshalDropsNonBool(t *testing.T) {
	var l Logs
	if err := json.Unmarshal([]byte(`{"2024-06-01":true,"2024-06-02":false,"2024-06-03":null,"2024-06-04":"yes"}`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(l) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(l), l)
	}
	if l.State("2024-06-01") != LogDone || l.State("2024-06-02") != LogFailed || l.State("2024-06-03") != LogAbsent {
		t.Errorf("unexpected states: %v", l)
	}
}

func TestLogStateCycle(t *testing.T) {
	s := LogAbsent
	want := []LogState{LogDone, LogFailed, LogAbsent}
	for i, w := range want {
		s = s.Next()
		if s != w {
			t.Fatalf("step %d = %v, want %v", i, s, w)
		}
	}
}

func TestLogsWithDoesNotMutate(t *testing.T) {
	orig := Logs{"2024-06-01": true}
	next := orig.With("2024-06-01", LogAbsent)
	if _, ok := next["2024-06-01"]; ok {
		t.Error("absent should delete the key")
	}
	if !orig["2024-06-01"] {
		t.Error("original logs were mutated")
	}
}

func TestStatusVisibility(t *testing.T) {
	for _, s := range []ParticipationStatus{StatusUnset, StatusActive, StatusInvited} {
		if !s.Visible() {
			t.Errorf("%q should be visible", s)
		}
	}
	for _, s := range []ParticipationStatus{StatusRejected, StatusDeleted, StatusLeft} {
		if s.Visible() {
			t.Errorf("%q should be hidden", s)
		}
	}
	if StatusUnset.Participating() {
		t.Error("unset status should not count as a peer")
	}
}

func TestAcceptedFriendsEitherDirection(t *testing.T) {
	edges := []Friend{
		{Requester: "a@x.com", Receiver: "b@x.com", Status: FriendAccepted},
		{Requester: "c@x.com", Receiver: "a@x.com", Status: FriendAccepted},
		{Requester: "a@x.com", Receiver: "d@x.com", Status: FriendPending},
		{Requester: "e@x.com", Receiver: "f@x.com", Status: FriendAccepted},
	}
	got := AcceptedFriends("A@x.com ", edges)
	if len(got) != 2 || got[0] != "b@x.com" || got[1] != "c@x.com" {
		t.Errorf("AcceptedFriends = %v", got)
	}
}

func TestDedupeEmails(t *testing.T) {
	got := DedupeEmails("A@x.com", " a@x.com", "", "b@x.com")
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Errorf("DedupeEmails = %v", got)
	}
}

func TestHabitCreatedTime(t *testing.T) {
	h := Habit{CreatedAt: "2024-06-01T09:30:00.000Z"}
	ts, ok := h.CreatedTime()
	if !ok || ts.Day() != 1 {
		t.Errorf("CreatedTime = %v, %v", ts, ok)
	}
	h.CreatedAt = "yesterday"
	if _, ok := h.CreatedTime(); ok {
		t.Error("malformed createdAt should not parse")
	}
}
