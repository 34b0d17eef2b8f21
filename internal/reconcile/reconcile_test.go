package reconcile

import (
	"testing"

	"github.com/starford/habithub/internal/models"
)

func together(owner, id, shared string, status models.ParticipationStatus, members ...string) models.HabitRecord {
	return models.HabitRecord{
		OwnerEmail: owner,
		HabitID:    id,
		Habit: &models.Habit{
			ID:           id,
			SharedID:     shared,
			OwnerEmail:   owner,
			CreatorEmail: members[0],
			Name:         "Read",
			Mode:         models.ModeTogether,
			Members:      members,
			Status:       status,
			Frequency:    models.Frequency{Type: models.FrequencyDaily},
		},
		Logs: models.Logs{},
	}
}

func personal(owner, id string, status models.ParticipationStatus) models.HabitRecord {
	return models.HabitRecord{
		OwnerEmail: owner,
		HabitID:    id,
		Habit:      &models.Habit{ID: id, OwnerEmail: owner, Name: "Run", Status: status},
		Logs:       models.Logs{},
	}
}

func ids(view []models.SharedHabitData) []string {
	out := make([]string, len(view))
	for i, d := range view {
		out[i] = d.MyRecord.HabitID
	}
	return out
}

func TestReconcile_VirtualInvite(t *testing.T) {
	all := []models.HabitRecord{
		together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com"),
	}
	view := Reconcile("B@x.com", all)
	if len(view) != 1 {
		t.Fatalf("len = %d, want 1", len(view))
	}
	got := view[0].MyRecord
	if got.HabitID != "invited-s1" || !got.IsVirtual() {
		t.Errorf("habit id = %q", got.HabitID)
	}
	if got.OwnerEmail != "b@x.com" || got.Habit.OwnerEmail != "b@x.com" {
		t.Errorf("owner = %q / %q", got.OwnerEmail, got.Habit.OwnerEmail)
	}
	if got.Habit.Status != models.StatusInvited {
		t.Errorf("status = %q", got.Habit.Status)
	}
	if got.Habit.ID != "h1" {
		t.Errorf("virtual invite should carry the canonical id, got %q", got.Habit.ID)
	}
	if len(view[0].PeerRecords) != 1 || view[0].PeerRecords[0].OwnerEmail != "a@x.com" {
		t.Errorf("peers = %+v", view[0].PeerRecords)
	}
	if all[0].Habit.OwnerEmail != "a@x.com" {
		t.Error("source row was mutated")
	}
}

func TestReconcile_AntiReInvite(t *testing.T) {
	for _, status := range []models.ParticipationStatus{models.StatusLeft, models.StatusRejected, models.StatusDeleted} {
		t.Run(string(status), func(t *testing.T) {
			all := []models.HabitRecord{
				together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com"),
				together("b@x.com", "h1", "s1", status, "a@x.com", "b@x.com"),
			}
			if view := Reconcile("b@x.com", all); len(view) != 0 {
				t.Fatalf("b sees %v, want nothing", ids(view))
			}
			// b is no longer a peer of a either.
			view := Reconcile("a@x.com", all)
			if len(view) != 1 || len(view[0].PeerRecords) != 0 {
				t.Fatalf("a's view = %+v", view)
			}
		})
	}
}

func TestReconcile_Visibility(t *testing.T) {
	all := []models.HabitRecord{
		personal("a@x.com", "p-active", models.StatusActive),
		personal("a@x.com", "p-legacy", models.StatusUnset),
		personal("a@x.com", "p-deleted", models.StatusDeleted),
		together("a@x.com", "t-invited", "s1", models.StatusInvited, "c@x.com", "a@x.com"),
		together("a@x.com", "t-left", "s2", models.StatusLeft, "c@x.com", "a@x.com"),
		together("a@x.com", "t-rejected", "s3", models.StatusRejected, "c@x.com", "a@x.com"),
		{OwnerEmail: "a@x.com", HabitID: "broken"},
	}
	got := ids(Reconcile("a@x.com", all))
	want := []string{"p-active", "p-legacy", "t-invited"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReconcile_PeerSymmetry(t *testing.T) {
	all := []models.HabitRecord{
		together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com"),
		together("b@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com"),
	}
	for _, pair := range [][2]string{{"a@x.com", "b@x.com"}, {"b@x.com", "a@x.com"}} {
		view := Reconcile(pair[0], all)
		if len(view) != 1 {
			t.Fatalf("%s: len = %d", pair[0], len(view))
		}
		peers := view[0].PeerRecords
		if len(peers) != 1 || peers[0].OwnerEmail != pair[1] {
			t.Errorf("%s peers = %+v, want %s", pair[0], peers, pair[1])
		}
	}
}

func TestReconcile_PeersExcludeUnsetStatus(t *testing.T) {
	all := []models.HabitRecord{
		together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com", "c@x.com"),
		together("b@x.com", "h1", "s1", models.StatusUnset, "a@x.com", "b@x.com", "c@x.com"),
		together("c@x.com", "h1", "s1", models.StatusInvited, "a@x.com", "b@x.com", "c@x.com"),
	}
	view := Reconcile("a@x.com", all)
	if len(view[0].PeerRecords) != 1 || view[0].PeerRecords[0].OwnerEmail != "c@x.com" {
		t.Errorf("peers = %+v", view[0].PeerRecords)
	}
}

func TestReconcile_FirstOccurrenceWins(t *testing.T) {
	first := together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "c@x.com")
	second := together("b@x.com", "h1", "s1", models.StatusActive, "a@x.com", "c@x.com")
	second.Habit.Name = "Renamed"

	view := Reconcile("c@x.com", []models.HabitRecord{first, second})
	if len(view) != 1 {
		t.Fatalf("len = %d, want one invite per shared habit", len(view))
	}
	if view[0].MyRecord.Habit.Name != "Read" {
		t.Errorf("name = %q, want first occurrence", view[0].MyRecord.Habit.Name)
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	all := []models.HabitRecord{
		together("x@x.com", "h9", "s9", models.StatusActive, "x@x.com", "a@x.com"),
		personal("a@x.com", "p1", models.StatusActive),
		together("y@x.com", "h8", "s8", models.StatusActive, "y@x.com", "a@x.com"),
		personal("a@x.com", "p2", models.StatusActive),
	}
	want := []string{"p1", "p2", "invited-s9", "invited-s8"}
	for i := 0; i < 5; i++ {
		got := ids(Reconcile("a@x.com", all))
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("run %d: got %v, want %v", i, got, want)
			}
		}
	}
}

func TestReconcile_NonMemberNotInvited(t *testing.T) {
	all := []models.HabitRecord{
		together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com"),
	}
	if view := Reconcile("z@x.com", all); len(view) != 0 {
		t.Fatalf("got %v", ids(view))
	}
}

func TestFind_VirtualByCanonicalID(t *testing.T) {
	all := []models.HabitRecord{
		together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com"),
	}
	for _, id := range []string{"invited-s1", "h1"} {
		d, ok := Find("b@x.com", id, all)
		if !ok || !d.MyRecord.IsVirtual() {
			t.Errorf("Find(%q) = %+v, %v", id, d.MyRecord, ok)
		}
	}
	if _, ok := Find("b@x.com", "nope", all); ok {
		t.Error("found unknown id")
	}
}

func TestPeers_AllStatuses(t *testing.T) {
	all := []models.HabitRecord{
		together("a@x.com", "h1", "s1", models.StatusActive, "a@x.com", "b@x.com", "c@x.com"),
		together("b@x.com", "h1", "s1", models.StatusLeft, "a@x.com", "b@x.com", "c@x.com"),
		together("c@x.com", "h1", "s1", models.StatusInvited, "a@x.com", "b@x.com", "c@x.com"),
	}
	if got := Peers("a@x.com", "s1", all); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if got := Peers("a@x.com", "", all); len(got) != 0 {
		t.Errorf("empty shared id matched %d rows", len(got))
	}
}
