// Package reconcile builds one user's view of the shared record table: their
// own rows, invitations inferred from other members' rows, and the peers of
// every together habit.
package reconcile

import (
	"github.com/starford/habithub/internal/models"
)

// Reconcile returns the habits visible to target, each paired with its peer
// rows. all is the full record table; rows with a nil habit are ignored.
//
// A together habit that names target in its members but for which target has
// no row of any status yields a virtual invited record with habit id
// "invited-<sharedId>". Having a row in any status, including left, rejected
// and deleted, suppresses the invite, so a user who walked away is never
// invited again.
//
// Output order is target's rows in table order followed by virtual invites in
// the order their first source row appears.
func Reconcile(target string, all []models.HabitRecord) []models.SharedHabitData {
	target = models.NormalizeEmail(target)
	if target == "" {
		return []models.SharedHabitData{}
	}

	var candidates []models.HabitRecord
	involved := make(map[string]struct{})
	for _, rec := range all {
		if rec.Habit == nil || rec.OwnerEmail != target {
			continue
		}
		candidates = append(candidates, rec)
		if rec.Habit.SharedID != "" {
			involved[rec.Habit.SharedID] = struct{}{}
		}
	}

	for _, rec := range all {
		h := rec.Habit
		if h == nil || !h.IsTogether() || h.SharedID == "" || !h.HasMember(target) {
			continue
		}
		if _, seen := involved[h.SharedID]; seen {
			continue
		}
		involved[h.SharedID] = struct{}{}
		candidates = append(candidates, virtualInvite(target, rec))
	}

	peersByShared := make(map[string][]models.HabitRecord)
	for _, rec := range all {
		h := rec.Habit
		if h == nil || h.SharedID == "" || rec.OwnerEmail == target || !h.Status.Participating() {
			continue
		}
		peersByShared[h.SharedID] = append(peersByShared[h.SharedID], rec)
	}

	out := make([]models.SharedHabitData, 0, len(candidates))
	for _, rec := range candidates {
		if !rec.Habit.Status.Visible() {
			continue
		}
		data := models.SharedHabitData{MyRecord: rec, PeerRecords: []models.HabitRecord{}}
		if rec.Habit.IsTogether() && rec.Habit.SharedID != "" {
			if peers := peersByShared[rec.Habit.SharedID]; peers != nil {
				data.PeerRecords = peers
			}
		}
		out = append(out, data)
	}
	return out
}

func virtualInvite(target string, src models.HabitRecord) models.HabitRecord {
	h := src.Habit.Clone()
	h.OwnerEmail = target
	h.Status = models.StatusInvited
	return models.HabitRecord{
		OwnerEmail: target,
		HabitID:    models.VirtualInvitePrefix + h.SharedID,
		Habit:      h,
		Logs:       models.Logs{},
	}
}

// Find returns the visible habit of target whose habit id is habitID. A
// virtual invite matches either its synthetic id or the shared habit id.
func Find(target, habitID string, all []models.HabitRecord) (models.SharedHabitData, bool) {
	view := Reconcile(target, all)
	for _, d := range view {
		if d.MyRecord.HabitID == habitID {
			return d, true
		}
	}
	for _, d := range view {
		if d.MyRecord.IsVirtual() && d.MyRecord.Habit.ID == habitID {
			return d, true
		}
	}
	return models.SharedHabitData{}, false
}

// Peers returns the rows sharing sharedID owned by anyone but target, in any
// status. Used by writes that must fan out to every copy of a habit.
func Peers(target, sharedID string, all []models.HabitRecord) []models.HabitRecord {
	target = models.NormalizeEmail(target)
	var out []models.HabitRecord
	if sharedID == "" {
		return out
	}
	for _, rec := range all {
		if rec.Habit != nil && rec.Habit.SharedID == sharedID && rec.OwnerEmail != target {
			out = append(out, rec)
		}
	}
	return out
}
