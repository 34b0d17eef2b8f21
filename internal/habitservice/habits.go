package habitservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/reconcile"
)

// FanoutFailure is one secondary row that could not be written.
type FanoutFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// FanoutResult reports the secondary writes of a multi-row operation. Failed
// rows are neither retried nor rolled back.
type FanoutResult struct {
	Written []string        `json:"written"`
	Failed  []FanoutFailure `json:"failed"`
}

// HabitResult is the outcome of a create or update.
type HabitResult struct {
	Record models.HabitRecord `json:"record"`
	Fanout FanoutResult       `json:"fanout"`
}

// saveRow writes one row between two invalidations.
func (s *Service) saveRow(ctx context.Context, email, habitID string, h *models.Habit, logs models.Logs) error {
	s.repo.Invalidate(ctx)
	err := s.writer.SaveHabit(ctx, email, habitID, h, logs)
	s.repo.Invalidate(ctx)
	return err
}

// fanOut writes rows concurrently. It never cancels siblings on failure.
func (s *Service) fanOut(ctx context.Context, rows []models.HabitRecord) FanoutResult {
	res := FanoutResult{Written: []string{}, Failed: []FanoutFailure{}}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(max(s.fanout, 1))
	for _, row := range rows {
		g.Go(func() error {
			err := s.writer.SaveHabit(ctx, row.OwnerEmail, row.HabitID, row.Habit, row.Logs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("fan-out write failed", "email", row.OwnerEmail, "habit_id", row.HabitID, "error", err)
				res.Failed = append(res.Failed, FanoutFailure{Email: row.OwnerEmail, Error: err.Error()})
				return nil
			}
			res.Written = append(res.Written, row.OwnerEmail)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// CreateHabit writes the creator's row and, for a together habit, one invited
// row per invitee sharing the creator's habit id. A failed creator write
// aborts; failed invitee writes are reported in the result.
func (s *Service) CreateHabit(ctx context.Context, creator string, input models.Habit, invitees []string, initialLogs models.Logs) (HabitResult, error) {
	creator = models.NormalizeEmail(creator)
	if err := validateEmail(creator); err != nil {
		return HabitResult{}, err
	}
	if err := validateHabit(&input); err != nil {
		return HabitResult{}, err
	}
	if err := validateLogs(initialLogs); err != nil {
		return HabitResult{}, err
	}
	invitees = models.DedupeEmails(invitees...)
	if len(invitees) > 0 && input.Mode != models.ModeTogether {
		return HabitResult{}, invalid("invitees require together mode")
	}
	for _, e := range invitees {
		if err := validateEmail(e); err != nil {
			return HabitResult{}, err
		}
	}

	h := input.Clone()
	if h.ID == "" {
		h.ID = s.habitID()
	}
	if h.CreatedAt == "" {
		h.CreatedAt = s.now().UTC().Format(time.RFC3339Nano)
	}
	if h.Mode == "" {
		h.Mode = models.ModePersonal
	}
	h.SharedID = ""
	if h.IsTogether() {
		h.SharedID = input.SharedID
		if h.SharedID == "" {
			h.SharedID = s.sharedID()
		}
	}
	h.OwnerEmail = creator
	h.CreatorEmail = creator
	h.Members = models.DedupeEmails(append([]string{creator}, invitees...)...)
	h.Status = models.StatusActive

	logs := initialLogs.Clone()
	s.repo.Invalidate(ctx)
	if err := s.writer.SaveHabit(ctx, creator, h.ID, h, logs); err != nil {
		s.repo.Invalidate(ctx)
		return HabitResult{}, fmt.Errorf("create habit: %w", err)
	}

	var rows []models.HabitRecord
	if h.IsTogether() {
		for _, e := range h.Members {
			if e == creator {
				continue
			}
			ih := h.Clone()
			ih.OwnerEmail = e
			ih.Status = models.StatusInvited
			rows = append(rows, models.HabitRecord{OwnerEmail: e, HabitID: h.ID, Habit: ih, Logs: models.Logs{}})
		}
	}
	fan := s.fanOut(ctx, rows)
	s.repo.Invalidate(ctx)

	s.notifier.Notify(KindRecords, append([]string{creator}, fan.Written...)...)
	return HabitResult{
		Record: models.HabitRecord{OwnerEmail: creator, HabitID: h.ID, Habit: h, Logs: logs},
		Fanout: fan,
	}, nil
}

// SaveHabitLog overwrites one row's config and logs. logs must be the full
// desired map.
func (s *Service) SaveHabitLog(ctx context.Context, email, habitID string, h *models.Habit, logs models.Logs) error {
	email = models.NormalizeEmail(email)
	if h == nil {
		return invalid("habit config is required")
	}
	if err := validateLogs(logs); err != nil {
		return err
	}
	if logs == nil {
		logs = models.Logs{}
	}
	if err := s.saveRow(ctx, email, habitID, h, logs); err != nil {
		return fmt.Errorf("save habit log: %w", err)
	}
	s.notifier.Notify(KindRecords, email)
	return nil
}

func (s *Service) ownRow(ctx context.Context, email, habitID string) (models.HabitRecord, error) {
	rec, ok := s.repo.Find(ctx, email, habitID)
	if !ok {
		return models.HabitRecord{}, apperr.ErrNotFound
	}
	if !rec.Habit.Status.Visible() {
		return models.HabitRecord{}, apperr.ErrNotFound
	}
	return rec, nil
}

// loggableRow is ownRow restricted to rows the owner has joined. Pending
// invites take no log entries until accepted.
func (s *Service) loggableRow(ctx context.Context, email, habitID string) (models.HabitRecord, error) {
	rec, err := s.ownRow(ctx, email, habitID)
	if err != nil {
		return models.HabitRecord{}, err
	}
	if rec.Habit.Status.Effective() != models.StatusActive {
		return models.HabitRecord{}, invalid("habit %s is %s: respond to the invite first", habitID, rec.Habit.Status)
	}
	return rec, nil
}

// ToggleLog advances the entry for date on email's row through
// absent, done, failed and back to absent. It returns the new state.
func (s *Service) ToggleLog(ctx context.Context, email, habitID, date string) (models.LogState, models.Logs, error) {
	email = models.NormalizeEmail(email)
	if !models.ValidDate(date) {
		return models.LogAbsent, nil, invalid("date %q: want YYYY-MM-DD", date)
	}
	rec, err := s.loggableRow(ctx, email, habitID)
	if err != nil {
		return models.LogAbsent, nil, err
	}
	next := rec.Logs.State(date).Next()
	logs := rec.Logs.With(date, next)
	if err := s.SaveHabitLog(ctx, email, rec.HabitID, rec.Habit, logs); err != nil {
		return models.LogAbsent, nil, err
	}
	return next, logs, nil
}

// SetLogs replaces every log entry of email's row.
func (s *Service) SetLogs(ctx context.Context, email, habitID string, logs models.Logs) error {
	email = models.NormalizeEmail(email)
	rec, err := s.loggableRow(ctx, email, habitID)
	if err != nil {
		return err
	}
	return s.SaveHabitLog(ctx, email, rec.HabitID, rec.Habit, logs)
}

// HabitChanges are the editable config fields. Nil fields are left alone.
type HabitChanges struct {
	Name      *string           `json:"name,omitempty"`
	Color     *string           `json:"color,omitempty"`
	Kind      *models.Kind      `json:"type,omitempty"`
	Goal      *float64          `json:"goal,omitempty"`
	Unit      *string           `json:"unit,omitempty"`
	Frequency *models.Frequency `json:"frequency,omitempty"`
}

func (c HabitChanges) apply(h *models.Habit) {
	if c.Name != nil {
		h.Name = *c.Name
	}
	if c.Color != nil {
		h.Color = *c.Color
	}
	if c.Kind != nil {
		h.Kind = *c.Kind
	}
	if c.Goal != nil {
		h.Goal = *c.Goal
	}
	if c.Unit != nil {
		h.Unit = *c.Unit
	}
	if c.Frequency != nil {
		h.Frequency = *c.Frequency
	}
}

// UpdateHabit edits a habit's config. Only the creator may edit. For a
// together habit the new config is written to every row sharing the
// sharedId, each keeping its own owner, status and logs.
func (s *Service) UpdateHabit(ctx context.Context, editor, habitID string, changes HabitChanges) (HabitResult, error) {
	editor = models.NormalizeEmail(editor)
	rec, err := s.ownRow(ctx, editor, habitID)
	if err != nil {
		return HabitResult{}, err
	}
	if rec.Habit.Creator() != editor {
		return HabitResult{}, apperr.ErrForbidden
	}

	h := rec.Habit.Clone()
	changes.apply(h)
	if err := validateHabit(h); err != nil {
		return HabitResult{}, err
	}

	var rows []models.HabitRecord
	if h.IsTogether() && h.SharedID != "" {
		for _, peer := range reconcile.Peers(editor, h.SharedID, s.repo.Records(ctx, true)) {
			ph := peer.Habit.Clone()
			changes.apply(ph)
			ph.Members = append([]string(nil), h.Members...)
			rows = append(rows, models.HabitRecord{OwnerEmail: peer.OwnerEmail, HabitID: peer.HabitID, Habit: ph, Logs: peer.Logs})
		}
	}

	s.repo.Invalidate(ctx)
	if err := s.writer.SaveHabit(ctx, editor, rec.HabitID, h, rec.Logs); err != nil {
		s.repo.Invalidate(ctx)
		return HabitResult{}, fmt.Errorf("update habit: %w", err)
	}
	fan := s.fanOut(ctx, rows)
	s.repo.Invalidate(ctx)

	s.notifier.Notify(KindRecords, append([]string{editor}, fan.Written...)...)
	return HabitResult{
		Record: models.HabitRecord{OwnerEmail: editor, HabitID: rec.HabitID, Habit: h, Logs: rec.Logs},
		Fanout: fan,
	}, nil
}

// Delete soft-deletes a row: left for a together habit, deleted otherwise.
// Logs are kept and the row stays in storage.
func (s *Service) Delete(ctx context.Context, rec models.HabitRecord) (models.HabitRecord, error) {
	if rec.Habit == nil {
		return models.HabitRecord{}, invalid("record has no habit")
	}
	if rec.IsVirtual() {
		return models.HabitRecord{}, invalid("pending invites are declined, not deleted")
	}
	h := rec.Habit.Clone()
	h.Status = models.StatusDeleted
	if h.IsTogether() {
		h.Status = models.StatusLeft
	}
	logs := rec.Logs.Clone()
	if err := s.SaveHabitLog(ctx, rec.OwnerEmail, rec.HabitID, h, logs); err != nil {
		return models.HabitRecord{}, err
	}
	rec.Habit, rec.Logs = h, logs
	return rec, nil
}

// DeleteHabit soft-deletes email's row for habitID.
func (s *Service) DeleteHabit(ctx context.Context, email, habitID string) (models.HabitRecord, error) {
	rec, err := s.ownRow(ctx, email, habitID)
	if err != nil {
		return models.HabitRecord{}, err
	}
	return s.Delete(ctx, rec)
}

// RespondToInvite answers an invitation. A virtual invite becomes a real row
// under the shared habit's id.
func (s *Service) RespondToInvite(ctx context.Context, rec models.HabitRecord, accept bool) (models.HabitRecord, error) {
	if rec.Habit == nil {
		return models.HabitRecord{}, invalid("record has no habit")
	}
	id := rec.HabitID
	if rec.IsVirtual() {
		id = rec.Habit.ID
		if id == "" {
			id = s.habitID()
		}
	}
	h := rec.Habit.Clone()
	h.ID = id
	h.OwnerEmail = models.NormalizeEmail(rec.OwnerEmail)
	h.Status = models.StatusRejected
	if accept {
		h.Status = models.StatusActive
	}
	logs := rec.Logs.Clone()
	if err := s.SaveHabitLog(ctx, rec.OwnerEmail, id, h, logs); err != nil {
		return models.HabitRecord{}, err
	}
	return models.HabitRecord{OwnerEmail: h.OwnerEmail, HabitID: id, Habit: h, Logs: logs}, nil
}

// RespondToInviteByID answers email's pending invite for habitID, which may
// be the synthetic invite id or the shared habit's id.
func (s *Service) RespondToInviteByID(ctx context.Context, email, habitID string, accept bool) (models.HabitRecord, error) {
	d, ok := reconcile.Find(email, habitID, s.repo.Records(ctx, false))
	if !ok {
		return models.HabitRecord{}, apperr.ErrNotFound
	}
	if d.MyRecord.Habit.Status != models.StatusInvited {
		return models.HabitRecord{}, invalid("no pending invite for %s", habitID)
	}
	return s.RespondToInvite(ctx, d.MyRecord, accept)
}
