package rowstore

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/starford/habithub/internal/models"
)

// decodeHabit parses the habit column. Well-formed JSON whose fields carry
// the wrong type (hand-edited cells such as "goal":"20" or a single members
// string) is repaired field by field instead of dropping the habit. Text that
// is not JSON at all yields nil.
func decodeHabit(text string) *models.Habit {
	var h models.Habit
	err := json.Unmarshal([]byte(text), &h)
	if err == nil {
		return &h
	}
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return nil
	}
	var raw map[string]any
	if json.Unmarshal([]byte(text), &raw) != nil {
		return nil
	}
	repairHabit(&h, raw)
	return &h
}

func repairHabit(h *models.Habit, raw map[string]any) {
	for key, dst := range map[string]*string{
		"id":           &h.ID,
		"sharedId":     &h.SharedID,
		"userEmail":    &h.OwnerEmail,
		"creatorEmail": &h.CreatorEmail,
		"name":         &h.Name,
		"color":        &h.Color,
		"unit":         &h.Unit,
		"createdAt":    &h.CreatedAt,
	} {
		if v, ok := raw[key]; ok {
			*dst = CellString(v)
		}
	}
	if v, ok := raw["type"]; ok {
		h.Kind = models.Kind(CellString(v))
	}
	if v, ok := raw["mode"]; ok {
		h.Mode = models.Mode(CellString(v))
	}
	if v, ok := raw["recordStatus"]; ok {
		h.Status = models.ParticipationStatus(CellString(v))
	}
	if v, ok := raw["goal"]; ok {
		h.Goal, _ = looseNumber(v)
	}
	if v, ok := raw["members"]; ok {
		h.Members = looseStrings(v)
	}

	freq, ok := raw["frequency"].(map[string]any)
	if !ok {
		if _, present := raw["frequency"]; present {
			h.Frequency = models.Frequency{}
		}
		return
	}
	h.Frequency = models.Frequency{Type: models.FrequencyType(CellString(freq["type"]))}
	if v, ok := freq["days"]; ok {
		h.Frequency.Days = looseInts(v)
	}
	if v, ok := freq["value"]; ok {
		n, _ := looseNumber(v)
		h.Frequency.Value = int(n)
	}
}

// looseNumber reads a JSON number or a numeric string.
func looseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// looseStrings reads an array of scalars or a comma-separated string.
func looseStrings(v any) []string {
	var parts []string
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			parts = append(parts, CellString(e))
		}
	case string:
		parts = strings.Split(x, ",")
	default:
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// looseInts reads whole numbers from an array, a comma-separated string or a
// single number. Entries that are not whole numbers are skipped.
func looseInts(v any) []int {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case string:
		for _, p := range strings.Split(x, ",") {
			items = append(items, p)
		}
	case float64:
		items = []any{x}
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		f, ok := looseNumber(it)
		if !ok || f != math.Trunc(f) {
			continue
		}
		out = append(out, int(f))
	}
	return out
}
