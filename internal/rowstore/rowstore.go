// Package rowstore turns raw table rows into typed records.
//
// Rows come from the spreadsheet query endpoint, the write RPC or SQLite and
// are plain cell lists. Parsing never fails: malformed cells degrade to
// defaults and a row whose habit config cannot be read gets a nil Habit,
// which downstream consumers must skip.
package rowstore

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/starford/habithub/internal/models"
)

// Row is one table row as an ordered list of cell values.
type Row = []any

// Record column positions.
const (
	colEmail = iota
	colHabitID
	colHabit
	colLogs
)

// ParseRecords converts rows of [email, habit_id, habit_json, logs_json].
func ParseRecords(rows []Row) []models.HabitRecord {
	out := make([]models.HabitRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ParseRecord(row))
	}
	return out
}

// ParseRecord converts a single record row.
func ParseRecord(row Row) models.HabitRecord {
	rec := models.HabitRecord{
		OwnerEmail: models.NormalizeEmail(CellString(cell(row, colEmail))),
		HabitID:    CellString(cell(row, colHabitID)),
		Logs:       models.Logs{},
	}

	if text, ok := objectText(cell(row, colHabit)); ok {
		rec.Habit = decodeHabit(text)
	}
	if text, ok := objectText(cell(row, colLogs)); ok {
		var logs models.Logs
		if err := json.Unmarshal([]byte(text), &logs); err == nil && logs != nil {
			rec.Logs = logs
		}
	}

	// The id column is sometimes lost independently of the JSON blob.
	if missingID(rec.HabitID) && rec.Habit != nil && rec.Habit.ID != "" {
		rec.HabitID = rec.Habit.ID
	}
	return rec
}

// ParseUsers converts rows of [name, email], dropping rows without an email.
func ParseUsers(rows []Row) []models.User {
	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		u := models.User{
			Name:  CellString(cell(row, 0)),
			Email: CellString(cell(row, 1)),
		}
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		out = append(out, u)
	}
	return out
}

// ParseFriends converts rows of [requester, receiver, status, updated_at].
// A leading header row is skipped.
func ParseFriends(rows []Row) []models.Friend {
	if len(rows) > 0 && strings.Contains(CellString(cell(rows[0], 0)), "requester") {
		rows = rows[1:]
	}
	out := make([]models.Friend, 0, len(rows))
	for _, row := range rows {
		f := models.Friend{
			Requester: models.NormalizeEmail(CellString(cell(row, 0))),
			Receiver:  models.NormalizeEmail(CellString(cell(row, 1))),
			Status:    models.FriendStatus(strings.ToLower(CellString(cell(row, 2)))),
			UpdatedAt: CellString(cell(row, 3)),
		}
		if f.Status == "" {
			f.Status = models.FriendPending
		}
		f.ID = f.Requester + "_" + f.Receiver
		out = append(out, f)
	}
	return out
}

// CellString renders a cell the way the spreadsheet displays it.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "true"
		}
		return ""
	case []byte:
		return string(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func cell(row Row, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

// objectText returns the cell as JSON text when it looks like an object.
func objectText(v any) (string, bool) {
	var text string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		text = x
	case []byte:
		text = string(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	return text, strings.HasPrefix(text, "{")
}

func missingID(id string) bool {
	return id == "" || id == "undefined" || id == "null"
}

// EncodeRecord renders a record back into row form. Used by table stores that
// keep the JSON columns as text.
func EncodeRecord(email, habitID string, habit *models.Habit, logs models.Logs) (Row, error) {
	hb, err := json.Marshal(habit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = models.Logs{}
	}
	lb, err := json.Marshal(logs)
	if err != nil {
		return nil, err
	}
	return Row{models.NormalizeEmail(email), habitID, string(hb), string(lb)}, nil
}
