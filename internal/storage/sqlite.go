package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/rowstore"
)

// The JSON columns are stored as text, exactly like the spreadsheet cells, so
// rows read back go through the same tolerant adapter.
const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	seq   INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	email      TEXT NOT NULL,
	habit_id   TEXT NOT NULL,
	habit_json TEXT NOT NULL DEFAULT '',
	logs_json  TEXT NOT NULL DEFAULT '{}',
	UNIQUE(email, habit_id)
);

CREATE TABLE IF NOT EXISTS friends (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	requester  TEXT NOT NULL,
	receiver   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	updated_at TEXT NOT NULL DEFAULT '',
	UNIQUE(requester, receiver)
);

CREATE INDEX IF NOT EXISTS idx_records_email ON records(email);
`

// SQLite is a local table store with the same row contract as the spreadsheet.
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (or creates) the database file and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &SQLite{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Name implements RecordSource.
func (s *SQLite) Name() string { return "sqlite" }

// FetchRecords implements RecordSource. Rows come back in insertion order.
func (s *SQLite) FetchRecords(ctx context.Context) ([]rowstore.Row, error) {
	return s.queryRows(ctx, `SELECT email, habit_id, habit_json, logs_json FROM records ORDER BY seq`, 4)
}

// FetchUsers implements UserSource.
func (s *SQLite) FetchUsers(ctx context.Context) ([]rowstore.Row, error) {
	return s.queryRows(ctx, `SELECT name, email FROM users ORDER BY seq`, 2)
}

// FetchFriends implements Writer.
func (s *SQLite) FetchFriends(ctx context.Context) ([]rowstore.Row, error) {
	return s.queryRows(ctx, `SELECT requester, receiver, status, updated_at FROM friends ORDER BY seq`, 4)
}

// SaveHabit implements Writer.
func (s *SQLite) SaveHabit(ctx context.Context, email, habitID string, habit *models.Habit, logs models.Logs) error {
	row, err := rowstore.EncodeRecord(email, habitID, habit, logs)
	if err != nil {
		return fmt.Errorf("sqlite: encode record: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO records (email, habit_id, habit_json, logs_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email, habit_id) DO UPDATE SET
			habit_json = excluded.habit_json,
			logs_json  = excluded.logs_json
	`, row...)
	if err != nil {
		return fmt.Errorf("%w: sqlite: save habit: %v", apperr.ErrWriteFailed, err)
	}
	return nil
}

// CreateUser implements Writer.
func (s *SQLite) CreateUser(ctx context.Context, user models.User) error {
	email := models.NormalizeEmail(user.Email)
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&n); err != nil {
		return fmt.Errorf("%w: sqlite: lookup user: %v", apperr.ErrWriteFailed, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrAlreadyExists, email)
	}
	if _, err := s.conn.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, user.Name, email); err != nil {
		return fmt.Errorf("%w: sqlite: create user: %v", apperr.ErrWriteFailed, err)
	}
	return nil
}

// RequestFriend implements Writer. A request towards someone who already
// requested me is stored as its own edge; acceptance is checked per edge.
func (s *SQLite) RequestFriend(ctx context.Context, requester, receiver string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO friends (requester, receiver, status, updated_at)
		VALUES (?, ?, 'pending', ?)
		ON CONFLICT(requester, receiver) DO UPDATE SET
			status     = 'pending',
			updated_at = excluded.updated_at
	`, models.NormalizeEmail(requester), models.NormalizeEmail(receiver), s.stamp())
	if err != nil {
		return fmt.Errorf("%w: sqlite: request friend: %v", apperr.ErrWriteFailed, err)
	}
	return nil
}

// RespondFriend implements Writer.
func (s *SQLite) RespondFriend(ctx context.Context, requester, receiver string, status models.FriendStatus) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE friends SET status = ?, updated_at = ?
		WHERE requester = ? AND receiver = ?
	`, string(status), s.stamp(), models.NormalizeEmail(requester), models.NormalizeEmail(receiver))
	if err != nil {
		return fmt.Errorf("%w: sqlite: respond friend: %v", apperr.ErrWriteFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: no request from %s to %s", apperr.ErrNotFound, requester, receiver)
	}
	return nil
}

// RemoveFriend implements Writer.
func (s *SQLite) RemoveFriend(ctx context.Context, me, friend string) error {
	me, friend = models.NormalizeEmail(me), models.NormalizeEmail(friend)
	_, err := s.conn.ExecContext(ctx, `
		DELETE FROM friends
		WHERE (requester = ? AND receiver = ?) OR (requester = ? AND receiver = ?)
	`, me, friend, friend, me)
	if err != nil {
		return fmt.Errorf("%w: sqlite: remove friend: %v", apperr.ErrWriteFailed, err)
	}
	return nil
}

// ImportRecords bulk-loads raw record rows, e.g. a spreadsheet export. Rows
// are inserted verbatim, malformed JSON included.
func (s *SQLite) ImportRecords(ctx context.Context, rows []rowstore.Row) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (email, habit_id, habit_json, logs_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(email, habit_id) DO UPDATE SET
			habit_json = excluded.habit_json,
			logs_json  = excluded.logs_json
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare import: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		cells := make([]any, 4)
		for i := range cells {
			if i < len(r) {
				cells[i] = cellText(r[i])
			} else {
				cells[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, cells...); err != nil {
			return fmt.Errorf("sqlite: import row: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) queryRows(ctx context.Context, query string, width int) ([]rowstore.Row, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []rowstore.Row
	for rows.Next() {
		cells := make([]sql.NullString, width)
		ptrs := make([]any, width)
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		row := make(rowstore.Row, width)
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLite) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func cellText(v any) string {
	switch v.(type) {
	case string, nil:
		return rowstore.CellString(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

var _ Backend = (*SQLite)(nil)
