package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/models"
	"github.com/starford/habithub/internal/rowstore"
)

// Response statuses returned by the write endpoint.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Response is the envelope every action returns.
type Response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Err maps the envelope status to an error.
func (r Response) Err() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusSkipped:
		return apperr.ErrNotConfigured
	default:
		if r.Message == "" {
			return apperr.ErrWriteFailed
		}
		return fmt.Errorf("%w: %s", apperr.ErrWriteFailed, r.Message)
	}
}

// RPCOptions tunes the write client.
type RPCOptions struct {
	Client     *http.Client
	MaxRetries int           // extra attempts after a transport error
	BaseDelay  time.Duration // first backoff step; doubled each retry, plus jitter
	Logger     *slog.Logger
}

// RPC talks to the action-tagged write endpoint. It also serves the records
// table through the get_records action, as a read fallback.
type RPC struct {
	url    string
	opts   RPCOptions
	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

// NewRPC creates a write client. An empty url yields a client whose every
// call fails with apperr.ErrNotConfigured.
func NewRPC(url string, opts RPCOptions) *RPC {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RPC{url: url, opts: opts, sleep: sleepCtx, logger: logger}
}

// Name implements RecordSource.
func (c *RPC) Name() string { return "rpc" }

// appendActions add a row on every call, so a lost response is not resent.
var appendActions = map[string]bool{
	"create_user":    true,
	"request_friend": true,
}

// Call posts one action payload and returns the decoded envelope. Transport
// failures are retried for actions that are safe to repeat; an envelope with
// status "error" is never retried.
func (c *RPC) Call(ctx context.Context, payload map[string]any) (Response, error) {
	if c.url == "" {
		return Response{Status: StatusSkipped, Message: "write endpoint url is empty"}, apperr.ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("rpc: encode payload: %w", err)
	}

	retries := c.opts.MaxRetries
	if action, _ := payload["action"].(string); appendActions[action] {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := c.opts.BaseDelay<<(attempt-1) + time.Duration(rand.Int64N(int64(c.opts.BaseDelay)))
			c.logger.Warn("rpc: retrying",
				slog.Any("action", payload["action"]),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			if err := c.sleep(ctx, delay); err != nil {
				return Response{}, err
			}
		}
		resp, err := c.post(ctx, body)
		if err == nil {
			return resp, resp.Err()
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return Response{Status: StatusError, Message: lastErr.Error()}, fmt.Errorf("%w: %v", apperr.ErrWriteFailed, lastErr)
}

func (c *RPC) post(ctx context.Context, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("rpc: build request: %w", err)
	}
	// text/plain keeps browsers and script hosts from issuing a CORS preflight.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.opts.Client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("rpc: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Response{}, fmt.Errorf("rpc: read body: %w", err)
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("rpc: decode response (http %d): %w", resp.StatusCode, err)
	}
	return out, nil
}

// SaveHabit implements Writer.
func (c *RPC) SaveHabit(ctx context.Context, email, habitID string, habit *models.Habit, logs models.Logs) error {
	if logs == nil {
		logs = models.Logs{}
	}
	_, err := c.Call(ctx, map[string]any{
		"action":       "save_habit",
		"email":        models.NormalizeEmail(email),
		"habit_id":     habitID,
		"habit_config": habit,
		"logs":         logs,
	})
	return err
}

// CreateUser implements Writer.
func (c *RPC) CreateUser(ctx context.Context, user models.User) error {
	_, err := c.Call(ctx, map[string]any{
		"action": "create_user",
		"name":   user.Name,
		"email":  user.Email,
	})
	return err
}

// FetchFriends implements Writer.
func (c *RPC) FetchFriends(ctx context.Context) ([]rowstore.Row, error) {
	resp, err := c.Call(ctx, map[string]any{"action": "get_friends"})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Data), nil
}

// RequestFriend implements Writer.
func (c *RPC) RequestFriend(ctx context.Context, requester, receiver string) error {
	_, err := c.Call(ctx, map[string]any{
		"action":    "request_friend",
		"requester": models.NormalizeEmail(requester),
		"receiver":  models.NormalizeEmail(receiver),
	})
	return err
}

// RespondFriend implements Writer.
func (c *RPC) RespondFriend(ctx context.Context, requester, receiver string, status models.FriendStatus) error {
	_, err := c.Call(ctx, map[string]any{
		"action":    "respond_friend",
		"requester": models.NormalizeEmail(requester),
		"receiver":  models.NormalizeEmail(receiver),
		"status":    status,
	})
	return err
}

// RemoveFriend implements Writer.
func (c *RPC) RemoveFriend(ctx context.Context, me, friend string) error {
	_, err := c.Call(ctx, map[string]any{
		"action": "remove_friend",
		"me":     models.NormalizeEmail(me),
		"friend": models.NormalizeEmail(friend),
	})
	return err
}

// FetchRecords implements RecordSource through the get_records action.
func (c *RPC) FetchRecords(ctx context.Context) ([]rowstore.Row, error) {
	resp, err := c.Call(ctx, map[string]any{"action": "get_records"})
	if err != nil {
		return nil, err
	}
	rows := decodeRows(resp.Data)
	if len(rows) > 0 && rowstore.CellString(rows[0][0]) == "email" {
		rows = rows[1:]
	}
	return rows, nil
}

// decodeRows reads a data payload that should be an array of arrays. Anything
// else yields no rows.
func decodeRows(data json.RawMessage) []rowstore.Row {
	if len(data) == 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	rows := make([]rowstore.Row, 0, len(raw))
	for _, r := range raw {
		var row rowstore.Row
		if err := json.Unmarshal(r, &row); err != nil || len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
