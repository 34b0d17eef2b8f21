package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/habithub/internal/rowstore"
)

// DefaultGvizBaseURL is the public Google Sheets endpoint.
const DefaultGvizBaseURL = "https://docs.google.com/spreadsheets/d"

var gvizWrapperRe = regexp.MustCompile(`(?s)google\.visualization\.Query\.setResponse\((.*)\);`)

// Gviz reads tables through the spreadsheet visualization query endpoint.
type Gviz struct {
	baseURL       string
	spreadsheetID string
	client        *http.Client
	now           func() time.Time
}

// NewGviz creates a query-endpoint reader. An empty baseURL selects the public endpoint.
func NewGviz(baseURL, spreadsheetID string, client *http.Client) *Gviz {
	if baseURL == "" {
		baseURL = DefaultGvizBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gviz{baseURL: baseURL, spreadsheetID: spreadsheetID, client: client, now: time.Now}
}

// Name implements RecordSource.
func (g *Gviz) Name() string { return "gviz" }

// FetchRecords implements RecordSource.
func (g *Gviz) FetchRecords(ctx context.Context) ([]rowstore.Row, error) {
	return g.Query(ctx, "records", "select A, B, C, D")
}

// FetchUsers implements UserSource.
func (g *Gviz) FetchUsers(ctx context.Context) ([]rowstore.Row, error) {
	return g.Query(ctx, "users", "select A, B")
}

type gvizResponse struct {
	Status string `json:"status"`
	Table  struct {
		Rows []struct {
			C []*struct {
				V any `json:"v"`
			} `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// Query runs a visualization query against one sheet and returns its rows.
func (g *Gviz) Query(ctx context.Context, sheet, query string) ([]rowstore.Row, error) {
	if g.spreadsheetID == "" {
		return nil, fmt.Errorf("gviz: spreadsheet id is empty")
	}
	q := url.Values{}
	q.Set("sheet", sheet)
	q.Set("tq", query)
	q.Set("tqx", "out:json")
	q.Set("_", strconv.FormatInt(g.now().UnixMilli(), 10)) // defeat intermediate caches
	endpoint := fmt.Sprintf("%s/%s/gviz/tq?%s", g.baseURL, url.PathEscape(g.spreadsheetID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gviz: build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gviz: query %s: %w", sheet, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("gviz: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gviz: query %s: unexpected status %d", sheet, resp.StatusCode)
	}
	return decodeGviz(body)
}

func decodeGviz(body []byte) ([]rowstore.Row, error) {
	m := gvizWrapperRe.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("gviz: response wrapper not found")
	}
	var parsed gvizResponse
	if err := json.Unmarshal(m[1], &parsed); err != nil {
		return nil, fmt.Errorf("gviz: decode: %w", err)
	}
	if parsed.Status != "ok" {
		return nil, fmt.Errorf("gviz: status %q", parsed.Status)
	}
	rows := make([]rowstore.Row, 0, len(parsed.Table.Rows))
	for _, r := range parsed.Table.Rows {
		row := make(rowstore.Row, len(r.C))
		for i, c := range r.C {
			if c != nil {
				row[i] = c.V
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
