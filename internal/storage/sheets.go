package storage

import (
	"context"

	"github.com/starford/habithub/internal/rowstore"
)

// sheetsBackend pairs the spreadsheet query endpoint (reads) with the
// action endpoint (writes and friends).
type sheetsBackend struct {
	*RPC
	gviz *Gviz
}

// NewSheets combines a query reader and a write client into one Backend.
// Record reads go to the query endpoint; use RPC directly as a fallback
// RecordSource.
func NewSheets(gviz *Gviz, rpc *RPC) Backend {
	return &sheetsBackend{RPC: rpc, gviz: gviz}
}

func (b *sheetsBackend) Name() string { return b.gviz.Name() }

func (b *sheetsBackend) FetchRecords(ctx context.Context) ([]rowstore.Row, error) {
	return b.gviz.FetchRecords(ctx)
}

func (b *sheetsBackend) FetchUsers(ctx context.Context) ([]rowstore.Row, error) {
	return b.gviz.FetchUsers(ctx)
}

var _ Backend = (*sheetsBackend)(nil)
