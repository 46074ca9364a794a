package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/order"
	"github.com/alfredjeanlab/gatewatch/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	GateCount int       `json:"gate_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every gate with its history as JSONL to w, ordered by
// label, and returns the number of gates written.
func ExportJSONL(ctx context.Context, s store.Store, now time.Time, w io.Writer) (int, error) {
	gates, err := s.ListGates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list gates: %w", err)
	}

	for _, g := range gates {
		history, err := s.GetHistory(ctx, g.ID)
		if err != nil {
			return 0, fmt.Errorf("get history for %s: %w", g.ID, err)
		}
		g.History = history
	}

	slices.SortStableFunc(gates, func(a, b *model.Gate) int {
		return order.NaturalCompare(a.Label, b.Label)
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: now,
		GateCount: len(gates),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, g := range gates {
		if err := enc.Encode(record{Type: "gate", Data: g}); err != nil {
			return 0, fmt.Errorf("encode gate %s: %w", g.ID, err)
		}
	}

	return len(gates), nil
}
