package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/store/memory"
)

var t0 = time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, labels ...string) *memory.Store {
	t.Helper()
	s := memory.New(clockwork.NewFakeClockAt(t0))
	t.Cleanup(func() { s.Close() })
	for _, l := range labels {
		g := &model.Gate{ID: "gt-" + strings.ToLower(l), Label: l, Type: model.TypeArrival, Status: model.StatusGray}
		if err := s.CreateGate(context.Background(), g); err != nil {
			t.Fatalf("CreateGate: %v", err)
		}
	}
	return s
}

func TestExportJSONL_Empty(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), s, t0, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("gate count: got %d, want 0", n)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.GateCount != 0 || !h.Timestamp.Equal(t0) {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_GatesInLabelOrderWithHistory(t *testing.T) {
	s := newTestStore(t, "A10", "B1", "A2")
	ctx := context.Background()
	if err := s.AppendHistory(ctx, "gt-a2", &model.HistoryEntry{Actor: "Guard 1", Event: "Gate claimed by Guard 1"}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s, t0, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("gate count: got %d, want 3", n)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var labels []string
	var a2 model.Gate
	for _, line := range lines[1:] {
		var rec struct {
			Type string     `json:"type"`
			Data model.Gate `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		if rec.Type != "gate" {
			t.Fatalf("record type: got %q", rec.Type)
		}
		labels = append(labels, rec.Data.Label)
		if rec.Data.Label == "A2" {
			a2 = rec.Data
		}
	}

	want := []string{"A2", "A10", "B1"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("label order: got %v, want %v", labels, want)
		}
	}
	if len(a2.History) != 1 || a2.History[0].Event != "Gate claimed by Guard 1" {
		t.Errorf("A2 history not embedded: %+v", a2.History)
	}
}

func TestObjectKey(t *testing.T) {
	for _, tc := range []struct {
		prefix string
		day    time.Time
		want   string
	}{
		{"gatewatch/snapshots", t0, "gatewatch/snapshots/2026-10-19.jsonl"},
		{"", t0, "2026-10-19.jsonl"},
		{"ops/", time.Date(2026, 1, 2, 23, 0, 0, 0, time.FixedZone("X", -3*3600)), "ops/2026-01-03.jsonl"},
	} {
		if got := ObjectKey(tc.prefix, tc.day); got != tc.want {
			t.Errorf("ObjectKey(%q, %v) = %q, want %q", tc.prefix, tc.day, got, tc.want)
		}
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
