package order

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

func at(h, m int) *time.Time {
	t := time.Date(2026, 10, 19, h, m, 0, 0, time.UTC)
	return &t
}

func labels(gates []*model.Gate) []string {
	out := make([]string, len(gates))
	for i, g := range gates {
		out[i] = g.Label
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSort_Example(t *testing.T) {
	gates := []*model.Gate{
		{Label: "green9", Status: model.StatusGreen, ResponsibleGuard: "Guard 2", ScheduledTime: at(9, 0)},
		{Label: "green8", Status: model.StatusGreen, ResponsibleGuard: "Guard 3", ScheduledTime: at(8, 0)},
		{Label: "gray", Status: model.StatusGray, ScheduledTime: at(7, 0)},
		{Label: "yellow", Status: model.StatusYellow, ResponsibleGuard: "Guard 2", ScheduledTime: at(10, 0)},
	}
	Sort(gates, "Guard 1")

	want := []string{"green8", "green9", "yellow", "gray"}
	if got := labels(gates); !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScore(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status model.Status
		guard  string
		want   int
	}{
		{"green mine", model.StatusGreen, "me", 1},
		{"green other", model.StatusGreen, "other", 1},
		{"yellow", model.StatusYellow, "other", 2},
		{"gray unclaimed", model.StatusGray, "", 3},
		{"blue other guard", model.StatusBlue, "other", 4},
		{"gray other guard", model.StatusGray, "other", 4},
		{"blue unclaimed", model.StatusBlue, "", 5},
		{"blue mine", model.StatusBlue, "me", 4},
		{"red", model.StatusRed, "", 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := &model.Gate{Status: tc.status, ResponsibleGuard: tc.guard}
			if got := Score(g, "me"); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSort_MissingScheduleFirstAndStable(t *testing.T) {
	gates := []*model.Gate{
		{Label: "b", Status: model.StatusRed, ScheduledTime: at(9, 0)},
		{Label: "first-nil", Status: model.StatusRed},
		{Label: "a", Status: model.StatusRed, ScheduledTime: at(9, 0)},
		{Label: "second-nil", Status: model.StatusRed},
	}
	Sort(gates, "")

	want := []string{"first-nil", "second-nil", "b", "a"}
	if got := labels(gates); !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGroupByLabel(t *testing.T) {
	var gates []*model.Gate
	for _, l := range []string{"B3", "a10", "A2", "C1", "A1", "", "B10"} {
		gates = append(gates, &model.Gate{Label: l})
	}
	groups := GroupByLabel(gates)

	wantKeys := []string{"?", "A", "B", "C"}
	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	if !equal(keys, wantKeys) {
		t.Fatalf("keys: got %v, want %v", keys, wantKeys)
	}
	if got, want := labels(groups[1].Gates), []string{"A1", "A2", "a10"}; !equal(got, want) {
		t.Errorf("group A: got %v, want %v", got, want)
	}
	if got, want := labels(groups[2].Gates), []string{"B3", "B10"}; !equal(got, want) {
		t.Errorf("group B: got %v, want %v", got, want)
	}
}

func TestNaturalCompare(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want int
	}{
		{"A2", "A10", -1},
		{"A10", "A2", 1},
		{"A10", "A10", 0},
		{"A02", "A2", 0},
		{"A9", "B1", -1},
		{"A", "A1", -1},
		{"E24", "E3", 1},
		{"a5", "A5", 0},
		{"12", "A", -1},
	} {
		if got := NaturalCompare(tc.a, tc.b); got != tc.want {
			t.Errorf("NaturalCompare(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
