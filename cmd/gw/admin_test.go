package main

import (
	"testing"
	"time"
)

func TestSeedRequests(t *testing.T) {
	now := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	reqs := seedRequests(now)

	if len(reqs) != 43 {
		t.Fatalf("expected 43 gates, got %d", len(reqs))
	}
	if reqs[0].Label != "A4" || reqs[len(reqs)-1].Label != "E24" {
		t.Errorf("first/last = %s/%s, want A4/E24", reqs[0].Label, reqs[len(reqs)-1].Label)
	}

	seen := make(map[string]bool)
	for i, r := range reqs {
		if seen[r.Label] {
			t.Errorf("duplicate label %s", r.Label)
		}
		seen[r.Label] = true
		if r.Type != "ARR" {
			t.Errorf("%s: type = %q, want ARR", r.Label, r.Type)
		}
		want := now.Add(time.Hour + time.Duration(i)*time.Minute)
		if r.ScheduledTime == nil || !r.ScheduledTime.Equal(want) {
			t.Errorf("%s: scheduled = %v, want %v", r.Label, r.ScheduledTime, want)
		}
	}
}
