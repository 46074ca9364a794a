package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/events"
	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/ui"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFormatEvent(t *testing.T) {
	ui.ForceNoColor()
	now := time.Date(2026, 10, 19, 8, 25, 0, 0, time.UTC)
	lastSeen := time.Date(2026, 10, 19, 7, 40, 0, 0, time.Local)

	for _, tc := range []struct {
		name string
		msg  events.Message
		want string
	}{
		{
			name: "gate change",
			msg: events.Message{Topic: events.TopicTimerExpired, Data: mustJSON(t, events.GateChanged{
				Gate:   &model.Gate{Label: "A12", Status: model.StatusYellow},
				Action: "timer-expiry",
				Actor:  "system",
			})},
			want: "08:25:00 gates.timer.expired  A12 yellow by system",
		},
		{
			name: "reset all",
			msg:  events.Message{Topic: events.TopicAllReset, Data: mustJSON(t, events.GatesReset{Count: 43, Actor: "operator"})},
			want: "08:25:00 gates.all.reset  43 gates reset by operator",
		},
		{
			name: "guard idle",
			msg:  events.Message{Topic: events.TopicGuardIdle, Data: mustJSON(t, events.GuardIdle{Guard: "Guard 2", LastSeen: lastSeen})},
			want: "08:25:00 gates.guard.idle  Guard 2 idle since 07:40",
		},
		{
			name: "unknown payload",
			msg:  events.Message{Topic: "gates.other", Data: []byte(`{"x":1}`)},
			want: `08:25:00 gates.other  {"x":1}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := formatEvent(now, tc.msg)
			if strings.TrimSpace(got) != tc.want {
				t.Errorf("formatEvent() = %q, want %q", got, tc.want)
			}
		})
	}
}
