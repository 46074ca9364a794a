package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/events"
	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// sseFrame is one parsed frame of an event stream.
type sseFrame struct {
	id, event, data string
}

func parseFrames(body string) []sseFrame {
	var frames []sseFrame
	var cur sseFrame
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.event != "" {
				frames = append(frames, cur)
			}
			cur = sseFrame{}
		case strings.HasPrefix(line, "id:"):
			cur.id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			cur.event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			cur.data = strings.TrimPrefix(line, "data:")
		}
	}
	return frames
}

func framesFor(frames []sseFrame, topic string) []sseFrame {
	var out []sseFrame
	for _, f := range frames {
		if f.event == topic {
			out = append(out, f)
		}
	}
	return out
}

// openStream connects a dashboard to handler. Calling the returned function
// disconnects it and returns everything it received.
func openStream(t *testing.T, handler http.Handler, target, lastEventID string) (*httptest.ResponseRecorder, func() []sseFrame) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", target, nil).WithContext(ctx)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the handler time to register with the hub.
	time.Sleep(50 * time.Millisecond)

	return rec, func() []sseFrame {
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done
		return parseFrames(rec.Body.String())
	}
}

func tickPayload(remaining int) events.TimersTicked {
	return events.TimersTicked{Timers: map[string]model.TimerView{
		"gt-a12": {RemainingSeconds: remaining, IsActive: true},
	}}
}

func TestSSEHub_PublishAndReceive(t *testing.T) {
	hub := newSSEHub()
	client, backlog := hub.subscribe(nil, 0, false)
	defer hub.unsubscribe(client)
	if backlog != nil {
		t.Fatalf("fresh subscription got backlog: %v", backlog)
	}

	hub.publish(events.TopicGateClaimed, []byte(`{"id":"gt-1"}`))

	select {
	case evt := <-client.board:
		if evt.Topic != events.TopicGateClaimed || string(evt.Data) != `{"id":"gt-1"}` || evt.ID != 1 {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe([]string{"gates.gate.*"}, 0, false)
	defer hub.unsubscribe(client)

	hub.publish(events.TopicTimerExtended, []byte(`{}`))
	hub.publish(events.TopicGateClaimed, []byte(`{}`))
	hub.publishTimers([]byte(`{}`))

	if len(client.board) != 1 {
		t.Fatalf("queued gate events: got %d, want 1", len(client.board))
	}
	if evt := <-client.board; evt.Topic != events.TopicGateClaimed {
		t.Errorf("topic: got %q", evt.Topic)
	}
	if len(client.timers) != 0 {
		t.Error("timer snapshot delivered to a client filtering on gate events")
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe(nil, 0, false)
	hub.unsubscribe(client)

	hub.publish(events.TopicGateClaimed, []byte(`{}`))
	hub.publishTimers([]byte(`{}`))
	if len(client.board) != 0 || len(client.timers) != 0 {
		t.Fatal("events delivered after unsubscribe")
	}
}

func TestSSEHub_Since(t *testing.T) {
	hub := newSSEHub()
	for i := range 5 {
		hub.publish(events.TopicGateClaimed, []byte(fmt.Sprintf(`{"n":%d}`, i+1)))
	}

	for _, tc := range []struct {
		name     string
		lastID   uint64
		wantIDs  []uint64
		complete bool
	}{
		{"from start", 0, []uint64{1, 2, 3, 4, 5}, true},
		{"middle", 2, []uint64{3, 4, 5}, true},
		{"up to date", 5, nil, true},
		{"issued before a restart", 9, nil, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			evts, complete := hub.since(tc.lastID)
			if complete != tc.complete {
				t.Errorf("complete: got %v, want %v", complete, tc.complete)
			}
			if len(evts) != len(tc.wantIDs) {
				t.Fatalf("events: got %d, want %d", len(evts), len(tc.wantIDs))
			}
			for i, evt := range evts {
				if evt.ID != tc.wantIDs[i] {
					t.Errorf("evts[%d].ID = %d, want %d", i, evt.ID, tc.wantIDs[i])
				}
			}
		})
	}
}

func TestSSEHub_LogIsBounded(t *testing.T) {
	hub := newSSEHub()
	for range boardLogSize + 100 {
		hub.publish(events.TopicGateClaimed, []byte(`{}`))
	}

	evts, complete := hub.since(0)
	if complete {
		t.Error("replay from 0 should report the evicted events as missing")
	}
	if len(evts) != boardLogSize || evts[0].ID != 101 {
		t.Fatalf("log: got %d events starting at %d", len(evts), evts[0].ID)
	}
	if _, complete := hub.since(100); !complete {
		t.Error("replay from the last evicted id should be complete")
	}
}

func TestSSEHub_TimersKeepOnlyLatest(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe(nil, 0, false)
	defer hub.unsubscribe(client)

	hub.publish(events.TopicGateClaimed, []byte(`{}`))
	for i := range 3 * boardLogSize {
		hub.publishTimers([]byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	if evts, _ := hub.since(0); len(evts) != 1 {
		t.Errorf("log holds %d frames, want only the gate event", len(evts))
	}
	if len(client.board) != 1 {
		t.Errorf("gate queue: got %d, want 1", len(client.board))
	}
	evt := <-client.timers
	if want := fmt.Sprintf(`{"n":%d}`, 3*boardLogSize-1); string(evt.Data) != want || evt.ID != 0 {
		t.Errorf("timer snapshot: got id=%d data=%s, want the latest without id", evt.ID, evt.Data)
	}

	late, _ := hub.subscribe(nil, 0, false)
	defer hub.unsubscribe(late)
	if len(late.timers) != 1 {
		t.Error("new client did not get the current timer snapshot")
	}
}

func TestSSEHub_SlowClientIsMarkedLagged(t *testing.T) {
	hub := newSSEHub()
	client, _ := hub.subscribe(nil, 0, false)
	defer hub.unsubscribe(client)

	for range cap(client.board) + 1 {
		hub.publish(events.TopicGateClaimed, []byte(`{}`))
	}
	if !client.lagged.Load() {
		t.Error("client with a full queue was not marked lagged")
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"gates.gate.claimed", "gates.gate.claimed", true},
		{"gates.gate.claimed", "gates.gate.released", false},
		{"gates.gate.*", "gates.gate.claimed", true},
		{"gates.gate.*", "gates.timer.extended", false},
		{"gates.>", "gates.timers.ticked", true},
		{"gates.>", "gates", false},
		{"gates.>", "other.topic", false},
		{"*.*.*", "gates.gate.claimed", true},
		{"*.*.*", "gates.gate", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

func TestHandleEventStream_GateEvent(t *testing.T) {
	srv, _, handler := newTestServer(t)
	rec, stop := openStream(t, handler, "/v1/events/stream", "")

	srv.publishEvent(context.Background(), events.TopicGateClaimed,
		events.GateChanged{Gate: &model.Gate{ID: "gt-sse1", Label: "A12"}, Action: "claim", Actor: "Guard 1"})
	frames := stop()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type: got %q", ct)
	}
	claimed := framesFor(frames, events.TopicGateClaimed)
	if len(claimed) != 1 {
		t.Fatalf("claimed frames: got %d in %+v", len(claimed), frames)
	}
	if claimed[0].id != "1" {
		t.Errorf("id: got %q, want 1", claimed[0].id)
	}
	var ev events.GateChanged
	if err := json.Unmarshal([]byte(claimed[0].data), &ev); err != nil {
		t.Fatalf("data is not JSON: %v", err)
	}
	if ev.Gate.ID != "gt-sse1" || ev.Actor != "Guard 1" {
		t.Errorf("payload: %+v", ev)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	srv, _, handler := newTestServer(t)
	_, stop := openStream(t, handler, "/v1/events/stream?topics=gates.timer.*", "")

	srv.broadcastEvent(events.TopicGateClaimed, events.GateChanged{Action: "claim"})
	srv.broadcastEvent(events.TopicTimerExtended, events.GateChanged{Action: "extend"})
	frames := stop()

	if len(frames) != 1 || frames[0].event != events.TopicTimerExtended {
		t.Fatalf("frames: %+v", frames)
	}
}

func TestHandleEventStream_TimerSnapshotsHaveNoID(t *testing.T) {
	srv, _, handler := newTestServer(t)
	srv.broadcastEvent(events.TopicTimersTicked, tickPayload(1200))

	_, stop := openStream(t, handler, "/v1/events/stream", "")
	srv.broadcastEvent(events.TopicTimersTicked, tickPayload(1199))
	frames := stop()

	ticks := framesFor(frames, events.TopicTimersTicked)
	if len(ticks) == 0 {
		t.Fatalf("no timer frames in %+v", frames)
	}
	for _, f := range ticks {
		if f.id != "" {
			t.Errorf("timer frame carries id %q", f.id)
		}
	}
	var last events.TimersTicked
	if err := json.Unmarshal([]byte(ticks[len(ticks)-1].data), &last); err != nil {
		t.Fatal(err)
	}
	if got := last.Timers["gt-a12"].RemainingSeconds; got != 1199 {
		t.Errorf("latest remaining: got %d, want 1199", got)
	}
}

// A dashboard that drops off while a gate is being monitored must still get
// the gate events it missed, however many countdown ticks went by.
func TestHandleEventStream_ReconnectAfterTicksReplaysGateEvents(t *testing.T) {
	srv, _, handler := newTestServer(t)

	srv.broadcastEvent(events.TopicGateClaimed, events.GateChanged{Action: "claim", Actor: "Guard 1"})
	srv.broadcastEvent(events.TopicMonitorStarted, events.GateChanged{Action: "start-monitor", Actor: "Guard 1"})
	for r := 1500; r > 0; r-- {
		srv.broadcastEvent(events.TopicTimersTicked, tickPayload(r))
	}

	_, stop := openStream(t, handler, "/v1/events/stream", "1")
	frames := stop()

	if got := framesFor(frames, topicStreamResync); len(got) != 0 {
		t.Fatalf("unexpected resync: %+v", frames)
	}
	started := framesFor(frames, events.TopicMonitorStarted)
	if len(started) != 1 || started[0].id != "2" {
		t.Fatalf("monitor started not replayed: %+v", frames)
	}
	if got := framesFor(frames, events.TopicGateClaimed); len(got) != 0 {
		t.Errorf("event 1 was replayed again: %+v", got)
	}
	if got := framesFor(frames, events.TopicTimersTicked); len(got) != 1 {
		t.Errorf("timer frames: got %d, want the latest snapshot only", len(got))
	}
}

func TestHandleEventStream_ResyncWhenReplayIsGone(t *testing.T) {
	srv, _, handler := newTestServer(t)
	for range boardLogSize + 10 {
		srv.broadcastEvent(events.TopicGateReleased, events.GateChanged{Action: "release"})
	}

	_, stop := openStream(t, handler, "/v1/events/stream", "3")
	frames := stop()

	if len(frames) == 0 || frames[0].event != topicStreamResync {
		t.Fatalf("first frame should be a resync, got %+v", frames)
	}
	if frames[0].id != "" {
		t.Errorf("resync frame carries id %q", frames[0].id)
	}
	if got := framesFor(frames, events.TopicGateReleased); len(got) != boardLogSize {
		t.Errorf("replayed %d gate events, want %d", len(got), boardLogSize)
	}
}

func TestHandleEventStream_MultipleClients(t *testing.T) {
	srv, _, handler := newTestServer(t)
	_, stop1 := openStream(t, handler, "/v1/events/stream", "")
	_, stop2 := openStream(t, handler, "/v1/events/stream?topics=gates.gate.*", "")

	srv.publishEvent(context.Background(), events.TopicGateClaimed, events.GateChanged{Action: "claim"})

	for i, frames := range [][]sseFrame{stop1(), stop2()} {
		if len(framesFor(frames, events.TopicGateClaimed)) != 1 {
			t.Errorf("client %d: frames %+v", i+1, frames)
		}
	}
}
