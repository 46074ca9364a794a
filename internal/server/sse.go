package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/events"
)

const (
	// boardLogSize bounds the gate events kept for Last-Event-ID replay.
	boardLogSize = 512

	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	sseKeepaliveInterval = 15 * time.Second

	// topicStreamResync tells a dashboard it missed gate events and must
	// reload the board.
	topicStreamResync = "gates.stream.resync"
)

// sseEvent is one frame of the dashboard stream.
type sseEvent struct {
	ID    uint64 // zero for frames that cannot be replayed
	Topic string
	Data  []byte // JSON-encoded payload
}

var resyncEvent = &sseEvent{Topic: topicStreamResync, Data: []byte(`{}`)}

// sseHub fans gate events and timer snapshots out to dashboard streams.
//
// Gate events are numbered and kept in a bounded log so a reconnecting
// dashboard can catch up. Timer snapshots replace one another: the hub keeps
// only the latest, and each client holds at most one it has not read yet, so
// a second-by-second countdown never pushes gate events out of the log or out
// of a client's queue.
type sseHub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	seq     uint64
	log     []*sseEvent // oldest first
	timers  *sseEvent   // latest snapshot
}

// sseClient is one connected dashboard.
type sseClient struct {
	topics []string       // topic patterns to match (empty = all)
	board  chan *sseEvent // gate events, in order
	timers chan *sseEvent // newest unread timer snapshot
	lagged atomic.Bool    // a gate event could not be delivered
}

func newSSEHub() *sseHub {
	return &sseHub{
		clients: make(map[*sseClient]struct{}),
	}
}

// publish numbers a gate event, logs it, and queues it for every matching
// client. A client whose queue is full is marked lagged instead of blocking.
func (h *sseHub) publish(topic string, payload []byte) *sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt := &sseEvent{ID: h.seq, Topic: topic, Data: payload}
	if len(h.log) == boardLogSize {
		copy(h.log, h.log[1:])
		h.log = h.log[:boardLogSize-1]
	}
	h.log = append(h.log, evt)

	for c := range h.clients {
		if !c.matchesTopic(topic) {
			continue
		}
		select {
		case c.board <- evt:
		default:
			c.lagged.Store(true)
		}
	}
	return evt
}

// publishTimers replaces the current timer snapshot.
func (h *sseHub) publishTimers(payload []byte) {
	evt := &sseEvent{Topic: events.TopicTimersTicked, Data: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.timers = evt
	for c := range h.clients {
		if c.matchesTopic(evt.Topic) {
			c.offerTimers(evt)
		}
	}
}

// subscribe registers a client. With resume set, the gate events after
// lastID are returned as backlog, taken under the same lock as the
// registration so none is missed or sent twice. A gap the log no longer
// covers marks the client lagged. The latest timer snapshot is queued at once.
func (h *sseHub) subscribe(topics []string, lastID uint64, resume bool) (*sseClient, []*sseEvent) {
	c := &sseClient{
		topics: topics,
		board:  make(chan *sseEvent, 64),
		timers: make(chan *sseEvent, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	var backlog []*sseEvent
	if resume {
		var complete bool
		backlog, complete = h.sinceLocked(lastID)
		if !complete {
			c.lagged.Store(true)
		}
	}
	if h.timers != nil && c.matchesTopic(h.timers.Topic) {
		c.offerTimers(h.timers)
	}
	return c, backlog
}

// unsubscribe removes a client from the hub.
func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// since returns the logged gate events after lastID, oldest first.
func (h *sseHub) since(lastID uint64) ([]*sseEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sinceLocked(lastID)
}

// sinceLocked reports complete=false when events after lastID have already
// left the log, or when lastID was issued by an earlier server process.
func (h *sseHub) sinceLocked(lastID uint64) (evts []*sseEvent, complete bool) {
	switch {
	case lastID == h.seq:
		return nil, true
	case lastID > h.seq:
		return nil, false
	}
	i := sort.Search(len(h.log), func(i int) bool { return h.log[i].ID > lastID })
	evts = make([]*sseEvent, len(h.log)-i)
	copy(evts, h.log[i:])
	return evts, h.log[i].ID == lastID+1
}

// offerTimers queues evt, replacing any snapshot the client has not read.
// Only the hub, under its lock, sends on c.timers.
func (c *sseClient) offerTimers(evt *sseEvent) {
	select {
	case <-c.timers:
	default:
	}
	select {
	case c.timers <- evt:
	default:
	}
}

// matchesTopic checks whether the client's topic filters match the given topic.
// An empty filter list matches all topics.
func (c *sseClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard, as NATS subjects do.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}

// handleEventStream handles GET /v1/events/stream?topics=a,b.
//
// A dashboard reconnecting with Last-Event-ID gets the gate events it missed.
// If those are gone it gets a gates.stream.resync frame instead and should
// reload the board. Timer snapshots carry no id and are never replayed.
func (s *GateServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, t := range strings.Split(q, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				topics = append(topics, t)
			}
		}
	}

	var lastID uint64
	resume := false
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			lastID, resume = id, true
		}
	}

	client, backlog := s.sseHub.subscribe(topics, lastID, resume)
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	if client.lagged.Swap(false) {
		writeSSEEvent(w, resyncEvent)
	}
	for _, evt := range backlog {
		if client.matchesTopic(evt.Topic) {
			writeSSEEvent(w, evt)
		}
	}
	flusher.Flush()

	ctx := r.Context()
	keepalive := s.clock.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		if client.lagged.Swap(false) {
			writeSSEEvent(w, resyncEvent)
			flusher.Flush()
		}
		select {
		case <-ctx.Done():
			return
		case evt := <-client.board:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case evt := <-client.timers:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.Chan():
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE frame. Frames without an ID leave the
// client's Last-Event-ID unchanged.
func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	if evt.ID != 0 {
		fmt.Fprintf(w, "id:%d\n", evt.ID)
	}
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}

// broadcastEvent hands an event to the SSE hub. Timer snapshots go to the
// latest-value slot; everything else is a numbered gate event.
func (s *GateServer) broadcastEvent(topic string, event any) {
	if s.sseHub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event for SSE broadcast", "topic", topic, "error", err)
		return
	}
	if topic == events.TopicTimersTicked {
		s.sseHub.publishTimers(payload)
		return
	}
	s.sseHub.publish(topic, payload)
}
