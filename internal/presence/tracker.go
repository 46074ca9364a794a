// Package presence tracks which guards are on shift.
//
// The server records a guard's activity whenever the guard acts on a gate or
// sends a heartbeat. A background reaper marks guards that have gone quiet
// as idle and forgets them after a while.
package presence

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry represents a single guard's presence state.
type Entry struct {
	Guard       string    `json:"guard"`
	LastSeen    time.Time `json:"last_seen"`
	FirstSeen   time.Time `json:"first_seen"`
	LastAction  string    `json:"last_action"`         // e.g. "claim", "heartbeat"
	LastGate    string    `json:"last_gate,omitempty"` // gate touched by the last action
	IdleSecs    float64   `json:"idle_secs"`
	ActionCount int64     `json:"action_count"`
	Idle        bool      `json:"idle,omitempty"` // marked by the reaper
	IdleSince   time.Time `json:"idle_since,omitempty"`
	Gates       []string  `json:"gates,omitempty"` // labels currently held, filled in by the server
}

// Activity is one observed guard action.
type Activity struct {
	Guard  string
	Action string
	GateID string
}

// ReaperConfig configures the background idle-guard reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a guard may be silent before being marked idle.
	// Default: 30 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long an idle guard stays in the roster.
	// Default: 12 hours.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each guard newly marked idle, outside the lock.
	OnIdle func(guard string, lastSeen time.Time)
}

// Tracker maintains an in-memory roster of guards.
type Tracker struct {
	clock clockwork.Clock

	mu     sync.RWMutex
	guards map[string]*guardState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type guardState struct {
	firstSeen   time.Time
	lastSeen    time.Time
	lastAction  string
	lastGate    string
	actionCount int64
	idle        bool
	idleSince   time.Time
}

// New creates a tracker that reads time from clock.
func New(clock clockwork.Clock) *Tracker {
	return &Tracker{
		clock:  clock,
		guards: make(map[string]*guardState),
	}
}

// Record updates the presence state for the acting guard.
func (t *Tracker) Record(a Activity) {
	if a.Guard == "" {
		return
	}

	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.guards[a.Guard]
	if !ok {
		state = &guardState{firstSeen: now}
		t.guards[a.Guard] = state
	}

	if state.idle {
		slog.Info("presence: guard back on shift", "guard", a.Guard)
		state.idle = false
		state.idleSince = time.Time{}
	}

	state.lastSeen = now
	state.lastAction = a.Action
	state.actionCount++
	if a.GateID != "" {
		state.lastGate = a.GateID
	}
}

// Roster returns all tracked guards, most recently active first. Guards
// silent for longer than staleThreshold are left out; 0 includes everyone.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.clock.Now()
	entries := make([]Entry, 0, len(t.guards))
	for guard, state := range t.guards {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			Guard:       guard,
			LastSeen:    state.lastSeen,
			FirstSeen:   state.firstSeen,
			LastAction:  state.lastAction,
			LastGate:    state.lastGate,
			IdleSecs:    idle.Seconds(),
			ActionCount: state.actionCount,
			Idle:        state.idle,
			IdleSince:   state.idleSince,
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return b.LastSeen.Compare(a.LastSeen)
	})
	return entries
}

// StartReaper launches a background goroutine that periodically marks quiet
// guards as idle. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 30 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 12 * time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := t.clock.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.Chan():
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.clock.Now()

	type quiet struct {
		guard    string
		lastSeen time.Time
	}
	var newlyIdle []quiet

	t.mu.Lock()
	for guard, state := range t.guards {
		if state.idle {
			if now.Sub(state.idleSince) > cfg.EvictAfter {
				delete(t.guards, guard)
			}
			continue
		}
		if now.Sub(state.lastSeen) > cfg.IdleThreshold {
			state.idle = true
			state.idleSince = now
			newlyIdle = append(newlyIdle, quiet{guard: guard, lastSeen: state.lastSeen})
		}
	}
	t.mu.Unlock()

	for _, q := range newlyIdle {
		slog.Info("presence: guard marked idle",
			"guard", q.guard,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(q.guard, q.lastSeen)
		}
	}
}
