// Package timer runs the countdowns of monitored gates and fires the
// automatic arrival-expiry transition.
package timer

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// Period is the tick interval.
const Period = time.Second

// Expirer performs the automatic transition when an arrival timer reaches zero.
type Expirer interface {
	ExpireGate(ctx context.Context, gateID string) error
}

// Timer is the countdown for one monitored gate.
type Timer struct {
	GateID    string
	Type      model.GateType
	Status    model.Status
	StopTime  time.Time
	Remaining int // -1 until the next tick computes it

	session time.Time // monitor_start the timer was built from
	base    time.Time // stop time before extensions
	extra   int       // extension minutes folded into StopTime
	fired   bool
}

// Scheduler tracks one Timer per green gate. A single goroutine owns the
// timer map; Observe and Extend only post to its inbox, so neither blocks
// nor races with a tick.
type Scheduler struct {
	clock    clockwork.Clock
	policy   Policy
	expirer  Expirer
	logger   *slog.Logger
	onChange func(map[string]model.TimerView)

	timers map[string]*Timer

	mu      sync.Mutex
	pending []*model.Gate
	fresh   bool
	extends map[string]int
	failed  []string
	wake    chan struct{}

	views atomic.Pointer[map[string]model.TimerView]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. Call Start to begin ticking.
func NewScheduler(clock clockwork.Clock, policy Policy, expirer Expirer, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		clock:   clock,
		policy:  policy,
		expirer: expirer,
		logger:  logger,
		timers:  make(map[string]*Timer),
		extends: make(map[string]int),
		wake:    make(chan struct{}, 1),
	}
	empty := map[string]model.TimerView{}
	s.views.Store(&empty)
	return s
}

// OnChange registers fn to receive the timer views whenever any of them
// changes. It is called from the scheduler goroutine and must not block.
// Call before Start.
func (s *Scheduler) OnChange(fn func(map[string]model.TimerView)) {
	s.onChange = fn
}

// Start launches the scheduler goroutine.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for it and any in-flight expiry to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Observe hands the scheduler the latest full gate collection. Only the
// newest collection is kept if several arrive between loop iterations.
func (s *Scheduler) Observe(gates []*model.Gate) {
	s.mu.Lock()
	s.pending = gates
	s.fresh = true
	s.mu.Unlock()
	s.signal()
}

// Extend records that gateID's current session now carries totalMinutes of
// extension. A timer that is already running moves its stop time accordingly.
func (s *Scheduler) Extend(gateID string, totalMinutes int) {
	s.mu.Lock()
	if totalMinutes > s.extends[gateID] {
		s.extends[gateID] = totalMinutes
	}
	s.mu.Unlock()
	s.signal()
}

// View returns the countdown for one gate. A gate without a running timer
// has a zero view.
func (s *Scheduler) View(gateID string) model.TimerView {
	return (*s.views.Load())[gateID]
}

// Views returns the countdowns of all timed gates.
func (s *Scheduler) Views() map[string]model.TimerView {
	return maps.Clone(*s.views.Load())
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := s.clock.NewTicker(Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.drain(s.clock.Now())
		case <-ticker.Chan():
			now := s.clock.Now()
			s.drain(now)
			s.tick(ctx, now)
		}
	}
}

// drain applies everything posted to the inbox since the last iteration.
func (s *Scheduler) drain(now time.Time) {
	s.mu.Lock()
	gates, fresh := s.pending, s.fresh
	s.pending, s.fresh = nil, false
	extends := s.extends
	s.extends = make(map[string]int)
	failed := s.failed
	s.failed = nil
	s.mu.Unlock()

	changed := false
	if fresh {
		changed = s.observe(gates) || changed
	}
	for id, total := range extends {
		changed = s.extend(id, total) || changed
	}
	for _, id := range failed {
		// Re-arm: the next tick recomputes and fires again.
		if t, ok := s.timers[id]; ok && t.fired {
			t.fired = false
			t.Remaining = -1
		}
	}
	if changed {
		s.publish(now)
	}
}

// observe reconciles the timer map with gates. A timer's stop time is fixed
// when it is first seen; later pushes only change membership or raise the
// extension.
func (s *Scheduler) observe(gates []*model.Gate) bool {
	changed := false
	seen := make(map[string]bool, len(gates))
	for _, g := range gates {
		base, ok := s.policy.base(g)
		if !ok {
			continue
		}
		seen[g.ID] = true

		extra := g.SessionExtraMinutes()
		t, exists := s.timers[g.ID]
		if exists && t.Type == g.Type && t.session.Equal(*g.MonitorStart) {
			if extra > t.extra {
				s.patch(t, extra)
				changed = true
			}
			continue
		}

		s.timers[g.ID] = &Timer{
			GateID:    g.ID,
			Type:      g.Type,
			Status:    g.Status,
			StopTime:  base.Add(minutes(extra)),
			Remaining: -1,
			session:   *g.MonitorStart,
			base:      base,
			extra:     extra,
		}
		changed = true
		s.logger.Debug("timer started", "gate", g.ID, "type", g.Type, "stop", s.timers[g.ID].StopTime)
	}

	for id := range s.timers {
		if !seen[id] {
			delete(s.timers, id)
			changed = true
			s.logger.Debug("timer removed", "gate", id)
		}
	}
	return changed
}

func (s *Scheduler) extend(gateID string, total int) bool {
	t, ok := s.timers[gateID]
	if !ok || total <= t.extra {
		return false
	}
	s.patch(t, total)
	return true
}

func (s *Scheduler) patch(t *Timer, total int) {
	t.extra = total
	t.StopTime = t.base.Add(minutes(total))
	t.Remaining = -1
	t.fired = false
	s.logger.Info("timer extended", "gate", t.GateID, "extra_minutes", total, "stop", t.StopTime)
}

// tick recomputes every countdown. Gates whose remaining time did not change
// are skipped. An arrival timer reaching zero fires its expiry exactly once.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	changed := false
	for id, t := range s.timers {
		r := Remaining(t.StopTime, now)
		if r == t.Remaining {
			continue
		}
		t.Remaining = r
		changed = true

		if r == 0 && t.Type == model.TypeArrival && !t.fired {
			t.fired = true
			s.fire(ctx, id)
		}
	}
	if changed {
		s.publish(now)
	}
}

// fire runs the expiry off the loop goroutine so a slow store never delays
// the next tick. Failures are posted back for a retry.
func (s *Scheduler) fire(ctx context.Context, gateID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.expirer.ExpireGate(ctx, gateID); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("timer expiry failed", "gate", gateID, "err", err)
			s.mu.Lock()
			s.failed = append(s.failed, gateID)
			s.mu.Unlock()
			s.signal()
		}
	}()
}

func (s *Scheduler) publish(now time.Time) {
	views := make(map[string]model.TimerView, len(s.timers))
	for id, t := range s.timers {
		r := t.Remaining
		if r < 0 {
			r = Remaining(t.StopTime, now)
		}
		views[id] = model.TimerView{RemainingSeconds: r, IsActive: true, StopTime: t.StopTime}
	}
	s.views.Store(&views)
	if s.onChange != nil {
		s.onChange(maps.Clone(views))
	}
}
