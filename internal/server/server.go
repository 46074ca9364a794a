package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/gatewatch/internal/claim"
	"github.com/alfredjeanlab/gatewatch/internal/events"
	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/presence"
	"github.com/alfredjeanlab/gatewatch/internal/store"
	"github.com/alfredjeanlab/gatewatch/internal/timer"
)

// GateServer serves the gate board. It owns the timer scheduler and the guard
// roster and fans every successful action out to NATS and SSE.
type GateServer struct {
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	arbiter   *claim.Arbiter
	scheduler *timer.Scheduler
	policy    timer.Policy
	clock     clockwork.Clock
	Presence  *presence.Tracker

	unsubscribe func()
}

// NewGateServer returns a GateServer backed by the given store and publisher.
// Call Start to begin tracking timers.
func NewGateServer(s store.Store, p events.Publisher, clock clockwork.Clock, policy timer.Policy) *GateServer {
	srv := &GateServer{
		store:     s,
		publisher: p,
		sseHub:    newSSEHub(),
		arbiter:   claim.NewArbiter(s),
		policy:    policy,
		clock:     clock,
		Presence:  presence.New(clock),
	}
	srv.scheduler = timer.NewScheduler(clock, policy, srv, slog.Default().With("component", "timer"))
	srv.scheduler.OnChange(func(views map[string]model.TimerView) {
		srv.broadcastEvent(events.TopicTimersTicked, events.TimersTicked{Timers: views})
	})
	return srv
}

// Start subscribes the timer scheduler to the store and starts the guard
// reaper. Guards silent for longer than idleTimeout are reported idle.
func (s *GateServer) Start(ctx context.Context, idleTimeout time.Duration) error {
	s.scheduler.Start()
	cancel, err := s.store.Subscribe(ctx, s.scheduler.Observe)
	if err != nil {
		s.scheduler.Stop()
		return fmt.Errorf("subscribe to gate changes: %w", err)
	}
	s.unsubscribe = cancel

	s.Presence.StartReaper(&presence.ReaperConfig{
		IdleThreshold: idleTimeout,
		OnIdle: func(guard string, lastSeen time.Time) {
			s.publishEvent(context.Background(), events.TopicGuardIdle, events.GuardIdle{Guard: guard, LastSeen: lastSeen})
		},
	})
	return nil
}

// Stop ends the subscription, the scheduler and the reaper.
func (s *GateServer) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.scheduler.Stop()
	s.Presence.Stop()
}

// publishEvent publishes an event to NATS and SSE. Both are best-effort;
// failures are logged but do not block the caller.
func (s *GateServer) publishEvent(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
	s.broadcastEvent(topic, event)
}

// recordAndPublish notes the acting guard in the roster and publishes the
// changed gate.
func (s *GateServer) recordAndPublish(ctx context.Context, topic string, g *model.Gate, action, actor string) {
	s.Presence.Record(presence.Activity{Guard: actor, Action: action, GateID: g.ID})
	s.publishEvent(ctx, topic, events.GateChanged{Gate: g, Action: action, Actor: actor})
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
