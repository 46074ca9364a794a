package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/events"
	"github.com/alfredjeanlab/gatewatch/internal/idgen"
	"github.com/alfredjeanlab/gatewatch/internal/lifecycle"
	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/order"
	"github.com/alfredjeanlab/gatewatch/internal/presence"
	"github.com/alfredjeanlab/gatewatch/internal/store"
	"github.com/alfredjeanlab/gatewatch/internal/timer"
)

// DefaultExtensionMinutes is added by an extend request that names no amount.
const DefaultExtensionMinutes = 5

// GateView is a gate as shown to guards: the record plus its countdown.
type GateView struct {
	*model.Gate
	Timer model.TimerView `json:"timer"`
}

// GroupView is one lettered block of the board.
type GroupView struct {
	Key   string      `json:"key"`
	Gates []*GateView `json:"gates"`
}

// createGateInput is the body of POST /v1/gates.
type createGateInput struct {
	Label         string         `json:"gate_id"`
	Type          model.GateType `json:"type"`
	ScheduledTime *time.Time     `json:"scheduled_time"`
	Screen        string         `json:"screen"`
}

// CreateGates provisions gates in one transaction. Every gate starts gray
// and unclaimed.
func (s *GateServer) CreateGates(ctx context.Context, in []createGateInput) ([]*model.Gate, error) {
	if len(in) == 0 {
		return nil, inputError("at least one gate is required")
	}

	now := s.clock.Now().UTC()
	gates := make([]*model.Gate, 0, len(in))
	for _, gi := range in {
		id, err := idgen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate gate id: %w", err)
		}
		typ := gi.Type
		if typ == "" {
			typ = model.TypeArrival
		}
		g := &model.Gate{
			ID:            id,
			Label:         strings.TrimSpace(gi.Label),
			Type:          typ,
			Status:        model.StatusGray,
			ScheduledTime: gi.ScheduledTime,
			Screen:        gi.Screen,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := model.ValidateGate(g); err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		for _, g := range gates {
			if err := tx.CreateGate(ctx, g); err != nil {
				return fmt.Errorf("create gate %s: %w", g.Label, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, g := range gates {
		s.publishEvent(ctx, events.TopicGateCreated, events.GateChanged{Gate: g, Action: "create"})
	}
	return gates, nil
}

// ListGates returns the board in presentation order for viewer.
func (s *GateServer) ListGates(ctx context.Context, viewer string) ([]*GateView, error) {
	gates, err := s.store.ListGates(ctx)
	if err != nil {
		return nil, err
	}
	order.Sort(gates, viewer)
	return s.views(gates), nil
}

// Groups returns the board grouped by the first letter of each label.
func (s *GateServer) Groups(ctx context.Context) ([]GroupView, error) {
	gates, err := s.store.ListGates(ctx)
	if err != nil {
		return nil, err
	}
	groups := order.GroupByLabel(gates)
	out := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupView{Key: g.Key, Gates: s.views(g.Gates)})
	}
	return out, nil
}

// GetGate returns one gate with its history and countdown.
func (s *GateServer) GetGate(ctx context.Context, id string) (*GateView, error) {
	g, err := s.store.GetGate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(g), nil
}

// History returns the gate's log, oldest first.
func (s *GateServer) History(ctx context.Context, id string) ([]*model.HistoryEntry, error) {
	return s.store.GetHistory(ctx, id)
}

func (s *GateServer) views(gates []*model.Gate) []*GateView {
	out := make([]*GateView, 0, len(gates))
	for _, g := range gates {
		out = append(out, s.view(g))
	}
	return out
}

// view pairs g with its countdown. A gate that turned green after the
// scheduler's last push is computed directly so it never shows as idle.
func (s *GateServer) view(g *model.Gate) *GateView {
	v := s.scheduler.View(g.ID)
	if !v.IsActive {
		if stop, ok := s.policy.StopTime(g); ok {
			v = model.TimerView{
				RemainingSeconds: timer.Remaining(stop, s.clock.Now()),
				IsActive:         true,
				StopTime:         stop,
			}
		}
	}
	return &GateView{Gate: g, Timer: v}
}

// Claim assigns the gate to guard. Exactly one of any number of concurrent
// claims on an unheld gate succeeds.
func (s *GateServer) Claim(ctx context.Context, id, guard string) (*model.Gate, error) {
	g, err := s.arbiter.Claim(ctx, id, guard)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicGateClaimed, g, lifecycle.ActionClaim.String(), guard)
	return g, nil
}

// StartMonitor turns a gate green and starts its countdown.
func (s *GateServer) StartMonitor(ctx context.Context, id, guard string) (*model.Gate, error) {
	return s.act(ctx, id, lifecycle.Request{Action: lifecycle.ActionStartMonitor, Actor: guard})
}

// SwitchToDeparture restarts monitoring of a yellow gate as a departure.
func (s *GateServer) SwitchToDeparture(ctx context.Context, id, guard string) (*model.Gate, error) {
	return s.act(ctx, id, lifecycle.Request{Action: lifecycle.ActionSwitchToDeparture, Actor: guard})
}

// MarkFinished closes monitoring of a gate.
func (s *GateServer) MarkFinished(ctx context.Context, id, guard string) (*model.Gate, error) {
	return s.act(ctx, id, lifecycle.Request{Action: lifecycle.ActionMarkFinished, Actor: guard})
}

// Release hands a gate back. Releasing a gray gate nobody holds is a no-op.
func (s *GateServer) Release(ctx context.Context, id, guard string) (*model.Gate, error) {
	return s.act(ctx, id, lifecycle.Request{Action: lifecycle.ActionRelease, Actor: guard})
}

// Reset returns a gate to gray, keeping its schedule and history.
func (s *GateServer) Reset(ctx context.Context, id, actor string) (*model.Gate, error) {
	return s.act(ctx, id, lifecycle.Request{Action: lifecycle.ActionReset, Actor: actor})
}

// act runs a non-claim action: read, decide, write. The write is
// unconditional, so of two racing actions the later one wins.
func (s *GateServer) act(ctx context.Context, id string, req lifecycle.Request) (*model.Gate, error) {
	g, err := s.store.GetGate(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := lifecycle.Decide(g, req)
	if err != nil {
		return nil, err
	}
	if d.NoOp {
		return g, nil
	}
	updated, err := s.store.UpdateGate(ctx, id, d.Update)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicFor(req.Action), updated, req.Action.String(), req.Actor)
	return updated, nil
}

// Extend adds minutes to a green gate's countdown. The increment and its
// history entry commit together; the running timer is then moved at once
// rather than on the next store push.
func (s *GateServer) Extend(ctx context.Context, id, guard string, minutes int) (*model.Gate, error) {
	if minutes == 0 {
		minutes = DefaultExtensionMinutes
	}

	var updated *model.Gate
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		g, err := tx.GetGate(ctx, id)
		if err != nil {
			return err
		}
		d, err := lifecycle.Decide(g, lifecycle.Request{Action: lifecycle.ActionExtend, Actor: guard, Minutes: minutes})
		if err != nil {
			return err
		}
		if _, err := tx.IncrementExtraTime(ctx, id, minutes); err != nil {
			return fmt.Errorf("extend gate %s: %w", id, err)
		}
		if err := tx.AppendHistory(ctx, id, d.Update.History); err != nil {
			return fmt.Errorf("log extension of gate %s: %w", id, err)
		}
		updated, err = tx.GetGate(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.scheduler.Extend(id, updated.SessionExtraMinutes())
	s.recordAndPublish(ctx, events.TopicTimerExtended, updated, lifecycle.ActionExtend.String(), guard)
	return updated, nil
}

// ExpireGate turns a green arrival gate whose countdown reached zero yellow.
// A gate that is no longer a green arrival, or no longer exists, needs nothing.
func (s *GateServer) ExpireGate(ctx context.Context, id string) error {
	g, err := s.store.GetGate(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	remaining := -1
	if stop, ok := s.policy.StopTime(g); ok {
		remaining = timer.Remaining(stop, s.clock.Now())
	}
	d, err := lifecycle.Decide(g, lifecycle.Request{Action: lifecycle.ActionTimerExpiry, Actor: lifecycle.SystemActor, Remaining: remaining})
	var ite *model.IllegalTransitionError
	if errors.As(err, &ite) && (g.Status != model.StatusGreen || g.Type != model.TypeArrival) {
		slog.Debug("expiry skipped", "gate", id, "status", g.Status, "type", g.Type)
		return nil
	}
	if err != nil {
		return err
	}

	updated, err := s.store.UpdateGate(ctx, id, d.Update)
	if err != nil {
		return err
	}
	s.publishEvent(ctx, events.TopicTimerExpired, events.GateChanged{
		Gate:   updated,
		Action: lifecycle.ActionTimerExpiry.String(),
		Actor:  lifecycle.SystemActor,
	})
	return nil
}

// ResetAll returns every gate to gray and reports how many were reset.
func (s *GateServer) ResetAll(ctx context.Context, actor string) (int, error) {
	if actor == "" {
		actor = "operator"
	}
	n, err := s.store.ResetAll(ctx, actor)
	if err != nil {
		return 0, err
	}
	s.publishEvent(ctx, events.TopicAllReset, events.GatesReset{Count: n, Actor: actor})
	return n, nil
}

// Heartbeat marks guard as on shift.
func (s *GateServer) Heartbeat(guard string) error {
	if strings.TrimSpace(guard) == "" {
		return model.ErrActorRequired
	}
	s.Presence.Record(presence.Activity{Guard: guard, Action: "heartbeat"})
	return nil
}

// Guards returns the roster: every guard seen recently plus every guard
// holding a gate, each with the labels it holds.
func (s *GateServer) Guards(ctx context.Context, staleThreshold time.Duration) ([]presence.Entry, error) {
	gates, err := s.store.ListGates(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string][]string)
	for _, g := range gates {
		if g.Claimed() {
			taken[g.ResponsibleGuard] = append(taken[g.ResponsibleGuard], g.Label)
		}
	}

	roster := s.Presence.Roster(staleThreshold)
	listed := make(map[string]bool, len(roster))
	for i := range roster {
		listed[roster[i].Guard] = true
		roster[i].Gates = taken[roster[i].Guard]
	}
	var absent []presence.Entry
	for guard, labels := range taken {
		if !listed[guard] {
			absent = append(absent, presence.Entry{Guard: guard, Gates: labels})
		}
	}
	slices.SortFunc(absent, func(a, b presence.Entry) int { return strings.Compare(a.Guard, b.Guard) })

	out := append(roster, absent...)
	for i := range out {
		slices.SortFunc(out[i].Gates, order.NaturalCompare)
	}
	return out, nil
}
