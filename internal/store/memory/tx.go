package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/store"
)

var errNoSubscribeInTx = errors.New("subscribe is not available inside a transaction")

// txStore is the store as seen by code already holding s.mu. Store methods
// and RunInTransaction callbacks both run against it.
type txStore struct {
	s *Store
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (t *txStore) CreateGate(_ context.Context, gate *model.Gate) error {
	if _, ok := t.s.gates[gate.ID]; ok {
		return fmt.Errorf("create gate %s: %w", gate.ID, errDuplicateID)
	}
	g := gate.Clone()
	g.History = nil
	t.s.gates[g.ID] = g
	return nil
}

func (t *txStore) GetGate(_ context.Context, id string) (*model.Gate, error) {
	g, err := t.s.getLocked(id)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

func (t *txStore) ListGates(context.Context) ([]*model.Gate, error) {
	return t.s.listLocked(), nil
}

func (t *txStore) UpdateGate(_ context.Context, id string, upd model.GateUpdate) (*model.Gate, error) {
	g, err := t.s.getLocked(id)
	if err != nil {
		return nil, err
	}
	return t.s.applyLocked(g, upd), nil
}

func (t *txStore) AtomicUpdate(_ context.Context, id string, fn store.MutateFunc) (*model.Gate, error) {
	g, err := t.s.getLocked(id)
	if err != nil {
		return nil, err
	}
	upd, err := fn(g.Clone())
	if err != nil {
		return nil, err
	}
	if upd == nil {
		return g.Clone(), nil
	}
	return t.s.applyLocked(g, *upd), nil
}

func (t *txStore) IncrementExtraTime(_ context.Context, id string, delta int) (int, error) {
	g, err := t.s.getLocked(id)
	if err != nil {
		return 0, err
	}
	g.ExtraTimeMinutes += delta
	g.UpdatedAt = t.s.clock.Now()
	return g.ExtraTimeMinutes, nil
}

func (t *txStore) AppendHistory(_ context.Context, gateID string, entry *model.HistoryEntry) error {
	g, err := t.s.getLocked(gateID)
	if err != nil {
		return err
	}
	t.s.appendLocked(g, entry)
	return nil
}

func (t *txStore) GetHistory(_ context.Context, gateID string) ([]*model.HistoryEntry, error) {
	g, err := t.s.getLocked(gateID)
	if err != nil {
		return nil, err
	}
	return g.Clone().History, nil
}

// ResetAll logs a reset on every gate not already idle and gray. Extensions
// granted before the reset stay in the total but no longer count toward a
// later session.
func (t *txStore) ResetAll(_ context.Context, actor string) (int, error) {
	now := t.s.clock.Now()
	for _, g := range t.s.gates {
		changed := g.Status != model.StatusGray || g.Claimed() ||
			g.MonitorStart != nil || g.MonitorStop != nil || g.Screen != ""
		if !changed {
			continue
		}
		g.Status = model.StatusGray
		g.ResponsibleGuard = ""
		g.MonitorStart = nil
		g.MonitorStop = nil
		g.Screen = ""
		g.ExtraAtStart = g.ExtraTimeMinutes
		g.UpdatedAt = now
		t.s.appendLocked(g, &model.HistoryEntry{Actor: actor, Event: "Gate reset by " + actor})
	}
	return len(t.s.gates), nil
}

func (t *txStore) Subscribe(context.Context, store.SnapshotFunc) (func(), error) {
	return nil, errNoSubscribeInTx
}

// RunInTransaction on a txStore reuses the enclosing transaction.
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op; the parent Store owns the subscriptions.
func (t *txStore) Close() error {
	return nil
}
