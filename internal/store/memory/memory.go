// Package memory implements store.Store in process memory. It backs
// single-node deployments started without a database and the action-layer
// tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/store"
)

var errDuplicateID = errors.New("gate id already exists")

// Store is an in-memory store.Store. The clock is the store-authoritative
// source of "now" for stamped fields and history entries.
type Store struct {
	clock clockwork.Clock

	mu        sync.Mutex
	gates     map[string]*model.Gate
	historyID int64
	subs      map[int]*subscriber
	nextSub   int
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store using clock for timestamps.
func New(clock clockwork.Clock) *Store {
	return &Store{
		clock: clock,
		gates: make(map[string]*model.Gate),
		subs:  make(map[int]*subscriber),
	}
}

func (s *Store) CreateGate(ctx context.Context, gate *model.Gate) error {
	return s.write(func(tx *txStore) error { return tx.CreateGate(ctx, gate) })
}

func (s *Store) GetGate(ctx context.Context, id string) (*model.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txStore{s: s}).GetGate(ctx, id)
}

func (s *Store) ListGates(_ context.Context) ([]*model.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(), nil
}

func (s *Store) UpdateGate(ctx context.Context, id string, upd model.GateUpdate) (*model.Gate, error) {
	var g *model.Gate
	err := s.write(func(tx *txStore) error {
		var err error
		g, err = tx.UpdateGate(ctx, id, upd)
		return err
	})
	return g, err
}

// AtomicUpdate holds the store lock for the whole read-decide-write.
func (s *Store) AtomicUpdate(ctx context.Context, id string, fn store.MutateFunc) (*model.Gate, error) {
	var g *model.Gate
	err := s.write(func(tx *txStore) error {
		var err error
		g, err = tx.AtomicUpdate(ctx, id, fn)
		return err
	})
	return g, err
}

func (s *Store) IncrementExtraTime(ctx context.Context, id string, delta int) (int, error) {
	var total int
	err := s.write(func(tx *txStore) error {
		var err error
		total, err = tx.IncrementExtraTime(ctx, id, delta)
		return err
	})
	return total, err
}

func (s *Store) AppendHistory(ctx context.Context, gateID string, entry *model.HistoryEntry) error {
	return s.write(func(tx *txStore) error { return tx.AppendHistory(ctx, gateID, entry) })
}

func (s *Store) GetHistory(ctx context.Context, gateID string) ([]*model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txStore{s: s}).GetHistory(ctx, gateID)
}

func (s *Store) ResetAll(ctx context.Context, actor string) (int, error) {
	var n int
	err := s.write(func(tx *txStore) error {
		var err error
		n, err = tx.ResetAll(ctx, actor)
		return err
	})
	return n, err
}

// RunInTransaction holds the store lock while fn runs. If fn fails, every
// gate and history entry it wrote is discarded and subscribers see nothing.
// fn must use tx, not the Store, or it deadlocks.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return s.write(func(tx *txStore) error { return fn(tx) })
}

// Close stops all subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*subscriber)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

// write runs fn under the store lock. On success subscribers are woken; on
// error the gate map is restored to its state before fn ran.
func (s *Store) write(fn func(tx *txStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gates := make(map[string]*model.Gate, len(s.gates))
	for id, g := range s.gates {
		gates[id] = g.Clone()
	}
	historyID := s.historyID

	if err := fn(&txStore{s: s}); err != nil {
		s.gates, s.historyID = gates, historyID
		return err
	}
	s.notifyLocked()
	return nil
}

func (s *Store) getLocked(id string) (*model.Gate, error) {
	g, ok := s.gates[id]
	if !ok {
		return nil, fmt.Errorf("gate %s: %w", id, model.ErrNotFound)
	}
	return g, nil
}

func (s *Store) listLocked() []*model.Gate {
	out := make([]*model.Gate, 0, len(s.gates))
	for _, g := range s.gates {
		c := g.Clone()
		c.History = nil
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *model.Gate) int {
		if c := strings.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) applyLocked(g *model.Gate, upd model.GateUpdate) *model.Gate {
	hist := upd.History
	upd.History = nil
	upd.ApplyTo(g, s.clock.Now())
	if hist != nil {
		s.appendLocked(g, hist)
	}
	return g.Clone()
}

// appendLocked stamps entry and appends a copy of it to g.
func (s *Store) appendLocked(g *model.Gate, entry *model.HistoryEntry) {
	s.historyID++
	entry.ID = s.historyID
	entry.GateID = g.ID
	entry.Timestamp = s.clock.Now()
	e := *entry
	g.History = append(g.History, &e)
}
