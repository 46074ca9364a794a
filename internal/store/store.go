package store

import (
	"context"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// MutateFunc inspects the locked current state of a gate and returns the
// update to write. Returning an error aborts the update without writing;
// returning nil writes nothing.
type MutateFunc func(current *model.Gate) (*model.GateUpdate, error)

// SnapshotFunc receives the full gate collection after every change.
type SnapshotFunc func(gates []*model.Gate)

// Store defines the persistence interface for gates.
//
// Missing gates are reported as errors wrapping model.ErrNotFound. Writes the
// backend could not acknowledge wrap model.ErrStoreUnavailable.
type Store interface {
	// Gate CRUD
	CreateGate(ctx context.Context, gate *model.Gate) error
	GetGate(ctx context.Context, id string) (*model.Gate, error) // includes history
	ListGates(ctx context.Context) ([]*model.Gate, error)

	// UpdateGate merges upd into the gate, last writer wins. upd.History is
	// appended in the same transaction.
	UpdateGate(ctx context.Context, id string, upd model.GateUpdate) (*model.Gate, error)

	// AtomicUpdate runs fn against the gate with the row locked and writes the
	// update it returns before releasing the lock.
	AtomicUpdate(ctx context.Context, id string, fn MutateFunc) (*model.Gate, error)

	// IncrementExtraTime atomically adds delta minutes and returns the new total.
	IncrementExtraTime(ctx context.Context, id string, delta int) (int, error)

	// History
	AppendHistory(ctx context.Context, gateID string, entry *model.HistoryEntry) error
	GetHistory(ctx context.Context, gateID string) ([]*model.HistoryEntry, error)

	// ResetAll returns every gate to gray, keeping scheduled_time and history.
	// It returns the number of gates reset.
	ResetAll(ctx context.Context, actor string) (int, error)

	// Subscribe calls fn with the full collection once immediately and again
	// after every change, serially, until ctx is done or cancel is called.
	Subscribe(ctx context.Context, fn SnapshotFunc) (cancel func(), err error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
