// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// errNoSubscribeInTx is returned by Subscribe on a transaction store.
var errNoSubscribeInTx = errors.New("subscribe is not available inside a transaction")

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db          *sql.DB
	databaseURL string
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", classify(err))
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db, databaseURL: databaseURL}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateGate(ctx context.Context, gate *model.Gate) error {
	return classify(queryCreateGate(ctx, s.db, gate))
}

func (s *PostgresStore) GetGate(ctx context.Context, id string) (*model.Gate, error) {
	return classified(queryGetGate(ctx, s.db, id))
}

func (s *PostgresStore) ListGates(ctx context.Context) ([]*model.Gate, error) {
	return classified(queryListGates(ctx, s.db))
}

func (s *PostgresStore) UpdateGate(ctx context.Context, id string, upd model.GateUpdate) (*model.Gate, error) {
	var out *model.Gate
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.UpdateGate(ctx, id, upd)
		return err
	})
	return out, classify(err)
}

func (s *PostgresStore) AtomicUpdate(ctx context.Context, id string, fn store.MutateFunc) (*model.Gate, error) {
	var out *model.Gate
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.AtomicUpdate(ctx, id, fn)
		return err
	})
	return out, classify(err)
}

func (s *PostgresStore) IncrementExtraTime(ctx context.Context, id string, delta int) (int, error) {
	return classified(queryIncrementExtraTime(ctx, s.db, id, delta))
}

func (s *PostgresStore) AppendHistory(ctx context.Context, gateID string, entry *model.HistoryEntry) error {
	return classify(queryAppendHistory(ctx, s.db, gateID, entry))
}

func (s *PostgresStore) GetHistory(ctx context.Context, gateID string) ([]*model.HistoryEntry, error) {
	return classified(queryGetHistory(ctx, s.db, gateID))
}

func (s *PostgresStore) ResetAll(ctx context.Context, actor string) (int, error) {
	var n int
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		n, err = tx.ResetAll(ctx, actor)
		return err
	})
	return n, classify(err)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateGate(ctx context.Context, gate *model.Gate) error {
	return queryCreateGate(ctx, s.tx, gate)
}

func (s *txStore) GetGate(ctx context.Context, id string) (*model.Gate, error) {
	return queryGetGate(ctx, s.tx, id)
}

func (s *txStore) ListGates(ctx context.Context) ([]*model.Gate, error) {
	return queryListGates(ctx, s.tx)
}

func (s *txStore) UpdateGate(ctx context.Context, id string, upd model.GateUpdate) (*model.Gate, error) {
	return queryUpdateGate(ctx, s.tx, id, upd)
}

// AtomicUpdate locks the row with SELECT ... FOR UPDATE, so concurrent
// callers on the same gate run fn one at a time against committed state.
func (s *txStore) AtomicUpdate(ctx context.Context, id string, fn store.MutateFunc) (*model.Gate, error) {
	current, err := queryLockGate(ctx, s.tx, id)
	if err != nil {
		return nil, err
	}
	upd, err := fn(current)
	if err != nil {
		return nil, err
	}
	if upd == nil {
		return current, nil
	}
	return queryUpdateGate(ctx, s.tx, id, *upd)
}

func (s *txStore) IncrementExtraTime(ctx context.Context, id string, delta int) (int, error) {
	return queryIncrementExtraTime(ctx, s.tx, id, delta)
}

func (s *txStore) AppendHistory(ctx context.Context, gateID string, entry *model.HistoryEntry) error {
	return queryAppendHistory(ctx, s.tx, gateID, entry)
}

func (s *txStore) GetHistory(ctx context.Context, gateID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.tx, gateID)
}

func (s *txStore) ResetAll(ctx context.Context, actor string) (int, error) {
	return queryResetAll(ctx, s.tx, actor)
}

func (s *txStore) Subscribe(context.Context, store.SnapshotFunc) (func(), error) {
	return nil, errNoSubscribeInTx
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
