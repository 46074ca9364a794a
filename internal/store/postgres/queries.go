package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// gateColumns is the column list used for SELECT statements on the gates table.
const gateColumns = `id, label, type, status, scheduled_time, monitor_start,
	monitor_stop, responsible_guard, extra_time_minutes, extra_at_start, screen, created_at, updated_at`

const historyColumns = `id, gate_id, actor, event, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateGate(ctx context.Context, db executor, g *model.Gate) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO gates (
			id, label, type, status, scheduled_time, monitor_start,
			monitor_stop, responsible_guard, extra_time_minutes, extra_at_start, screen, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13
		)`,
		g.ID,
		g.Label,
		string(g.Type),
		string(g.Status),
		nullTimePtr(g.ScheduledTime),
		nullTimePtr(g.MonitorStart),
		nullTimePtr(g.MonitorStop),
		nullString(g.ResponsibleGuard),
		g.ExtraTimeMinutes,
		g.ExtraAtStart,
		nullString(g.Screen),
		g.CreatedAt,
		g.UpdatedAt,
	)
	return err
}

func queryGetGate(ctx context.Context, db executor, id string) (*model.Gate, error) {
	g, err := scanGate(db.QueryRowContext(ctx, `SELECT `+gateColumns+` FROM gates WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(id, err)
	}

	history, err := queryGetHistory(ctx, db, id)
	if err != nil {
		return nil, err
	}
	g.History = history

	return g, nil
}

// queryLockGate reads a gate row and holds its lock until the transaction ends.
func queryLockGate(ctx context.Context, db executor, id string) (*model.Gate, error) {
	g, err := scanGate(db.QueryRowContext(ctx, `SELECT `+gateColumns+` FROM gates WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(id, err)
	}
	return g, nil
}

func queryListGates(ctx context.Context, db executor) ([]*model.Gate, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+gateColumns+` FROM gates ORDER BY label, id`)
	if err != nil {
		return nil, err
	}
	return scanGates(rows)
}

// queryUpdateGate writes the column part of upd and appends upd.History.
// The caller is expected to run it inside a transaction.
func queryUpdateGate(ctx context.Context, db executor, id string, upd model.GateUpdate) (*model.Gate, error) {
	var g *model.Gate
	var err error
	if upd.IsEmpty() {
		g, err = scanGate(db.QueryRowContext(ctx, `SELECT `+gateColumns+` FROM gates WHERE id = $1`, id))
	} else {
		query, args := buildUpdate(id, upd)
		g, err = scanGate(db.QueryRowContext(ctx, query, args...))
	}
	if err != nil {
		return nil, notFound(id, err)
	}

	if upd.History != nil {
		if err := queryAppendHistory(ctx, db, id, upd.History); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// buildUpdate renders the UPDATE statement for the non-empty fields of upd.
func buildUpdate(id string, upd model.GateUpdate) (string, []any) {
	var args []any
	sets := []string{"updated_at = NOW()"}

	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	stamp := func(col string, s model.Stamp) {
		switch s {
		case model.StampNow:
			sets = append(sets, col+" = NOW()")
		case model.StampClear:
			sets = append(sets, col+" = NULL")
		}
	}

	if upd.Status != nil {
		set("status", string(*upd.Status))
	}
	if upd.Type != nil {
		set("type", string(*upd.Type))
	}
	if upd.ResponsibleGuard != nil {
		set("responsible_guard", nullString(*upd.ResponsibleGuard))
	}
	stamp("monitor_start", upd.MonitorStart)
	if upd.MonitorStart != model.StampKeep {
		// A new session starts with no extension of its own.
		sets = append(sets, "extra_at_start = extra_time_minutes")
	}
	stamp("monitor_stop", upd.MonitorStop)
	if upd.Screen != nil {
		set("screen", nullString(*upd.Screen))
	}
	if upd.ScheduledTime != nil {
		set("scheduled_time", *upd.ScheduledTime)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE gates SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), gateColumns)
	return query, args
}

func queryIncrementExtraTime(ctx context.Context, db executor, id string, delta int) (int, error) {
	var total int
	err := db.QueryRowContext(ctx, `
		UPDATE gates
		SET extra_time_minutes = extra_time_minutes + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING extra_time_minutes`,
		delta, id,
	).Scan(&total)
	if err != nil {
		return 0, notFound(id, err)
	}
	return total, nil
}

func queryAppendHistory(ctx context.Context, db executor, gateID string, h *model.HistoryEntry) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO gate_history (gate_id, actor, event)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		gateID, nullString(h.Actor), h.Event,
	).Scan(&h.ID, &h.Timestamp)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("gate %s: %w", gateID, model.ErrNotFound)
		}
		return err
	}
	h.GateID = gateID
	return nil
}

func queryGetHistory(ctx context.Context, db executor, gateID string) ([]*model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM gate_history WHERE gate_id = $1 ORDER BY id`, gateID)
	if err != nil {
		return nil, err
	}
	return scanHistory(rows)
}

// queryResetAll logs a reset for every gate not already in its initial state,
// then returns all gates to gray. It must run inside a transaction.
func queryResetAll(ctx context.Context, db executor, actor string) (int, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO gate_history (gate_id, actor, event)
		SELECT id, $1, $2 FROM gates
		WHERE status <> 'gray'
			OR responsible_guard IS NOT NULL
			OR monitor_start IS NOT NULL
			OR monitor_stop IS NOT NULL
			OR screen IS NOT NULL`,
		actor, "Gate reset by "+actor,
	)
	if err != nil {
		return 0, fmt.Errorf("log reset: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE gates
		SET status = 'gray', responsible_guard = NULL, monitor_start = NULL,
			monitor_stop = NULL, screen = NULL, extra_at_start = extra_time_minutes,
			updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("reset gates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func notFound(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("gate %s: %w", id, model.ErrNotFound)
	}
	return err
}
