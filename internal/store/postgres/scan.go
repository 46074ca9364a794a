package postgres

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanGate scans a single row into a model.Gate.
// The row must contain columns in the order defined by gateColumns.
func scanGate(row scannable) (*model.Gate, error) {
	var g model.Gate
	var (
		scheduled    sql.NullTime
		monitorStart sql.NullTime
		monitorStop  sql.NullTime
		guard        sql.NullString
		screen       sql.NullString
	)

	err := row.Scan(
		&g.ID,
		&g.Label,
		&g.Type,
		&g.Status,
		&scheduled,
		&monitorStart,
		&monitorStop,
		&guard,
		&g.ExtraTimeMinutes,
		&g.ExtraAtStart,
		&screen,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.ScheduledTime = timePtr(scheduled)
	g.MonitorStart = timePtr(monitorStart)
	g.MonitorStop = timePtr(monitorStop)
	g.ResponsibleGuard = guard.String
	g.Screen = screen.String

	return &g, nil
}

// scanGates scans all rows into a slice of model.Gate.
func scanGates(rows *sql.Rows) ([]*model.Gate, error) {
	defer rows.Close()
	var gates []*model.Gate
	for rows.Next() {
		g, err := scanGate(rows)
		if err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	return gates, rows.Err()
}

// scanHistoryEntry scans a single row into a model.HistoryEntry.
func scanHistoryEntry(row scannable) (*model.HistoryEntry, error) {
	var h model.HistoryEntry
	var actor sql.NullString
	if err := row.Scan(&h.ID, &h.GateID, &actor, &h.Event, &h.Timestamp); err != nil {
		return nil, err
	}
	h.Actor = actor.String
	return &h, nil
}

// scanHistory scans all rows into a slice of model.HistoryEntry.
func scanHistory(rows *sql.Rows) ([]*model.HistoryEntry, error) {
	defer rows.Close()
	var entries []*model.HistoryEntry
	for rows.Next() {
		h, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
