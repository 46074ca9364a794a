package model

import "time"

// Stamp says what an update does to a nullable timestamp column.
type Stamp int

const (
	StampKeep  Stamp = iota // leave the column alone
	StampNow                // set to the store's current time
	StampClear              // set to NULL
)

// GateUpdate is a partial field merge. Nil pointers leave the field unchanged.
// ResponsibleGuard and Screen use the empty string for "cleared".
type GateUpdate struct {
	Status           *Status
	Type             *GateType
	ResponsibleGuard *string
	MonitorStart     Stamp
	MonitorStop      Stamp
	Screen           *string
	ScheduledTime    *time.Time

	// History, when set, is appended in the same write.
	History *HistoryEntry
}

// IsEmpty reports whether the update touches no gate column.
func (u GateUpdate) IsEmpty() bool {
	return u.Status == nil && u.Type == nil && u.ResponsibleGuard == nil &&
		u.MonitorStart == StampKeep && u.MonitorStop == StampKeep &&
		u.Screen == nil && u.ScheduledTime == nil
}

// ApplyTo merges u into g in place, resolving StampNow to now. Stamping or
// clearing monitor_start opens a new session, so the extension baseline moves
// up to the current total. The history entry, if any, is appended with its
// timestamp set to now.
func (u GateUpdate) ApplyTo(g *Gate, now time.Time) {
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.Type != nil {
		g.Type = *u.Type
	}
	if u.ResponsibleGuard != nil {
		g.ResponsibleGuard = *u.ResponsibleGuard
	}
	if u.MonitorStart != StampKeep {
		g.ExtraAtStart = g.ExtraTimeMinutes
	}
	g.MonitorStart = applyStamp(g.MonitorStart, u.MonitorStart, now)
	g.MonitorStop = applyStamp(g.MonitorStop, u.MonitorStop, now)
	if u.Screen != nil {
		g.Screen = *u.Screen
	}
	if u.ScheduledTime != nil {
		g.ScheduledTime = cloneTime(u.ScheduledTime)
	}
	if !u.IsEmpty() {
		g.UpdatedAt = now
	}
	if u.History != nil {
		h := *u.History
		h.GateID = g.ID
		h.Timestamp = now
		g.History = append(g.History, &h)
	}
}

func applyStamp(cur *time.Time, s Stamp, now time.Time) *time.Time {
	switch s {
	case StampNow:
		t := now
		return &t
	case StampClear:
		return nil
	default:
		return cur
	}
}

// Ptr returns a pointer to v. Handy for building updates.
func Ptr[T any](v T) *T {
	return &v
}
