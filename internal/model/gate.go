package model

import "time"

// GateType selects the monitoring window a gate runs under.
type GateType string

const (
	TypeArrival   GateType = "ARR"
	TypeDeparture GateType = "DEP"
)

// String returns the string representation of the gate type.
func (t GateType) String() string {
	return string(t)
}

// IsValid checks whether the gate type is a known value.
func (t GateType) IsValid() bool {
	switch t {
	case TypeArrival, TypeDeparture:
		return true
	}
	return false
}

// Status is the lifecycle state of a gate.
type Status string

const (
	StatusGray   Status = "gray"   // planned
	StatusBlue   Status = "blue"   // claimed, not started
	StatusGreen  Status = "green"  // actively monitored
	StatusYellow Status = "yellow" // arrival window expired
	StatusRed    Status = "red"    // finished
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is one of the five lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusGray, StatusBlue, StatusGreen, StatusYellow, StatusRed:
		return true
	}
	return false
}

// Gate is the central record: one monitored airport gate.
type Gate struct {
	ID               string     `json:"id"`
	Label            string     `json:"gate_id"`
	Type             GateType   `json:"type"`
	Status           Status     `json:"status"`
	ScheduledTime    *time.Time `json:"scheduled_time,omitempty"`
	MonitorStart     *time.Time `json:"monitor_start,omitempty"`
	MonitorStop      *time.Time `json:"monitor_stop,omitempty"`
	ResponsibleGuard string     `json:"responsible_guard,omitempty"`
	ExtraTimeMinutes int        `json:"extra_time_minutes"`
	ExtraAtStart     int        `json:"extra_at_start"`
	Screen           string     `json:"screen,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	History []*HistoryEntry `json:"history,omitempty"`
}

// Claimed reports whether a guard currently holds the gate.
func (g *Gate) Claimed() bool {
	return g.ResponsibleGuard != ""
}

// SessionExtraMinutes returns the extension granted since monitor_start was
// last stamped. ExtraTimeMinutes only grows; ExtraAtStart is its value when
// the current monitoring session began.
func (g *Gate) SessionExtraMinutes() int {
	if n := g.ExtraTimeMinutes - g.ExtraAtStart; n > 0 {
		return n
	}
	return 0
}

// Clone returns a deep copy of g.
func (g *Gate) Clone() *Gate {
	c := *g
	c.ScheduledTime = cloneTime(g.ScheduledTime)
	c.MonitorStart = cloneTime(g.MonitorStart)
	c.MonitorStop = cloneTime(g.MonitorStop)
	if g.History != nil {
		c.History = make([]*HistoryEntry, len(g.History))
		for i, h := range g.History {
			hc := *h
			c.History[i] = &hc
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// HistoryEntry is one line of a gate's append-only log.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	GateID    string    `json:"gate_id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Event     string    `json:"event"`
}

// TimerView is the derived countdown shown next to a gate.
type TimerView struct {
	RemainingSeconds int       `json:"remaining_seconds"`
	IsActive         bool      `json:"is_active"`
	StopTime         time.Time `json:"stop_time"`
}
