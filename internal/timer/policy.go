package timer

import (
	"math"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// Default monitoring windows, measured from monitor_start.
const (
	DefaultArrivalWindow   = 25 * time.Minute
	DefaultDepartureWindow = 30 * time.Minute
)

// Policy computes monitoring windows. Windows are anchored at monitor_start:
// a gate's countdown begins when its guard starts monitoring, not at the
// scheduled time.
type Policy struct {
	ArrivalWindow   time.Duration
	DepartureWindow time.Duration
}

// DefaultPolicy returns the 25 minute arrival / 30 minute departure policy.
func DefaultPolicy() Policy {
	return Policy{ArrivalWindow: DefaultArrivalWindow, DepartureWindow: DefaultDepartureWindow}
}

func (p Policy) window(t model.GateType) time.Duration {
	if t == model.TypeDeparture {
		return p.DepartureWindow
	}
	return p.ArrivalWindow
}

// base returns the stop time without manual extensions. ok is false when the
// gate has no timer: it is not green or has no monitor_start.
func (p Policy) base(g *model.Gate) (stop time.Time, ok bool) {
	if g.Status != model.StatusGreen || g.MonitorStart == nil {
		return time.Time{}, false
	}
	return g.MonitorStart.Add(p.window(g.Type)), true
}

// StopTime returns when g's countdown reaches zero, including the extensions
// granted during the current session.
func (p Policy) StopTime(g *model.Gate) (time.Time, bool) {
	b, ok := p.base(g)
	if !ok {
		return time.Time{}, false
	}
	return b.Add(minutes(g.SessionExtraMinutes())), true
}

// Remaining returns whole seconds left until stop, rounded, never negative.
func Remaining(stop, now time.Time) int {
	secs := math.Round(stop.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
