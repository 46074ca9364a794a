// Package lifecycle decides gate state transitions. It performs no I/O: the
// caller reads the gate, asks Decide what to write, and writes it.
package lifecycle

import (
	"fmt"
	"slices"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// SystemActor is recorded as the actor of automatic transitions.
const SystemActor = "system"

// Action is one of the operations a gate can be asked to perform.
type Action int

const (
	ActionClaim Action = iota + 1
	ActionStartMonitor
	ActionSwitchToDeparture
	ActionMarkFinished
	ActionRelease
	ActionExtend
	ActionTimerExpiry
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionClaim:
		return "claim"
	case ActionStartMonitor:
		return "start-monitor"
	case ActionSwitchToDeparture:
		return "switch-to-departure"
	case ActionMarkFinished:
		return "mark-finished"
	case ActionRelease:
		return "release"
	case ActionExtend:
		return "extend"
	case ActionTimerExpiry:
		return "timer-expiry"
	case ActionReset:
		return "reset"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Request describes an attempted action.
type Request struct {
	Action Action
	Actor  string

	// Remaining is the countdown in seconds, only read for ActionTimerExpiry.
	Remaining int

	// Minutes is the extension amount, only read for ActionExtend.
	Minutes int
}

// Decision is the outcome of a legal action. When NoOp is set the gate is
// already in the requested state and nothing should be written.
type Decision struct {
	Update model.GateUpdate
	NoOp   bool
}

// Decide checks req against g and returns the update to apply. Rejections are
// *model.IllegalTransitionError, *model.AlreadyClaimedError or
// model.ErrActorRequired; g is never modified.
func Decide(g *model.Gate, req Request) (Decision, error) {
	switch req.Action {
	case ActionClaim:
		return decideClaim(g, req)
	case ActionStartMonitor:
		return decideStartMonitor(g, req)
	case ActionSwitchToDeparture:
		return decideSwitchToDeparture(g, req)
	case ActionMarkFinished:
		return decideMarkFinished(g, req)
	case ActionRelease:
		return decideRelease(g, req)
	case ActionExtend:
		return decideExtend(g, req)
	case ActionTimerExpiry:
		return decideTimerExpiry(g, req)
	case ActionReset:
		return decideReset(g, req)
	}
	return Decision{}, illegal(g, req, "unknown action")
}

func decideClaim(g *model.Gate, req Request) (Decision, error) {
	if req.Actor == "" {
		return Decision{}, model.ErrActorRequired
	}
	if !slices.Contains([]model.Status{model.StatusGray, model.StatusBlue}, g.Status) {
		return Decision{}, illegal(g, req, "")
	}
	if g.Claimed() {
		return Decision{}, &model.AlreadyClaimedError{GateID: g.ID, Holder: g.ResponsibleGuard}
	}
	return Decision{Update: model.GateUpdate{
		Status:           model.Ptr(model.StatusBlue),
		ResponsibleGuard: model.Ptr(req.Actor),
		History:          entry(req.Actor, "Gate claimed by %s", req.Actor),
	}}, nil
}

func decideStartMonitor(g *model.Gate, req Request) (Decision, error) {
	if err := requireGuard(g, req, model.StatusGray, model.StatusBlue); err != nil {
		return Decision{}, err
	}
	return Decision{Update: model.GateUpdate{
		Status:       model.Ptr(model.StatusGreen),
		MonitorStart: model.StampNow,
		History:      entry(req.Actor, "Monitoring started by %s", req.Actor),
	}}, nil
}

func decideSwitchToDeparture(g *model.Gate, req Request) (Decision, error) {
	if err := requireGuard(g, req, model.StatusYellow); err != nil {
		return Decision{}, err
	}
	return Decision{Update: model.GateUpdate{
		Status:       model.Ptr(model.StatusGreen),
		Type:         model.Ptr(model.TypeDeparture),
		MonitorStart: model.StampNow,
		History:      entry(req.Actor, "Switched to departure by %s", req.Actor),
	}}, nil
}

func decideMarkFinished(g *model.Gate, req Request) (Decision, error) {
	if err := requireGuard(g, req, model.StatusGreen, model.StatusYellow); err != nil {
		return Decision{}, err
	}
	return Decision{Update: model.GateUpdate{
		Status:           model.Ptr(model.StatusRed),
		MonitorStop:      model.StampNow,
		ResponsibleGuard: model.Ptr(""),
		History:          entry(req.Actor, "Monitoring finished by %s", req.Actor),
	}}, nil
}

func decideRelease(g *model.Gate, req Request) (Decision, error) {
	if req.Actor == "" {
		return Decision{}, model.ErrActorRequired
	}
	// Releasing a planned, unheld gate changes nothing and logs nothing.
	if g.Status == model.StatusGray && !g.Claimed() {
		return Decision{NoOp: true}, nil
	}
	if g.ResponsibleGuard != req.Actor {
		return Decision{}, illegal(g, req, notResponsible(g))
	}
	return Decision{Update: model.GateUpdate{
		Status:           model.Ptr(model.StatusGray),
		ResponsibleGuard: model.Ptr(""),
		History:          entry(req.Actor, "Gate released by %s", req.Actor),
	}}, nil
}

func decideExtend(g *model.Gate, req Request) (Decision, error) {
	if err := requireGuard(g, req, model.StatusGreen); err != nil {
		return Decision{}, err
	}
	if req.Minutes <= 0 {
		return Decision{}, illegal(g, req, fmt.Sprintf("extension must be positive, got %d minutes", req.Minutes))
	}
	return Decision{Update: model.GateUpdate{
		History: entry(req.Actor, "+%d minutes added by %s", req.Minutes, req.Actor),
	}}, nil
}

func decideTimerExpiry(g *model.Gate, req Request) (Decision, error) {
	if g.Status != model.StatusGreen {
		return Decision{}, illegal(g, req, "")
	}
	if g.Type != model.TypeArrival {
		return Decision{}, illegal(g, req, "departure timers do not expire automatically")
	}
	if req.Remaining != 0 {
		return Decision{}, illegal(g, req, fmt.Sprintf("%d seconds remaining", req.Remaining))
	}
	return Decision{Update: model.GateUpdate{
		Status:  model.Ptr(model.StatusYellow),
		History: entry(SystemActor, "Automatic switch to YELLOW status"),
	}}, nil
}

func decideReset(g *model.Gate, req Request) (Decision, error) {
	if g.Status == model.StatusGray && !g.Claimed() &&
		g.MonitorStart == nil && g.MonitorStop == nil && g.Screen == "" {
		return Decision{NoOp: true}, nil
	}
	actor := req.Actor
	if actor == "" {
		actor = "operator"
	}
	return Decision{Update: model.GateUpdate{
		Status:           model.Ptr(model.StatusGray),
		ResponsibleGuard: model.Ptr(""),
		MonitorStart:     model.StampClear,
		MonitorStop:      model.StampClear,
		Screen:           model.Ptr(""),
		History:          entry(actor, "Gate reset by %s", actor),
	}}, nil
}

// requireGuard checks that g is in one of from and that the actor holds it.
func requireGuard(g *model.Gate, req Request, from ...model.Status) error {
	if req.Actor == "" {
		return model.ErrActorRequired
	}
	if !slices.Contains(from, g.Status) {
		return illegal(g, req, "")
	}
	if g.ResponsibleGuard != req.Actor {
		return illegal(g, req, notResponsible(g))
	}
	return nil
}

func notResponsible(g *model.Gate) string {
	if !g.Claimed() {
		return "gate is not claimed"
	}
	return "responsible guard is " + g.ResponsibleGuard
}

func illegal(g *model.Gate, req Request, reason string) error {
	return &model.IllegalTransitionError{
		GateID: g.ID,
		From:   g.Status,
		Action: req.Action.String(),
		Reason: reason,
	}
}

func entry(actor, format string, args ...any) *model.HistoryEntry {
	return &model.HistoryEntry{Actor: actor, Event: fmt.Sprintf(format, args...)}
}
