package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/lifecycle"
	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// Event topic constants
const (
	TopicGateCreated     = "gates.gate.created"
	TopicGateClaimed     = "gates.gate.claimed"
	TopicGateReleased    = "gates.gate.released"
	TopicGateReset       = "gates.gate.reset"
	TopicAllReset        = "gates.all.reset"
	TopicMonitorStarted  = "gates.monitor.started"
	TopicMonitorSwitched = "gates.monitor.switched"
	TopicMonitorFinished = "gates.monitor.finished"
	TopicTimerExtended   = "gates.timer.extended"
	TopicTimerExpired    = "gates.timer.expired"
	TopicTimersTicked    = "gates.timers.ticked"
	TopicGuardIdle       = "gates.guard.idle"

	// TopicAll matches every gate event.
	TopicAll = "gates.>"
)

// TopicFor returns the topic published after a successful action.
func TopicFor(a lifecycle.Action) string {
	switch a {
	case lifecycle.ActionClaim:
		return TopicGateClaimed
	case lifecycle.ActionStartMonitor:
		return TopicMonitorStarted
	case lifecycle.ActionSwitchToDeparture:
		return TopicMonitorSwitched
	case lifecycle.ActionMarkFinished:
		return TopicMonitorFinished
	case lifecycle.ActionRelease:
		return TopicGateReleased
	case lifecycle.ActionExtend:
		return TopicTimerExtended
	case lifecycle.ActionTimerExpiry:
		return TopicTimerExpired
	case lifecycle.ActionReset:
		return TopicGateReset
	}
	return "gates.gate.unknown"
}

// Event types

// GateChanged carries the gate as written by an action.
type GateChanged struct {
	Gate   *model.Gate `json:"gate"`
	Action string      `json:"action"`
	Actor  string      `json:"actor,omitempty"`
}

type GatesReset struct {
	Count int    `json:"count"`
	Actor string `json:"actor,omitempty"`
}

type TimersTicked struct {
	Timers map[string]model.TimerView `json:"timers"`
}

type GuardIdle struct {
	Guard    string    `json:"guard"`
	LastSeen time.Time `json:"last_seen"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
