// Package client provides the interface gw commands use to reach the gate
// server and an HTTP/JSON implementation of it.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/presence"
)

// GateClient is the interface that all gw CLI commands use to communicate
// with the gate server.
type GateClient interface {
	// Board
	CreateGates(ctx context.Context, gates []*CreateGateRequest) ([]*GateView, error)
	ListGates(ctx context.Context, viewer string) ([]*GateView, error)
	Groups(ctx context.Context) ([]*GroupView, error)
	GetGate(ctx context.Context, id string) (*GateView, error)
	History(ctx context.Context, id string) ([]*model.HistoryEntry, error)

	// Guard actions
	Claim(ctx context.Context, id, guard string) (*GateView, error)
	StartMonitor(ctx context.Context, id, guard string) (*GateView, error)
	SwitchToDeparture(ctx context.Context, id, guard string) (*GateView, error)
	MarkFinished(ctx context.Context, id, guard string) (*GateView, error)
	Release(ctx context.Context, id, guard string) (*GateView, error)
	Extend(ctx context.Context, id, guard string, minutes int) (*GateView, error)

	// Administration
	Reset(ctx context.Context, id, actor string) (*GateView, error)
	ResetAll(ctx context.Context, actor string) (int, error)

	// Roster
	Guards(ctx context.Context, staleThreshold time.Duration) ([]presence.Entry, error)
	Heartbeat(ctx context.Context, guard string) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateGateRequest holds parameters for provisioning a gate.
type CreateGateRequest struct {
	Label         string     `json:"gate_id"`
	Type          string     `json:"type,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	Screen        string     `json:"screen,omitempty"`
}

// GateView is a gate as returned by the server: the record plus its countdown.
type GateView struct {
	model.Gate
	Timer model.TimerView `json:"timer"`
}

// GroupView is one lettered block of the board.
type GroupView struct {
	Key   string      `json:"key"`
	Gates []*GateView `json:"gates"`
}
