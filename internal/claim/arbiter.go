// Package claim assigns gates to guards. A claim is the one gate operation
// that must be decided against locked, current state: of any number of
// concurrent claims on an unheld gate, exactly one succeeds.
package claim

import (
	"context"

	"github.com/alfredjeanlab/gatewatch/internal/lifecycle"
	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/store"
)

// Arbiter runs claims as atomic read-modify-writes against a store.
type Arbiter struct {
	store store.Store
}

// NewArbiter returns an Arbiter backed by s.
func NewArbiter(s store.Store) *Arbiter {
	return &Arbiter{store: s}
}

// Claim makes guard the responsible guard of the gate and moves it to blue.
// If another guard already holds the gate the error is a
// *model.AlreadyClaimedError naming that guard. Store errors are returned
// unchanged.
func (a *Arbiter) Claim(ctx context.Context, gateID, guard string) (*model.Gate, error) {
	if guard == "" {
		return nil, model.ErrActorRequired
	}
	g, err := a.store.AtomicUpdate(ctx, gateID, func(current *model.Gate) (*model.GateUpdate, error) {
		d, err := lifecycle.Decide(current, lifecycle.Request{Action: lifecycle.ActionClaim, Actor: guard})
		if err != nil {
			return nil, err
		}
		return &d.Update, nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
