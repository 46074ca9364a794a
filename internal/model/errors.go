package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation targets a gate the store does not hold.
	ErrNotFound = errors.New("gate not found")

	// ErrStoreUnavailable marks a mutation that was not acknowledged by the store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrActorRequired is returned when a guard action arrives without a guard.
	ErrActorRequired = errors.New("guard is required")
)

// IllegalTransitionError rejects an action that is not valid from the gate's
// current state. Nothing is written when it is returned.
type IllegalTransitionError struct {
	GateID string
	From   Status
	Action string
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s gate %s from status %s", e.Action, e.GateID, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AlreadyClaimedError is returned to the losing side of a claim. Holder is the
// guard that currently has the gate.
type AlreadyClaimedError struct {
	GateID string
	Holder string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("gate %s is already claimed by %s", e.GateID, e.Holder)
}
