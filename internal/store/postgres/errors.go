package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// classify marks errors that mean the database never acknowledged the
// operation with model.ErrStoreUnavailable. Everything else passes through.
func classify(err error) error {
	if err == nil || errors.Is(err, model.ErrStoreUnavailable) {
		return err
	}
	if unavailable(err) {
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	return err
}

// classified is classify for calls that also return a value.
func classified[T any](v T, err error) (T, error) {
	return v, classify(err)
}

func unavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exception. 57P01-03: server shutting down.
		return pqErr.Code.Class() == "08" ||
			pqErr.Code == "57P01" || pqErr.Code == "57P02" || pqErr.Code == "57P03"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation"
}
