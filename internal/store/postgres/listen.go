package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/gatewatch/internal/store"
)

// notifyChannel is the LISTEN channel fed by the gates_changed triggers.
const notifyChannel = "gates_changed"

// listenPingInterval is how long the listener may sit idle before it pings
// the server to detect a dead connection.
const listenPingInterval = 90 * time.Second

// Subscribe listens for gate changes on a dedicated connection and pushes the
// full gate list to fn after each notification. Bursts of notifications that
// arrive while fn is running collapse into one refresh.
func (s *PostgresStore) Subscribe(ctx context.Context, fn store.SnapshotFunc) (func(), error) {
	listener := pq.NewListener(s.databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("gate listener", "event", ev, "err", err)
			}
		})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, classify(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.listen(ctx, listener.Notify, listener.Ping, fn)
	}()

	return func() {
		cancel()
		<-done
		listener.Close()
	}, nil
}

// listen drives the refresh loop. A nil notification means the listener
// reconnected and may have missed events, so it also triggers a refresh.
func (s *PostgresStore) listen(ctx context.Context, notify <-chan *pq.Notification, ping func() error, fn store.SnapshotFunc) {
	s.refresh(ctx, fn)

	idle := time.NewTimer(listenPingInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			drain(notify)
			s.refresh(ctx, fn)
		case <-idle.C:
			if err := ping(); err != nil {
				slog.Warn("gate listener ping failed", "err", err)
			}
		}
		idle.Reset(listenPingInterval)
	}
}

func (s *PostgresStore) refresh(ctx context.Context, fn store.SnapshotFunc) {
	gates, err := s.ListGates(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("gate listener refresh failed", "err", err)
		}
		return
	}
	fn(gates)
}

// drain discards notifications already queued.
func drain(ch <-chan *pq.Notification) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
