// Package archive periodically exports the gate board, history included, to
// durable destinations such as an S3 bucket.
package archive

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/gatewatch/internal/store"
)

// Destination is the interface for an archive target.
type Destination interface {
	// Write stores the JSONL snapshot for the given day, replacing any
	// earlier snapshot of the same day.
	Write(ctx context.Context, day time.Time, data []byte) error
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		clock:        clock,
		logger:       logger,
	}
}

// Start begins periodic archiving. It runs an initial export immediately,
// then on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.ArchiveOnce(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.ArchiveOnce(ctx)
		}
	}
}

// ArchiveOnce exports the board and writes it to every destination. Failures
// are logged; one failing destination does not stop the others.
func (s *Scheduler) ArchiveOnce(ctx context.Context) {
	now := s.clock.Now().UTC()

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s.store, now, &buf)
	if err != nil {
		s.logger.Error("archive export failed", "err", err)
		return
	}
	data := buf.Bytes()

	var failed int
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, now, data); err != nil {
			failed++
			s.logger.Error("archive destination write failed", "destination", i, "err", err)
		}
	}

	s.logger.Info("archive completed",
		"gates", n,
		"destinations", len(s.destinations),
		"failed", failed,
		"bytes", len(data))
}
