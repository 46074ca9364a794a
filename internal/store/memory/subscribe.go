package memory

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/gatewatch/internal/store"
)

// subscriber delivers snapshots on its own goroutine. wake has capacity one,
// so changes made while a delivery is running coalesce into one more push.
type subscriber struct {
	wake chan struct{}
	quit chan struct{}
	once sync.Once
	done chan struct{}
}

func (sub *subscriber) stop() {
	sub.once.Do(func() { close(sub.quit) })
	<-sub.done
}

// Subscribe pushes the full collection to fn now and after every change.
func (s *Store) Subscribe(ctx context.Context, fn store.SnapshotFunc) (func(), error) {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	sub.wake <- struct{}{}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.quit:
				return
			case <-sub.wake:
				s.mu.Lock()
				gates := s.listLocked()
				s.mu.Unlock()
				fn(gates)
			}
		}
	}()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}, nil
}

// notifyLocked wakes every subscriber without blocking.
func (s *Store) notifyLocked() {
	for _, sub := range s.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}
