package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/store"
)

var t0 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, gates ...*model.Gate) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	s := New(clock)
	t.Cleanup(func() { s.Close() })
	for _, g := range gates {
		if err := s.CreateGate(context.Background(), g); err != nil {
			t.Fatalf("CreateGate: %v", err)
		}
	}
	return s, clock
}

func grayGate(id, label string) *model.Gate {
	return &model.Gate{ID: id, Label: label, Type: model.TypeArrival, Status: model.StatusGray, CreatedAt: t0, UpdatedAt: t0}
}

func TestCreateGate_Duplicate(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A1"))
	if err := s.CreateGate(context.Background(), grayGate("gt-1", "A1")); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestGetGate_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.GetGate(context.Background(), "gt-none"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetGate_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A1"))
	g, _ := s.GetGate(context.Background(), "gt-1")
	g.Status = model.StatusRed

	again, _ := s.GetGate(context.Background(), "gt-1")
	if again.Status != model.StatusGray {
		t.Errorf("store state leaked through returned pointer: %q", again.Status)
	}
}

func TestUpdateGate_StampsWithStoreClock(t *testing.T) {
	s, clock := newTestStore(t, grayGate("gt-1", "A1"))
	clock.Advance(90 * time.Second)

	g, err := s.UpdateGate(context.Background(), "gt-1", model.GateUpdate{
		Status:       model.Ptr(model.StatusGreen),
		MonitorStart: model.StampNow,
		History:      &model.HistoryEntry{Actor: "Guard 1", Event: "Monitoring started by Guard 1"},
	})
	if err != nil {
		t.Fatalf("UpdateGate: %v", err)
	}
	want := t0.Add(90 * time.Second)
	if g.MonitorStart == nil || !g.MonitorStart.Equal(want) {
		t.Errorf("monitor_start: got %v, want %v", g.MonitorStart, want)
	}
	if len(g.History) != 1 || !g.History[0].Timestamp.Equal(want) || g.History[0].ID != 1 {
		t.Errorf("history: got %+v", g.History)
	}
}

func TestAtomicUpdate_ExactlyOneWinner(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A12"))

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		guard := "Guard " + string(rune('A'+i))
		go func() {
			_, err := s.AtomicUpdate(context.Background(), "gt-1", func(g *model.Gate) (*model.GateUpdate, error) {
				if g.Claimed() {
					return nil, &model.AlreadyClaimedError{GateID: g.ID, Holder: g.ResponsibleGuard}
				}
				return &model.GateUpdate{Status: model.Ptr(model.StatusBlue), ResponsibleGuard: model.Ptr(guard)}, nil
			})
			errs <- err
		}()
	}

	wins := 0
	for i := 0; i < n; i++ {
		err := <-errs
		var ac *model.AlreadyClaimedError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &ac):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners: got %d, want 1", wins)
	}
}

func TestIncrementExtraTime(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A1"))
	for i, want := range []int{5, 10, 15} {
		got, err := s.IncrementExtraTime(context.Background(), "gt-1", 5)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if got != want {
			t.Errorf("increment %d: got %d, want %d", i, got, want)
		}
	}
}

func TestResetAll(t *testing.T) {
	sched := t0.Add(time.Hour)
	busy := grayGate("gt-2", "A2")
	busy.Status = model.StatusGreen
	busy.ResponsibleGuard = "Guard 1"
	busy.MonitorStart = &t0
	busy.ScheduledTime = &sched

	s, _ := newTestStore(t, grayGate("gt-1", "A1"), busy)
	n, err := s.ResetAll(context.Background(), "ops")
	if err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if n != 2 {
		t.Errorf("count: got %d, want 2", n)
	}

	g, _ := s.GetGate(context.Background(), "gt-2")
	if g.Status != model.StatusGray || g.Claimed() || g.MonitorStart != nil {
		t.Errorf("gate not reset: %+v", g)
	}
	if g.ScheduledTime == nil || !g.ScheduledTime.Equal(sched) {
		t.Errorf("scheduled_time lost: %v", g.ScheduledTime)
	}
	if len(g.History) != 1 || g.History[0].Event != "Gate reset by ops" {
		t.Errorf("history: got %+v", g.History)
	}

	untouched, _ := s.GetGate(context.Background(), "gt-1")
	if len(untouched.History) != 0 {
		t.Errorf("idle gate got history: %+v", untouched.History)
	}
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A1"))
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateGate(ctx, grayGate("gt-2", "A2")); err != nil {
			return err
		}
		if _, err := tx.IncrementExtraTime(ctx, "gt-1", 5); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, "gt-1", &model.HistoryEntry{Actor: "Guard 1", Event: "+5 minutes added by Guard 1"}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected errAbort, got %v", err)
	}

	if _, err := s.GetGate(ctx, "gt-2"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("gate created inside a failed transaction survived: %v", err)
	}
	g, _ := s.GetGate(ctx, "gt-1")
	if g.ExtraTimeMinutes != 0 || len(g.History) != 0 {
		t.Errorf("gt-1 changed: extra=%d history=%+v", g.ExtraTimeMinutes, g.History)
	}

	// History ids continue from before the failed transaction.
	if err := s.AppendHistory(ctx, "gt-1", &model.HistoryEntry{Event: "x"}); err != nil {
		t.Fatal(err)
	}
	g, _ = s.GetGate(ctx, "gt-1")
	if g.History[0].ID != 1 {
		t.Errorf("history id: got %d, want 1", g.History[0].ID)
	}
}

func TestRunInTransaction_Commits(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		for _, g := range []*model.Gate{grayGate("gt-1", "A1"), grayGate("gt-2", "A2")} {
			if err := tx.CreateGate(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	gates, _ := s.ListGates(ctx)
	if len(gates) != 2 {
		t.Errorf("gates: got %d, want 2", len(gates))
	}
}

func TestResetAll_MovesExtensionBaseline(t *testing.T) {
	busy := grayGate("gt-1", "A1")
	busy.Status = model.StatusRed
	busy.ExtraTimeMinutes = 10
	busy.ExtraAtStart = 5
	s, _ := newTestStore(t, busy)

	if _, err := s.ResetAll(context.Background(), "ops"); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	g, _ := s.GetGate(context.Background(), "gt-1")
	if g.ExtraAtStart != 10 || g.SessionExtraMinutes() != 0 {
		t.Errorf("extension baseline: got extra=%d at_start=%d", g.ExtraTimeMinutes, g.ExtraAtStart)
	}
}

func TestSubscribe_PushesFullCollection(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A1"))

	pushes := make(chan []*model.Gate, 8)
	cancel, err := s.Subscribe(context.Background(), func(gates []*model.Gate) { pushes <- gates })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	first := recv(t, pushes)
	if len(first) != 1 {
		t.Fatalf("initial push: got %d gates, want 1", len(first))
	}

	if err := s.CreateGate(context.Background(), grayGate("gt-2", "A2")); err != nil {
		t.Fatal(err)
	}
	// Pushes may coalesce; wait until one shows both gates.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case gates := <-pushes:
			if len(gates) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("never saw a push with both gates")
		}
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	s, _ := newTestStore(t, grayGate("gt-1", "A1"))
	pushes := make(chan []*model.Gate, 8)
	cancel, _ := s.Subscribe(context.Background(), func(gates []*model.Gate) { pushes <- gates })
	recv(t, pushes)
	cancel()

	_, _ = s.UpdateGate(context.Background(), "gt-1", model.GateUpdate{Screen: model.Ptr("S1")})
	select {
	case <-pushes:
		t.Fatal("push delivered after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func recv(t *testing.T, ch <-chan []*model.Gate) []*model.Gate {
	t.Helper()
	select {
	case g := <-ch:
		return g
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return nil
	}
}
