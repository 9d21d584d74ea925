package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

func TestSweep_TerminatesOnlyStaleSessions(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	f.join(t, 100)
	f.join(t, 200)
	f.join(t, 300)

	// Age two of the three sessions past the TTL.
	for _, userID := range []int64{100, 300} {
		session, err := f.store.Get(userID)
		if err != nil {
			t.Fatal(err)
		}
		session.CreatedAt = session.CreatedAt.Add(-6 * time.Minute)
		if err := f.store.Update(session); err != nil {
			t.Fatal(err)
		}
	}

	sweeper := NewExpirySweeper(f.store, f.svc, time.Minute, zerolog.Nop())

	if n := sweeper.Sweep(ctx); n != 2 {
		t.Errorf("terminated = %d, want 2", n)
	}
	if f.store.Len() != 1 {
		t.Errorf("remaining sessions = %d, want 1", f.store.Len())
	}
	if _, err := f.store.Get(200); err != nil {
		t.Error("fresh session was swept")
	}
	if len(f.admission.Denied) != 2 {
		t.Errorf("denied = %v", f.admission.Denied)
	}
}

func TestSweep_NoStaleSessionsIsNoop(t *testing.T) {
	f := newVerificationFixture(t)
	f.join(t, 100)

	sweeper := NewExpirySweeper(f.store, f.svc, time.Minute, zerolog.Nop())
	if n := sweeper.Sweep(context.Background()); n != 0 {
		t.Errorf("terminated = %d, want 0", n)
	}

	session, err := f.store.Get(100)
	if err != nil {
		t.Fatalf("fresh session gone: %v", err)
	}
	if session.State != domain.StateAwaitingInput {
		t.Errorf("state = %v", session.State)
	}
}

func TestSweeperRun_StopsOnCancel(t *testing.T) {
	f := newVerificationFixture(t)
	sweeper := NewExpirySweeper(f.store, f.svc, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
