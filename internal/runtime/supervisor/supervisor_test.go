package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRestartRecoversPanics(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})

	s.GoRestart("loop", func(ctx context.Context) error {
		n := runs.Add(1)
		if n < 3 {
			panic("boom")
		}
		close(done)
		<-ctx.Done()
		return ctx.Err()
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop not restarted, runs = %d", runs.Load())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := s.Counters(); got.Panics != 2 || got.Restarts != 2 {
		t.Fatalf("counters = %+v, want 2 panics and 2 restarts", got)
	}
}

func TestGoRestartGivesUp(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	boom := errors.New("boom")
	s.GoRestart("flaky", func(ctx context.Context) error { return boom },
		WithRestartBackoff(time.Millisecond, time.Millisecond),
		WithMaxRestarts(2),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}
}

func TestGoCleanExitStops(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("once", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}
}
