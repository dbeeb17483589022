package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartRunsImmediately(t *testing.T) {
	var calls atomic.Int32
	ran := make(chan struct{}, 1)

	s := New("@every 1h", 0, func(context.Context) error {
		calls.Add(1)
		ran <- struct{}{}
		return nil
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("startup pass did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one pass before the first tick, got %d", got)
	}
}

func TestTickSkippedWhileStartupPassRuns(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	var running, maxRunning, calls atomic.Int32
	s := New("@every 1s", 0, func(context.Context) error {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		for {
			current := maxRunning.Load()
			if n <= current || maxRunning.CompareAndSwap(current, n) {
				break
			}
		}
		time.Sleep(1500 * time.Millisecond)
		return nil
	}, zap.New(core))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := maxRunning.Load(); got != 1 {
		t.Fatalf("expected passes to never overlap, saw %d at once", got)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected only the startup pass to run, got %d", got)
	}
	if entries := observed.FilterMessage("skip").All(); len(entries) == 0 {
		t.Fatal("expected the overlapping tick to be logged as skipped")
	}
}

func TestPassHonoursTimeout(t *testing.T) {
	done := make(chan error, 1)

	s := New("@every 1h", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pass was not bounded by the timeout")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestFailedPassIsLogged(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)

	s := New("@every 1h", 0, func(context.Context) error {
		return errors.New("no feed sources configured")
	}, zap.New(core))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if entries := observed.FilterMessage("scheduled pass failed").All(); len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
}

func TestInvalidSpec(t *testing.T) {
	s := New("every tuesday", 0, func(context.Context) error { return nil }, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected invalid spec to fail")
	}
}
