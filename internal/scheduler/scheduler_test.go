package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dexpilot/internal/domain"
)

type countingRunner struct {
	mu     sync.Mutex
	tokens []string
	delay  time.Duration
}

func (r *countingRunner) RunCycle(ctx context.Context, token string) domain.ExecutionOutcome {
	r.mu.Lock()
	r.tokens = append(r.tokens, token)
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(r.delay):
		}
	}
	return domain.ExecutionOutcome{Status: domain.OutcomeRejected}
}

func (r *countingRunner) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}

type countingResetter struct {
	calls atomic.Int32
}

func (r *countingResetter) ResetDay(context.Context) error {
	r.calls.Add(1)
	return nil
}

func TestRun_SweepsWatchlistInOrder(t *testing.T) {
	runner := &countingRunner{}
	s := New(Options{
		Runner:    runner,
		Watchlist: []string{"WETH", "SOL"},
		Interval:  time.Hour, // only the immediate sweep fires
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(runner.seen()) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	seen := runner.seen()
	if len(seen) != 2 || seen[0] != "WETH" || seen[1] != "SOL" {
		t.Errorf("tokens = %v, want [WETH SOL]", seen)
	}

	_, _, sweeps := s.Status()
	if sweeps != 1 {
		t.Errorf("sweeps = %d, want 1", sweeps)
	}
}

func TestSweep_SkipsWhileRunning(t *testing.T) {
	runner := &countingRunner{delay: 200 * time.Millisecond}
	s := New(Options{
		Runner:    runner,
		Watchlist: []string{"WETH"},
		Interval:  time.Hour,
	})

	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.sweep(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	go func() {
		defer wg.Done()
		s.sweep(ctx) // must be dropped, not queued
	}()
	wg.Wait()

	if n := len(runner.seen()); n != 1 {
		t.Errorf("cycles = %d, want 1 (second tick dropped)", n)
	}
}

func TestRegisterReset_InvalidSpec(t *testing.T) {
	s := New(Options{
		Runner:    &countingRunner{},
		Resetter:  &countingResetter{},
		Watchlist: []string{"WETH"},
		ResetSpec: "not a cron spec",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRegisterReset_ValidSpecRegisters(t *testing.T) {
	resetter := &countingResetter{}
	s := New(Options{
		Runner:    &countingRunner{},
		Resetter:  resetter,
		Watchlist: nil,
		ResetSpec: "0 0 * * *",
		Interval:  time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if len(s.cron.Entries()) != 1 {
		t.Errorf("cron entries = %d, want 1", len(s.cron.Entries()))
	}
}
