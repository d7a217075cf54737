// Package scheduler drives the decision loop: cycles on a fixed interval
// that never overlap, and a cron task that resets the daily risk ledger.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dexpilot/internal/domain"
)

// CycleRunner executes one decision cycle for a token.
type CycleRunner interface {
	RunCycle(ctx context.Context, token string) domain.ExecutionOutcome
}

// DayResetter rolls the risk ledger over to a fresh day.
type DayResetter interface {
	ResetDay(ctx context.Context) error
}

// Scheduler runs the watchlist on a fixed interval. A tick that arrives
// while the previous sweep is still in flight is skipped, never queued.
type Scheduler struct {
	runner    CycleRunner
	resetter  DayResetter
	watchlist []string
	interval  time.Duration
	resetSpec string

	cron *cron.Cron

	mu          sync.Mutex
	running     bool
	lastSweep   time.Time
	sweepsTotal int

	logger  *log.Logger
	verbose bool
}

// Options configures a Scheduler.
type Options struct {
	Runner    CycleRunner
	Resetter  DayResetter
	Watchlist []string
	Interval  time.Duration

	// ResetSpec is a standard 5-field cron expression evaluated in UTC.
	// Empty disables the scheduled reset; the risk manager still rolls
	// lazily on the first touch of a new day.
	ResetSpec string

	Logger  *log.Logger
	Verbose bool
}

// DefaultInterval is the pause between sweeps.
const DefaultInterval = 60 * time.Second

// New creates a scheduler.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:    opts.Runner,
		resetter:  opts.Resetter,
		watchlist: opts.Watchlist,
		interval:  interval,
		resetSpec: opts.ResetSpec,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		logger:    logger,
		verbose:   opts.Verbose,
	}
}

// Run sweeps the watchlist immediately, then on every tick until ctx is
// cancelled. It blocks until shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.registerReset(ctx); err != nil {
		return err
	}
	s.cron.Start()
	defer s.cron.Stop()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Status reports the loop's progress for the /status endpoint.
func (s *Scheduler) Status() (running bool, lastSweep time.Time, sweeps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastSweep, s.sweepsTotal
}

// sweep runs one cycle per watchlist token, sequentially. Cycles never
// overlap: a tick arriving mid-sweep is dropped.
func (s *Scheduler) sweep(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Println("[scheduler] sweep already running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastSweep = time.Now()
		s.sweepsTotal++
		s.mu.Unlock()
	}()

	for _, token := range s.watchlist {
		if ctx.Err() != nil {
			return
		}
		outcome := s.runner.RunCycle(ctx, token)
		s.log("%s: %s", token, outcome.Status)
	}
}

func (s *Scheduler) registerReset(ctx context.Context) error {
	if s.resetSpec == "" || s.resetter == nil {
		return nil
	}
	_, err := s.cron.AddFunc(s.resetSpec, func() {
		if err := s.resetter.ResetDay(ctx); err != nil {
			s.logger.Printf("[scheduler] daily reset: %v", err)
			return
		}
		s.logger.Println("[scheduler] daily risk ledger reset")
	})
	if err != nil {
		return fmt.Errorf("register daily reset %q: %w", s.resetSpec, err)
	}
	return nil
}

func (s *Scheduler) log(format string, args ...interface{}) {
	if s.verbose {
		s.logger.Printf("[scheduler] "+format, args...)
	}
}
