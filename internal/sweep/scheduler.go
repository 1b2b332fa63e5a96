package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/matsen/reflink/internal/logger"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another reflink run is in progress")

// AcquireLock takes the exclusive run lock at path without blocking.
// The returned func releases it.
func AcquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrRunInProgress, path)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Scheduler runs a full sweep on a fixed interval. Runs never overlap, even
// across processes sharing the lock file.
type Scheduler struct {
	sweeper  *Sweeper
	lockPath string
	interval time.Duration
	log      *logger.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(sweeper *Sweeper, lockPath string, interval time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{sweeper: sweeper, lockPath: lockPath, interval: interval, log: log}
}

// RunOnce performs one locked sweep. It returns ErrRunInProgress without
// sweeping when the lock is held elsewhere.
func (s *Scheduler) RunOnce(ctx context.Context) (*Summary, error) {
	release, err := AcquireLock(s.lockPath)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.sweeper.RunAll(ctx)
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// A tick that finds the lock held is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.interval.String(), "lock", s.lockPath)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.log.Info("skipping sweep, previous run still in progress")
	case ctx.Err() != nil:
	default:
		s.log.Error("sweep failed", "error", err)
	}
}
