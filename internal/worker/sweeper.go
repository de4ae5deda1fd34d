package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"echo.app/relay/common/logger"
	"echo.app/relay/internal/lock"
)

const sweepLockKey = "echo:lock:webhook-sweep"

type SweeperConfig struct {
	// Schedule is a robfig/cron spec, e.g. "@every 1m".
	Schedule   string
	StaleAfter time.Duration
	LockTTL    time.Duration
}

// SweepScheduler runs the webhook retry sweep on a cron schedule. The Redis
// lock keeps concurrent worker instances from sweeping at the same time.
type SweepScheduler struct {
	sweeper Sweeper
	locker  Locker
	cfg     SweeperConfig
	logger  *slog.Logger
	cron    *cron.Cron

	mu  sync.Mutex
	ctx context.Context
}

func NewSweepScheduler(sweeper Sweeper, locker Locker, cfg SweeperConfig, log *slog.Logger) (*SweepScheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 55 * time.Second
	}

	s := &SweepScheduler{
		sweeper: sweeper,
		locker:  locker,
		cfg:     cfg,
		logger:  log,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins scheduling; sweeps run with ctx until Stop.
func (s *SweepScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "echo.worker.sweeper"})
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "sweep scheduler started", "schedule", s.cfg.Schedule)
}

// Stop stops scheduling and waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *SweepScheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "webhook sweep failed", "error", err)
	}
}

// RunOnce reclaims events stuck in sending, then retries due events, while
// holding the sweep lock. Losing the lock race is not an error.
func (s *SweepScheduler) RunOnce(ctx context.Context) error {
	sc := logger.StartSpan(ctx, "worker.webhook_sweep")
	defer sc.End()
	ctx = sc.Context()

	err := s.locker.WithLock(ctx, sweepLockKey, s.cfg.LockTTL, func(ctx context.Context) error {
		if _, err := s.sweeper.ReclaimStale(ctx, s.cfg.StaleAfter); err != nil {
			s.logger.ErrorContext(ctx, "reclaiming stale webhook events failed", "error", err)
		}
		_, err := s.sweeper.ProcessFailedWebhooks(ctx)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.DebugContext(ctx, "sweep skipped: another worker holds the lock")
		return nil
	}
	if err != nil {
		sc.RecordError(err)
	}
	return err
}
