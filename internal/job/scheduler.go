package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"drone-dispatch/internal/common"
)

// Locker guards a tick across replicas. A nil Locker runs every tick.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Scheduler runs registered jobs on their cron specs. Overlapping ticks of
// the same job are skipped and a panicking tick is recovered.
type Scheduler struct {
	cron    *cron.Cron
	clock   common.Clock
	locker  Locker
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(clock common.Clock, locker Locker, timeout time.Duration) *Scheduler {
	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		clock:   clock,
		locker:  locker,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) Register(jobs ...Job) error {
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.Spec, func() { s.RunOnce(s.ctx, j) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Spec, err)
		}
		slog.Info("job scheduled", slog.String("job", j.Name), slog.String("spec", j.Spec))
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new ticks and waits for running ones, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunOnce executes a single tick of j with the scheduler's lock and timeout.
func (s *Scheduler) RunOnce(parent context.Context, j Job) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, j.Name, s.timeout)
		switch {
		case err != nil:
			// Single-node deployments must keep ticking without redis.
			slog.WarnContext(ctx, "job lock unavailable, running unguarded",
				slog.String("job", j.Name),
				slog.String("error", err.Error()),
			)
		case !ok:
			slog.InfoContext(ctx, "job tick held elsewhere, skipping", slog.String("job", j.Name))
			return
		default:
			defer release()
		}
	}

	now := s.clock.Now()
	start := time.Now()
	slog.InfoContext(ctx, "job started", slog.String("job", j.Name))

	res, err := j.Run(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "job failed",
			slog.String("job", j.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.InfoContext(ctx, "job finished",
		slog.String("job", j.Name),
		slog.Int("candidates", res.Candidates),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Duration("took", time.Since(start)),
	)
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
