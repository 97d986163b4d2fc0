package poller

import (
	"context"
	"errors"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"topomap/internal/snapshot"
)

const (
	defaultInterval = 10 * time.Minute
	defaultWorkers  = 4
)

// Source produces one device snapshot per poll.
type Source interface {
	Poll(ctx context.Context, target Target) (*snapshot.Snapshot, error)
}

// Reconciler consumes one snapshot per successfully polled device.
type Reconciler interface {
	Reconcile(ctx context.Context, snap *snapshot.Snapshot, dnsEnabled bool) error
}

// RunnerConfig wires the polling scheduler.
type RunnerConfig struct {
	Poller     Source
	Reconciler Reconciler
	Targets    []Target
	Interval   time.Duration
	Workers    int
	DNS        bool
	Clock      clockwork.Clock
	Logger     zerolog.Logger
}

// Validate applies defaults and rejects missing collaborators.
func (c *RunnerConfig) Validate() error {
	if c.Poller == nil {
		return errors.New("poller is required")
	}
	if c.Reconciler == nil {
		return errors.New("reconciler is required")
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Runner polls every enabled target each cycle, reconciling devices
// concurrently on a bounded worker pool. One device's failure never affects
// another's in-flight pipeline.
type Runner struct {
	cfg  RunnerConfig
	pool pond.Pool
}

// NewRunner builds a Runner from a validated config.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:  cfg,
		pool: pond.NewPool(cfg.Workers),
	}, nil
}

// Run loops polling cycles until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		r.cycle(ctx)
		select {
		case <-ctx.Done():
			r.pool.StopAndWait()
			return ctx.Err()
		case <-r.cfg.Clock.After(r.cfg.Interval):
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	group := r.pool.NewGroup()
	started := r.cfg.Clock.Now()

	for _, target := range r.cfg.Targets {
		if !target.ShouldPoll() {
			r.cfg.Logger.Info().Str("host", target.Host).Msg("target disabled, skipping")
			continue
		}
		group.Submit(func() {
			if err := r.pollOne(ctx, target); err != nil {
				r.cfg.Logger.Error().Err(err).Str("host", target.Host).Msg("poll failed")
			}
		})
	}

	_ = group.Wait()
	r.cfg.Logger.Info().
		Dur("elapsed", r.cfg.Clock.Now().Sub(started)).
		Msg("polling cycle complete")
}

func (r *Runner) pollOne(ctx context.Context, target Target) error {
	snap, err := r.cfg.Poller.Poll(ctx, target)
	if err != nil {
		return err
	}
	return r.cfg.Reconciler.Reconcile(ctx, snap, r.cfg.DNS)
}
