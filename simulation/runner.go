package simulation

import (
	"context"
	"errors"
	"time"

	. "vacuum/grid_world"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
)

// ErrRunnerStopped is returned by requests made after the runner has exited.
var ErrRunnerStopped = errors.New("simulation runner stopped")

type request struct {
	fn    func(*Engine) error
	reply chan error
}

// Runner hosts the engine and its clock on a single goroutine. Ticks and host
// requests are serialized through Run's select loop, so every edit or control
// lands between two ticks and nothing else ever touches the engine.
type Runner struct {
	engine    *Engine
	clock     *Clock
	period    time.Duration
	requests  chan request
	snapshots chan Snapshot
	done      chan struct{}
	log       zerolog.Logger
}

// NewRunner returns a runner ticking @engine every @period.
func NewRunner(
	engine *Engine,
	tp TimeProvider,
	period time.Duration,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		engine:    engine,
		clock:     NewClock(engine, tp),
		period:    period,
		requests:  make(chan request),
		snapshots: make(chan Snapshot, 1),
		done:      make(chan struct{}),
		log:       logger,
	}
}

// Snapshots returns the published snapshots. Only the latest is kept; a reader
// that falls behind skips intermediate snapshots. Closed when Run returns.
func (r *Runner) Snapshots() <-chan Snapshot {
	return r.snapshots
}

// Run ticks until @ctx is cancelled. It must be called exactly once.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.snapshots)
	defer close(r.done)

	r.log.Info().Dur("period", r.period).Msg("simulation running")
	r.clock.Rebase()
	r.publish(r.engine.Snapshot())

	ticker := channerics.NewTicker(ctx.Done(), r.period)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("simulation shut down")
			return nil
		case req := <-r.requests:
			req.reply <- req.fn(r.engine)
			snap := r.engine.Snapshot()
			snap.Tick = r.clock.ticks
			r.publish(snap)
		case <-ticker:
			r.publish(r.clock.Tick())
		}
	}
}

// publish replaces any unread snapshot with @snap. Run is the only sender, so
// the drain-then-send never blocks.
func (r *Runner) publish(snap Snapshot) {
	select {
	case r.snapshots <- snap:
		return
	default:
	}

	select {
	case <-r.snapshots:
	default:
	}
	r.snapshots <- snap
}

// Do runs @fn on the runner's goroutine between two ticks and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Engine) error) error {
	req := request{fn: fn, reply: make(chan error, 1)}

	select {
	case r.requests <- req:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyEdit submits a grid edit.
func (r *Runner) ApplyEdit(ctx context.Context, cell Cell, mode EditMode) error {
	return r.Do(ctx, func(e *Engine) error {
		return e.ApplyEdit(cell, mode)
	})
}

// Control submits a run control.
func (r *Runner) Control(ctx context.Context, ctl Control) error {
	return r.Do(ctx, func(e *Engine) error {
		return e.Control(ctl)
	})
}

// Snapshot fetches the current state directly from the runner.
func (r *Runner) Snapshot(ctx context.Context) (snap Snapshot, err error) {
	err = r.Do(ctx, func(e *Engine) error {
		snap = e.Snapshot()
		snap.Tick = r.clock.ticks
		return nil
	})
	return
}
