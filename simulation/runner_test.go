package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	. "vacuum/grid_world"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClock(t *testing.T) {
	Convey("When the clock is driven by a mock time source", t, func() {
		engine := newTestEngine(Cell{Row: 0, Col: 0}, ReplanEveryCell, ".....*")
		tp := NewMockTimeProvider(time.Unix(1000, 0))
		clock := NewClock(engine, tp)

		Convey("Ticks before start only count", func() {
			tp.Advance(time.Second)
			snap := clock.Tick()
			So(snap.Tick, ShouldEqual, uint64(1))
			So(snap.Mode, ShouldEqual, Idle)
			So(snap.Elapsed, ShouldEqual, time.Duration(0))
		})

		Convey("Elapsed time accrues only while running", func() {
			engine.Start()
			tp.Advance(100 * time.Millisecond)
			clock.Tick()
			tp.Advance(100 * time.Millisecond)
			snap := clock.Tick()
			So(snap.Elapsed, ShouldEqual, 200*time.Millisecond)
			So(snap.Agent.Moving, ShouldBeTrue)
			x := snap.Agent.X

			engine.Pause()
			tp.Advance(5 * time.Second)
			snap = clock.Tick()
			So(snap.Elapsed, ShouldEqual, 200*time.Millisecond)
			So(snap.Agent.X, ShouldEqual, x)

			Convey("Resuming does not replay the pause", func() {
				engine.Resume()
				tp.Advance(40 * time.Millisecond)
				snap = clock.Tick()
				So(snap.Elapsed, ShouldEqual, 240*time.Millisecond)
				So(snap.Agent.Moving, ShouldBeTrue)
				So(snap.Tick, ShouldEqual, uint64(4))
			})
		})

		Convey("Rebase drops the time since the last tick", func() {
			engine.Start()
			tp.Advance(time.Hour)
			clock.Rebase()
			tp.Advance(10 * time.Millisecond)
			So(clock.Tick().Elapsed, ShouldEqual, 10*time.Millisecond)
		})
	})
}

func startRunner(engine *Engine, period time.Duration) (*Runner, context.CancelFunc, chan error) {
	runner := NewRunner(engine, WallTimeProvider{}, period, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	exit := make(chan error, 1)
	go func() {
		exit <- runner.Run(ctx)
	}()
	return runner, cancel, exit
}

func TestRunner(t *testing.T) {
	Convey("When a runner hosts the engine", t, func() {
		engine := newTestEngine(Cell{Row: 0, Col: 0}, ReplanEveryCell, "..*")
		runner, cancel, exit := startRunner(engine, time.Millisecond)
		defer cancel()
		ctx := context.Background()

		Convey("It publishes an initial snapshot", func() {
			snap, ok := <-runner.Snapshots()
			So(ok, ShouldBeTrue)
			So(snap.Grid.Cols(), ShouldEqual, 3)
		})

		Convey("Edits are applied between ticks", func() {
			So(runner.ApplyEdit(ctx, Cell{Row: 0, Col: 1}, PaintDirt), ShouldBeNil)
			snap, err := runner.Snapshot(ctx)
			So(err, ShouldBeNil)
			So(snap.DirtRemaining, ShouldEqual, 2)

			err = runner.ApplyEdit(ctx, Cell{Row: 0, Col: 0}, PaintObstacle)
			So(errors.Is(err, ErrAgentCell), ShouldBeTrue)
		})

		Convey("A started run cleans the room and finishes", func() {
			So(runner.Control(ctx, ControlStart), ShouldBeNil)

			var snap Snapshot
			deadline := time.After(5 * time.Second)
		wait:
			for {
				select {
				case snap = <-runner.Snapshots():
					if snap.Mode == Finished {
						break wait
					}
				case <-deadline:
					break wait
				}
			}
			So(snap.Mode, ShouldEqual, Finished)
			So(snap.Cleaned, ShouldEqual, 1)
			So(snap.Tick, ShouldBeGreaterThan, uint64(0))
		})

		Convey("Unknown controls are reported", func() {
			err := runner.Control(ctx, Control("dance"))
			So(errors.Is(err, ErrUnknownControl), ShouldBeTrue)
		})

		Convey("Requests after shutdown fail", func() {
			cancel()
			So(<-exit, ShouldBeNil)

			err := runner.Control(ctx, ControlStart)
			So(err, ShouldEqual, ErrRunnerStopped)

			// The snapshot channel is closed once any pending snapshot is drained.
			for range runner.Snapshots() {
			}
		})
	})

	Convey("When the caller's context is cancelled", t, func() {
		engine := newTestEngine(Cell{Row: 0, Col: 0}, ReplanEveryCell, "..*")
		runner := NewRunner(engine, WallTimeProvider{}, time.Millisecond, zerolog.Nop())

		// The runner is never started, so only the caller's context can end the wait.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := runner.Control(ctx, ControlStart)
		So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
	})
}
