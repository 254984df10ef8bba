package terminal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"vacuum/grid_world"
	"vacuum/simulation"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

// engineSim serves requests straight from an engine, as a runner would between ticks.
type engineSim struct {
	mu     sync.Mutex
	engine *simulation.Engine
}

func (s *engineSim) ApplyEdit(_ context.Context, cell grid_world.Cell, mode simulation.EditMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ApplyEdit(cell, mode)
}

func (s *engineSim) Control(_ context.Context, ctl simulation.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Control(ctl)
}

func (s *engineSim) Snapshot(_ context.Context) (simulation.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot(), nil
}

func newTestHost() (*Host, *engineSim, tcell.SimulationScreen) {
	cfg := simulation.DefaultConfig()
	cfg.Layout = []string{
		"..*.",
		".#..",
		"....",
	}
	cfg.Home = &grid_world.Cell{Row: 0, Col: 0}
	cfg.Seed = 3
	grid, err := cfg.NewGrid()
	if err != nil {
		panic(err)
	}
	engine, err := simulation.NewEngine(cfg, grid, zerolog.Nop())
	if err != nil {
		panic(err)
	}

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		panic(err)
	}
	screen.SetSize(80, 24)

	sim := &engineSim{engine: engine}
	host := NewHost(screen, sim, nil, zerolog.Nop())
	snap, _ := sim.Snapshot(context.Background())
	host.last = &snap
	return host, sim, screen
}

func rowText(screen tcell.Screen, y int) string {
	width, _ := screen.Size()
	var sb strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		sb.WriteRune(r)
	}
	return sb.String()
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func click(cell grid_world.Cell) *tcell.EventMouse {
	return tcell.NewEventMouse(originX+cell.Col*cellWidth+1, originY+cell.Row, tcell.Button1, tcell.ModNone)
}

func TestKeys(t *testing.T) {
	Convey("When keys are pressed", t, func() {
		host, sim, screen := newTestHost()
		defer screen.Fini()
		ctx := context.Background()

		mode := func() simulation.RunMode {
			snap, _ := sim.Snapshot(ctx)
			return snap.Mode
		}

		quit, err := host.handleEvent(ctx, key('s'))
		So(quit, ShouldBeFalse)
		So(err, ShouldBeNil)
		So(mode(), ShouldEqual, simulation.Running)

		_, _ = host.handleEvent(ctx, key('p'))
		So(mode(), ShouldEqual, simulation.Paused)
		_, _ = host.handleEvent(ctx, key('p'))
		So(mode(), ShouldEqual, simulation.Running)

		_, _ = host.handleEvent(ctx, key('x'))
		So(mode(), ShouldEqual, simulation.Idle)

		_, _ = host.handleEvent(ctx, key('r'))
		snap, _ := sim.Snapshot(ctx)
		So(snap.Grid.Count(grid_world.Empty), ShouldEqual, 12)

		Convey("Number keys pick the brush", func() {
			_, _ = host.handleEvent(ctx, key('2'))
			So(host.brush, ShouldEqual, simulation.PaintObstacle)
			_, _ = host.handleEvent(ctx, key('3'))
			So(host.brush, ShouldEqual, simulation.Erase)
			_, _ = host.handleEvent(ctx, key('1'))
			So(host.brush, ShouldEqual, simulation.PaintDirt)
		})

		Convey("q and Esc quit", func() {
			quit, _ := host.handleEvent(ctx, key('q'))
			So(quit, ShouldBeTrue)
			quit, _ = host.handleEvent(ctx, tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
			So(quit, ShouldBeTrue)
		})
	})
}

func TestMouse(t *testing.T) {
	Convey("When the grid is clicked", t, func() {
		host, sim, screen := newTestHost()
		defer screen.Fini()
		ctx := context.Background()

		Convey("Screen positions map to cells", func() {
			cell, ok := host.cellAt(originX+2*cellWidth+1, originY+1)
			So(ok, ShouldBeTrue)
			So(cell, ShouldResemble, grid_world.Cell{Row: 1, Col: 2})

			_, ok = host.cellAt(originX+4*cellWidth, originY)
			So(ok, ShouldBeFalse)
			_, ok = host.cellAt(0, originY)
			So(ok, ShouldBeFalse)
			_, ok = host.cellAt(originX, 0)
			So(ok, ShouldBeFalse)
		})

		Convey("A click paints with the current brush", func() {
			_, _ = host.handleEvent(ctx, key('2'))
			_, err := host.handleEvent(ctx, click(grid_world.Cell{Row: 2, Col: 3}))
			So(err, ShouldBeNil)

			snap, _ := sim.Snapshot(ctx)
			So(snap.Grid.At(grid_world.Cell{Row: 2, Col: 3}), ShouldEqual, grid_world.Obstacle)
		})

		Convey("An obstacle on the agent is refused and reported", func() {
			_, _ = host.handleEvent(ctx, key('2'))
			_, err := host.handleEvent(ctx, click(grid_world.Cell{Row: 0, Col: 0}))
			So(err, ShouldBeNil)
			So(host.message, ShouldContainSubstring, "agent")

			snap, _ := sim.Snapshot(ctx)
			So(snap.Grid.At(grid_world.Cell{Row: 0, Col: 0}), ShouldEqual, grid_world.Empty)
		})

		Convey("Clicks without the left button are ignored", func() {
			ev := tcell.NewEventMouse(originX+2, originY, tcell.ButtonNone, tcell.ModNone)
			_, err := host.handleEvent(ctx, ev)
			So(err, ShouldBeNil)
			snap, _ := sim.Snapshot(ctx)
			So(snap.Grid.Count(grid_world.Dirty), ShouldEqual, 1)
		})
	})
}

func TestDraw(t *testing.T) {
	Convey("When a snapshot is drawn", t, func() {
		host, _, screen := newTestHost()
		defer screen.Fini()
		host.draw()

		So(rowText(screen, 0), ShouldStartWith, "idle")
		So(rowText(screen, 0), ShouldContainSubstring, "brush dirt")
		So(rowText(screen, originY+4), ShouldStartWith, helpText)

		row0 := []rune(rowText(screen, originY))
		So(string(row0[originX:originX+2]), ShouldEqual, "◖◗")
		So(string(row0[originX+4:originX+6]), ShouldEqual, "▒▒")

		row1 := []rune(rowText(screen, originY+1))
		So(string(row1[originX+2:originX+4]), ShouldEqual, "██")
		So(string(row1[originX:originX+2]), ShouldEqual, "··")
	})

	Convey("When the agent is halfway through a transit", t, func() {
		So(agentColumn(15, 30), ShouldEqual, originX)
		So(agentColumn(30, 30), ShouldEqual, originX+1)
		So(agentColumn(45, 30), ShouldEqual, originX+2)
	})
}

func TestRun(t *testing.T) {
	Convey("When the host runs", t, func() {
		host, sim, screen := newTestHost()
		defer screen.Fini()

		snapshots := make(chan simulation.Snapshot, 1)
		snap, _ := sim.Snapshot(context.Background())
		snapshots <- snap
		host.snapshots = snapshots

		exit := make(chan error, 1)
		go func() { exit <- host.Run(context.Background()) }()

		Convey("Pressing q returns", func() {
			screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
			select {
			case err := <-exit:
				So(err, ShouldBeNil)
			case <-time.After(2 * time.Second):
				So("host did not quit", ShouldBeEmpty)
			}
		})

		Convey("A closed snapshot stream returns", func() {
			close(snapshots)
			select {
			case err := <-exit:
				So(err, ShouldBeNil)
			case <-time.After(2 * time.Second):
				So("host did not stop", ShouldBeEmpty)
			}
		})
	})
}
