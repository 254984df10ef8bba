// Package terminal hosts the simulation in a terminal: it draws snapshots with tcell
// and turns keys and mouse clicks into controls and edits.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"vacuum/grid_world"
	"vacuum/simulation"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

const (
	// cellWidth is the number of terminal columns per grid cell, so cells look square.
	cellWidth = 2
	// The grid is drawn below the status line, one column in from the left.
	originX = 1
	originY = 2
)

const helpText = "s start  p pause  x stop  r reset  d dirt  1/2/3 brush  click paint  q quit"

var (
	styleDefault  = tcell.StyleDefault
	styleEmpty    = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	styleDirt     = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleObstacle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleRoute    = tcell.StyleDefault.Foreground(tcell.ColorSteelBlue)
	styleAgent    = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleError    = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// Simulation is what the terminal drives: the runner's request API.
type Simulation interface {
	ApplyEdit(ctx context.Context, cell grid_world.Cell, mode simulation.EditMode) error
	Control(ctx context.Context, ctl simulation.Control) error
	Snapshot(ctx context.Context) (simulation.Snapshot, error)
}

// Host owns the screen. It is driven by Run on a single goroutine.
type Host struct {
	screen    tcell.Screen
	sim       Simulation
	snapshots <-chan simulation.Snapshot
	log       zerolog.Logger

	brush   simulation.EditMode
	last    *simulation.Snapshot
	message string
}

// NewHost returns a host drawing on an initialized @screen.
func NewHost(
	screen tcell.Screen,
	sim Simulation,
	snapshots <-chan simulation.Snapshot,
	logger zerolog.Logger,
) *Host {
	return &Host{
		screen:    screen,
		sim:       sim,
		snapshots: snapshots,
		log:       logger,
		brush:     simulation.PaintDirt,
	}
}

// Run draws every snapshot and handles input until the user quits, @ctx is
// cancelled, or the snapshot stream ends.
func (h *Host) Run(ctx context.Context) error {
	h.screen.EnableMouse()
	h.screen.HideCursor()

	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	defer close(quit)
	go h.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-h.snapshots:
			if !ok {
				return nil
			}
			h.last = &snap
			h.draw()
		case ev := <-events:
			done, err := h.handleEvent(ctx, ev)
			if done || err != nil {
				return err
			}
			h.draw()
		}
	}
}

// handleEvent applies a key or mouse event. It reports whether the host should exit.
func (h *Host) handleEvent(ctx context.Context, ev tcell.Event) (bool, error) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return true, nil
		}
		if ev.Key() != tcell.KeyRune {
			return false, nil
		}
		return h.handleRune(ctx, ev.Rune())

	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 == 0 {
			return false, nil
		}
		x, y := ev.Position()
		cell, ok := h.cellAt(x, y)
		if !ok {
			return false, nil
		}
		return false, h.report(h.sim.ApplyEdit(ctx, cell, h.brush))

	case *tcell.EventResize:
		h.screen.Sync()
	}
	return false, nil
}

var controlKeys = map[rune]simulation.Control{
	's': simulation.ControlStart,
	'p': simulation.ControlToggle,
	'x': simulation.ControlStop,
	'r': simulation.ControlReset,
	'd': simulation.ControlSeed,
}

var brushKeys = map[rune]simulation.EditMode{
	'1': simulation.PaintDirt,
	'2': simulation.PaintObstacle,
	'3': simulation.Erase,
}

func (h *Host) handleRune(ctx context.Context, r rune) (bool, error) {
	if r == 'q' {
		return true, nil
	}
	if ctl, ok := controlKeys[r]; ok {
		return false, h.report(h.sim.Control(ctx, ctl))
	}
	if brush, ok := brushKeys[r]; ok {
		h.brush = brush
		h.message = ""
	}
	return false, nil
}

// report shows a rejected request on the status line. Only a stopped simulation
// is returned as an error.
func (h *Host) report(err error) error {
	switch {
	case err == nil:
		h.message = ""
	case errors.Is(err, simulation.ErrRunnerStopped), errors.Is(err, context.Canceled):
		return err
	default:
		h.log.Debug().Err(err).Msg("request rejected")
		h.message = err.Error()
	}
	return nil
}

// cellAt maps a screen position to the grid cell drawn there.
func (h *Host) cellAt(x, y int) (grid_world.Cell, bool) {
	if h.last == nil || x < originX || y < originY {
		return grid_world.Cell{}, false
	}
	cell := grid_world.Cell{Row: y - originY, Col: (x - originX) / cellWidth}
	return cell, h.last.Grid.InBounds(cell)
}

// agentColumn places the agent's continuous x on the half-cell columns, so a
// transit moves smoothly across the two columns of each cell.
func agentColumn(x, cellSize float64) int {
	return originX + int(math.Floor(x/cellSize*cellWidth-0.5))
}

func (h *Host) draw() {
	h.screen.Clear()
	if h.last != nil {
		h.drawStatus(*h.last)
		h.drawRoom(*h.last)
	}
	h.screen.Show()
}

func (h *Host) drawStatus(snap simulation.Snapshot) {
	status := fmt.Sprintf("%-8s cleaned %-4d dirt %-4d distance %-6.0f time %5.1fs  brush %s",
		snap.Mode, snap.Cleaned, snap.DirtRemaining, snap.Distance, snap.Elapsed.Seconds(), h.brush)
	h.drawText(0, 0, status, styleStatus)
	if h.message != "" {
		h.drawText(0, 1, h.message, styleError)
	}
	h.drawText(0, originY+snap.Grid.Rows()+1, helpText, styleDefault)
}

func (h *Host) drawRoom(snap simulation.Snapshot) {
	snap.Grid.Visit(func(cell grid_world.Cell, state grid_world.CellState) {
		glyph, style := ' ', styleDefault
		switch state {
		case grid_world.Empty:
			glyph, style = '·', styleEmpty
		case grid_world.Dirty:
			glyph, style = '▒', styleDirt
		case grid_world.Obstacle:
			glyph, style = '█', styleObstacle
		}
		h.drawCell(cell, glyph, style)
	})

	for _, cell := range snap.Agent.Path {
		if snap.Grid.At(cell) == grid_world.Empty {
			h.drawCell(cell, '∘', styleRoute)
		}
	}

	y := originY + int(snap.Agent.Y/snap.CellSize)
	x := agentColumn(snap.Agent.X, snap.CellSize)
	h.screen.SetContent(x, y, '◖', nil, styleAgent)
	h.screen.SetContent(x+1, y, '◗', nil, styleAgent)
}

func (h *Host) drawCell(cell grid_world.Cell, glyph rune, style tcell.Style) {
	x, y := originX+cell.Col*cellWidth, originY+cell.Row
	for i := 0; i < cellWidth; i++ {
		h.screen.SetContent(x+i, y, glyph, nil, style)
	}
}

func (h *Host) drawText(x, y int, text string, style tcell.Style) {
	for _, r := range text {
		h.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
