// Package simulation is the vacuum's decision loop: an engine that exclusively owns
// the grid and agent, a motion controller that animates the agent toward the nearest
// dirt, a clock that drives it with wall-clock deltas, and a runner that hosts all of
// it on one goroutine.
package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	. "vacuum/grid_world"

	"github.com/rs/zerolog"
)

// RunMode is the lifecycle state of a cleaning run.
type RunMode int

const (
	// Idle: never started, stopped or reset.
	Idle RunMode = iota
	Running
	Paused
	// Finished: stopped on its own because no dirt was reachable.
	Finished
)

func (m RunMode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// MarshalText lets RunMode serialize by name.
func (m RunMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EditMode is the brush applied by a grid edit.
type EditMode int

const (
	PaintDirt EditMode = iota
	PaintObstacle
	Erase
)

func (m EditMode) String() string {
	switch m {
	case PaintDirt:
		return "dirt"
	case PaintObstacle:
		return "obstacle"
	case Erase:
		return "erase"
	}
	return "unknown"
}

// Control is a named run control, as submitted by hosts.
type Control string

const (
	ControlStart  Control = "start"
	ControlPause  Control = "pause"
	ControlResume Control = "resume"
	ControlToggle Control = "toggle"
	ControlStop   Control = "stop"
	ControlReset  Control = "reset"
	ControlSeed   Control = "seed"
)

var (
	// ErrAgentCell is returned when an obstacle is painted under the agent.
	ErrAgentCell = errors.New("cannot place an obstacle on the agent's cell")
	// ErrUnknownEditMode is returned for unrecognized brushes.
	ErrUnknownEditMode = errors.New("unknown edit mode")
	// ErrUnknownControl is returned for unrecognized controls.
	ErrUnknownControl = errors.New("unknown control")
)

// ParseEditMode converts a brush name ("dirt", "obstacle", "erase") to an EditMode.
func ParseEditMode(name string) (EditMode, error) {
	switch name {
	case "dirt":
		return PaintDirt, nil
	case "obstacle", "obst", "furniture":
		return PaintObstacle, nil
	case "erase":
		return Erase, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEditMode, name)
}

// ParseControl validates a control name.
func ParseControl(name string) (Control, error) {
	switch ctl := Control(name); ctl {
	case ControlStart, ControlPause, ControlResume, ControlToggle, ControlStop, ControlReset, ControlSeed:
		return ctl, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownControl, name)
}

// Engine owns the grid, the agent and the run counters. It is not safe for
// concurrent use; the Runner is its only owner when hosted.
type Engine struct {
	cfg    *Config
	grid   *Grid
	agent  *Agent
	motion *MotionController
	rng    *rand.Rand
	log    zerolog.Logger

	mode     RunMode
	cleaned  int
	distance float64
	elapsed  time.Duration
}

// NewEngine builds an engine over @grid, placing the agent at the configured home.
// The home cell must be inside the grid and not an obstacle.
func NewEngine(cfg *Config, grid *Grid, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	home := cfg.HomeCell(grid)
	state, err := grid.Get(home)
	if err != nil {
		return nil, fmt.Errorf("home %v: %w", home, err)
	}
	if state == Obstacle {
		return nil, fmt.Errorf("home %v: %w", home, ErrAgentCell)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		cfg:   cfg,
		grid:  grid,
		agent: newAgent(home, cfg.CellSize),
		motion: &MotionController{
			Speed:    cfg.Speed,
			CellSize: cfg.CellSize,
			Policy:   cfg.ReplanPolicy,
		},
		rng: rand.New(rand.NewSource(seed)),
		log: logger,
	}, nil
}

// Mode returns the current run mode.
func (e *Engine) Mode() RunMode { return e.mode }

// Active reports whether the motion controller should be driven this tick.
func (e *Engine) Active() bool { return e.mode == Running }

// Start begins a fresh run, zeroing the counters. Starting an active or paused
// run does nothing.
func (e *Engine) Start() {
	if e.mode == Running || e.mode == Paused {
		return
	}
	e.mode = Running
	e.cleaned = 0
	e.distance = 0
	e.elapsed = 0
	e.agent.halt()
	e.log.Info().Int("dirt", e.grid.Count(Dirty)).Stringer("at", e.agent.Position).Msg("cleaning started")
}

// Pause suspends a running run.
func (e *Engine) Pause() {
	if e.mode == Running {
		e.mode = Paused
	}
}

// Resume continues a paused run.
func (e *Engine) Resume() {
	if e.mode == Paused {
		e.mode = Running
	}
}

// TogglePause pauses a running run or resumes a paused one.
func (e *Engine) TogglePause() {
	switch e.mode {
	case Running:
		e.Pause()
	case Paused:
		e.Resume()
	}
}

// Stop ends the run, dropping the route and any transit in flight. The agent
// returns to the center of the cell it was departing from. Counters are kept
// for display. Stopping twice is the same as stopping once.
func (e *Engine) Stop() {
	if e.mode != Idle {
		e.log.Info().Int("cleaned", e.cleaned).Msg("cleaning stopped")
	}
	e.mode = Idle
	e.agent.halt()
}

// Reset empties the room and zeroes the counters. The agent stays where it is.
func (e *Engine) Reset() {
	e.mode = Idle
	e.grid.Clear()
	e.cleaned = 0
	e.distance = 0
	e.elapsed = 0
	e.agent.halt()
	e.log.Info().Msg("room reset")
}

// SeedRandomDirt scatters dirt over the empty cells, never under the agent.
func (e *Engine) SeedRandomDirt() int {
	seeded := e.grid.SeedRandomDirt(e.rng, e.cfg.DirtProbability, e.agent.Position)
	e.log.Debug().Int("seeded", seeded).Msg("random dirt")
	return seeded
}

// ApplyEdit paints @cell with @mode. Obstacles are refused on the agent's cell, and
// an obstacle painted on the cell the agent is moving into aborts that transit.
// Obstacles painted on queued waypoints are caught when the waypoint is reached.
func (e *Engine) ApplyEdit(cell Cell, mode EditMode) error {
	var state CellState
	switch mode {
	case PaintDirt:
		state = Dirty
	case PaintObstacle:
		state = Obstacle
	case Erase:
		state = Empty
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEditMode, mode)
	}

	if !e.grid.InBounds(cell) {
		return fmt.Errorf("edit %v: %w", cell, ErrOutOfBounds)
	}

	if state == Obstacle {
		if cell == e.agent.Position {
			e.log.Debug().Stringer("cell", cell).Msg("obstacle refused on agent cell")
			return fmt.Errorf("edit %v: %w", cell, ErrAgentCell)
		}
		if target, moving := e.agent.Target(); moving && target == cell {
			e.log.Debug().Stringer("cell", cell).Msg("transit target blocked, aborting leg")
			e.agent.halt()
		}
	}

	return e.grid.Set(cell, state)
}

// Control dispatches a named control.
func (e *Engine) Control(ctl Control) error {
	switch ctl {
	case ControlStart:
		e.Start()
	case ControlPause:
		e.Pause()
	case ControlResume:
		e.Resume()
	case ControlToggle:
		e.TogglePause()
	case ControlStop:
		e.Stop()
	case ControlReset:
		e.Reset()
	case ControlSeed:
		e.SeedRandomDirt()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControl, ctl)
	}
	return nil
}

// Update advances a running simulation by @dt; in any other mode it does nothing.
func (e *Engine) Update(dt time.Duration) {
	if e.mode != Running {
		return
	}
	e.elapsed += dt

	ev := e.motion.Update(e.grid, e.agent, dt)
	switch {
	case ev.Exhausted:
		e.mode = Finished
		e.agent.halt()
		e.log.Info().
			Int("cleaned", e.cleaned).
			Float64("distance", e.distance).
			Dur("elapsed", e.elapsed).
			Msg("nothing left to clean")
		e.log.Debug().Strs("room", e.grid.Layout()).Msg("final room")
	case ev.Aborted:
		e.log.Debug().Stringer("at", e.agent.Position).Msg("waypoint blocked, replanning")
	case ev.Arrived:
		e.distance += e.cfg.CellSize
		if ev.Cleaned {
			e.cleaned++
			e.log.Debug().Stringer("cell", e.agent.Position).Int("cleaned", e.cleaned).Msg("cleaned")
		}
	case ev.Planned != nil:
		e.log.Debug().
			Stringer("from", e.agent.Position).
			Stringer("to", ev.Planned.Target()).
			Int("steps", ev.Planned.Steps()).
			Msg("planned")
	}
}

// Snapshot returns a deep copy of the engine's observable state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Mode:          e.mode,
		Cleaned:       e.cleaned,
		Distance:      e.distance,
		Elapsed:       e.elapsed,
		DirtRemaining: e.grid.Count(Dirty),
		Agent: AgentView{
			Position: e.agent.Position,
			Target:   e.agent.target,
			X:        e.agent.X,
			Y:        e.agent.Y,
			Phase:    e.agent.Phase,
			Moving:   e.agent.Moving,
			Progress: e.agent.Progress,
			Path:     e.agent.pathCopy(),
		},
		CellSize: e.cfg.CellSize,
		Grid:     e.grid.Clone(),
	}
}
