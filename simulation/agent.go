package simulation

import (
	. "vacuum/grid_world"
)

// AgentPhase is the agent's position in its decision loop:
// Idle -> Planning -> Transiting -> Arrived -> Planning | Idle.
type AgentPhase int

const (
	PhaseIdle AgentPhase = iota
	PhasePlanning
	PhaseTransiting
	PhaseArrived
)

func (p AgentPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePlanning:
		return "planning"
	case PhaseTransiting:
		return "transiting"
	case PhaseArrived:
		return "arrived"
	}
	return "unknown"
}

// Agent is the vacuum: the cell it occupies (or is departing from), its continuous
// world position for smooth rendering, and its queued route.
type Agent struct {
	// Position is the occupied cell; during a transit it is the departure cell.
	Position Cell
	// X, Y are world coordinates, equal to Position's center unless Moving.
	X, Y float64
	// Path holds the remaining route, excluding the current cell.
	Path []Cell
	// Progress is the completed fraction of the current transit.
	Progress float64
	Moving   bool
	Phase    AgentPhase

	target       Cell
	fromX, fromY float64
	toX, toY     float64
	cellSize     float64
}

func newAgent(home Cell, cellSize float64) *Agent {
	agent := &Agent{cellSize: cellSize}
	agent.place(home)
	return agent
}

// place parks the agent at the center of @cell with no route.
func (agent *Agent) place(cell Cell) {
	agent.Position = cell
	agent.halt()
}

// halt drops the route and any transit in flight, snapping the agent back to
// the center of the cell it occupies.
func (agent *Agent) halt() {
	agent.Path = nil
	agent.Moving = false
	agent.Progress = 0
	agent.Phase = PhaseIdle
	agent.X, agent.Y = CellCenter(agent.Position, agent.cellSize)
}

// Target returns the transit's destination, and false when not moving.
func (agent *Agent) Target() (Cell, bool) {
	return agent.target, agent.Moving
}

func (agent *Agent) beginTransit(next Cell) {
	agent.target = next
	agent.fromX, agent.fromY = agent.X, agent.Y
	agent.toX, agent.toY = CellCenter(next, agent.cellSize)
	agent.Progress = 0
	agent.Moving = true
	agent.Phase = PhaseTransiting
}

// interpolate moves the continuous position along the transit by Progress.
func (agent *Agent) interpolate() {
	t := agent.Progress
	agent.X = agent.fromX + (agent.toX-agent.fromX)*t
	agent.Y = agent.fromY + (agent.toY-agent.fromY)*t
}

// arrive snaps exactly onto the target so no interpolation error carries over.
func (agent *Agent) arrive() {
	agent.X, agent.Y = agent.toX, agent.toY
	agent.Position = agent.target
	agent.Moving = false
	agent.Progress = 0
	agent.Phase = PhaseArrived
}

// pathCopy returns a copy of the queued route, safe to publish.
func (agent *Agent) pathCopy() []Cell {
	if len(agent.Path) == 0 {
		return nil
	}
	path := make([]Cell, len(agent.Path))
	copy(path, agent.Path)
	return path
}
