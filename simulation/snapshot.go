package simulation

import (
	"time"

	. "vacuum/grid_world"
)

// AgentView is the agent as seen from outside the engine.
type AgentView struct {
	Position Cell
	// Target is the cell being entered; meaningful only while Moving.
	Target   Cell
	X, Y     float64
	Phase    AgentPhase
	Moving   bool
	Progress float64
	Path     []Cell
}

// Snapshot is an immutable copy of the engine's observable state. Hosts read only
// snapshots and never the engine itself.
type Snapshot struct {
	// Tick is the clock tick that produced the snapshot.
	Tick          uint64
	Mode          RunMode
	Cleaned       int
	Distance      float64
	Elapsed       time.Duration
	DirtRemaining int
	Agent         AgentView
	CellSize      float64
	Grid          *Grid
}

// Telemetry is the display summary of a snapshot.
type Telemetry struct {
	Mode           RunMode `json:"mode"`
	Cleaned        int     `json:"cleaned"`
	Distance       float64 `json:"distance"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	DirtRemaining  int     `json:"dirtRemaining"`
	Row            int     `json:"row"`
	Col            int     `json:"col"`
	Phase          string  `json:"phase"`
}

// Telemetry summarizes the snapshot for display.
func (snap Snapshot) Telemetry() Telemetry {
	return Telemetry{
		Mode:           snap.Mode,
		Cleaned:        snap.Cleaned,
		Distance:       snap.Distance,
		ElapsedSeconds: snap.Elapsed.Seconds(),
		DirtRemaining:  snap.DirtRemaining,
		Row:            snap.Agent.Position.Row,
		Col:            snap.Agent.Position.Col,
		Phase:          snap.Agent.Phase.String(),
	}
}
