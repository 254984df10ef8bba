package simulation

import (
	"time"

	. "vacuum/grid_world"
	"vacuum/pathfinding"
)

// MotionEvent reports what a single MotionController.Update did.
type MotionEvent struct {
	// Planned is the freshly computed route, start inclusive, when the tick planned.
	Planned pathfinding.Path
	// Started is set when a transit toward a new waypoint began.
	Started bool
	// Arrived is set when a transit completed this tick.
	Arrived bool
	// Cleaned is set when the arrival cell was dirty and is now empty.
	Cleaned bool
	// Aborted is set when the next waypoint had become an obstacle.
	Aborted bool
	// Exhausted is set when no dirt is reachable; the run is over.
	Exhausted bool
}

// MotionController moves the agent one tick at a time. Speed is in world units per
// second, so each tick advances a transit by Speed*dt/CellSize.
type MotionController struct {
	Speed    float64
	CellSize float64
	Policy   ReplanPolicy
}

// Update advances the agent by @dt. A tick either continues a transit or, when the
// agent is at rest, plans if needed and begins the next transit; arrival and the
// next departure always happen on different ticks.
func (mc *MotionController) Update(grid *Grid, agent *Agent, dt time.Duration) (ev MotionEvent) {
	if agent.Moving {
		agent.Progress += mc.Speed * dt.Seconds() / mc.CellSize
		if agent.Progress < 1.0 {
			agent.interpolate()
			return
		}

		agent.arrive()
		ev.Arrived = true
		if grid.At(agent.Position) == Dirty {
			_ = grid.Set(agent.Position, Empty)
			ev.Cleaned = true
			agent.Path = nil
		} else if mc.Policy == ReplanEveryCell {
			agent.Path = nil
		}
		return
	}

	if len(agent.Path) == 0 {
		agent.Phase = PhasePlanning
		path, found := pathfinding.FindNearestDirt(grid, agent.Position)
		if !found {
			ev.Exhausted = true
			return
		}
		ev.Planned = path
		agent.Path = append([]Cell(nil), path[1:]...)
	}

	next := agent.Path[0]
	agent.Path = agent.Path[1:]
	// The grid may have been edited since the route was planned.
	if grid.At(next) == Obstacle {
		agent.Path = nil
		agent.Phase = PhasePlanning
		ev.Aborted = true
		return
	}

	agent.beginTransit(next)
	ev.Started = true
	return
}
