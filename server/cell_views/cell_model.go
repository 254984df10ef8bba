// cell_views contains views derived from the Room view-model.
package cell_views

import (
	"fmt"
	"math"
	"strings"

	"vacuum/grid_world"
	"vacuum/simulation"
)

// Cell is a grid cell as drawn in svg: its indices, the pixel coordinates of its
// top-left corner and its fill. As a rule of thumb, Cell fields should be
// immediately usable as view parameters.
type Cell struct {
	Row, Col int
	X, Y     int
	Fill     string
}

// Room is the view-model for a snapshot: everything a view needs, precomputed.
type Room struct {
	Cells         [][]Cell
	CellSize      int
	Width, Height int
	// AgentX, AgentY are the agent's center and AgentR its radius, in pixels.
	AgentX, AgentY string
	AgentR         int
	// Route is the agent's remaining path as svg polyline points.
	Route     string
	Telemetry simulation.Telemetry
}

// Convert transforms a snapshot into the Room view-model.
func Convert(snap simulation.Snapshot) Room {
	size := int(math.Round(snap.CellSize))
	rows, cols := snap.Grid.Rows(), snap.Grid.Cols()

	cells := make([][]Cell, rows)
	for r := range cells {
		cells[r] = make([]Cell, cols)
	}
	snap.Grid.Visit(func(cell grid_world.Cell, state grid_world.CellState) {
		cells[cell.Row][cell.Col] = Cell{
			Row:  cell.Row,
			Col:  cell.Col,
			X:    cell.Col * size,
			Y:    cell.Row * size,
			Fill: getFill(state),
		}
	})

	return Room{
		Cells:     cells,
		CellSize:  size,
		Width:     cols * size,
		Height:    rows * size,
		AgentX:    coord(snap.Agent.X),
		AgentY:    coord(snap.Agent.Y),
		AgentR:    size * 2 / 5,
		Route:     routePoints(snap),
		Telemetry: snap.Telemetry(),
	}
}

// routePoints draws the route from the agent's current position through the
// cell being entered and every queued waypoint center.
func routePoints(snap simulation.Snapshot) string {
	waypoints := snap.Agent.Path
	if snap.Agent.Moving {
		waypoints = append([]grid_world.Cell{snap.Agent.Target}, waypoints...)
	}
	if len(waypoints) == 0 {
		return ""
	}
	points := make([]string, 0, len(waypoints)+1)
	points = append(points, coord(snap.Agent.X)+","+coord(snap.Agent.Y))
	for _, cell := range waypoints {
		x, y := grid_world.CellCenter(cell, snap.CellSize)
		points = append(points, coord(x)+","+coord(y))
	}
	return strings.Join(points, " ")
}

func coord(f float64) string {
	return fmt.Sprintf("%.1f", f)
}

func getFill(state grid_world.CellState) (fill string) {
	switch state {
	case grid_world.Empty:
		fill = "white"
	case grid_world.Dirty:
		fill = "saddlebrown"
	case grid_world.Obstacle:
		fill = "dimgray"
	}
	return
}
