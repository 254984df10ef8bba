// Package pathfinding finds the agent's route to the nearest dirt.
package pathfinding

import (
	. "vacuum/grid_world"
)

// Path is an ordered route of adjacent cells, start and target inclusive.
type Path []Cell

// Steps returns the number of single-cell moves along the path.
func (p Path) Steps() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Target returns the last cell of the path.
func (p Path) Target() Cell {
	return p[len(p)-1]
}

// neighborOffsets is the fixed visit order: up, down, left, right.
// Among equidistant dirt cells the one discovered first in this order wins,
// so changing it changes which dirt the agent picks.
var neighborOffsets = [4]Cell{
	{Row: -1, Col: 0},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
	{Row: 0, Col: 1},
}

// Neighbors returns the in-bounds 4-neighbors of a cell in visit order.
// Passability is not checked.
func Neighbors(grid *Grid, cell Cell) []Cell {
	cells := make([]Cell, 0, len(neighborOffsets))
	for _, d := range neighborOffsets {
		next := Cell{Row: cell.Row + d.Row, Col: cell.Col + d.Col}
		if grid.InBounds(next) {
			cells = append(cells, next)
		}
	}
	return cells
}

// FindNearestDirt runs a breadth-first search from @start and returns the shortest
// path to the first dirty cell the frontier reaches, excluding @start itself.
// Obstacles are impassable; everything else, the start included, is passable.
// Returns false when no dirty cell is reachable; that is an outcome, not an error.
// Complexity: O(rows*cols).
func FindNearestDirt(grid *Grid, start Cell) (Path, bool) {
	if !grid.InBounds(start) {
		return nil, false
	}

	cols := grid.Cols()
	index := func(c Cell) int { return c.Row*cols + c.Col }

	// parent holds index+1 of the predecessor, zero meaning unvisited.
	parent := make([]int, grid.Rows()*cols)
	parent[index(start)] = index(start) + 1

	queue := make([]Cell, 0, grid.Rows()*cols)
	queue = append(queue, start)
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if cur != start && grid.At(cur) == Dirty {
			return backtrack(parent, cols, start, cur), true
		}

		for _, next := range Neighbors(grid, cur) {
			if parent[index(next)] != 0 || grid.At(next) == Obstacle {
				continue
			}
			parent[index(next)] = index(cur) + 1
			queue = append(queue, next)
		}
	}

	return nil, false
}

// backtrack follows parent links from @target back to @start and returns the
// path in forward order.
func backtrack(parent []int, cols int, start, target Cell) Path {
	path := Path{target}
	for cur := target; cur != start; {
		prev := parent[cur.Row*cols+cur.Col] - 1
		cur = Cell{Row: prev / cols, Col: prev % cols}
		path = append(path, cur)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
