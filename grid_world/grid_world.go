package grid_world

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
)

// CellState is the content of a single grid cell. The rune values double as the
// layout encoding, so a layout row like "..*#" reads as it prints.
type CellState rune

// Cell states
const (
	Empty    CellState = '.'
	Dirty    CellState = '*'
	Obstacle CellState = '#'
)

func (s CellState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Dirty:
		return "dirty"
	case Obstacle:
		return "obstacle"
	}
	return fmt.Sprintf("CellState(%q)", rune(s))
}

// Cell is a discrete grid position. Rows grow downward and columns rightward,
// matching how a layout prints in a console.
type Cell struct {
	Row, Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

var (
	// ErrOutOfBounds is returned for any access outside [0, rows) x [0, cols).
	ErrOutOfBounds = errors.New("cell out of bounds")
	// ErrEmptyGrid is returned when a grid would have no rows or no columns.
	ErrEmptyGrid = errors.New("grid must have at least one row and one column")
	// ErrNonRectangular is returned for layouts whose rows differ in length.
	ErrNonRectangular = errors.New("layout rows must have the same length")
	// ErrUnknownCell is returned for layout runes that are not a CellState.
	ErrUnknownCell = errors.New("unknown cell rune in layout")
)

// Grid is a fixed-size matrix of cell states, indexed [row][col].
// Dimensions never change after construction.
type Grid struct {
	rows, cols int
	cells      [][]CellState
}

// NewGrid returns an all-empty grid of the passed dimensions.
func NewGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmptyGrid
	}

	grid := &Grid{
		rows:  rows,
		cols:  cols,
		cells: make([][]CellState, rows),
	}
	for r := range grid.cells {
		grid.cells[r] = make([]CellState, cols)
	}
	grid.Clear()
	return grid, nil
}

// FromLayout converts a layout, one string per row, to a grid.
// Every rune must be one of the CellState values.
func FromLayout(layout []string) (*Grid, error) {
	if len(layout) == 0 || len(layout[0]) == 0 {
		return nil, ErrEmptyGrid
	}

	width := len(layout[0])
	grid, err := NewGrid(len(layout), width)
	if err != nil {
		return nil, err
	}

	for r, row := range layout {
		if len(row) != width {
			return nil, fmt.Errorf("row %d: %w", r, ErrNonRectangular)
		}
		for c, ch := range row {
			state := CellState(ch)
			switch state {
			case Empty, Dirty, Obstacle:
				grid.cells[r][c] = state
			default:
				return nil, fmt.Errorf("row %d col %d %q: %w", r, c, ch, ErrUnknownCell)
			}
		}
	}

	return grid, nil
}

func (grid *Grid) Rows() int { return grid.rows }
func (grid *Grid) Cols() int { return grid.cols }

// InBounds reports whether the cell lies within the grid.
func (grid *Grid) InBounds(cell Cell) bool {
	return cell.Row >= 0 && cell.Row < grid.rows && cell.Col >= 0 && cell.Col < grid.cols
}

// Get returns the state of the cell, or ErrOutOfBounds.
func (grid *Grid) Get(cell Cell) (CellState, error) {
	if !grid.InBounds(cell) {
		return Empty, fmt.Errorf("get %v: %w", cell, ErrOutOfBounds)
	}
	return grid.cells[cell.Row][cell.Col], nil
}

// At is the unchecked form of Get for callers that have already bounds-checked.
// It panics on out of range cells, just like slice indexing.
func (grid *Grid) At(cell Cell) CellState {
	return grid.cells[cell.Row][cell.Col]
}

// Set sets the state of the cell, or returns ErrOutOfBounds.
// Set knows nothing about the agent; keeping the agent off obstacles is the owner's job.
func (grid *Grid) Set(cell Cell, state CellState) error {
	if !grid.InBounds(cell) {
		return fmt.Errorf("set %v: %w", cell, ErrOutOfBounds)
	}
	grid.cells[cell.Row][cell.Col] = state
	return nil
}

// Clear empties every cell.
func (grid *Grid) Clear() {
	for r := range grid.cells {
		for c := range grid.cells[r] {
			grid.cells[r][c] = Empty
		}
	}
}

// Count returns the number of cells in the passed state.
func (grid *Grid) Count(state CellState) (n int) {
	grid.Visit(func(_ Cell, s CellState) {
		if s == state {
			n++
		}
	})
	return
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (grid *Grid) Clone() *Grid {
	clone := &Grid{
		rows:  grid.rows,
		cols:  grid.cols,
		cells: make([][]CellState, grid.rows),
	}
	for r := range grid.cells {
		clone.cells[r] = make([]CellState, grid.cols)
		copy(clone.cells[r], grid.cells[r])
	}
	return clone
}

// Visit calls fn for every cell in row-major order.
func (grid *Grid) Visit(fn func(cell Cell, state CellState)) {
	for r := range grid.cells {
		for c, state := range grid.cells[r] {
			fn(Cell{Row: r, Col: c}, state)
		}
	}
}

// SeedRandomDirt independently marks each empty cell, other than @exclude, as dirty
// with probability p. Obstacles and existing dirt are left alone.
// Returns the number of cells seeded.
func (grid *Grid) SeedRandomDirt(rng *rand.Rand, p float64, exclude Cell) (seeded int) {
	grid.Visit(func(cell Cell, state CellState) {
		// Draw for every cell so the outcome for a given seed doesn't depend on the grid's contents.
		roll := rng.Float64()
		if roll < p && state == Empty && cell != exclude {
			grid.cells[cell.Row][cell.Col] = Dirty
			seeded++
		}
	})
	return
}

// Layout returns the grid in the same encoding FromLayout accepts.
func (grid *Grid) Layout() []string {
	layout := make([]string, grid.rows)
	for r, row := range grid.cells {
		runes := make([]rune, len(row))
		for c, state := range row {
			runes[c] = rune(state)
		}
		layout[r] = string(runes)
	}
	return layout
}

// Show prints the grid for visual reference, marking @agent with 'A'.
func (grid *Grid) Show(w io.Writer, agent Cell) {
	for r, row := range grid.cells {
		for c, state := range row {
			ch := rune(state)
			if (Cell{Row: r, Col: c}) == agent {
				ch = 'A'
			}
			fmt.Fprintf(w, "%c ", ch)
		}
		fmt.Fprintln(w)
	}
}

// CellCenter returns the world coordinates of the center of a cell, where each
// cell is cellSize world units wide and the grid's top-left corner is the origin.
func CellCenter(cell Cell, cellSize float64) (x, y float64) {
	x = float64(cell.Col)*cellSize + cellSize/2
	y = float64(cell.Row)*cellSize + cellSize/2
	return
}
