package grid_world

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGrid(t *testing.T) {
	Convey("When a grid is created", t, func() {
		grid, err := NewGrid(3, 4)
		So(err, ShouldBeNil)
		So(grid.Rows(), ShouldEqual, 3)
		So(grid.Cols(), ShouldEqual, 4)
		So(grid.Count(Empty), ShouldEqual, 12)

		Convey("When cells are set and read back in bounds", func() {
			So(grid.Set(Cell{Row: 2, Col: 3}, Dirty), ShouldBeNil)
			state, err := grid.Get(Cell{Row: 2, Col: 3})
			So(err, ShouldBeNil)
			So(state, ShouldEqual, Dirty)
			So(grid.Count(Dirty), ShouldEqual, 1)
		})

		Convey("When cells outside the grid are accessed", func() {
			for _, cell := range []Cell{{-1, 0}, {0, -1}, {3, 0}, {0, 4}} {
				_, err := grid.Get(cell)
				So(errors.Is(err, ErrOutOfBounds), ShouldBeTrue)
				So(errors.Is(grid.Set(cell, Obstacle), ErrOutOfBounds), ShouldBeTrue)
			}
			So(grid.Count(Obstacle), ShouldEqual, 0)
		})

		Convey("When a clone is mutated the original is unaffected", func() {
			clone := grid.Clone()
			So(clone.Set(Cell{Row: 0, Col: 0}, Obstacle), ShouldBeNil)
			So(grid.At(Cell{Row: 0, Col: 0}), ShouldEqual, Empty)
			So(clone.At(Cell{Row: 0, Col: 0}), ShouldEqual, Obstacle)
		})

		Convey("When the grid is cleared", func() {
			_ = grid.Set(Cell{Row: 1, Col: 1}, Dirty)
			_ = grid.Set(Cell{Row: 1, Col: 2}, Obstacle)
			grid.Clear()
			So(grid.Count(Empty), ShouldEqual, 12)
		})
	})

	Convey("When a grid has no rows or columns", t, func() {
		_, err := NewGrid(0, 5)
		So(err, ShouldEqual, ErrEmptyGrid)
		_, err = NewGrid(5, 0)
		So(err, ShouldEqual, ErrEmptyGrid)
	})
}

func TestLayouts(t *testing.T) {
	Convey("When a layout is converted", t, func() {
		grid, err := FromLayout([]string{
			".*#",
			"#..",
		})
		So(err, ShouldBeNil)
		So(grid.At(Cell{Row: 0, Col: 1}), ShouldEqual, Dirty)
		So(grid.At(Cell{Row: 0, Col: 2}), ShouldEqual, Obstacle)
		So(grid.At(Cell{Row: 1, Col: 0}), ShouldEqual, Obstacle)
		So(grid.Layout(), ShouldResemble, []string{".*#", "#.."})

		Convey("When it is shown with the agent", func() {
			var buf bytes.Buffer
			grid.Show(&buf, Cell{Row: 1, Col: 2})
			So(buf.String(), ShouldEqual, ". * # \n# . A \n")
		})
	})

	Convey("When a layout is malformed", t, func() {
		_, err := FromLayout([]string{"...", ".."})
		So(errors.Is(err, ErrNonRectangular), ShouldBeTrue)

		_, err = FromLayout([]string{"..x"})
		So(errors.Is(err, ErrUnknownCell), ShouldBeTrue)

		_, err = FromLayout(nil)
		So(err, ShouldEqual, ErrEmptyGrid)
	})

	Convey("When the built-in layouts are converted", t, func() {
		for name, layout := range Layouts {
			grid, err := FromLayout(layout)
			So(err, ShouldBeNil)
			So(grid.Layout(), ShouldResemble, layout)
			if name == "full" {
				So(grid.Rows(), ShouldEqual, DefaultRows)
				So(grid.Cols(), ShouldEqual, DefaultCols)
			}
		}
	})
}

func TestSeedRandomDirt(t *testing.T) {
	Convey("When random dirt is seeded", t, func() {
		layout := []string{
			"....",
			".#*.",
			"....",
		}
		grid, _ := FromLayout(layout)
		agent := Cell{Row: 0, Col: 0}

		Convey("With probability one every other empty cell becomes dirty", func() {
			seeded := grid.SeedRandomDirt(rand.New(rand.NewSource(1)), 1.0, agent)
			So(seeded, ShouldEqual, 9)
			So(grid.At(agent), ShouldEqual, Empty)
			So(grid.At(Cell{Row: 1, Col: 1}), ShouldEqual, Obstacle)
			So(grid.Count(Dirty), ShouldEqual, 10)
		})

		Convey("With probability zero nothing changes", func() {
			So(grid.SeedRandomDirt(rand.New(rand.NewSource(1)), 0, agent), ShouldEqual, 0)
			So(grid.Layout(), ShouldResemble, layout)
		})

		Convey("With the same seed the outcome repeats", func() {
			other, _ := FromLayout(layout)
			a := grid.SeedRandomDirt(rand.New(rand.NewSource(42)), 0.5, agent)
			b := other.SeedRandomDirt(rand.New(rand.NewSource(42)), 0.5, agent)
			So(a, ShouldEqual, b)
			So(strings.Join(grid.Layout(), "\n"), ShouldEqual, strings.Join(other.Layout(), "\n"))
		})
	})
}

func TestCellCenter(t *testing.T) {
	Convey("When the center of a cell is computed", t, func() {
		x, y := CellCenter(Cell{Row: 2, Col: 3}, 30)
		So(x, ShouldEqual, 105.0)
		So(y, ShouldEqual, 75.0)
	})
}
