// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"fmt"

	"rlgym/grid_world"
)

// CellDim is the height and width of a rendered cell, in pixels.
const CellDim = 80

// Values is one agent's value function and policy projected onto the board.
type Values struct {
	Agent string
	Grid  [][]grid_world.CellValue
}

// Cell is a board cell in the svg coordinate system, where Y grows downward and
// [0][0] is the top left cell, as printed in the console. Cell fields should be
// immediately usable as view parameters.
type Cell struct {
	X, Y int
	// Left and Top are the pixel coordinates of the cell's corner.
	Left, Top           int
	Max                 float64
	Label               string
	PolicyArrowRotation int
	ArrowVisibility     string
	Fill                string
}

// Cells is the view-model of one agent's values grid.
type Cells struct {
	Agent         string
	Width, Height int
	Cells         [][]Cell
}

// Convert transforms an agent's projected values into Cells for consumption by
// values-views.
func Convert(vals Values) Cells {
	cells := Cells{
		Agent: vals.Agent,
		Cells: make([][]Cell, len(vals.Grid)),
	}
	for y, row := range vals.Grid {
		cells.Cells[y] = make([]Cell, len(row))
		for x, cv := range row {
			cells.Cells[y][x] = Cell{
				X:                   x,
				Y:                   y,
				Left:                x * CellDim,
				Top:                 y * CellDim,
				Max:                 cv.Value,
				Label:               getLabel(cv),
				PolicyArrowRotation: getDegrees(cv.Action),
				ArrowVisibility:     getVisibility(cv),
				Fill:                getFill(cv.Piece),
			}
		}
		cells.Width = max(cells.Width, len(row)*CellDim)
	}
	cells.Height = len(vals.Grid) * CellDim
	return cells
}

func getLabel(cv grid_world.CellValue) string {
	switch {
	case cv.Piece != grid_world.EMPTY:
		return string(cv.Piece)
	case cv.HasValue:
		return fmt.Sprintf("%.2f", cv.Value)
	}
	return "?"
}

// getDegrees converts an action into the degrees passed to svg's rotate() for an
// upward arrow rune.
func getDegrees(action int) int {
	switch action {
	case grid_world.RIGHT:
		return 90
	case grid_world.DOWN:
		return 180
	case grid_world.LEFT:
		return 270
	}
	return 0
}

func getVisibility(cv grid_world.CellValue) string {
	if cv.Piece == grid_world.EMPTY && cv.HasAction {
		return "visible"
	}
	return "hidden"
}

func getFill(piece rune) (fill string) {
	switch piece {
	case grid_world.GOAL:
		fill = "lightgreen"
	case grid_world.PIT:
		fill = "lightsalmon"
	case grid_world.WALL:
		fill = "lightgray"
	default:
		fill = "white"
	}
	return
}
