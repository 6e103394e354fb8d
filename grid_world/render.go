package grid_world

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// Render prints the current board, for visual reference.
func (gw *GridWorld) Render(w io.Writer) {
	for row := 0; row < gw.size; row++ {
		for col := 0; col < gw.size; col++ {
			cell := gw.state.CellType(Position{Row: row, Col: col})
			fmt.Fprint(w, colorize(cell, fmt.Sprintf("%c ", cell)))
		}
		fmt.Fprintln(w)
	}
}

func colorize(cell rune, text string) aurora.Value {
	switch cell {
	case PLAYER:
		return aurora.Cyan(text)
	case GOAL:
		return aurora.Green(text)
	case PIT:
		return aurora.Red(text)
	case WALL:
		return aurora.Yellow(text)
	}
	return aurora.White(text)
}

// CellValue is what an agent learned about one board cell: the value and greedy
// action of the state with the player standing there.
type CellValue struct {
	Row, Col int
	// Piece is the piece occupying the cell, or EMPTY if the player may stand there.
	Piece     rune
	Value     float64
	HasValue  bool
	Action    int
	HasAction bool
}

// ValueGrid projects values and policy onto the current board: for every cell the
// player could occupy, the state with the player there and every other piece where
// it is now. Only this two-dimensional slice of the state space can be displayed.
// Either map may be nil. The grid is indexed [row][col].
func (gw *GridWorld) ValueGrid(values map[State]float64, policy map[State]int) [][]CellValue {
	grid := make([][]CellValue, gw.size)
	for row := range grid {
		grid[row] = make([]CellValue, gw.size)
		for col := range grid[row] {
			pos := Position{Row: row, Col: col}
			s := gw.state
			cell := CellValue{Row: row, Col: col, Piece: s.CellType(pos)}
			if cell.Piece == PLAYER {
				cell.Piece = EMPTY
			}
			s.Player = pos
			cell.Value, cell.HasValue = values[s]
			cell.Action, cell.HasAction = policy[s]
			grid[row][col] = cell
		}
	}
	return grid
}

// ShowValues prints V(s) per cell for the current board layout. Cells occupied by
// another piece, or states never visited, are printed as placeholders.
func (gw *GridWorld) ShowValues(w io.Writer, values map[State]float64) {
	fmt.Fprintln(w, "Values:")
	for _, row := range gw.ValueGrid(values, nil) {
		for _, cell := range row {
			switch {
			case cell.Piece != EMPTY:
				fmt.Fprint(w, colorize(cell.Piece, fmt.Sprintf("%7c ", cell.Piece)))
			case cell.HasValue:
				fmt.Fprint(w, aurora.Blue(fmt.Sprintf("%7.2f ", cell.Value)))
			default:
				fmt.Fprintf(w, "%7s ", "?")
			}
		}
		fmt.Fprintln(w)
	}
}

// ShowPolicy prints the greedy action per cell for the current board layout.
func (gw *GridWorld) ShowPolicy(w io.Writer, policy map[State]int) {
	fmt.Fprintln(w, "Policy:")
	for _, row := range gw.ValueGrid(nil, policy) {
		for _, cell := range row {
			switch {
			case cell.Piece != EMPTY:
				fmt.Fprint(w, colorize(cell.Piece, fmt.Sprintf("%c ", cell.Piece)))
			case cell.HasAction:
				fmt.Fprint(w, aurora.Blue(fmt.Sprintf("%c ", arrow(cell.Action))))
			default:
				fmt.Fprint(w, "? ")
			}
		}
		fmt.Fprintln(w)
	}
}

func arrow(action int) rune {
	switch action {
	case UP:
		return '^'
	case DOWN:
		return 'v'
	case LEFT:
		return '<'
	case RIGHT:
		return '>'
	}
	return '='
}
