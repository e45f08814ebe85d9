// Package path moves tokens along placed tiles.
//
// Token heads live on a lattice of EdgeUnits points per tile edge, so a
// 6x6 board spans coordinates 0..18 on both axes. A head always sits on a
// tile edge, at offset 1 or 2 from the nearest corner, facing the cell it
// will enter next.
package path

import (
	"context"
	"fmt"

	"github.com/cbodonnell/tsuro/pkg/game/tiles"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
)

const unit = gametypes.EdgeUnits

// Board looks up placed tiles by cell.
type Board interface {
	At(column, row int) (gametypes.BoardTile, bool)
}

// Outcome describes the boundary a token head reached.
type Outcome int

const (
	// Continue means the next cell already holds a tile.
	Continue Outcome = iota
	// Rest means the next cell is empty and on the board.
	Rest
	// Exit means the next cell is off the board.
	Exit
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Rest:
		return "rest"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Waypoint is reported once per tile crossed.
type Waypoint struct {
	Cell    gametypes.Cell
	Tile    gametypes.BoardTile
	Path    gametypes.Path
	Outcome Outcome
}

// FacedCell returns the cell the head is about to enter.
func FacedCell(p gametypes.Path) gametypes.Cell {
	switch p.Dir {
	case gametypes.DirectionTop:
		return gametypes.Cell{Column: p.X1 / unit, Row: p.Y1/unit - 1}
	case gametypes.DirectionLeft:
		return gametypes.Cell{Column: p.X1/unit - 1, Row: p.Y1 / unit}
	default:
		return gametypes.Cell{Column: p.X1 / unit, Row: p.Y1 / unit}
	}
}

// IsLoss reports whether the head faces off the board.
func IsLoss(p gametypes.Path) bool {
	return !FacedCell(p).InBounds()
}

func entryPoint(p gametypes.Path) (int, error) {
	switch p.Dir {
	case gametypes.DirectionBottom:
		if p.Y1%unit != 0 {
			break
		}
		switch p.X1 % unit {
		case 1:
			return 0, nil
		case 2:
			return 1, nil
		}
	case gametypes.DirectionLeft:
		if p.X1%unit != 0 {
			break
		}
		switch p.Y1 % unit {
		case 1:
			return 2, nil
		case 2:
			return 3, nil
		}
	case gametypes.DirectionTop:
		if p.Y1%unit != 0 {
			break
		}
		switch p.X1 % unit {
		case 2:
			return 4, nil
		case 1:
			return 5, nil
		}
	case gametypes.DirectionRight:
		if p.X1%unit != 0 {
			break
		}
		switch p.Y1 % unit {
		case 2:
			return 6, nil
		case 1:
			return 7, nil
		}
	}
	return 0, fmt.Errorf("head (%d,%d) facing %s is not on a tile edge", p.X1, p.Y1, p.Dir)
}

// exitHead places the head on the endpoint of cell, facing away from it.
func exitHead(cell gametypes.Cell, point int) (x, y int, dir gametypes.Direction) {
	cx, cy := cell.Column*unit, cell.Row*unit
	switch point {
	case 0:
		return cx + 1, cy, gametypes.DirectionTop
	case 1:
		return cx + 2, cy, gametypes.DirectionTop
	case 2:
		return cx + unit, cy + 1, gametypes.DirectionRight
	case 3:
		return cx + unit, cy + 2, gametypes.DirectionRight
	case 4:
		return cx + 2, cy + unit, gametypes.DirectionBottom
	case 5:
		return cx + 1, cy + unit, gametypes.DirectionBottom
	case 6:
		return cx, cy + 2, gametypes.DirectionLeft
	default:
		return cx, cy + 1, gametypes.DirectionLeft
	}
}

func boundary(board Board, p gametypes.Path) Outcome {
	next := FacedCell(p)
	if !next.InBounds() {
		return Exit
	}
	if _, ok := board.At(next.Column, next.Row); ok {
		return Continue
	}
	return Rest
}

// Step moves the head across the single tile in the faced cell and reports
// what lies beyond the exit edge.
func Step(board Board, p gametypes.Path) (Waypoint, error) {
	cell := FacedCell(p)
	if !cell.InBounds() {
		return Waypoint{}, fmt.Errorf("head (%d,%d) is already off the board", p.X1, p.Y1)
	}
	tile, ok := board.At(cell.Column, cell.Row)
	if !ok {
		return Waypoint{}, fmt.Errorf("no tile at cell (%d,%d)", cell.Column, cell.Row)
	}
	entry, err := entryPoint(p)
	if err != nil {
		return Waypoint{}, err
	}
	exit, err := tiles.Exit(tile.TileID, tile.Rotation, entry)
	if err != nil {
		return Waypoint{}, fmt.Errorf("failed to follow tile at (%d,%d): %v", cell.Column, cell.Row, err)
	}

	next := p
	next.X1, next.Y1, next.Dir = exitHead(cell, exit)
	next.Step++
	return Waypoint{
		Cell:    cell,
		Tile:    tile,
		Path:    next,
		Outcome: boundary(board, next),
	}, nil
}

// maxSteps bounds a traversal. Every tile can be crossed at most four times.
const maxSteps = gametypes.BoardSize * gametypes.BoardSize * 4

// Traverse chains Steps from p until the head rests in front of an empty
// cell or leaves the board. fn is called for every waypoint before the
// next tile is evaluated. A head that does not face a placed tile is
// returned unchanged with no callbacks.
func Traverse(ctx context.Context, board Board, p gametypes.Path, fn func(Waypoint) error) (gametypes.Path, Outcome, error) {
	outcome := boundary(board, p)
	for steps := 0; outcome == Continue; steps++ {
		if steps >= maxSteps {
			return p, outcome, fmt.Errorf("traversal did not terminate after %d steps", steps)
		}
		if err := ctx.Err(); err != nil {
			return p, outcome, err
		}
		wp, err := Step(board, p)
		if err != nil {
			return p, outcome, err
		}
		if fn != nil {
			if err := fn(wp); err != nil {
				return p, outcome, err
			}
		}
		p, outcome = wp.Path, wp.Outcome
	}
	return p, outcome, nil
}

// StartPositions lists every board-edge entry point, facing into the board.
func StartPositions() []gametypes.Path {
	const max = gametypes.BoardSize * unit
	var out []gametypes.Path
	add := func(x, y int, dir gametypes.Direction) {
		out = append(out, gametypes.Path{X0: x, Y0: y, X1: x, Y1: y, Dir: dir})
	}
	for i := 1; i < max; i++ {
		if i%unit == 0 {
			continue
		}
		add(i, 0, gametypes.DirectionBottom)
		add(max, i, gametypes.DirectionLeft)
		add(i, max, gametypes.DirectionTop)
		add(0, i, gametypes.DirectionRight)
	}
	return out
}

// IsStartPosition reports whether p is an untravelled board-edge entry.
func IsStartPosition(p gametypes.Path) bool {
	for _, s := range StartPositions() {
		if s == p {
			return true
		}
	}
	return false
}
