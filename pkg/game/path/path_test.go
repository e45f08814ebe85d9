package path

import (
	"context"
	"errors"
	"testing"

	"github.com/cbodonnell/tsuro/pkg/game/tiles"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func straightTile(t *testing.T) (int, int) {
	id, rot, ok := tiles.Find(tiles.Connections{5, 4, 7, 6, 1, 0, 3, 2})
	require.True(t, ok)
	return id, rot
}

func TestFacedCell(t *testing.T) {
	tests := []struct {
		name string
		path gametypes.Path
		want gametypes.Cell
	}{
		{name: "top edge facing down", path: gametypes.Path{X1: 4, Y1: 0, Dir: gametypes.DirectionBottom}, want: gametypes.Cell{Column: 1, Row: 0}},
		{name: "bottom edge facing up", path: gametypes.Path{X1: 4, Y1: 18, Dir: gametypes.DirectionTop}, want: gametypes.Cell{Column: 1, Row: 5}},
		{name: "left edge facing right", path: gametypes.Path{X1: 0, Y1: 7, Dir: gametypes.DirectionRight}, want: gametypes.Cell{Column: 0, Row: 2}},
		{name: "right edge facing left", path: gametypes.Path{X1: 18, Y1: 7, Dir: gametypes.DirectionLeft}, want: gametypes.Cell{Column: 5, Row: 2}},
		{name: "leaving right", path: gametypes.Path{X1: 18, Y1: 7, Dir: gametypes.DirectionRight}, want: gametypes.Cell{Column: 6, Row: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FacedCell(tt.path))
		})
	}
}

func TestStartPositions(t *testing.T) {
	starts := StartPositions()
	assert.Len(t, starts, 48)

	seen := map[[2]int]bool{}
	for _, s := range starts {
		key := [2]int{s.X0, s.Y0}
		assert.False(t, seen[key], "duplicate start %v", key)
		seen[key] = true
		assert.True(t, FacedCell(s).InBounds(), "start %v faces off the board", key)
		_, err := entryPoint(s)
		assert.NoError(t, err)
	}
}

// Three tiles in columns 3 to 5 carry a token heading right off the board.
func TestTraverse_ExitsAfterThreeTiles(t *testing.T) {
	id, rot := straightTile(t)
	board := gametypes.BoardTiles{
		{Column: 3, Row: 2, TileID: id, Rotation: rot},
		{Column: 4, Row: 2, TileID: id, Rotation: rot},
		{Column: 5, Row: 2, TileID: id, Rotation: rot},
	}
	start := gametypes.Path{X0: 0, Y0: 7, X1: 9, Y1: 7, Dir: gametypes.DirectionRight, Step: 3}

	var waypoints []Waypoint
	end, outcome, err := Traverse(context.Background(), board, start, func(wp Waypoint) error {
		waypoints = append(waypoints, wp)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, waypoints, 3)
	assert.Equal(t, Continue, waypoints[0].Outcome)
	assert.Equal(t, Continue, waypoints[1].Outcome)
	assert.Equal(t, Exit, waypoints[2].Outcome)
	assert.Equal(t, 5, waypoints[2].Cell.Column)

	assert.Equal(t, Exit, outcome)
	assert.True(t, IsLoss(end))
	assert.Equal(t, 6, FacedCell(end).Column)
	assert.Equal(t, gametypes.Path{X0: 0, Y0: 7, X1: 18, Y1: 7, Dir: gametypes.DirectionRight, Step: 6}, end)
}

func TestTraverse_RestsInFrontOfEmptyCell(t *testing.T) {
	id, rot := straightTile(t)
	board := gametypes.BoardTiles{{Column: 0, Row: 0, TileID: id, Rotation: rot}}
	start := gametypes.Path{X0: 0, Y0: 1, X1: 0, Y1: 1, Dir: gametypes.DirectionRight}

	calls := 0
	end, outcome, err := Traverse(context.Background(), board, start, func(wp Waypoint) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Rest, outcome)
	assert.Equal(t, gametypes.Cell{Column: 1, Row: 0}, FacedCell(end))
	assert.False(t, IsLoss(end))
}

func TestTraverse_NoTileAhead(t *testing.T) {
	start := gametypes.Path{X1: 0, Y1: 1, Dir: gametypes.DirectionRight}
	end, outcome, err := Traverse(context.Background(), gametypes.BoardTiles{}, start, func(wp Waypoint) error {
		t.Fatal("unexpected waypoint")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Rest, outcome)
	assert.Equal(t, start, end)
}

func TestTraverse_CallbackError(t *testing.T) {
	id, rot := straightTile(t)
	board := gametypes.BoardTiles{
		{Column: 0, Row: 0, TileID: id, Rotation: rot},
		{Column: 1, Row: 0, TileID: id, Rotation: rot},
	}
	start := gametypes.Path{X1: 0, Y1: 1, Dir: gametypes.DirectionRight}
	stop := errors.New("stop")

	end, _, err := Traverse(context.Background(), board, start, func(wp Waypoint) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, start, end)
}

func TestStep_Errors(t *testing.T) {
	_, err := Step(gametypes.BoardTiles{}, gametypes.Path{X1: 0, Y1: 1, Dir: gametypes.DirectionRight})
	assert.Error(t, err)

	_, err = Step(gametypes.BoardTiles{}, gametypes.Path{X1: 18, Y1: 1, Dir: gametypes.DirectionRight})
	assert.Error(t, err)
}

func TestTraverseIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		board := gametypes.BoardTiles{}
		for c := 0; c < gametypes.BoardSize; c++ {
			for r := 0; r < gametypes.BoardSize; r++ {
				if !rapid.Bool().Draw(t, "placed") {
					continue
				}
				board = append(board, gametypes.BoardTile{
					Column:   c,
					Row:      r,
					TileID:   rapid.IntRange(0, tiles.Count()-1).Draw(t, "tile"),
					Rotation: rapid.SampledFrom([]int{0, 90, 180, 270}).Draw(t, "rotation"),
				})
			}
		}
		start := rapid.SampledFrom(StartPositions()).Draw(t, "start")

		first, firstOutcome, err := Traverse(context.Background(), board, start, nil)
		if err != nil {
			t.Fatalf("traverse: %v", err)
		}
		second, secondOutcome, _ := Traverse(context.Background(), board, start, nil)
		if first != second || firstOutcome != secondOutcome {
			t.Fatalf("traversal changed between runs: %v/%v != %v/%v", first, firstOutcome, second, secondOutcome)
		}
		if firstOutcome == Continue {
			t.Fatalf("traversal stopped in front of a placed tile")
		}
		if (firstOutcome == Exit) != IsLoss(first) {
			t.Fatalf("outcome %v disagrees with IsLoss", firstOutcome)
		}
	})
}
