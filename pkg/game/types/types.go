package types

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// BoardSize is the number of cells on each side of the square board.
	BoardSize = 6
	// EdgeUnits is the number of lattice units along one tile edge.
	// Token heads sit on the lattice at tile-edge thirds.
	EdgeUnits = 3
	// PlayableTiles is the number of distinct path tiles.
	PlayableTiles = 35
	// DragonTileID is the reserved deck sentinel. It has no paths.
	DragonTileID = PlayableTiles
	// TotalTiles is the deck size at game start, dragon included.
	TotalTiles = PlayableTiles + 1
	// HandSize is the number of tiles a player holds when fully dealt.
	HandSize = 3
	// MaxPlayers is bounded by the number of token colours.
	MaxPlayers = len(Palette)
)

// PlayerID is the index of a player in GameState.Players.
// Players are never reordered once registered, so the index is a stable identity.
type PlayerID int

const NoPlayer PlayerID = -1

type GameStatus int

const (
	GameStatusNone     GameStatus = 0
	GameStatusStarting GameStatus = 1
	GameStatusPlaying  GameStatus = 5
	GameStatusFinished GameStatus = 10
)

func (s GameStatus) String() string {
	switch s {
	case GameStatusNone:
		return "none"
	case GameStatusStarting:
		return "starting"
	case GameStatusPlaying:
		return "playing"
	case GameStatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// PlayerStatus values are ordered by severity. Anything below
// PlayerStatusLost still competes.
type PlayerStatus int

const (
	PlayerStatusNone      PlayerStatus = 0
	PlayerStatusWaiting   PlayerStatus = 1
	PlayerStatusPlaying   PlayerStatus = 3
	PlayerStatusDone      PlayerStatus = 6
	PlayerStatusLost      PlayerStatus = 11
	PlayerStatusWon       PlayerStatus = 12
	PlayerStatusSpectator PlayerStatus = 15
)

func (s PlayerStatus) IsActive() bool {
	return s > PlayerStatusNone && s < PlayerStatusLost
}

func (s PlayerStatus) String() string {
	switch s {
	case PlayerStatusNone:
		return "none"
	case PlayerStatusWaiting:
		return "waiting"
	case PlayerStatusPlaying:
		return "playing"
	case PlayerStatusDone:
		return "done"
	case PlayerStatusLost:
		return "lost"
	case PlayerStatusWon:
		return "won"
	case PlayerStatusSpectator:
		return "spectator"
	default:
		return "unknown"
	}
}

// Direction is where a token head is facing.
type Direction int

const (
	DirectionTop Direction = iota
	DirectionRight
	DirectionBottom
	DirectionLeft
)

// Angle is the clockwise rotation in degrees from facing up.
func (d Direction) Angle() int {
	return int(d) * 90
}

func (d Direction) String() string {
	switch d {
	case DirectionTop:
		return "top"
	case DirectionRight:
		return "right"
	case DirectionBottom:
		return "bottom"
	case DirectionLeft:
		return "left"
	default:
		return "unknown"
	}
}

type Color struct {
	R, G, B uint8
}

// Palette holds the token colours, one per seat.
var Palette = [8]Color{
	{226, 55, 46},
	{46, 226, 129},
	{46, 193, 226},
	{226, 208, 46},
	{61, 61, 61},
	{190, 46, 226},
	{50, 46, 226},
	{191, 191, 191},
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses a "#rrggbb" string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %v", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Distance is the mean absolute channel difference.
func (c Color) Distance(o Color) float64 {
	abs := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	return float64(abs(c.R, o.R)+abs(c.G, o.G)+abs(c.B, o.B)) / 3
}

// NearestAvailable returns the palette colour closest to c that is not in
// taken. Ties go to the lower palette index. ok is false when every palette
// colour is taken.
func NearestAvailable(c Color, taken []Color) (Color, bool) {
	best, bestDist, ok := Color{}, 0.0, false
	for _, p := range Palette {
		used := false
		for _, t := range taken {
			if t == p {
				used = true
				break
			}
		}
		if used {
			continue
		}
		if d := c.Distance(p); !ok || d < bestDist {
			best, bestDist, ok = p, d, true
		}
	}
	return best, ok
}
