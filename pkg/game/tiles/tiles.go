// Package tiles holds the static path connectivity of the tile set.
//
// Each tile edge carries two path endpoints, numbered clockwise from the
// top-left: 0,1 on the top edge (left to right), 2,3 on the right edge
// (top to bottom), 4,5 on the bottom edge (right to left) and 6,7 on the
// left edge (bottom to top). A tile joins the eight endpoints in four pairs.
// The tile set is every such pairing that is distinct under rotation.
package tiles

import (
	"fmt"
	"sort"

	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
)

const Points = 8

// Connections maps every endpoint to the endpoint it is joined with.
type Connections [Points]int

var set = build()

func build() []Connections {
	seen := map[Connections]bool{}
	var out []Connections
	var walk func(c Connections, used [Points]bool)
	walk = func(c Connections, used [Points]bool) {
		first := -1
		for p := 0; p < Points; p++ {
			if !used[p] {
				first = p
				break
			}
		}
		if first < 0 {
			canon := canonical(c)
			if !seen[canon] {
				seen[canon] = true
				out = append(out, canon)
			}
			return
		}
		used[first] = true
		for q := first + 1; q < Points; q++ {
			if used[q] {
				continue
			}
			used[q] = true
			c[first], c[q] = q, first
			walk(c, used)
			used[q] = false
		}
	}
	walk(Connections{}, [Points]bool{})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b Connections) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func rotate(c Connections, quarters int) Connections {
	var r Connections
	shift := 2 * quarters
	for p := 0; p < Points; p++ {
		r[(p+shift)%Points] = (c[p] + shift) % Points
	}
	return r
}

func canonical(c Connections) Connections {
	best := c
	for q := 1; q < 4; q++ {
		if r := rotate(c, q); less(r, best) {
			best = r
		}
	}
	return best
}

// Count is the number of playable tiles.
func Count() int {
	return len(set)
}

// Get returns the unrotated connectivity of a tile.
func Get(tileID int) (Connections, error) {
	if tileID == gametypes.DragonTileID {
		return Connections{}, fmt.Errorf("dragon tile has no paths")
	}
	if tileID < 0 || tileID >= len(set) {
		return Connections{}, fmt.Errorf("unknown tile id %d", tileID)
	}
	return set[tileID], nil
}

// Quarters normalises a rotation in degrees to clockwise quarter turns.
func Quarters(rotation int) (int, error) {
	if rotation%90 != 0 {
		return 0, fmt.Errorf("rotation %d is not a multiple of 90", rotation)
	}
	return ((rotation/90)%4 + 4) % 4, nil
}

// Rotated returns the connectivity of a tile turned clockwise by rotation degrees.
func Rotated(tileID, rotation int) (Connections, error) {
	c, err := Get(tileID)
	if err != nil {
		return Connections{}, err
	}
	q, err := Quarters(rotation)
	if err != nil {
		return Connections{}, err
	}
	return rotate(c, q), nil
}

// Exit returns the endpoint a path entering at entry leaves through.
func Exit(tileID, rotation, entry int) (int, error) {
	if entry < 0 || entry >= Points {
		return 0, fmt.Errorf("invalid entry point %d", entry)
	}
	c, err := Rotated(tileID, rotation)
	if err != nil {
		return 0, err
	}
	return c[entry], nil
}

// Find returns the tile and rotation matching a connectivity.
func Find(c Connections) (tileID int, rotation int, ok bool) {
	canon := canonical(c)
	for id, t := range set {
		if t != canon {
			continue
		}
		for q := 0; q < 4; q++ {
			if rotate(t, q) == c {
				return id, q * 90, true
			}
		}
	}
	return 0, 0, false
}
