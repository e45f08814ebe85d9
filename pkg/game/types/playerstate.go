package types

// Path is a token trail in lattice units. (X0, Y0) is where the token
// entered the board, (X1, Y1) is the current head. Step counts the tiles
// crossed so far.
type Path struct {
	X0   int       `json:"x0"`
	Y0   int       `json:"y0"`
	X1   int       `json:"x1"`
	Y1   int       `json:"y1"`
	Dir  Direction `json:"dir"`
	Step int       `json:"step"`
}

type Meeple struct {
	ID    PlayerID `json:"id"`
	Color string   `json:"color"`
	Path  Path     `json:"path"`
}

type Cell struct {
	Column int `json:"c"`
	Row    int `json:"r"`
}

func (c Cell) InBounds() bool {
	return c.Column >= 0 && c.Column < BoardSize && c.Row >= 0 && c.Row < BoardSize
}

type SelectedTile struct {
	TileID   int `json:"id"`
	Rotation int `json:"rot"`
}

type PlayerState struct {
	PlayerName         string        `json:"playerName"`
	PlayerColor        string        `json:"playerColor"`
	PlayerStatus       PlayerStatus  `json:"playerStatus"`
	PlayerTurnsPlayed  int           `json:"playerTurnsPlayed"`
	PlayerTiles        []int         `json:"playerTiles"`
	PlayerStartMarker  *Path         `json:"playerStartMarker,omitempty"`
	PlayerSelectedTile *SelectedTile `json:"playerSelectedTile,omitempty"`
	PlayerTilePlaced   *Cell         `json:"playerTilePlaced,omitempty"`
	PlayerMeeple       *Meeple       `json:"playerMeeple,omitempty"`
	PlayerPathLength   int           `json:"playerPathLength"`
}

func (p *PlayerState) IsActive() bool {
	return p != nil && p.PlayerStatus.IsActive()
}

// HasTile reports whether the hand holds the tile.
func (p *PlayerState) HasTile(id int) bool {
	for _, t := range p.PlayerTiles {
		if t == id {
			return true
		}
	}
	return false
}

// RemoveTile drops the first occurrence of id from the hand.
func (p *PlayerState) RemoveTile(id int) bool {
	for i, t := range p.PlayerTiles {
		if t == id {
			p.PlayerTiles = append(p.PlayerTiles[:i:i], p.PlayerTiles[i+1:]...)
			return true
		}
	}
	return false
}

// PlayableTiles counts the non-dragon tiles in hand.
func (p *PlayerState) PlayableTiles() int {
	n := 0
	for _, t := range p.PlayerTiles {
		if t != DragonTileID {
			n++
		}
	}
	return n
}

func (p *PlayerState) Copy() *PlayerState {
	if p == nil {
		return nil
	}
	c := *p
	if p.PlayerTiles != nil {
		c.PlayerTiles = append([]int{}, p.PlayerTiles...)
	}
	if p.PlayerStartMarker != nil {
		m := *p.PlayerStartMarker
		c.PlayerStartMarker = &m
	}
	if p.PlayerSelectedTile != nil {
		s := *p.PlayerSelectedTile
		c.PlayerSelectedTile = &s
	}
	if p.PlayerTilePlaced != nil {
		t := *p.PlayerTilePlaced
		c.PlayerTilePlaced = &t
	}
	if p.PlayerMeeple != nil {
		m := *p.PlayerMeeple
		c.PlayerMeeple = &m
	}
	return &c
}
