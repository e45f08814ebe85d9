package types

type BoardTile struct {
	Column   int `json:"c"`
	Row      int `json:"r"`
	TileID   int `json:"id"`
	Rotation int `json:"rot"`
}

// BoardTiles is the append-only placement log. A cell appears at most once.
type BoardTiles []BoardTile

func (b BoardTiles) At(column, row int) (BoardTile, bool) {
	for _, t := range b {
		if t.Column == column && t.Row == row {
			return t, true
		}
	}
	return BoardTile{}, false
}

func (b BoardTiles) Occupied(column, row int) bool {
	_, ok := b.At(column, row)
	return ok
}

// GameState is the replicated state of one game session.
type GameState struct {
	// Version increases on every pushed mutation. 0 forces a reset on every replica.
	Version    int        `json:"version"`
	GameStatus GameStatus `json:"gameStatus"`
	// Players is indexed by PlayerID and never reordered.
	Players        []*PlayerState `json:"players"`
	PlayerTurn     int            `json:"playerTurn"`
	PrevPlayerTurn *int           `json:"prevPlayerTurn,omitempty"`
	RoundNum       int            `json:"roundNum"`
	DeckTiles      []int          `json:"deckTiles"`
	BoardTiles     BoardTiles     `json:"boardTiles"`
}

// NewGameState returns the empty template state.
func NewGameState() *GameState {
	return &GameState{
		Players:    []*PlayerState{},
		DeckTiles:  []int{},
		BoardTiles: BoardTiles{},
	}
}

func (g *GameState) Copy() *GameState {
	if g == nil {
		return nil
	}
	c := *g
	if g.Players != nil {
		c.Players = make([]*PlayerState, len(g.Players))
		for i, p := range g.Players {
			c.Players[i] = p.Copy()
		}
	}
	if g.PrevPlayerTurn != nil {
		prev := *g.PrevPlayerTurn
		c.PrevPlayerTurn = &prev
	}
	if g.DeckTiles != nil {
		c.DeckTiles = append([]int{}, g.DeckTiles...)
	}
	if g.BoardTiles != nil {
		c.BoardTiles = append(BoardTiles{}, g.BoardTiles...)
	}
	return &c
}

// Player returns the player at id, or nil if out of range.
func (g *GameState) Player(id PlayerID) *PlayerState {
	if id < 0 || int(id) >= len(g.Players) {
		return nil
	}
	return g.Players[id]
}

// CurrentPlayer returns the player whose action is expected.
func (g *GameState) CurrentPlayer() *PlayerState {
	return g.Player(PlayerID(g.PlayerTurn))
}

func (g *GameState) PlayerByName(name string) (PlayerID, *PlayerState) {
	for i, p := range g.Players {
		if p != nil && p.PlayerName == name {
			return PlayerID(i), p
		}
	}
	return NoPlayer, nil
}

// ActivePlayers counts the players still competing.
func (g *GameState) ActivePlayers() int {
	n := 0
	for _, p := range g.Players {
		if p.IsActive() {
			n++
		}
	}
	return n
}
