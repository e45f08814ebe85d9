package game

import (
	"math/rand"

	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
)

// InitDeck rebuilds the deck: the dragon tile at the bottom, index 0,
// followed by every playable tile.
func InitDeck(gameState *gametypes.GameState) {
	deck := make([]int, 0, gametypes.TotalTiles)
	deck = append(deck, gametypes.DragonTileID)
	for id := 0; id < gametypes.PlayableTiles; id++ {
		deck = append(deck, id)
	}
	gameState.DeckTiles = deck
}

// DragonTaken reports whether the dragon tile has left the deck.
func DragonTaken(gameState *gametypes.GameState) bool {
	return len(gameState.DeckTiles) == 0 || gameState.DeckTiles[0] != gametypes.DragonTileID
}

// TilesLeft counts the playable tiles in the deck.
func TilesLeft(gameState *gametypes.GameState) int {
	if DragonTaken(gameState) {
		return len(gameState.DeckTiles)
	}
	return len(gameState.DeckTiles) - 1
}

// DrawRandomTile removes a random playable tile from the deck. Once only
// the dragon is left it is handed out instead. It reports false when the
// deck is empty.
func DrawRandomTile(gameState *gametypes.GameState, rng *rand.Rand) (int, bool) {
	deck := gameState.DeckTiles
	if n := TilesLeft(gameState); n > 0 {
		idx := rng.Intn(n)
		if !DragonTaken(gameState) {
			idx++
		}
		id := deck[idx]
		gameState.DeckTiles = append(deck[:idx:idx], deck[idx+1:]...)
		log.Trace("drew tile %d from index %d, %d left", id, idx, TilesLeft(gameState))
		return id, true
	}
	if !DragonTaken(gameState) {
		gameState.DeckTiles = deck[1:]
		log.Debug("handing out the dragon tile")
		return gametypes.DragonTileID, true
	}
	return 0, false
}

func needsTiles(p *gametypes.PlayerState) bool {
	return p.IsActive() && len(p.PlayerTiles) < gametypes.HandSize
}

// nextDragonHolder finds the next active player after the current turn
// who is short of tiles. The current player never qualifies.
func nextDragonHolder(gameState *gametypes.GameState) gametypes.PlayerID {
	n := len(gameState.Players)
	if n == 0 {
		return gametypes.NoPlayer
	}
	turn := ((gameState.PlayerTurn % n) + n) % n
	for i := 1; i < n; i++ {
		idx := (turn + i) % n
		if needsTiles(gameState.Players[idx]) {
			return gametypes.PlayerID(idx)
		}
	}
	return gametypes.NoPlayer
}

// ReturnTilesToDeck puts tiles back into the deck. The dragon tile is
// passed on to the next player who still needs tiles, or goes back to the
// bottom of the deck if nobody does.
func ReturnTilesToDeck(gameState *gametypes.GameState, ids []int) {
	for _, id := range ids {
		if id != gametypes.DragonTileID {
			gameState.DeckTiles = append(gameState.DeckTiles, id)
			continue
		}
		if holder := nextDragonHolder(gameState); holder != gametypes.NoPlayer {
			p := gameState.Player(holder)
			p.PlayerTiles = append(p.PlayerTiles, gametypes.DragonTileID)
			log.Debug("passing the dragon tile to %s", p.PlayerName)
			continue
		}
		gameState.DeckTiles = append([]int{gametypes.DragonTileID}, gameState.DeckTiles...)
		log.Debug("returning the dragon tile to the deck")
	}
}
