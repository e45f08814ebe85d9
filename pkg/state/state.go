package state

import (
	"context"

	"github.com/cbodonnell/tsuro/pkg/game/diff"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
)

// StateManager provides shared access to the game state.
// Implementations must be thread-safe.
type StateManager interface {
	// Get returns a copy of the current game state.
	Get() *gametypes.GameState
	// Replace swaps in a new game state and returns what changed.
	Replace(gameState *gametypes.GameState) diff.Changes
	// BumpVersion increments the local version and returns it.
	BumpVersion() int
}

// RoomRefresher keeps the lobby listing in step with the game.
type RoomRefresher interface {
	Refresh(ctx context.Context, gameState *gametypes.GameState) error
	Delete(ctx context.Context) error
}

// AdvanceTurn moves gameState.PlayerTurn to the next player. With
// onlyActive set, players that stopped competing are skipped; if nobody
// is eligible the turn comes back to where it started. RoundNum
// increases whenever the rotation wraps onto an eligible player.
func AdvanceTurn(gameState *gametypes.GameState, onlyActive bool) int {
	n := len(gameState.Players)
	if n == 0 {
		return gameState.PlayerTurn
	}
	turn := ((gameState.PlayerTurn % n) + n) % n
	eligible := func(i int) bool {
		return !onlyActive || gameState.Players[i].IsActive()
	}
	next := turn
	for {
		next = (next + 1) % n
		if eligible(next) || next == turn {
			break
		}
	}
	if next < turn || (next == turn && eligible(next)) {
		gameState.RoundNum++
	}
	gameState.PlayerTurn = next
	return next
}
