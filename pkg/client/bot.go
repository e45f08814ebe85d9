package client

import (
	"context"
	"math/rand"
	"time"

	"github.com/cbodonnell/tsuro/pkg/game"
	"github.com/cbodonnell/tsuro/pkg/game/path"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
)

// Bot plays the seats this replica acts for with random legal moves. Tile
// placements that keep the token on the board are preferred.
type Bot struct {
	engine *game.Engine
	rng    *rand.Rand
	logger *log.Logger
}

type NewBotOptions struct {
	Engine *game.Engine
	Rand   *rand.Rand
	Logger *log.Logger
}

func NewBot(opts NewBotOptions) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{
		engine: opts.Engine,
		rng:    rng,
		logger: logger.With("component", "bot"),
	}
}

type move struct {
	tileID   int
	rotation int
	safe     bool
}

// Play makes one move if the current seat is played here. It reports
// whether it moved.
func (b *Bot) Play(ctx context.Context) (bool, error) {
	gameState := b.engine.State()
	if gameState.GameStatus != gametypes.GameStatusPlaying {
		return false, nil
	}
	p := gameState.CurrentPlayer()
	if !p.IsActive() || !b.engine.Acts(gametypes.PlayerID(gameState.PlayerTurn)) {
		return false, nil
	}

	if p.PlayerMeeple == nil {
		return true, b.placeToken(ctx, gameState)
	}
	if p.PlayableTiles() == 0 {
		return false, nil
	}
	return true, b.placeTile(ctx, gameState, p)
}

func (b *Bot) placeToken(ctx context.Context, gameState *gametypes.GameState) error {
	var free []gametypes.Path
	for _, start := range path.StartPositions() {
		taken := false
		for _, other := range gameState.Players {
			if m := other.PlayerStartMarker; m != nil && m.X0 == start.X0 && m.Y0 == start.Y0 {
				taken = true
				break
			}
		}
		faced := path.FacedCell(start)
		if !taken && !gameState.BoardTiles.Occupied(faced.Column, faced.Row) {
			free = append(free, start)
		}
	}
	if len(free) == 0 {
		return gametypes.NewValidationError("no free start position")
	}
	start := free[b.rng.Intn(len(free))]
	b.logger.Debug("starting at (%d,%d)", start.X1, start.Y1)
	return b.engine.SelectStartPosition(ctx, start)
}

func (b *Bot) placeTile(ctx context.Context, gameState *gametypes.GameState, p *gametypes.PlayerState) error {
	cell := path.FacedCell(p.PlayerMeeple.Path)

	var moves, safe []move
	for _, tileID := range p.PlayerTiles {
		if tileID == gametypes.DragonTileID {
			continue
		}
		for quarter := 0; quarter < 4; quarter++ {
			board := append(append(gametypes.BoardTiles{}, gameState.BoardTiles...), gametypes.BoardTile{
				Column:   cell.Column,
				Row:      cell.Row,
				TileID:   tileID,
				Rotation: quarter * 90,
			})
			_, outcome, err := path.Traverse(ctx, board, p.PlayerMeeple.Path, nil)
			if err != nil {
				return err
			}
			m := move{tileID: tileID, rotation: quarter * 90, safe: outcome != path.Exit}
			moves = append(moves, m)
			if m.safe {
				safe = append(safe, m)
			}
		}
	}
	if len(safe) > 0 {
		moves = safe
	}
	chosen := moves[b.rng.Intn(len(moves))]
	b.logger.Debug("placing tile %d rotated %d at (%d,%d), safe: %t", chosen.tileID, chosen.rotation, cell.Column, cell.Row, chosen.safe)

	if err := b.engine.SelectTile(ctx, chosen.tileID, chosen.rotation); err != nil {
		return err
	}
	return b.engine.PlaceTile(ctx, cell)
}
