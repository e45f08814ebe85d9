package game

import (
	"time"

	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
)

type TokenMark int

const (
	TokenNormal TokenMark = iota
	TokenHighlighted
	TokenDisabled
)

func (m TokenMark) String() string {
	switch m {
	case TokenNormal:
		return "normal"
	case TokenHighlighted:
		return "highlighted"
	case TokenDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Renderer is the drawing surface the engine reports to. Implementations
// must not block for long and must not fail game logic.
type Renderer interface {
	DrawTile(tile gametypes.BoardTile)
	MoveToken(id gametypes.PlayerID, x, y, angle int)
	MarkToken(id gametypes.PlayerID, mark TokenMark)
	ShowMessage(message string, duration time.Duration)
}

// LogRenderer writes every drawing call to a logger. It backs the headless
// client.
type LogRenderer struct {
	logger *log.Logger
}

func NewLogRenderer(logger *log.Logger) *LogRenderer {
	if logger == nil {
		logger = log.Default()
	}
	return &LogRenderer{logger: logger.With("component", "renderer")}
}

func (r *LogRenderer) DrawTile(tile gametypes.BoardTile) {
	r.logger.Debug("tile %d rotated %d placed at (%d,%d)", tile.TileID, tile.Rotation, tile.Column, tile.Row)
}

func (r *LogRenderer) MoveToken(id gametypes.PlayerID, x, y, angle int) {
	r.logger.Trace("token %d moved to (%d,%d) facing %d", id, x, y, angle)
}

func (r *LogRenderer) MarkToken(id gametypes.PlayerID, mark TokenMark) {
	r.logger.Debug("token %d marked %s", id, mark)
}

func (r *LogRenderer) ShowMessage(message string, duration time.Duration) {
	r.logger.Info("%s", message)
}
