// Package game runs the turn state machine on top of the local replica.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/tsuro/pkg/game/path"
	"github.com/cbodonnell/tsuro/pkg/game/tiles"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/state"
	"github.com/cbodonnell/tsuro/pkg/syncer"
	"golang.org/x/sync/errgroup"
)

// maxTransitions bounds one ProcessState call. Every seat can be skipped
// at most once before the machine waits for input or the game ends.
const maxTransitions = 2*gametypes.MaxPlayers + 2

const messageDuration = 3 * time.Second

type Engine struct {
	lock       sync.Mutex
	store      *state.Store
	syncer     *syncer.Syncer
	rooms      state.RoomRefresher
	renderer   Renderer
	rng        *rand.Rand
	hotSeat    bool
	stepDelay  time.Duration
	drawnTiles int
	announced  bool
	// started is the tile turn whose start has been handled
	started *turnKey
	logger  *log.Logger
}

type turnKey struct {
	round int
	turn  gametypes.PlayerID
}

// NewEngineOptions contains options for creating a new Engine.
type NewEngineOptions struct {
	Store  *state.Store
	Syncer *syncer.Syncer
	// Rooms is optional.
	Rooms    state.RoomRefresher
	Renderer Renderer
	Rand     *rand.Rand
	// HotSeat lets this replica act for every seat instead of only the
	// local player's.
	HotSeat bool
	// StepDelay paces token movement, once per tile crossed.
	StepDelay time.Duration
	Logger    *log.Logger
}

func NewEngine(opts NewEngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewLogRenderer(logger)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		store:     opts.Store,
		syncer:    opts.Syncer,
		rooms:     opts.Rooms,
		renderer:  renderer,
		rng:       rng,
		hotSeat:   opts.HotSeat,
		stepDelay: opts.StepDelay,
		logger:    logger,
	}
}

// State returns a copy of the local replica.
func (e *Engine) State() *gametypes.GameState {
	return e.store.Get()
}

// Acts reports whether this replica plays for the seat.
func (e *Engine) Acts(id gametypes.PlayerID) bool {
	return id != gametypes.NoPlayer && (e.hotSeat || e.store.SelfID() == id)
}

// ProcessState advances the state machine until it needs input from a
// player or another replica.
func (e *Engine) ProcessState(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.processState(ctx)
}

func (e *Engine) processState(ctx context.Context) error {
	for i := 0; i < maxTransitions; i++ {
		gameState := e.store.Get()
		switch gameState.GameStatus {
		case gametypes.GameStatusNone:
			if _, err := e.store.Update(func(gs *gametypes.GameState) error {
				gs.GameStatus = gametypes.GameStatusStarting
				return nil
			}); err != nil {
				return err
			}
			e.logger.Info("game starting")
			e.push(ctx)
			e.refreshRoom(ctx)
		case gametypes.GameStatusStarting:
			return nil
		case gametypes.GameStatusPlaying:
			e.syncView(gameState)
			progressed, err := e.onPlayerTurn(ctx)
			if err != nil || !progressed {
				return err
			}
		case gametypes.GameStatusFinished:
			e.syncView(gameState)
			e.announceWinner(gameState)
			return nil
		default:
			return gametypes.NewProtocolViolation("unknown game status %d", gameState.GameStatus)
		}
	}
	return fmt.Errorf("state machine did not settle after %d transitions", maxTransitions)
}

// Reset forgets what has been drawn so that the next ProcessState redraws
// the whole game. It follows a reset of the replica.
func (e *Engine) Reset() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.drawnTiles = 0
	e.announced = false
	e.started = nil
	e.store.ResetClients()
}

func (e *Engine) push(ctx context.Context) {
	if err := e.syncer.Push(ctx); err != nil {
		e.renderer.ShowMessage("Connection problem, the game will catch up later", messageDuration)
	}
}

func (e *Engine) refreshRoom(ctx context.Context) {
	if e.rooms == nil {
		return
	}
	if err := e.rooms.Refresh(ctx, e.store.Get()); err != nil {
		e.logger.Warn("failed to refresh room: %v", err)
	}
}

// syncView draws board tiles and tokens the renderer has not seen yet.
func (e *Engine) syncView(gameState *gametypes.GameState) {
	if e.drawnTiles > len(gameState.BoardTiles) {
		e.drawnTiles = 0
	}
	for _, t := range gameState.BoardTiles[e.drawnTiles:] {
		e.renderer.DrawTile(t)
	}
	e.drawnTiles = len(gameState.BoardTiles)

	for i, p := range gameState.Players {
		id := gametypes.PlayerID(i)
		client := e.store.Client(id)
		if !client.Ready {
			client.Ready = true
			if p.PlayerMeeple != nil {
				m := p.PlayerMeeple.Path
				e.renderer.MoveToken(id, m.X1, m.Y1, m.Dir.Angle())
			}
		}
		if p.PlayerMeeple != nil && !p.IsActive() && !client.Disabled {
			client.Disabled = true
			e.renderer.MarkToken(id, TokenDisabled)
		}
	}
}

func (e *Engine) announceWinner(gameState *gametypes.GameState) {
	if e.announced {
		return
	}
	for _, p := range gameState.Players {
		if p.PlayerStatus == gametypes.PlayerStatusWon {
			e.renderer.ShowMessage(fmt.Sprintf("Game over. %s won on turn %d. Tiles left: %d",
				p.PlayerName, p.PlayerTurnsPlayed, gametypes.PlayableTiles-len(gameState.BoardTiles)), 0)
			e.announced = true
			return
		}
	}
}

// onPlayerTurn reports true if it moved the game on without input.
func (e *Engine) onPlayerTurn(ctx context.Context) (bool, error) {
	gameState := e.store.Get()
	turn := gametypes.PlayerID(gameState.PlayerTurn)
	p := gameState.Player(turn)
	if p == nil {
		return false, gametypes.NewProtocolViolation("player turn %d is out of range", gameState.PlayerTurn)
	}
	// automatic transitions are computed only by the replica playing the seat
	if !e.Acts(turn) {
		return false, nil
	}

	if !p.IsActive() {
		e.logger.Debug("%s is not playing anymore, ending turn", p.PlayerName)
		return true, e.endTurn(ctx)
	}
	if p.PlayerMeeple == nil {
		return false, e.onStartingPositionTurn(ctx, turn)
	}
	return e.onTileTurn(ctx, turn)
}

func (e *Engine) onStartingPositionTurn(ctx context.Context, turn gametypes.PlayerID) error {
	p := e.store.Get().Player(turn)
	if len(p.PlayerTiles) > 0 {
		return nil
	}
	if _, err := e.store.Update(func(gs *gametypes.GameState) error {
		e.fillHand(gs, turn)
		return nil
	}); err != nil {
		return err
	}
	e.logger.Debug("dealt starting tiles to %s", p.PlayerName)
	e.push(ctx)
	return nil
}

func (e *Engine) onTileTurn(ctx context.Context, turn gametypes.PlayerID) (bool, error) {
	var (
		name   string
		status gametypes.PlayerStatus
		key    turnKey
	)
	_, err := e.store.Update(func(gs *gametypes.GameState) error {
		p := gs.Player(turn)
		key = turnKey{round: gs.RoundNum, turn: turn}
		if e.started == nil || *e.started != key {
			p.PlayerTilePlaced = nil
			p.PlayerSelectedTile = nil
		}
		name = p.PlayerName
		switch {
		case gs.ActivePlayers() == 1:
			p.PlayerStatus = gametypes.PlayerStatusWon
		case p.PlayableTiles() == 0:
			p.PlayerStatus = gametypes.PlayerStatusLost
		default:
			return nil
		}
		status = p.PlayerStatus
		e.playerDone(gs, turn)
		return nil
	})
	if err != nil {
		return false, err
	}
	e.started = &key

	switch status {
	case gametypes.PlayerStatusWon:
		e.logger.Info("%s is the last player standing", name)
	case gametypes.PlayerStatusLost:
		e.logger.Info("%s has no tiles left to play", name)
		e.renderer.ShowMessage(fmt.Sprintf("%s lost", name), messageDuration)
	default:
		e.renderer.MarkToken(turn, TokenHighlighted)
		return false, nil
	}
	return true, e.endTurn(ctx)
}

// playerDone resolves a player who can no longer play. The last player to
// drop out wins. Everybody else hands their tiles back.
func (e *Engine) playerDone(gameState *gametypes.GameState, id gametypes.PlayerID) {
	p := gameState.Player(id)
	if gameState.ActivePlayers() == 0 {
		gameState.GameStatus = gametypes.GameStatusFinished
		p.PlayerStatus = gametypes.PlayerStatusWon
		e.logger.Info("game over, %s won", p.PlayerName)
		return
	}
	ReturnTilesToDeck(gameState, p.PlayerTiles)
	p.PlayerTiles = []int{}
	p.PlayerStatus = gametypes.PlayerStatusLost
	e.logger.Info("%s lost", p.PlayerName)
}

// endTurn hands the turn to the next active player and pushes the state.
func (e *Engine) endTurn(ctx context.Context) error {
	finished := false
	_, err := e.store.Update(func(gs *gametypes.GameState) error {
		turn := gs.PlayerTurn
		if p := gs.CurrentPlayer(); p != nil {
			p.PlayerTurnsPlayed++
		}
		gs.PrevPlayerTurn = &turn
		if gs.ActivePlayers() > 0 {
			state.AdvanceTurn(gs, true)
			return nil
		}
		// still advance so that replicas can replay the last move
		state.AdvanceTurn(gs, false)
		gs.GameStatus = gametypes.GameStatusFinished
		finished = true
		return nil
	})
	if err != nil {
		return err
	}
	gameState := e.store.Get()
	e.logger.Debug("turn passed from %d to %d", *gameState.PrevPlayerTurn, gameState.PlayerTurn)
	e.push(ctx)
	if finished {
		e.refreshRoom(ctx)
	}
	return nil
}

func (e *Engine) fillHand(gameState *gametypes.GameState, id gametypes.PlayerID) {
	p := gameState.Player(id)
	for len(p.PlayerTiles) < gametypes.HandSize {
		if !e.drawTile(gameState, id) {
			return
		}
	}
}

func (e *Engine) drawTile(gameState *gametypes.GameState, id gametypes.PlayerID) bool {
	tile, ok := DrawRandomTile(gameState, e.rng)
	if !ok {
		e.logger.Debug("no more tiles left")
		return false
	}
	p := gameState.Player(id)
	p.PlayerTiles = append(p.PlayerTiles, tile)
	return true
}

// actingPlayer checks that this replica may move for the current seat.
func (e *Engine) actingPlayer(gameState *gametypes.GameState) (gametypes.PlayerID, *gametypes.PlayerState, error) {
	if gameState.GameStatus != gametypes.GameStatusPlaying {
		return gametypes.NoPlayer, nil, gametypes.NewValidationError("game is not in play")
	}
	turn := gametypes.PlayerID(gameState.PlayerTurn)
	p := gameState.Player(turn)
	if p == nil || !e.Acts(turn) {
		return gametypes.NoPlayer, nil, gametypes.NewValidationError("it is not your turn")
	}
	if !p.IsActive() {
		return gametypes.NoPlayer, nil, gametypes.NewValidationError("%s is out of the game", p.PlayerName)
	}
	return turn, p, nil
}

// Join registers a player and publishes the new roster.
func (e *Engine) Join(ctx context.Context, name, color string, asSelf bool) (gametypes.PlayerID, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	id, err := e.store.RegisterPlayer(ctx, name, color, asSelf)
	if err != nil {
		return gametypes.NoPlayer, err
	}
	e.push(ctx)
	return id, e.processState(ctx)
}

// Leave unregisters a player and publishes the new roster.
func (e *Engine) Leave(ctx context.Context, name string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.store.UnregisterPlayer(ctx, name); err != nil {
		return err
	}
	e.push(ctx)
	return e.processState(ctx)
}

// StartGame deals a fresh deck and moves the lobby into play. Only the
// room owner may start.
func (e *Engine) StartGame(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	gameState := e.store.Get()
	if gameState.GameStatus != gametypes.GameStatusStarting {
		return gametypes.NewValidationError("game is %s, not starting", gameState.GameStatus)
	}
	if !e.hotSeat && !e.store.IsOwner() {
		return gametypes.NewValidationError("only the room owner can start the game")
	}
	if len(gameState.Players) == 0 {
		return gametypes.NewValidationError("no players registered")
	}

	if _, err := e.store.Update(func(gs *gametypes.GameState) error {
		gs.GameStatus = gametypes.GameStatusPlaying
		for _, p := range gs.Players {
			if p.PlayerStatus != gametypes.PlayerStatusSpectator {
				p.PlayerStatus = gametypes.PlayerStatusWaiting
			}
		}
		gs.PlayerTurn = 0
		gs.PrevPlayerTurn = nil
		gs.RoundNum = 0
		gs.BoardTiles = gametypes.BoardTiles{}
		InitDeck(gs)
		return nil
	}); err != nil {
		return err
	}
	e.logger.Info("game playing with %d players", len(gameState.Players))
	e.push(ctx)
	e.refreshRoom(ctx)
	return e.processState(ctx)
}

// SelectStartPosition places the current player's token on a board-edge
// entry and ends the placement turn.
func (e *Engine) SelectStartPosition(ctx context.Context, start gametypes.Path) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	gameState := e.store.Get()
	turn, p, err := e.actingPlayer(gameState)
	if err != nil {
		return err
	}
	if p.PlayerMeeple != nil {
		return gametypes.NewValidationError("%s has already placed a token", p.PlayerName)
	}
	start.X0, start.Y0, start.Step = start.X1, start.Y1, 0
	if !path.IsStartPosition(start) {
		return gametypes.NewValidationError("(%d,%d) facing %s is not a start position", start.X1, start.Y1, start.Dir)
	}
	for _, other := range gameState.Players {
		if m := other.PlayerStartMarker; m != nil && m.X0 == start.X0 && m.Y0 == start.Y0 {
			return gametypes.NewValidationError("start position (%d,%d) is taken by %s", start.X0, start.Y0, other.PlayerName)
		}
	}
	if faced := path.FacedCell(start); gameState.BoardTiles.Occupied(faced.Column, faced.Row) {
		return gametypes.NewValidationError("start position (%d,%d) faces a placed tile", start.X0, start.Y0)
	}

	if _, err := e.store.Update(func(gs *gametypes.GameState) error {
		p := gs.Player(turn)
		e.fillHand(gs, turn)
		marker := start
		p.PlayerStartMarker = &marker
		p.PlayerMeeple = &gametypes.Meeple{ID: turn, Color: p.PlayerColor, Path: start}
		return nil
	}); err != nil {
		return err
	}
	e.logger.Info("%s starts at (%d,%d)", p.PlayerName, start.X0, start.Y0)
	e.renderer.MoveToken(turn, start.X1, start.Y1, start.Dir.Angle())

	if err := e.endTurn(ctx); err != nil {
		return err
	}
	return e.processState(ctx)
}

// SelectTile picks a tile from the current player's hand. Rotation is in
// degrees and must be a multiple of 90.
func (e *Engine) SelectTile(ctx context.Context, tileID, rotation int) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	turn, p, err := e.actingPlayer(e.store.Get())
	if err != nil {
		return err
	}
	if p.PlayerMeeple == nil {
		return gametypes.NewValidationError("%s has to place a token first", p.PlayerName)
	}
	if tileID == gametypes.DragonTileID {
		return gametypes.NewValidationError("the dragon tile cannot be played")
	}
	if !p.HasTile(tileID) {
		return gametypes.NewValidationError("tile %d is not in the hand of %s", tileID, p.PlayerName)
	}
	quarters, err := tiles.Quarters(rotation)
	if err != nil {
		return gametypes.NewValidationError("%v", err)
	}

	_, err = e.store.Update(func(gs *gametypes.GameState) error {
		gs.Player(turn).PlayerSelectedTile = &gametypes.SelectedTile{TileID: tileID, Rotation: quarters * 90}
		return nil
	})
	return err
}

type traversal struct {
	id      gametypes.PlayerID
	from    gametypes.Path
	to      gametypes.Path
	outcome path.Outcome
}

// PlaceTile puts the selected tile on the cell the current player's token
// faces, moves every token the tile touches and ends the turn.
func (e *Engine) PlaceTile(ctx context.Context, cell gametypes.Cell) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	gameState := e.store.Get()
	turn, p, err := e.actingPlayer(gameState)
	if err != nil {
		return err
	}
	if p.PlayerMeeple == nil {
		return gametypes.NewValidationError("%s has to place a token first", p.PlayerName)
	}
	selected := p.PlayerSelectedTile
	if selected == nil {
		return gametypes.NewValidationError("%s has not selected a tile", p.PlayerName)
	}
	if faced := path.FacedCell(p.PlayerMeeple.Path); cell != faced {
		return gametypes.NewValidationError("tile must be placed at (%d,%d), not (%d,%d)", faced.Column, faced.Row, cell.Column, cell.Row)
	}
	if !cell.InBounds() {
		return gametypes.NewValidationError("cell (%d,%d) is off the board", cell.Column, cell.Row)
	}

	placed := gametypes.BoardTile{Column: cell.Column, Row: cell.Row, TileID: selected.TileID, Rotation: selected.Rotation}
	if _, err := e.store.Update(func(gs *gametypes.GameState) error {
		if gs.BoardTiles.Occupied(cell.Column, cell.Row) {
			return gametypes.NewValidationError("cell (%d,%d) is occupied", cell.Column, cell.Row)
		}
		p := gs.Player(turn)
		if !p.RemoveTile(selected.TileID) {
			return gametypes.NewValidationError("tile %d is not in the hand of %s", selected.TileID, p.PlayerName)
		}
		at := cell
		p.PlayerTilePlaced = &at
		gs.BoardTiles = append(gs.BoardTiles, placed)
		return nil
	}); err != nil {
		return err
	}
	e.logger.Info("%s placed tile %d at (%d,%d)", p.PlayerName, placed.TileID, cell.Column, cell.Row)
	e.syncView(e.store.Get())

	results, err := e.traverse(ctx, e.store.Get(), cell)
	if err != nil {
		return err
	}

	var lost []string
	if _, err := e.store.Update(func(gs *gametypes.GameState) error {
		for _, r := range results {
			p := gs.Player(r.id)
			p.PlayerMeeple.Path = r.to
			p.PlayerPathLength += r.to.Step - r.from.Step
			if r.outcome != path.Exit {
				p.PlayerStatus = gametypes.PlayerStatusPlaying
				continue
			}
			p.PlayerStatus = gametypes.PlayerStatusLost
			e.playerDone(gs, r.id)
			if p.PlayerStatus == gametypes.PlayerStatusLost {
				lost = append(lost, p.PlayerName)
			}
		}
		if gs.Player(turn).IsActive() {
			e.drawTile(gs, turn)
		}
		return nil
	}); err != nil {
		return err
	}
	for _, name := range lost {
		e.renderer.ShowMessage(fmt.Sprintf("%s lost", name), messageDuration)
	}
	e.syncView(e.store.Get())

	if err := e.endTurn(ctx); err != nil {
		return err
	}
	return e.processState(ctx)
}

// traverse moves every token facing cell across the board in parallel.
// Each token is independent so the results do not depend on ordering.
func (e *Engine) traverse(ctx context.Context, gameState *gametypes.GameState, cell gametypes.Cell) ([]traversal, error) {
	var results []traversal
	for i, p := range gameState.Players {
		if p.PlayerMeeple == nil || path.FacedCell(p.PlayerMeeple.Path) != cell {
			continue
		}
		results = append(results, traversal{id: gametypes.PlayerID(i), from: p.PlayerMeeple.Path})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			to, outcome, err := path.Traverse(gctx, gameState.BoardTiles, r.from, e.animate(gctx, r.id))
			if err != nil {
				return fmt.Errorf("failed to move token of player %d: %v", r.id, err)
			}
			r.to, r.outcome = to, outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) animate(ctx context.Context, id gametypes.PlayerID) func(path.Waypoint) error {
	return func(wp path.Waypoint) error {
		e.renderer.MoveToken(id, wp.Path.X1, wp.Path.Y1, wp.Path.Dir.Angle())
		if wp.Outcome == path.Exit {
			e.renderer.MarkToken(id, TokenDisabled)
		}
		if e.stepDelay <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.stepDelay):
			return nil
		}
	}
}

// ProcessAction replays the pending move of another replica and then
// commits it. A pending state that does not name the acting player
// cannot be replayed; the replica is resynced instead.
func (e *Engine) ProcessAction(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	pending := e.syncer.Pending()
	if pending == nil {
		return nil
	}
	local := e.store.Get()
	if local.GameStatus == gametypes.GameStatusNone {
		e.syncer.ResolvePending(ctx)
		return e.processState(ctx)
	}

	if pending.PrevPlayerTurn == nil || pending.Player(gametypes.PlayerID(*pending.PrevPlayerTurn)) == nil {
		err := gametypes.NewProtocolViolation("player's turn did not change in pending version %d", pending.Version)
		e.logger.Error("%v", err)
		if rerr := e.syncer.Resync(ctx); rerr != nil {
			e.logger.Error("failed to resync: %v", rerr)
		}
		e.drawnTiles = 0
		e.announced = false
		e.store.ResetClients()
		if perr := e.processState(ctx); perr != nil {
			e.logger.Warn("failed to process state after resync: %v", perr)
		}
		return err
	}

	id := gametypes.PlayerID(*pending.PrevPlayerTurn)
	changes := e.syncer.PendingChanges()
	prefix := fmt.Sprintf("players.%d", id)
	switch {
	case changes.Has(prefix + ".playerStartMarker"):
		e.logger.Debug("start position action by player %d", id)
		if m := pending.Player(id).PlayerMeeple; m != nil {
			e.renderer.MoveToken(id, m.Path.X1, m.Path.Y1, m.Path.Dir.Angle())
		}
	case changes.Has(prefix+".playerTilePlaced") || changes.Has("boardTiles"):
		e.logger.Debug("tile placing action by player %d", id)
		e.replayPlacement(ctx, local, pending)
	default:
		e.logger.Debug("unexpected action by player %d: %v", id, changes.Paths())
	}

	e.syncer.ResolvePending(ctx)
	return e.processState(ctx)
}

// replayPlacement redraws a remote tile placement, moving the affected
// tokens the same way the acting replica did.
func (e *Engine) replayPlacement(ctx context.Context, local, pending *gametypes.GameState) {
	if len(pending.BoardTiles) <= len(local.BoardTiles) {
		return
	}
	for _, t := range pending.BoardTiles[len(local.BoardTiles):] {
		e.renderer.DrawTile(t)
	}
	e.drawnTiles = len(pending.BoardTiles)

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range local.Players {
		next := pending.Player(gametypes.PlayerID(i))
		if p.PlayerMeeple == nil || next == nil || next.PlayerMeeple == nil || p.PlayerMeeple.Path == next.PlayerMeeple.Path {
			continue
		}
		id := gametypes.PlayerID(i)
		from, want := p.PlayerMeeple.Path, next.PlayerMeeple.Path
		g.Go(func() error {
			got, _, err := path.Traverse(gctx, pending.BoardTiles, from, e.animate(gctx, id))
			if err != nil {
				e.logger.Warn("failed to replay token of player %d: %v", id, err)
				return nil
			}
			if got != want {
				e.logger.Warn("replayed token of player %d ended at (%d,%d), replica has (%d,%d)", id, got.X1, got.Y1, want.X1, want.Y1)
			}
			return nil
		})
	}
	_ = g.Wait()
}
