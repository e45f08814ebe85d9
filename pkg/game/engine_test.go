package game

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/game/path"
	"github.com/cbodonnell/tsuro/pkg/game/tiles"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/state"
	"github.com/cbodonnell/tsuro/pkg/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGameID = "game-1"

type recorder struct {
	lock     sync.Mutex
	tiles    []gametypes.BoardTile
	moves    map[gametypes.PlayerID][]gametypes.Cell
	marks    map[gametypes.PlayerID]TokenMark
	messages []string
}

func newRecorder() *recorder {
	return &recorder{
		moves: map[gametypes.PlayerID][]gametypes.Cell{},
		marks: map[gametypes.PlayerID]TokenMark{},
	}
}

func (r *recorder) DrawTile(tile gametypes.BoardTile) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tiles = append(r.tiles, tile)
}

// MoveToken records lattice positions in the Cell fields.
func (r *recorder) MoveToken(id gametypes.PlayerID, x, y, angle int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.moves[id] = append(r.moves[id], gametypes.Cell{Column: x, Row: y})
}

func (r *recorder) MarkToken(id gametypes.PlayerID, mark TokenMark) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.marks[id] = mark
}

func (r *recorder) ShowMessage(message string, duration time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.messages = append(r.messages, message)
}

type fixture struct {
	engine   *Engine
	store    *state.Store
	syncer   *syncer.Syncer
	shared   *blobstore.MemoryStore
	renderer *recorder
}

func newFixture(t *testing.T, hotSeat bool) *fixture {
	t.Helper()
	store := state.NewStore(state.NewStoreOptions{Logger: log.Discard()})
	shared := blobstore.NewMemoryStore()
	sy := syncer.NewSyncer(syncer.NewSyncerOptions{
		Store:  store,
		Blobs:  shared.Session(),
		Key:    testGameID,
		Logger: log.Discard(),
	})
	rec := newRecorder()
	engine := NewEngine(NewEngineOptions{
		Store:    store,
		Syncer:   sy,
		Renderer: rec,
		Rand:     rand.New(rand.NewSource(1)),
		HotSeat:  hotSeat,
		Logger:   log.Discard(),
	})
	return &fixture{engine: engine, store: store, syncer: sy, shared: shared, renderer: rec}
}

func (f *fixture) remote(t *testing.T) *gametypes.GameState {
	t.Helper()
	raw, err := f.shared.Session().Get(context.Background(), testGameID)
	require.NoError(t, err)
	gs := &gametypes.GameState{}
	require.NoError(t, json.Unmarshal(raw, gs))
	return gs
}

func tileFor(t *testing.T, c tiles.Connections) (int, int) {
	t.Helper()
	id, rot, ok := tiles.Find(c)
	require.True(t, ok)
	return id, rot
}

var (
	// straight crosses every tile side to the opposite side
	straight = tiles.Connections{5, 4, 7, 6, 1, 0, 3, 2}
	// uturn joins the two points of every side
	uturn = tiles.Connections{1, 0, 3, 2, 5, 4, 7, 6}
)

func start(x, y int, dir gametypes.Direction) *gametypes.Meeple {
	return &gametypes.Meeple{Path: gametypes.Path{X0: x, Y0: y, X1: x, Y1: y, Dir: dir}}
}

func playing(name string, meeple *gametypes.Meeple, hand ...int) *gametypes.PlayerState {
	return &gametypes.PlayerState{
		PlayerName:   name,
		PlayerColor:  "#e2372e",
		PlayerStatus: gametypes.PlayerStatusPlaying,
		PlayerTiles:  append([]int{}, hand...),
		PlayerMeeple: meeple,
	}
}

func otherTiles(exclude ...int) []int {
	var out []int
	for id := 0; id < gametypes.PlayableTiles && len(out) < 4; id++ {
		skip := false
		for _, e := range exclude {
			skip = skip || e == id
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}

func TestEngine_StartGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.engine.ProcessState(ctx))
	assert.Equal(t, gametypes.GameStatusStarting, f.store.Get().GameStatus)

	_, err := f.engine.Join(ctx, "Alice", "#ff0000", false)
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, "Bob", "#00ff00", false)
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, " ", "#00ff00", false)
	assert.True(t, gametypes.IsValidationError(err))

	require.NoError(t, f.engine.StartGame(ctx))

	gs := f.store.Get()
	assert.Equal(t, gametypes.GameStatusPlaying, gs.GameStatus)
	require.Len(t, gs.Players, 2)
	for _, p := range gs.Players {
		assert.Equal(t, gametypes.PlayerStatusWaiting, p.PlayerStatus)
	}
	require.NotEmpty(t, gs.DeckTiles)
	assert.Equal(t, gametypes.DragonTileID, gs.DeckTiles[0])

	// the first seat is dealt its hand as soon as play starts
	alice := gs.Players[0]
	assert.Len(t, alice.PlayerTiles, gametypes.HandSize)
	assert.Empty(t, gs.Players[1].PlayerTiles)
	all := map[int]bool{}
	for _, id := range append(append([]int{}, gs.DeckTiles...), alice.PlayerTiles...) {
		assert.False(t, all[id], "tile %d appears twice", id)
		all[id] = true
	}
	assert.Len(t, all, gametypes.TotalTiles)

	assert.Equal(t, gs.Version, f.remote(t).Version)

	err = f.engine.StartGame(ctx)
	assert.True(t, gametypes.IsValidationError(err))
}

func TestEngine_StartGame_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.engine.ProcessState(ctx))

	_, err := f.engine.Join(ctx, "Alice", "#ff0000", false)
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, "Bob", "#00ff00", true)
	require.NoError(t, err)

	err = f.engine.StartGame(ctx)
	assert.True(t, gametypes.IsValidationError(err))
	assert.Equal(t, gametypes.GameStatusStarting, f.store.Get().GameStatus)
}

func TestEngine_PlacementRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.engine.ProcessState(ctx))
	_, err := f.engine.Join(ctx, "Alice", "#ff0000", false)
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, "Bob", "#00ff00", false)
	require.NoError(t, err)
	require.NoError(t, f.engine.StartGame(ctx))

	starts := path.StartPositions()

	err = f.engine.SelectStartPosition(ctx, gametypes.Path{X1: 4, Y1: 4, Dir: gametypes.DirectionRight})
	assert.True(t, gametypes.IsValidationError(err))

	require.NoError(t, f.engine.SelectStartPosition(ctx, starts[0]))
	gs := f.store.Get()
	require.NotNil(t, gs.Players[0].PlayerMeeple)
	require.NotNil(t, gs.Players[0].PlayerStartMarker)
	assert.Equal(t, starts[0], gs.Players[0].PlayerMeeple.Path)
	assert.Equal(t, 1, gs.PlayerTurn)
	require.NotNil(t, gs.PrevPlayerTurn)
	assert.Equal(t, 0, *gs.PrevPlayerTurn)
	assert.Equal(t, 1, gs.Players[0].PlayerTurnsPlayed)
	assert.Len(t, gs.Players[1].PlayerTiles, gametypes.HandSize)
	assert.Len(t, gs.DeckTiles, gametypes.TotalTiles-2*gametypes.HandSize)

	err = f.engine.SelectStartPosition(ctx, starts[0])
	assert.True(t, gametypes.IsValidationError(err))

	require.NoError(t, f.engine.SelectStartPosition(ctx, starts[1]))
	gs = f.store.Get()
	assert.Equal(t, 0, gs.PlayerTurn)
	assert.Equal(t, 1, gs.RoundNum)
	assert.Equal(t, TokenHighlighted, f.renderer.marks[0])

	err = f.engine.SelectStartPosition(ctx, starts[2])
	assert.True(t, gametypes.IsValidationError(err))
}

func TestEngine_LeaveOnlyFromLobby(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.engine.ProcessState(ctx))
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := f.engine.Join(ctx, name, "#ff0000", false)
		require.NoError(t, err)
	}
	require.NoError(t, f.engine.Leave(ctx, "Carol"))
	_, err := f.engine.Join(ctx, "Carol", "#ff0000", false)
	require.NoError(t, err)
	require.NoError(t, f.engine.StartGame(ctx))

	starts := path.StartPositions()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.SelectStartPosition(ctx, starts[i]))
	}
	before := f.store.Get()
	require.Equal(t, gametypes.GameStatusPlaying, before.GameStatus)

	err = f.engine.Leave(ctx, "Alice")
	assert.True(t, gametypes.IsValidationError(err))

	after := f.store.Get()
	assert.Equal(t, before.Version, after.Version)
	require.Len(t, after.Players, 3)
	accounted := len(after.DeckTiles) + len(after.BoardTiles)
	for i, p := range after.Players {
		assert.Equal(t, before.Players[i].PlayerName, p.PlayerName)
		require.NotNil(t, p.PlayerMeeple)
		assert.Equal(t, before.Players[i].PlayerMeeple.ID, p.PlayerMeeple.ID)
		accounted += len(p.PlayerTiles)
	}
	assert.Equal(t, gametypes.TotalTiles, accounted)
}

func TestEngine_TileTurnClearsIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	alice := playing("Alice", start(0, 7, gametypes.DirectionRight), 1, 2, 3)
	alice.PlayerSelectedTile = &gametypes.SelectedTile{TileID: 9, Rotation: 90}
	alice.PlayerTilePlaced = &gametypes.Cell{Column: 3, Row: 3}
	gs.Players = []*gametypes.PlayerState{
		alice,
		playing("Bob", start(0, 8, gametypes.DirectionRight), 4, 5, 6),
	}
	f.store.Replace(gs)

	require.NoError(t, f.engine.ProcessState(ctx))
	p := f.store.Get().Players[0]
	assert.Nil(t, p.PlayerSelectedTile)
	assert.Nil(t, p.PlayerTilePlaced)

	// a selection made during the turn survives further processing
	require.NoError(t, f.engine.SelectTile(ctx, 2, 180))
	require.NoError(t, f.engine.ProcessState(ctx))
	selected := f.store.Get().Players[0].PlayerSelectedTile
	require.NotNil(t, selected)
	assert.Equal(t, gametypes.SelectedTile{TileID: 2, Rotation: 180}, *selected)
}

func TestEngine_NotYourTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	gs.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), 1),
		playing("Bob", start(0, 8, gametypes.DirectionRight), 2),
	}
	f.store.Replace(gs)
	require.True(t, f.store.SetSelf("Bob"))

	err := f.engine.SelectTile(ctx, 1, 0)
	assert.True(t, gametypes.IsValidationError(err))
	err = f.engine.PlaceTile(ctx, gametypes.Cell{Column: 0, Row: 2})
	assert.True(t, gametypes.IsValidationError(err))
}

func TestEngine_SelectTile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	gs.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), 4, gametypes.DragonTileID),
		playing("Bob", start(0, 8, gametypes.DirectionRight), 2),
	}
	f.store.Replace(gs)

	tests := []struct {
		name     string
		tileID   int
		rotation int
		wantErr  bool
		wantRot  int
	}{
		{name: "in hand", tileID: 4, rotation: 90, wantRot: 90},
		{name: "negative rotation", tileID: 4, rotation: -90, wantRot: 270},
		{name: "odd rotation", tileID: 4, rotation: 45, wantErr: true},
		{name: "not in hand", tileID: 5, wantErr: true},
		{name: "dragon", tileID: gametypes.DragonTileID, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.SelectTile(ctx, tt.tileID, tt.rotation)
			if tt.wantErr {
				assert.True(t, gametypes.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			selected := f.store.Get().Players[0].PlayerSelectedTile
			require.NotNil(t, selected)
			assert.Equal(t, gametypes.SelectedTile{TileID: tt.tileID, Rotation: tt.wantRot}, *selected)
		})
	}
}

func TestEngine_PlaceTile_RejectsOccupiedCell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, rot := tileFor(t, straight)
	hand := append([]int{id}, otherTiles(id)[:2]...)

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	gs.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), hand...),
		playing("Bob", start(18, 7, gametypes.DirectionLeft), 2),
	}
	gs.BoardTiles = gametypes.BoardTiles{{Column: 0, Row: 2, TileID: hand[1]}}
	f.store.Replace(gs)

	err := f.engine.PlaceTile(ctx, gametypes.Cell{Column: 0, Row: 2})
	assert.True(t, gametypes.IsValidationError(err), "nothing selected")

	require.NoError(t, f.engine.SelectTile(ctx, id, rot))

	err = f.engine.PlaceTile(ctx, gametypes.Cell{Column: 1, Row: 2})
	assert.True(t, gametypes.IsValidationError(err), "not the faced cell")

	err = f.engine.PlaceTile(ctx, gametypes.Cell{Column: 0, Row: 2})
	assert.True(t, gametypes.IsValidationError(err), "occupied cell")

	after := f.store.Get()
	assert.Len(t, after.BoardTiles, 1)
	assert.Equal(t, hand, after.Players[0].PlayerTiles)
	assert.Equal(t, 0, after.PlayerTurn)
}

func TestEngine_PlaceTile_LastPlayerWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, rot := tileFor(t, straight)

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	gs.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), id),
		{PlayerName: "Bob", PlayerStatus: gametypes.PlayerStatusLost, PlayerTiles: []int{}},
	}
	f.store.Replace(gs)

	require.NoError(t, f.engine.SelectTile(ctx, id, rot))
	require.NoError(t, f.engine.PlaceTile(ctx, gametypes.Cell{Column: 0, Row: 2}))

	after := f.store.Get()
	assert.Equal(t, gametypes.GameStatusFinished, after.GameStatus)
	alice := after.Players[0]
	assert.Equal(t, gametypes.PlayerStatusWon, alice.PlayerStatus)
	// the token rests inside the board
	assert.Equal(t, 3, alice.PlayerMeeple.Path.X1)
	assert.Equal(t, 7, alice.PlayerMeeple.Path.Y1)
	assert.False(t, path.IsLoss(alice.PlayerMeeple.Path))
	assert.Equal(t, 1, alice.PlayerPathLength)
	assert.Equal(t, gametypes.BoardTiles{{Column: 0, Row: 2, TileID: id, Rotation: rot}}, after.BoardTiles)
	assert.Equal(t, gametypes.PlayerStatusLost, after.Players[1].PlayerStatus)

	assert.Equal(t, after.Version, f.remote(t).Version)
	assert.Contains(t, f.renderer.messages[len(f.renderer.messages)-1], "Alice won")
}

func TestEngine_PlaceTile_EliminatesOwnToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, rot := tileFor(t, uturn)
	extra := otherTiles(id)
	hand := []int{id, extra[0], extra[1]}

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	gs.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), hand...),
		playing("Bob", start(18, 7, gametypes.DirectionLeft), extra[2]),
		playing("Carol", start(18, 10, gametypes.DirectionLeft), extra[3]),
	}
	gs.DeckTiles = []int{}
	f.store.Replace(gs)

	require.NoError(t, f.engine.SelectTile(ctx, id, rot))
	require.NoError(t, f.engine.PlaceTile(ctx, gametypes.Cell{Column: 0, Row: 2}))

	after := f.store.Get()
	alice := after.Players[0]
	assert.Equal(t, gametypes.PlayerStatusLost, alice.PlayerStatus)
	assert.Empty(t, alice.PlayerTiles)
	assert.True(t, path.IsLoss(alice.PlayerMeeple.Path))
	assert.Equal(t, 1, alice.PlayerTurnsPlayed)
	assert.Equal(t, []int{extra[0], extra[1]}, after.DeckTiles)

	assert.Equal(t, gametypes.GameStatusPlaying, after.GameStatus)
	assert.Equal(t, 1, after.PlayerTurn)
	require.NotNil(t, after.PrevPlayerTurn)
	assert.Equal(t, 0, *after.PrevPlayerTurn)
	assert.Equal(t, TokenDisabled, f.renderer.marks[0])
	assert.Equal(t, TokenHighlighted, f.renderer.marks[1])
}

func TestEngine_PlaceTile_MovesEveryFacingToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, rot := tileFor(t, uturn)
	extra := otherTiles(id)

	gs := gametypes.NewGameState()
	gs.GameStatus = gametypes.GameStatusPlaying
	gs.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), id, extra[0]),
		playing("Bob", start(0, 8, gametypes.DirectionRight), extra[1], gametypes.DragonTileID),
		playing("Carol", start(18, 7, gametypes.DirectionLeft), extra[2]),
	}
	gs.DeckTiles = []int{}
	f.store.Replace(gs)

	require.NoError(t, f.engine.SelectTile(ctx, id, rot))
	require.NoError(t, f.engine.PlaceTile(ctx, gametypes.Cell{Column: 0, Row: 2}))

	after := f.store.Get()
	assert.Equal(t, gametypes.PlayerStatusLost, after.Players[0].PlayerStatus)
	assert.Equal(t, gametypes.PlayerStatusLost, after.Players[1].PlayerStatus)
	assert.Equal(t, []int{extra[0], extra[1]}, after.DeckTiles)

	// the dragon went to the only player still short of tiles, who then
	// won by default
	carol := after.Players[2]
	assert.Equal(t, []int{extra[2], gametypes.DragonTileID}, carol.PlayerTiles)
	assert.Equal(t, gametypes.PlayerStatusWon, carol.PlayerStatus)
	assert.Equal(t, gametypes.GameStatusFinished, after.GameStatus)

	assert.Equal(t, TokenDisabled, f.renderer.marks[0])
	assert.Equal(t, TokenDisabled, f.renderer.marks[1])
}

func TestEngine_ProcessAction(t *testing.T) {
	ctx := context.Background()
	id, rot := tileFor(t, straight)

	local := gametypes.NewGameState()
	local.Version = 5
	local.GameStatus = gametypes.GameStatusPlaying
	local.Players = []*gametypes.PlayerState{
		playing("Alice", start(0, 7, gametypes.DirectionRight), id, 3),
		playing("Bob", start(18, 7, gametypes.DirectionLeft), 2),
	}

	moved := local.Copy()
	moved.Version = 6
	moved.PlayerTurn = 1
	prev := 0
	moved.PrevPlayerTurn = &prev
	moved.BoardTiles = gametypes.BoardTiles{{Column: 0, Row: 2, TileID: id, Rotation: rot}}
	alice := moved.Players[0]
	alice.PlayerTiles = []int{3}
	alice.PlayerTilePlaced = &gametypes.Cell{Column: 0, Row: 2}
	alice.PlayerMeeple.Path.X1, alice.PlayerMeeple.Path.Step = 3, 1
	alice.PlayerStatus = gametypes.PlayerStatusPlaying

	t.Run("replays tile placement", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.Replace(local)

		r := f.syncer.OnRemoteState(ctx, moved)
		require.Equal(t, syncer.Queued, r.Outcome)

		require.NoError(t, f.engine.ProcessAction(ctx))
		assert.Nil(t, f.syncer.Pending())
		assert.Equal(t, 6, f.store.Get().Version)
		assert.Equal(t, moved.BoardTiles, gametypes.BoardTiles(f.renderer.tiles))
		require.NotEmpty(t, f.renderer.moves[0])
		assert.Equal(t, gametypes.Cell{Column: 3, Row: 7}, f.renderer.moves[0][0])

		// nothing left to replay
		require.NoError(t, f.engine.ProcessAction(ctx))
	})

	t.Run("missing previous turn forces a resync", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.Replace(local)

		broken := moved.Copy()
		broken.PrevPlayerTurn = nil
		require.NoError(t, f.shared.Session().Set(ctx, testGameID, broken))

		r := f.syncer.OnRemoteState(ctx, broken)
		require.Equal(t, syncer.Queued, r.Outcome)

		err := f.engine.ProcessAction(ctx)
		require.Error(t, err)
		assert.True(t, gametypes.IsProtocolViolation(err))
		assert.Nil(t, f.syncer.Pending())
		assert.Equal(t, 6, f.store.Get().Version)
		assert.Len(t, f.store.Get().BoardTiles, 1)
	})
}
