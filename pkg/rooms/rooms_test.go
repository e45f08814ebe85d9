package rooms

import (
	"context"
	"encoding/json"
	"testing"

	mocks "github.com/cbodonnell/tsuro/mocks/github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/blobstore"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDirectory(blobs blobstore.Store, gameID string, owner bool) *Directory {
	return NewDirectory(NewDirectoryOptions{
		Blobs:   blobs,
		GameID:  gameID,
		IsOwner: func() bool { return owner },
		Logger:  log.Discard(),
	})
}

func lobby(status gametypes.GameStatus, names ...string) *gametypes.GameState {
	gs := gametypes.NewGameState()
	gs.GameStatus = status
	for _, name := range names {
		gs.Players = append(gs.Players, &gametypes.PlayerState{PlayerName: name})
	}
	return gs
}

func TestDirectory_RefreshRegistersThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	d := newDirectory(store.Session(), "game-1", true)

	require.NoError(t, d.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice")))
	room := d.Room()
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, 0, room.Version)
	assert.Equal(t, "alice", room.CreatedBy)
	assert.Equal(t, 1, room.PlayersNum)

	require.NoError(t, d.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice", "bob")))
	assert.Equal(t, 1, d.Room().Version)

	rooms, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
	assert.Equal(t, 2, rooms[0].PlayersNum)
	assert.Equal(t, gametypes.MaxPlayers, rooms[0].PlayersMax)
	assert.Equal(t, "game-1", rooms[0].GameName)
}

func TestDirectory_RefreshAdoptsListedRoom(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	first := newDirectory(store.Session(), "game-1", true)
	require.NoError(t, first.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice")))
	require.NoError(t, first.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice")))
	registered := first.Room()
	assert.Equal(t, 1, registered.Version)

	// a restarted owner only knows the listing
	second := newDirectory(store.Session(), "game-1", true)
	_, err := second.List(ctx)
	require.NoError(t, err)
	state := lobby(gametypes.GameStatusStarting, "alice", "bob")
	assert.True(t, second.Stale(state))
	require.NoError(t, second.Refresh(ctx, state))

	room := second.Room()
	assert.Equal(t, registered.ID, room.ID)
	assert.Equal(t, 2, room.Version)

	rooms, err := second.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, registered.ID, rooms[0].ID)
	assert.Equal(t, 2, rooms[0].PlayersNum)
	assert.Equal(t, 2, rooms[0].Version)
}

func TestDirectory_RefreshSkippedForNonOwner(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	d := newDirectory(store.Session(), "game-1", false)

	require.NoError(t, d.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice")))
	rooms, err := d.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestDirectory_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("owner registers missing room", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		d := newDirectory(store.Session(), "game-1", true)
		room, err := d.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, room)
		assert.NotEmpty(t, d.Room().ID)
	})

	t.Run("guest leaves missing room alone", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		d := newDirectory(store.Session(), "game-1", false)
		room, err := d.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, room)
		assert.Empty(t, d.Room().ID)
	})

	t.Run("newer remote replaces local", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		owner := newDirectory(store.Session(), "game-1", true)
		require.NoError(t, owner.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice")))
		require.NoError(t, owner.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice", "bob")))

		guest := newDirectory(store.Session(), "game-1", false)
		room, err := guest.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, room)
		assert.Equal(t, 1, guest.Room().Version)
		assert.Equal(t, owner.Room().ID, guest.Room().ID)
	})
}

func TestDirectory_Joinable(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	open := newDirectory(store.Session(), "open", true)
	require.NoError(t, open.Refresh(ctx, lobby(gametypes.GameStatusStarting, "alice")))
	playing := newDirectory(store.Session(), "playing", true)
	require.NoError(t, playing.Refresh(ctx, lobby(gametypes.GameStatusPlaying, "bob")))
	full := newDirectory(store.Session(), "full", true)
	require.NoError(t, full.Refresh(ctx, lobby(gametypes.GameStatusStarting, "a", "b", "c", "d", "e", "f", "g", "h")))

	lister := newDirectory(store.Session(), "", false)
	_, err := lister.List(ctx)
	require.NoError(t, err)
	assert.Len(t, lister.Rooms(), 3)
	joinable := lister.Joinable()
	require.Len(t, joinable, 1)
	assert.Equal(t, "open", joinable[0].GameID)
}

func TestDirectory_Unregister(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	d := newDirectory(store.Session(), "game-1", true)

	assert.Error(t, d.Unregister(ctx))

	require.NoError(t, d.Register(ctx))
	require.NoError(t, d.Unregister(ctx))
	assert.Empty(t, d.Room().ID)

	rooms, err := d.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestDirectory_DeleteFindsRoomById(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	owner := newDirectory(store.Session(), "game-1", true)
	require.NoError(t, owner.Register(ctx))

	other := newDirectory(store.Session(), "game-1", false)
	require.NoError(t, other.Delete(ctx))

	rooms, err := other.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	// nothing left to delete
	assert.NoError(t, other.Delete(ctx))
}

func TestDirectory_UpdateIdMismatch(t *testing.T) {
	ctx := context.Background()
	blobs := mocks.NewStore(t)
	d := newDirectory(blobs, "game-1", true)

	added, _ := json.Marshal(gametypes.Room{ID: "room-1", GameID: "game-1"})
	blobs.On("Add", mock.Anything, Key, mock.Anything).Return([]json.RawMessage{added}, nil).Once()
	require.NoError(t, d.Register(ctx))

	other, _ := json.Marshal(gametypes.Room{ID: "room-2", GameID: "game-1"})
	blobs.On("Update", mock.Anything, Key, mock.Anything).Return(json.RawMessage(other), nil).Once()
	err := d.Update(ctx)
	require.Error(t, err)
	assert.True(t, gametypes.IsProtocolViolation(err))
}

func TestDirectory_HandleEvent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	owner := newDirectory(store.Session(), "game-1", true)
	require.NoError(t, owner.Register(ctx))

	watcher := newDirectory(store.Session(), "", false)

	handled, err := watcher.HandleEvent(ctx, &blobstore.Event{Event: messages.EventUpdated, Key: "game-1"})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, watcher.Rooms())

	handled, err = watcher.HandleEvent(ctx, &blobstore.Event{Event: messages.EventAdded, Key: Key})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Len(t, watcher.Rooms(), 1)
}

func TestDirectory_Stale(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	d := newDirectory(store.Session(), "game-1", true)

	gs := lobby(gametypes.GameStatusStarting, "alice")
	assert.True(t, d.Stale(gs), "unregistered room")
	require.NoError(t, d.Refresh(ctx, gs))
	assert.False(t, d.Stale(gs))

	assert.True(t, d.Stale(lobby(gametypes.GameStatusStarting, "alice", "bob")))
	assert.True(t, d.Stale(lobby(gametypes.GameStatusPlaying, "alice")))
	assert.True(t, d.Stale(lobby(gametypes.GameStatusStarting, "carol")))

	guest := newDirectory(store.Session(), "game-1", false)
	assert.False(t, guest.Stale(gs))
}
