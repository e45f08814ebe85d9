// Package rooms keeps the lobby listing of games in a shared collection.
package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cbodonnell/tsuro/pkg/blobstore"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
)

// Key is the collection every game registers its room in.
const Key = "rooms"

// Directory tracks the room of one game and caches the full listing.
type Directory struct {
	lock     sync.Mutex
	blobs    blobstore.Store
	gameID   string
	gameName string
	isOwner  func() bool
	room     gametypes.Room
	rooms    []gametypes.Room
	logger   *log.Logger
}

type NewDirectoryOptions struct {
	// Blobs must point at the shared home database, not the game's.
	Blobs    blobstore.Store
	GameID   string
	GameName string
	// IsOwner reports whether this replica may write the room. Only the
	// owner registers and updates it.
	IsOwner func() bool
	Logger  *log.Logger
}

func NewDirectory(opts NewDirectoryOptions) *Directory {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	isOwner := opts.IsOwner
	if isOwner == nil {
		isOwner = func() bool { return false }
	}
	name := opts.GameName
	if name == "" {
		name = opts.GameID
	}
	d := &Directory{
		blobs:    opts.Blobs,
		gameID:   opts.GameID,
		gameName: name,
		isOwner:  isOwner,
		logger:   logger.With("game", opts.GameID),
	}
	d.room = d.template()
	return d
}

func (d *Directory) template() gametypes.Room {
	return gametypes.Room{
		GameID:     d.gameID,
		GameName:   d.gameName,
		PlayersMax: gametypes.MaxPlayers,
	}
}

// Room returns this game's room as last seen.
func (d *Directory) Room() gametypes.Room {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.room
}

// Rooms returns the cached listing.
func (d *Directory) Rooms() []gametypes.Room {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]gametypes.Room{}, d.rooms...)
}

// Joinable returns the cached rooms still waiting for players.
func (d *Directory) Joinable() []gametypes.Room {
	d.lock.Lock()
	defer d.lock.Unlock()
	var out []gametypes.Room
	for _, r := range d.rooms {
		if r.Joinable() {
			out = append(out, r)
		}
	}
	return out
}

func decodeRooms(raw json.RawMessage) ([]gametypes.Room, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		var r gametypes.Room
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("failed to decode room: %v", err)
		}
		return []gametypes.Room{r}, nil
	}
	var rooms []gametypes.Room
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %v", err)
	}
	return rooms, nil
}

// List fetches every registered room and refreshes the cache.
func (d *Directory) List(ctx context.Context) ([]gametypes.Room, error) {
	raw, err := d.blobs.Get(ctx, Key)
	if err != nil && !blobstore.IsNotFound(err) {
		return nil, fmt.Errorf("failed to list rooms: %v", err)
	}
	rooms, err := decodeRooms(raw)
	if err != nil {
		return nil, err
	}
	d.lock.Lock()
	d.rooms = rooms
	d.lock.Unlock()
	return append([]gametypes.Room{}, rooms...), nil
}

// Get looks up this game's room. The owner registers it if it is missing.
// A listed room replaces the local copy when it is newer or carries the
// reset version 0.
func (d *Directory) Get(ctx context.Context) (*gametypes.Room, error) {
	rooms, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rooms {
		if r.GameID != d.gameID {
			continue
		}
		d.lock.Lock()
		if r.Version > d.room.Version || r.Version == 0 {
			d.room = r
		}
		d.lock.Unlock()
		return &r, nil
	}

	d.logger.Debug("room is not registered")
	if d.isOwner() {
		if err := d.Register(ctx); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Register adds this game's room to the collection.
func (d *Directory) Register(ctx context.Context) error {
	d.lock.Lock()
	room := d.room
	d.lock.Unlock()

	added, err := d.blobs.Add(ctx, Key, room)
	if err != nil {
		return fmt.Errorf("failed to register room: %v", err)
	}
	if len(added) == 0 {
		return gametypes.NewProtocolViolation("room registration returned no item")
	}
	var stored gametypes.Room
	if err := json.Unmarshal(added[0], &stored); err != nil {
		return fmt.Errorf("failed to decode registered room: %v", err)
	}

	d.lock.Lock()
	d.room.ID = stored.ID
	d.lock.Unlock()
	d.logger.Info("room registered with id %s", stored.ID)
	return nil
}

// adopt takes over the listed room of this game so that a restarted or new
// owner keeps writing the same record. It reports whether one was found.
func (d *Directory) adopt(ctx context.Context) (bool, error) {
	rooms, err := d.List(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rooms {
		if r.GameID != d.gameID || r.ID == "" {
			continue
		}
		d.lock.Lock()
		d.room.ID = r.ID
		if r.Version > d.room.Version {
			d.room.Version = r.Version
		}
		d.lock.Unlock()
		d.logger.Debug("adopted room %s at version %d", r.ID, r.Version)
		return true, nil
	}
	return false, nil
}

// Update bumps the room version and writes it back. A room that is not
// known locally is looked up in the listing before a new one is registered.
func (d *Directory) Update(ctx context.Context) error {
	d.lock.Lock()
	registered := d.room.ID != ""
	d.lock.Unlock()
	if !registered {
		found, err := d.adopt(ctx)
		if err != nil {
			return err
		}
		if !found {
			return d.Register(ctx)
		}
	}

	d.lock.Lock()
	d.room.Version++
	room := d.room
	d.lock.Unlock()

	raw, err := d.blobs.Update(ctx, Key, room)
	if err != nil {
		return fmt.Errorf("failed to update room: %v", err)
	}
	var stored gametypes.Room
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("failed to decode updated room: %v", err)
	}
	if stored.ID != room.ID {
		err := gametypes.NewProtocolViolation("room id mismatch: have %s, store returned %s", room.ID, stored.ID)
		d.logger.Error("%v", err)
		return err
	}
	d.logger.Debug("room updated to version %d", room.Version)
	return nil
}

// Unregister removes this game's room from the collection.
func (d *Directory) Unregister(ctx context.Context) error {
	d.lock.Lock()
	id := d.room.ID
	d.lock.Unlock()
	if id == "" {
		return fmt.Errorf("room is not registered")
	}
	if err := d.blobs.Delete(ctx, Key, id); err != nil {
		return fmt.Errorf("failed to unregister room: %v", err)
	}
	d.lock.Lock()
	d.room = d.template()
	d.lock.Unlock()
	d.logger.Info("room unregistered")
	return nil
}

// Refresh copies the game's lobby facts into the room and writes it. Only
// the owner writes.
func (d *Directory) Refresh(ctx context.Context, gameState *gametypes.GameState) error {
	if !d.isOwner() {
		return nil
	}
	d.lock.Lock()
	d.room.GameStatus = gameState.GameStatus
	d.room.PlayersNum = len(gameState.Players)
	d.room.PlayersMax = gametypes.MaxPlayers
	if len(gameState.Players) > 0 {
		d.room.CreatedBy = gameState.Players[0].PlayerName
	}
	d.lock.Unlock()
	return d.Update(ctx)
}

// Stale reports whether the owner's room no longer matches the game, as
// after a remote player joined or left.
func (d *Directory) Stale(gameState *gametypes.GameState) bool {
	if !d.isOwner() {
		return false
	}
	createdBy := ""
	if len(gameState.Players) > 0 {
		createdBy = gameState.Players[0].PlayerName
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.room.ID == "" ||
		d.room.GameStatus != gameState.GameStatus ||
		d.room.PlayersNum != len(gameState.Players) ||
		d.room.CreatedBy != createdBy
}

// Delete drops the room once the game has no players left.
func (d *Directory) Delete(ctx context.Context) error {
	d.lock.Lock()
	registered := d.room.ID != ""
	d.lock.Unlock()
	if !registered {
		found, err := d.adopt(ctx)
		if err != nil || !found {
			return err
		}
	}
	return d.Unregister(ctx)
}

// HandleEvent refreshes the listing when the rooms collection changes.
func (d *Directory) HandleEvent(ctx context.Context, e *blobstore.Event) (bool, error) {
	if e.Key != Key {
		return false, nil
	}
	switch e.Event {
	case messages.EventUpdated, messages.EventAdded, messages.EventDeleted:
		if _, err := d.List(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
