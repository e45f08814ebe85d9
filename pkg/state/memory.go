package state

import (
	"context"
	"strings"
	"sync"

	"github.com/cbodonnell/tsuro/pkg/game/diff"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/prefs"
)

// Client is local, unreplicated bookkeeping for one seat.
type Client struct {
	ID    gametypes.PlayerID
	Ready bool
	// Disabled is set once the seat's token has been drawn out of play.
	Disabled bool
}

// Store owns the local replica of the game state. Every mutation goes
// through it so that the latest diff is always available.
type Store struct {
	lock        sync.RWMutex
	gameState   *gametypes.GameState
	lastChanges diff.Changes
	selfName    string
	clients     []*Client

	rooms  RoomRefresher
	prefs  prefs.Store
	logger *log.Logger
}

type NewStoreOptions struct {
	// Rooms is optional.
	Rooms RoomRefresher
	// Prefs is optional. When set, the self player's name and colour are saved on registration.
	Prefs  prefs.Store
	Logger *log.Logger
}

func NewStore(opts NewStoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		gameState:   gametypes.NewGameState(),
		lastChanges: diff.Changes{},
		rooms:       opts.Rooms,
		prefs:       opts.Prefs,
		logger:      logger,
	}
}

// SetRooms attaches the room directory after construction.
func (s *Store) SetRooms(rooms RoomRefresher) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rooms = rooms
}

func (s *Store) Get() *gametypes.GameState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.gameState.Copy()
}

func (s *Store) Version() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.gameState.Version
}

func (s *Store) BumpVersion() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.gameState.Version++
	return s.gameState.Version
}

// Diff compares two states.
func (s *Store) Diff(a, b *gametypes.GameState) diff.Changes {
	changes, err := diff.Values(a, b)
	if err != nil {
		s.logger.Error("failed to diff game states: %v", err)
		return diff.Changes{}
	}
	return changes
}

func (s *Store) commit(next *gametypes.GameState) diff.Changes {
	changes := s.Diff(s.gameState, next)
	s.gameState = next
	s.lastChanges = changes
	return changes
}

func (s *Store) Replace(gameState *gametypes.GameState) diff.Changes {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.commit(gameState.Copy())
}

// Update runs fn on a copy of the state and commits the copy if fn
// succeeds.
func (s *Store) Update(fn func(gameState *gametypes.GameState) error) (diff.Changes, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	next := s.gameState.Copy()
	if err := fn(next); err != nil {
		return nil, err
	}
	return s.commit(next), nil
}

// LastChanges returns the diff recorded by the latest mutation.
func (s *Store) LastChanges() diff.Changes {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.lastChanges
}

// ChangedKeys returns the child segments under prefix touched by the
// latest mutation.
func (s *Store) ChangedKeys(prefix string, added, changed, deleted bool) []string {
	return s.LastChanges().ChildKeys(prefix, added, changed, deleted)
}

func (s *Store) AdvanceTurn(onlyActive bool) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	next := s.gameState.Copy()
	turn := AdvanceTurn(next, onlyActive)
	s.commit(next)
	return turn
}

// PlayingTotal counts the players still competing.
func (s *Store) PlayingTotal() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.gameState.ActivePlayers()
}

// SelfID is the seat of the local player, or NoPlayer.
func (s *Store) SelfID() gametypes.PlayerID {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.selfName == "" {
		return gametypes.NoPlayer
	}
	id, _ := s.gameState.PlayerByName(s.selfName)
	return id
}

// SetSelf claims an already registered seat as the local player, as
// happens when a client rejoins a game after a reload.
func (s *Store) SetSelf(name string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if id, _ := s.gameState.PlayerByName(name); id == gametypes.NoPlayer {
		return false
	}
	s.selfName = name
	return true
}

func (s *Store) SelfName() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.selfName
}

// IsOwner reports whether the local player holds seat 0.
func (s *Store) IsOwner() bool {
	return s.SelfID() == 0
}

// Client returns the local bookkeeping for a seat, creating it if needed.
func (s *Store) Client(id gametypes.PlayerID) *Client {
	if id < 0 {
		return nil
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	for len(s.clients) <= int(id) {
		s.clients = append(s.clients, &Client{ID: gametypes.PlayerID(len(s.clients))})
	}
	return s.clients[id]
}

// ResetClients drops all local seat bookkeeping.
func (s *Store) ResetClients() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clients = nil
}

func (s *Store) RegisterPlayer(ctx context.Context, name string, color string, asSelf bool) (gametypes.PlayerID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return gametypes.NoPlayer, gametypes.NewValidationError("player name is empty")
	}
	requested, err := gametypes.ParseColor(color)
	if err != nil {
		return gametypes.NoPlayer, gametypes.NewValidationError("invalid player color %q", color)
	}

	var id gametypes.PlayerID
	var assigned string
	_, err = s.Update(func(gameState *gametypes.GameState) error {
		if existing, _ := gameState.PlayerByName(name); existing != gametypes.NoPlayer {
			return gametypes.NewValidationError("player name %q is taken", name)
		}
		if len(gameState.Players) >= gametypes.MaxPlayers {
			return gametypes.NewValidationError("room is full")
		}

		taken := make([]gametypes.Color, 0, len(gameState.Players))
		for _, p := range gameState.Players {
			if c, err := gametypes.ParseColor(p.PlayerColor); err == nil {
				taken = append(taken, c)
			}
		}
		c, ok := gametypes.NearestAvailable(requested, taken)
		if !ok {
			return gametypes.NewValidationError("no player colors left")
		}

		status := gametypes.PlayerStatusNone
		if gameState.GameStatus == gametypes.GameStatusPlaying || gameState.GameStatus == gametypes.GameStatusFinished {
			status = gametypes.PlayerStatusSpectator
		}
		assigned = c.Hex()
		gameState.Players = append(gameState.Players, &gametypes.PlayerState{
			PlayerName:   name,
			PlayerColor:  assigned,
			PlayerStatus: status,
			PlayerTiles:  []int{},
		})
		id = gametypes.PlayerID(len(gameState.Players) - 1)
		return nil
	})
	if err != nil {
		return gametypes.NoPlayer, err
	}
	s.logger.Info("registered player %s as %d with color %s", name, id, assigned)

	if asSelf {
		s.lock.Lock()
		s.selfName = name
		s.lock.Unlock()
		if s.prefs != nil {
			if err := prefs.SavePlayerInfo(ctx, s.prefs, prefs.PlayerInfo{PlayerName: name, PlayerColor: assigned}); err != nil {
				s.logger.Warn("%v", err)
			}
		}
	}

	s.refreshRoom(ctx)
	return id, nil
}

// UnregisterPlayer removes a player from the lobby. Seats after it move
// down by one, so once the game has started seats are frozen and leaving
// is rejected.
func (s *Store) UnregisterPlayer(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return gametypes.NewValidationError("player name is empty")
	}

	removed := gametypes.NoPlayer
	remaining := 0
	_, err := s.Update(func(gameState *gametypes.GameState) error {
		id, _ := gameState.PlayerByName(name)
		if id == gametypes.NoPlayer {
			return nil
		}
		if status := gameState.GameStatus; status != gametypes.GameStatusNone && status != gametypes.GameStatusStarting {
			return gametypes.NewValidationError("%s cannot leave a game that is %s", name, status)
		}
		removed = id
		gameState.Players = append(gameState.Players[:id:id], gameState.Players[id+1:]...)
		if gameState.PlayerTurn > int(id) {
			gameState.PlayerTurn--
		}
		if gameState.PlayerTurn >= len(gameState.Players) {
			gameState.PlayerTurn = 0
		}
		remaining = len(gameState.Players)
		return nil
	})
	if err != nil {
		return err
	}
	if removed == gametypes.NoPlayer {
		return nil
	}

	s.lock.Lock()
	if int(removed) < len(s.clients) {
		s.clients = append(s.clients[:removed:removed], s.clients[removed+1:]...)
		for i, c := range s.clients {
			c.ID = gametypes.PlayerID(i)
		}
	}
	if s.selfName == name {
		s.selfName = ""
	}
	rooms := s.rooms
	s.lock.Unlock()
	s.logger.Info("unregistered player %s from seat %d", name, removed)

	if remaining == 0 {
		if rooms != nil {
			if err := rooms.Delete(ctx); err != nil {
				s.logger.Warn("failed to delete room: %v", err)
			}
		}
		return nil
	}
	s.refreshRoom(ctx)
	return nil
}

func (s *Store) refreshRoom(ctx context.Context) {
	s.lock.RLock()
	rooms := s.rooms
	gameState := s.gameState.Copy()
	s.lock.RUnlock()
	if rooms == nil {
		return
	}
	if err := rooms.Refresh(ctx, gameState); err != nil {
		s.logger.Warn("failed to refresh room: %v", err)
	}
}
