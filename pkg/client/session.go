// Package client wires one replica of a game: the local store, the
// synchronization protocol, the room directory and the turn engine, fed by
// the notification channels of the shared store.
package client

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/game"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/prefs"
	"github.com/cbodonnell/tsuro/pkg/queue"
	"github.com/cbodonnell/tsuro/pkg/rooms"
	"github.com/cbodonnell/tsuro/pkg/state"
	"github.com/cbodonnell/tsuro/pkg/syncer"
)

const (
	DefaultTickInterval      = 100 * time.Millisecond
	DefaultReconnectInterval = 2 * time.Second
)

const connectionMessageDuration = 5 * time.Second

type subscription struct {
	name   string
	source blobstore.Subscriber
	live   bool
}

type Session struct {
	gameID   string
	blobs    blobstore.Client
	store    *state.Store
	syncer   *syncer.Syncer
	rooms    *rooms.Directory
	engine   *game.Engine
	bot      *Bot
	prefs    prefs.Store
	renderer game.Renderer
	events   *queue.InMemoryQueue[*blobstore.Event]
	logger   *log.Logger

	tickInterval      time.Duration
	reconnectInterval time.Duration

	lock          sync.Mutex
	subscriptions []*subscription
	lastReconnect time.Time
}

type NewSessionOptions struct {
	GameID   string
	GameName string
	// Blobs holds the game state under the game id.
	Blobs blobstore.Client
	// Home holds the room listing. Defaults to Blobs.
	Home blobstore.Client
	// Prefs is optional. It remembers the local player between sessions.
	Prefs    prefs.Store
	Renderer game.Renderer
	Rand     *rand.Rand
	HotSeat  bool
	// Bot plays the local seat automatically.
	Bot               bool
	StepDelay         time.Duration
	TickInterval      time.Duration
	ReconnectInterval time.Duration
	Logger            *log.Logger
}

func NewSession(opts NewSessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("game", opts.GameID)
	renderer := opts.Renderer
	if renderer == nil {
		renderer = game.NewLogRenderer(logger)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	reconnectInterval := opts.ReconnectInterval
	if reconnectInterval <= 0 {
		reconnectInterval = DefaultReconnectInterval
	}
	home := opts.Home
	if home == nil {
		home = opts.Blobs
	}

	store := state.NewStore(state.NewStoreOptions{
		Prefs:  opts.Prefs,
		Logger: logger,
	})
	directory := rooms.NewDirectory(rooms.NewDirectoryOptions{
		Blobs:    home,
		GameID:   opts.GameID,
		GameName: opts.GameName,
		IsOwner:  store.IsOwner,
		Logger:   logger,
	})
	store.SetRooms(directory)
	gameSyncer := syncer.NewSyncer(syncer.NewSyncerOptions{
		Store:  store,
		Blobs:  opts.Blobs,
		Key:    opts.GameID,
		Logger: logger,
	})
	engine := game.NewEngine(game.NewEngineOptions{
		Store:     store,
		Syncer:    gameSyncer,
		Rooms:     directory,
		Renderer:  renderer,
		Rand:      rng,
		HotSeat:   opts.HotSeat,
		StepDelay: opts.StepDelay,
		Logger:    logger,
	})

	s := &Session{
		gameID:            opts.GameID,
		blobs:             opts.Blobs,
		store:             store,
		syncer:            gameSyncer,
		prefs:             opts.Prefs,
		rooms:             directory,
		engine:            engine,
		renderer:          renderer,
		events:            queue.NewInMemoryQueue[*blobstore.Event](queue.QueueBufferSize),
		logger:            logger,
		tickInterval:      tickInterval,
		reconnectInterval: reconnectInterval,
		subscriptions:     []*subscription{{name: "game", source: opts.Blobs}},
	}
	if home != opts.Blobs {
		s.subscriptions = append(s.subscriptions, &subscription{name: "home", source: home})
	}
	if opts.Bot {
		s.bot = NewBot(NewBotOptions{
			Engine: engine,
			Rand:   rand.New(rand.NewSource(rng.Int63())),
			Logger: logger,
		})
	}
	return s
}

func (s *Session) GameID() string {
	return s.gameID
}

func (s *Session) Engine() *game.Engine {
	return s.engine
}

func (s *Session) Store() *state.Store {
	return s.store
}

func (s *Session) Rooms() *rooms.Directory {
	return s.rooms
}

// Open subscribes to notifications, loads the game and the room listing
// and reclaims the local player's seat if one is remembered. The
// subscriptions live as long as ctx.
func (s *Session) Open(ctx context.Context) error {
	s.lock.Lock()
	for _, sub := range s.subscriptions {
		if err := s.subscribe(ctx, sub); err != nil {
			s.lock.Unlock()
			return err
		}
	}
	s.lastReconnect = time.Now()
	s.lock.Unlock()

	if _, err := s.syncer.Pull(ctx); err != nil {
		return fmt.Errorf("failed to load game: %v", err)
	}
	if _, err := s.rooms.List(ctx); err != nil {
		s.logger.Warn("failed to list rooms: %v", err)
	}

	if s.prefs != nil {
		info, ok, err := prefs.ReadPlayerInfo(ctx, s.prefs)
		if err != nil {
			s.logger.Warn("%v", err)
		} else if ok && s.store.SetSelf(info.PlayerName) {
			s.logger.Info("rejoined as %s", info.PlayerName)
		}
	}

	return s.engine.ProcessState(ctx)
}

// subscribe must be called with the lock held
func (s *Session) subscribe(ctx context.Context, sub *subscription) error {
	events, err := sub.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s notifications: %v", sub.name, err)
	}
	sub.live = true
	go s.forward(ctx, sub, events)
	return nil
}

func (s *Session) forward(ctx context.Context, sub *subscription, events <-chan *blobstore.Event) {
	for e := range events {
		if err := s.events.Enqueue(e); err != nil {
			s.logger.Warn("dropping %s event for %s: %v", e.Event, e.Key, err)
		}
	}
	s.lock.Lock()
	sub.live = false
	s.lock.Unlock()
	if ctx.Err() == nil {
		s.logger.Warn("%s notifications stopped", sub.name)
	}
}

// reconnect resubscribes dropped channels, at most once per reconnect interval.
func (s *Session) reconnect(ctx context.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if time.Since(s.lastReconnect) < s.reconnectInterval {
		return
	}
	for _, sub := range s.subscriptions {
		if sub.live {
			continue
		}
		s.lastReconnect = time.Now()
		if err := s.subscribe(ctx, sub); err != nil {
			s.logger.Warn("%v", err)
			continue
		}
		s.logger.Info("%s notifications reconnected", sub.name)
	}
}

// Join registers the local player.
func (s *Session) Join(ctx context.Context, name, color string) (gametypes.PlayerID, error) {
	return s.engine.Join(ctx, name, color, true)
}

// Leave gives up the local player's seat.
func (s *Session) Leave(ctx context.Context) error {
	name := s.store.SelfName()
	if name == "" {
		return nil
	}
	return s.engine.Leave(ctx, name)
}

// Run ticks the session until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("Failed to run session tick: %v", err)
			}
		}
	}
}

// Tick runs one iteration of the client loop. It drains the notifications
// received since the last tick, replays or applies them and lets the bot
// move.
func (s *Session) Tick(ctx context.Context) error {
	s.reconnect(ctx)

	changed := false
	for _, e := range s.events.ReadAllMessages() {
		if s.handleEvent(ctx, e) {
			changed = true
		}
	}

	if s.syncer.ReloadRequested() {
		s.logger.Info("game was reset remotely, redrawing")
		s.engine.Reset()
		changed = true
	}

	switch {
	case s.syncer.Pending() != nil:
		if err := s.engine.ProcessAction(ctx); err != nil {
			return fmt.Errorf("failed to process action: %v", err)
		}
	case changed:
		if err := s.engine.ProcessState(ctx); err != nil {
			return fmt.Errorf("failed to process state: %v", err)
		}
	}

	if changed {
		if gameState := s.store.Get(); s.rooms.Stale(gameState) {
			if err := s.rooms.Refresh(ctx, gameState); err != nil {
				s.logger.Warn("failed to refresh room: %v", err)
			}
		}
	}

	if s.bot != nil {
		if _, err := s.bot.Play(ctx); err != nil {
			return fmt.Errorf("bot failed to play: %v", err)
		}
	}
	return nil
}

// handleEvent reports whether the replica changed
func (s *Session) handleEvent(ctx context.Context, e *blobstore.Event) bool {
	switch e.Event {
	case messages.EventClosed:
		s.renderer.ShowMessage("Connection lost", connectionMessageDuration)
	case messages.EventError:
		s.renderer.ShowMessage(fmt.Sprintf("Connection error: %s", e.Message), connectionMessageDuration)
	}

	result, changed, err := s.syncer.HandleEvent(ctx, e)
	if err != nil {
		s.logger.Warn("failed to handle %s event: %v", e.Event, err)
	} else if changed {
		s.logger.Trace("%s event for %s: %s %s", e.Event, e.Key, result.Action, result.Outcome)
	}

	if _, err := s.rooms.HandleEvent(ctx, e); err != nil {
		s.logger.Warn("failed to refresh rooms: %v", err)
	}
	return changed
}
