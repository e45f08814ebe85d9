// Package syncer reconciles the local game replica with the copy kept in
// the shared store.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/game/diff"
	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/state"
)

// Outcome is what happened to a remote update.
type Outcome int

const (
	// Applied means the replica now holds the remote state.
	Applied Outcome = iota
	// Queued means the update waits in the pending slot for ResolvePending.
	Queued
	// Coalesced means the update replaced an already pending one.
	Coalesced
	// Ignored means the update was not newer than the replica.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Queued:
		return "queued"
	case Coalesced:
		return "coalesced"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

type Result struct {
	Action  Action
	Outcome Outcome
	Changes diff.Changes
}

type Syncer struct {
	lock    sync.Mutex
	store   state.StateManager
	blobs   blobstore.Store
	key     string
	pending *gametypes.GameState
	changes diff.Changes
	reload  bool
	logger  *log.Logger
}

type NewSyncerOptions struct {
	Store state.StateManager
	Blobs blobstore.Store
	// Key is the storage key of the game, usually the game id.
	Key    string
	Logger *log.Logger
}

func NewSyncer(opts NewSyncerOptions) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Syncer{
		store:  opts.Store,
		blobs:  opts.Blobs,
		key:    opts.Key,
		logger: logger.With("game", opts.Key),
	}
}

func (s *Syncer) Key() string {
	return s.key
}

// Push bumps the local version and writes the whole state. A failed write
// is logged and returned, but the local state stays as it is.
func (s *Syncer) Push(ctx context.Context) error {
	version := s.store.BumpVersion()
	gameState := s.store.Get()
	if err := s.blobs.Set(ctx, s.key, gameState); err != nil {
		s.logger.Error("failed to push game state version %d: %v", version, err)
		return fmt.Errorf("failed to push game state: %v", err)
	}
	s.logger.Debug("pushed game state version %d", version)
	return nil
}

// Pull fetches the remote state. If there is none the local state is
// pushed to seed it.
func (s *Syncer) Pull(ctx context.Context) (Result, error) {
	raw, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		if blobstore.IsNotFound(err) {
			s.logger.Info("no remote game state, pushing local state")
			return Result{Action: BulkSync, Outcome: Ignored}, s.Push(ctx)
		}
		s.logger.Error("failed to pull game state: %v", err)
		return Result{}, fmt.Errorf("failed to pull game state: %v", err)
	}
	remote, err := decode(raw)
	if err != nil {
		s.logger.Error("%v", err)
		return Result{}, err
	}
	return s.OnRemoteState(ctx, remote), nil
}

func decode(raw json.RawMessage) (*gametypes.GameState, error) {
	remote := &gametypes.GameState{}
	if err := json.Unmarshal(raw, remote); err != nil {
		return nil, fmt.Errorf("failed to decode remote game state: %v", err)
	}
	return remote, nil
}

// OnRemoteState runs a remote state through the update pipeline. Updates
// that are not newer than the replica are ignored unless they carry the
// reset version 0. While a move is pending, newer updates replace it
// without touching the replica.
func (s *Syncer) OnRemoteState(ctx context.Context, remote *gametypes.GameState) Result {
	s.lock.Lock()
	defer s.lock.Unlock()

	local := s.store.Get()
	newest := local.Version
	if s.pending != nil && s.pending.Version > newest {
		newest = s.pending.Version
	}
	if remote.Version != 0 && remote.Version <= newest {
		s.logger.Trace("ignoring stale game state version %d, have %d", remote.Version, newest)
		return Result{Outcome: Ignored}
	}

	if s.pending != nil && remote.Version != 0 {
		s.logger.Debug("coalescing pending game state %d into %d", s.pending.Version, remote.Version)
		s.pending = remote.Copy()
		s.changes = s.diff(local, remote)
		return Result{Action: TurnTransition, Outcome: Coalesced, Changes: s.changes}
	}

	action := Classify(local.Version, remote.Version, local.PlayerTurn, remote.PlayerTurn)
	switch action {
	case TurnTransition:
		s.pending = remote.Copy()
		s.changes = s.diff(local, remote)
		s.logger.Debug("queued turn transition to version %d", remote.Version)
		return Result{Action: action, Outcome: Queued, Changes: s.changes}
	case Reset:
		s.pending = nil
		s.changes = nil
		s.reload = true
		s.logger.Warn("game state reset requested")
		return Result{Action: action, Outcome: Applied, Changes: s.store.Replace(remote)}
	default:
		s.logger.Debug("applying game state version %d", remote.Version)
		return Result{Action: action, Outcome: Applied, Changes: s.store.Replace(remote)}
	}
}

func (s *Syncer) diff(a, b *gametypes.GameState) diff.Changes {
	changes, err := diff.Values(a, b)
	if err != nil {
		s.logger.Error("failed to diff game states: %v", err)
		return diff.Changes{}
	}
	return changes
}

// Pending returns a copy of the queued state, or nil.
func (s *Syncer) Pending() *gametypes.GameState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pending.Copy()
}

// PendingChanges is the diff between the replica and the queued state.
func (s *Syncer) PendingChanges() diff.Changes {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.changes
}

// ResolvePending commits the queued state. It reports false if nothing
// was queued.
func (s *Syncer) ResolvePending(ctx context.Context) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.pending == nil {
		return false
	}
	s.store.Replace(s.pending)
	s.logger.Debug("resolved pending game state version %d", s.pending.Version)
	s.pending = nil
	s.changes = nil
	return true
}

// ReloadRequested reports whether a reset was received and clears the flag.
func (s *Syncer) ReloadRequested() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	reload := s.reload
	s.reload = false
	return reload
}

// Resync drops any queued state and takes the remote state as it is.
func (s *Syncer) Resync(ctx context.Context) error {
	s.lock.Lock()
	s.pending = nil
	s.changes = nil
	s.lock.Unlock()

	raw, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		if blobstore.IsNotFound(err) {
			return s.Push(ctx)
		}
		return fmt.Errorf("failed to resync game state: %v", err)
	}
	remote, err := decode(raw)
	if err != nil {
		return err
	}
	s.store.Replace(remote)
	s.logger.Warn("resynced to game state version %d", remote.Version)
	return nil
}

// HandleEvent routes a store notification. Events for other keys are
// ignored. It reports whether the replica or pending slot changed.
func (s *Syncer) HandleEvent(ctx context.Context, e *blobstore.Event) (Result, bool, error) {
	switch e.Event {
	case messages.EventOpened:
		r, err := s.Pull(ctx)
		return r, err == nil && r.Outcome != Ignored, err
	case messages.EventClosed, messages.EventError:
		s.logger.Warn("notification channel %s: %s", e.Event, e.Message)
		return Result{Outcome: Ignored}, false, nil
	}
	if e.Key != s.key {
		return Result{Outcome: Ignored}, false, nil
	}
	switch e.Event {
	case messages.EventUpdated:
		if len(e.Value) == 0 {
			r, err := s.Pull(ctx)
			return r, err == nil && r.Outcome != Ignored, err
		}
		remote, err := decode(e.Value)
		if err != nil {
			s.logger.Error("%v", err)
			return Result{}, false, err
		}
		r := s.OnRemoteState(ctx, remote)
		return r, r.Outcome != Ignored, nil
	case messages.EventDeleted:
		s.logger.Warn("game state was deleted remotely")
	}
	return Result{Outcome: Ignored}, false, nil
}
