package state

import (
	"context"
	"testing"

	gametypes "github.com/cbodonnell/tsuro/pkg/game/types"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type mockRooms struct {
	mock.Mock
}

func (m *mockRooms) Refresh(ctx context.Context, gameState *gametypes.GameState) error {
	args := m.Called(ctx, gameState)
	return args.Error(0)
}

func (m *mockRooms) Delete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTestStore(rooms RoomRefresher, p prefs.Store) *Store {
	return NewStore(NewStoreOptions{
		Rooms:  rooms,
		Prefs:  p,
		Logger: log.Discard(),
	})
}

func TestStore_RegisterPlayer(t *testing.T) {
	type args struct {
		name  string
		color string
	}
	tests := []struct {
		name      string
		existing  []string
		args      args
		wantColor string
		wantErr   bool
	}{
		{name: "first player", args: args{name: "Alice", color: "#ff0000"}, wantColor: "#e2372e"},
		{name: "trimmed name", args: args{name: "  Bob ", color: "#00ff00"}, wantColor: "#2ee281"},
		{name: "empty name", args: args{name: "   ", color: "#ff0000"}, wantErr: true},
		{name: "duplicate name", existing: []string{"Alice"}, args: args{name: "Alice", color: "#ff0000"}, wantErr: true},
		{name: "case sensitive", existing: []string{"Alice"}, args: args{name: "alice", color: "#ff0000"}, wantColor: "#e2d02e"},
		{name: "invalid color", args: args{name: "Alice", color: "red"}, wantErr: true},
		{name: "room full", existing: []string{"a", "b", "c", "d", "e", "f", "g", "h"}, args: args{name: "Alice", color: "#ff0000"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(nil, nil)
			for _, name := range tt.existing {
				_, err := s.RegisterPlayer(context.Background(), name, "#ff0000", false)
				require.NoError(t, err)
			}

			id, err := s.RegisterPlayer(context.Background(), tt.args.name, tt.args.color, false)
			if (err != nil) != tt.wantErr {
				t.Errorf("RegisterPlayer() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				assert.True(t, gametypes.IsValidationError(err))
				assert.Equal(t, gametypes.NoPlayer, id)
				assert.Len(t, s.Get().Players, len(tt.existing))
				return
			}
			gs := s.Get()
			require.Len(t, gs.Players, len(tt.existing)+1)
			assert.Equal(t, gametypes.PlayerID(len(tt.existing)), id)
			assert.Equal(t, tt.wantColor, gs.Players[id].PlayerColor)
		})
	}
}

func TestStore_RegisterPlayer_Self(t *testing.T) {
	rooms := &mockRooms{}
	rooms.On("Refresh", mock.Anything, mock.Anything).Return(nil)
	p := prefs.NewMemoryStore("tsuro")
	s := newTestStore(rooms, p)

	_, err := s.RegisterPlayer(context.Background(), "Alice", "#ff0000", true)
	require.NoError(t, err)
	_, err = s.RegisterPlayer(context.Background(), "Bob", "#00ff00", false)
	require.NoError(t, err)

	assert.Equal(t, gametypes.PlayerID(0), s.SelfID())
	assert.True(t, s.IsOwner())
	assert.Equal(t, []string{"1"}, s.ChangedKeys("players", true, false, false))

	info, ok, err := prefs.ReadPlayerInfo(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, prefs.PlayerInfo{PlayerName: "Alice", PlayerColor: "#e2372e"}, info)

	rooms.AssertNumberOfCalls(t, "Refresh", 2)
}

func TestStore_RegisterPlayer_DuringPlay(t *testing.T) {
	s := newTestStore(nil, nil)
	_, err := s.Update(func(gs *gametypes.GameState) error {
		gs.GameStatus = gametypes.GameStatusPlaying
		return nil
	})
	require.NoError(t, err)

	id, err := s.RegisterPlayer(context.Background(), "Late", "#ffffff", false)
	require.NoError(t, err)
	assert.Equal(t, gametypes.PlayerStatusSpectator, s.Get().Players[id].PlayerStatus)
}

func TestStore_UnregisterPlayer(t *testing.T) {
	rooms := &mockRooms{}
	rooms.On("Refresh", mock.Anything, mock.Anything).Return(nil)
	rooms.On("Delete", mock.Anything).Return(nil)
	s := newTestStore(rooms, nil)
	ctx := context.Background()

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := s.RegisterPlayer(ctx, name, "#ff0000", name == "Carol")
		require.NoError(t, err)
	}
	s.Client(0).Ready = true
	s.Client(2).Ready = true

	err := s.UnregisterPlayer(ctx, "")
	assert.True(t, gametypes.IsValidationError(err))

	require.NoError(t, s.UnregisterPlayer(ctx, "Nobody"))
	assert.Len(t, s.Get().Players, 3)

	require.NoError(t, s.UnregisterPlayer(ctx, "Alice"))
	gs := s.Get()
	require.Len(t, gs.Players, 2)
	assert.Equal(t, "Bob", gs.Players[0].PlayerName)
	assert.Equal(t, gametypes.PlayerID(1), s.SelfID())
	assert.False(t, s.Client(0).Ready)
	assert.True(t, s.Client(1).Ready)

	require.NoError(t, s.UnregisterPlayer(ctx, "Bob"))
	require.NoError(t, s.UnregisterPlayer(ctx, "Carol"))
	assert.Empty(t, s.Get().Players)
	assert.Equal(t, gametypes.NoPlayer, s.SelfID())
	rooms.AssertNumberOfCalls(t, "Delete", 1)
}

func TestAdvanceTurn(t *testing.T) {
	players := func(statuses ...gametypes.PlayerStatus) []*gametypes.PlayerState {
		out := make([]*gametypes.PlayerState, len(statuses))
		for i, s := range statuses {
			out[i] = &gametypes.PlayerState{PlayerStatus: s}
		}
		return out
	}
	type args struct {
		players    []*gametypes.PlayerState
		turn       int
		onlyActive bool
	}
	tests := []struct {
		name      string
		args      args
		want      int
		wantRound int
	}{
		{
			name: "next player",
			args: args{players: players(1, 1, 1), turn: 0, onlyActive: true},
			want: 1,
		},
		{
			name:      "wraps",
			args:      args{players: players(1, 1, 1), turn: 2, onlyActive: true},
			want:      0,
			wantRound: 1,
		},
		{
			name: "skips lost",
			args: args{players: players(1, 11, 15, 3), turn: 0, onlyActive: true},
			want: 3,
		},
		{
			name: "includes lost when asked",
			args: args{players: players(1, 11, 15, 3), turn: 0, onlyActive: false},
			want: 1,
		},
		{
			name: "nobody active returns to start",
			args: args{players: players(11, 11, 12), turn: 1, onlyActive: true},
			want: 1,
		},
		{
			name:      "single active player wraps to itself",
			args:      args{players: players(11, 3, 11), turn: 1, onlyActive: true},
			want:      1,
			wantRound: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := &gametypes.GameState{Players: tt.args.players, PlayerTurn: tt.args.turn}
			assert.Equal(t, tt.want, AdvanceTurn(gs, tt.args.onlyActive))
			assert.Equal(t, tt.want, gs.PlayerTurn)
			assert.Equal(t, tt.wantRound, gs.RoundNum)
		})
	}
}

func TestAdvanceTurnLandsOnActivePlayer(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		statuses := rapid.SliceOfN(rapid.SampledFrom([]gametypes.PlayerStatus{1, 3, 6, 11, 12, 15}), 1, 8).Draw(rt, "statuses")
		gs := &gametypes.GameState{PlayerTurn: rapid.IntRange(0, len(statuses)-1).Draw(rt, "turn")}
		for _, s := range statuses {
			gs.Players = append(gs.Players, &gametypes.PlayerState{PlayerStatus: s})
		}
		start := gs.PlayerTurn

		got := AdvanceTurn(gs, true)
		if got < 0 || got >= len(statuses) {
			rt.Fatalf("turn %d out of range", got)
		}
		if gs.ActivePlayers() > 0 && !gs.Players[got].IsActive() && got != start {
			rt.Fatalf("landed on inactive player %d", got)
		}
		if gs.ActivePlayers() == 0 && got != start {
			rt.Fatalf("expected turn to stay at %d with nobody active, got %d", start, got)
		}
		if gs.ActivePlayers() == 0 && gs.RoundNum != 0 {
			rt.Fatalf("round advanced to %d with nobody active", gs.RoundNum)
		}
	})
}

func TestStore_UpdateError(t *testing.T) {
	s := newTestStore(nil, nil)
	_, err := s.Update(func(gs *gametypes.GameState) error {
		gs.Version = 10
		return gametypes.NewValidationError("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Version())
	assert.Equal(t, 1, s.BumpVersion())
}
