// Package prefs persists small client-local preferences between sessions.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const playerInfoKey = "playerInfo"

// Store keeps JSON values under keys namespaced by a prefix.
type Store interface {
	// Get decodes the value stored under key into out. It reports false if
	// nothing is stored.
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// PlayerInfo is the display name and colour chosen on the last join.
type PlayerInfo struct {
	PlayerName  string `json:"playerName"`
	PlayerColor string `json:"playerColor"`
}

func ReadPlayerInfo(ctx context.Context, s Store) (PlayerInfo, bool, error) {
	var info PlayerInfo
	ok, err := s.Get(ctx, playerInfoKey, &info)
	if err != nil {
		return PlayerInfo{}, false, fmt.Errorf("failed to read player info: %v", err)
	}
	return info, ok, nil
}

func SavePlayerInfo(ctx context.Context, s Store, info PlayerInfo) error {
	if err := s.Set(ctx, playerInfoKey, info); err != nil {
		return fmt.Errorf("failed to save player info: %v", err)
	}
	return nil
}

func namespaced(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

type MemoryStore struct {
	lock   sync.RWMutex
	prefix string
	values map[string][]byte
}

func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		prefix: prefix,
		values: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	b, ok := s.values[namespaced(s.prefix, key)]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %v", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %v", key, err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[namespaced(s.prefix, key)] = b
	return nil
}
