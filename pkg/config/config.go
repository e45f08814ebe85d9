// Package config loads the client tunables from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// GameConfig holds the client settings that are not worth a flag each.
// The home database holds the shared room listing, the game database holds
// game states keyed by game id. Durations are in milliseconds.
type GameConfig struct {
	ServerURL       string `json:"server_url"`
	HomeDatabase    string `json:"home_database"`
	GameDatabase    string `json:"game_database"`
	MaxRetries      int    `json:"max_retries"`
	KeepAliveMillis int    `json:"keep_alive_millis"`
	StepDelayMillis int    `json:"step_delay_millis"`
	TickMillis      int    `json:"tick_millis"`
	ReconnectMillis int    `json:"reconnect_millis"`
	PrefsPath       string `json:"prefs_path"`
	PrefsPrefix     string `json:"prefs_prefix"`
}

// Default returns the settings used when no file is given.
func Default() *GameConfig {
	return &GameConfig{
		ServerURL:       "http://localhost:9090",
		HomeDatabase:    "tsuro",
		GameDatabase:    "tsuro-games",
		MaxRetries:      3,
		KeepAliveMillis: 10000,
		StepDelayMillis: 250,
		TickMillis:      100,
		ReconnectMillis: 2000,
		PrefsPath:       "tsuro-prefs.db",
		PrefsPrefix:     "tsuro",
	}
}

// Load reads the file at path over the defaults. Keys missing from the
// file keep their default values.
func Load(path string) (*GameConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game config: %v", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *GameConfig) Validate() error {
	switch {
	case c.ServerURL == "":
		return fmt.Errorf("server_url must be set")
	case c.HomeDatabase == "" || c.GameDatabase == "":
		return fmt.Errorf("home_database and game_database must be set")
	case c.TickMillis <= 0:
		return fmt.Errorf("tick_millis must be positive")
	case c.StepDelayMillis < 0 || c.KeepAliveMillis < 0 || c.ReconnectMillis < 0:
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

func (c *GameConfig) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveMillis) * time.Millisecond
}

func (c *GameConfig) StepDelay() time.Duration {
	return time.Duration(c.StepDelayMillis) * time.Millisecond
}

func (c *GameConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

func (c *GameConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectMillis) * time.Millisecond
}
