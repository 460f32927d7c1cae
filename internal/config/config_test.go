package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"--user", "me", "--room", "room-1"})
	require.NoError(t, err)

	assert.Equal(t, "me", cfg.UserID)
	assert.Equal(t, "room-1", cfg.RoomID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1.0, cfg.DevicePixelRatio)
	assert.Equal(t, 10.0, cfg.ReactionTTL)
	assert.Equal(t, time.Second, cfg.Signal.BaseInterval)
	assert.Equal(t, 30*time.Second, cfg.Signal.MaxInterval)
	assert.Equal(t, 1.5, cfg.Signal.Decay)
	assert.Zero(t, cfg.Signal.MaxReconnectAttempts)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
}

func TestLoadFlagsOverride(t *testing.T) {
	cfg, err := Load([]string{
		"--user", "me", "--room", "room-1", "--pass", "hunter2",
		"--api-url", "https://api.example", "--log-level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.RoomPass)
	assert.Equal(t, "https://api.example", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRequiresUserAndRoom(t *testing.T) {
	_, err := Load(nil)
	assert.Error(t, err)

	_, err = Load([]string{"--user", "me"})
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--user", "me", "--room", "r", "--nope"})
	assert.Error(t, err)
}
