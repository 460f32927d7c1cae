package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
)

func TestLoadRoomSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/video-room/room-1/settings", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("password"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"response":{
			"name":"room-1","password":"secret","description":"My room",
			"ozForwarder":"wss://relay/ws","token":"relay-tok","socketUrl":"wss://sock/ws",
			"ownerId":"owner-1","isAdmin":true,"withSpeakers":true,"isPrivate":true,
			"uiConfig":{"radarSize":240,"roomWidthMul":2.5,"roomHeightMul":1.5},
			"videoWidth":640,"videoHeight":480,"fps":30},"errors":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	settings, err := c.LoadRoomSettings(context.Background(), core.SettingsParams{
		RoomID:   "room-1",
		RoomPass: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoomID("room-1"), settings.Name)
	assert.Equal(t, "wss://relay/ws", settings.RelayAddress)
	assert.Equal(t, "relay-tok", settings.RelayToken)
	assert.Equal(t, domain.UserID("owner-1"), settings.OwnerID)
	assert.True(t, settings.IsAdmin)
	assert.True(t, settings.IsPrivate)
	assert.Equal(t, 240.0, settings.RadarSize)
	assert.Equal(t, 2.5, settings.RoomWidthMul)
	assert.Equal(t, 30, settings.FPS)
}

func TestLoadRoomSettingsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"response":null,"errors":["v1.video_room.payment_required"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.LoadRoomSettings(context.Background(), core.SettingsParams{RoomID: "room-1"})

	var se *core.SettingsError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "v1.video_room.payment_required", se.Name)
}

func TestLoadRoomSettingsBadStatusWithoutErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"response":null,"errors":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.LoadRoomSettings(context.Background(), core.SettingsParams{RoomID: "room-1"})

	require.Error(t, err)
	var se *core.SettingsError
	assert.False(t, errors.As(err, &se), "a transport-level failure is not an api error class")
}

func TestMakeRoomPublic(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"response":{},"errors":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	require.NoError(t, c.MakeRoomPublic(context.Background(), "room-1"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/video-room/room-1/make-public", gotPath)
}
