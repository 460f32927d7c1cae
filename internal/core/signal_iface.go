package core

import (
	"context"

	"github.com/openstage/roomclient/internal/domain"
)

// Frame is a raw signaling payload.
type Frame []byte

// ConnectPayload is the opening handshake of the signaling channel.
type ConnectPayload struct {
	URL      string          `json:"url"`
	RoomID   domain.RoomID   `json:"roomId"`
	RoomPass domain.RoomPass `json:"roomPass"`
	UserID   domain.UserID   `json:"userId"`
	RoomName string          `json:"roomName"`

	RoomWidthMul       float64 `json:"roomWidthMul"`
	RoomHeightMul      float64 `json:"roomHeightMul"`
	AdaptiveBubbleSize float64 `json:"adaptiveBubbleSize"`
	DevicePixelRatio   float64 `json:"devicePixelRatio"`

	Address     string `json:"address"`
	Token       string `json:"token"`
	VideoWidth  int    `json:"videoWidth"`
	VideoHeight int    `json:"videoHeight"`
	FPS         int    `json:"fps"`

	VideoEnabled bool `json:"videoEnabled"`
	AudioEnabled bool `json:"audioEnabled"`
}

// SignalChannel is one persistent bidirectional message connection to the
// room server. Implementations reconnect on transport faults; an explicit
// Close never triggers a reconnect.
type SignalChannel interface {
	// Connect dials and blocks until the channel is open or failed.
	Connect(ctx context.Context, payload ConnectPayload) error
	// Send writes one frame. While the channel is down the frame is
	// dropped; delivery across a disconnect window is not guaranteed.
	Send(f Frame)
	// OnMessage installs the inbound handler. Handlers run sequentially
	// on the channel's reader goroutine.
	OnMessage(fn func(Frame))
	// OnReconnecting fires exactly once entering an outage and once
	// leaving it, never per attempt.
	OnReconnecting(fn func(bool))
	// OnFatal fires when the channel gives up (reconnect cap exhausted).
	OnFatal(fn func(error))
	Close()
}
