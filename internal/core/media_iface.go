package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/openstage/roomclient/internal/domain"
)

// SubscriptionMode controls which remote media the relay forwards here.
type SubscriptionMode string

const (
	// SubscriptionNormal forwards audio and video.
	SubscriptionNormal SubscriptionMode = "normalSubscription"
	// SubscriptionAudioOnly forwards per-participant audio only.
	SubscriptionAudioOnly SubscriptionMode = "audioSubscription"
	// SubscriptionMixedAudioOnly forwards a single premixed audio stream.
	SubscriptionMixedAudioOnly SubscriptionMode = "mixedAudioSubscription"
)

// PeerState is the lifecycle of one relay peer connection.
type PeerState int

const (
	PeerNew PeerState = iota
	PeerConnecting
	PeerConnected
	PeerDisconnected
	PeerFailed
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerFailed:
		return "failed"
	case PeerClosed:
		return "closed"
	}
	return "unknown"
}

// MediaSession owns the relay peer connections and local track publication.
type MediaSession interface {
	// Connect dials the relay and drives offer/answer until the main
	// peer connection is up. Stage publishers get placeholder tracks
	// published immediately.
	Connect(ctx context.Context, address, token string, isStagePublisher bool) error
	// Disconnect tears down every peer connection and stops polling.
	// Placeholder tracks survive for reuse; Dispose releases them.
	Disconnect()
	Dispose()

	// SetLocalAudioTrack publishes track, or the silent placeholder when
	// track is nil. The sender is never re-created.
	SetLocalAudioTrack(track webrtc.TrackLocal) error
	SetLocalVideoTrack(track webrtc.TrackLocal) error

	SetSubscriptionMode(mode SubscriptionMode)

	// OnPeerState reports per-peer connection-state transitions.
	OnPeerState(fn func(peerID string, state PeerState))
	// OnLinkDown fires when the main relay link reaches failed/closed.
	OnLinkDown(fn func())
	// OnScreenShare reports the current screen-sharer, or empty when the
	// share ended.
	OnScreenShare(fn func(sharer domain.UserID))
	// OnAudioLevel forwards the outbound audio level sampled once a
	// second while the publisher link is connected.
	OnAudioLevel(fn func(level float64))
	// OnData receives relay data-channel frames (position stream).
	OnData(fn func(Frame))

	// SendData writes one frame to the relay over the main data channel.
	SendData(f Frame)
}
