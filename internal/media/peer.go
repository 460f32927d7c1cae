// Package media owns the relay (SFU) peer connections, local track
// publication and remote stream demultiplexing.
package media

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
)

// negotiation is the explicit per-peer lifecycle. Transitions are driven
// only by inbound offer/answer events, never by call-site branching.
type negotiation int

const (
	negotiationAbsent negotiation = iota
	negotiationInProgress
	negotiationEstablished
)

var errNotNegotiating = errors.New("peer is not negotiating")

// peerLink wraps one relay peer connection.
type peerLink struct {
	id     string
	userID string
	isMain bool
	pc     *webrtc.PeerConnection

	mu    sync.Mutex
	state negotiation

	dataChannel *webrtc.DataChannel
}

func defaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func newPeerLink(cfg webrtc.Configuration, id, userID string, isMain bool) (*peerLink, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &peerLink{id: id, userID: userID, isMain: isMain, pc: pc}, nil
}

// applyOffer answers one relay offer. The first offer moves the link from
// absent to negotiating; a renegotiation reuses the established link.
func (p *peerLink) applyOffer(sdp string) (string, error) {
	p.mu.Lock()
	if p.state == negotiationAbsent {
		p.state = negotiationInProgress
	}
	p.mu.Unlock()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	<-gatherComplete

	p.mu.Lock()
	p.state = negotiationEstablished
	p.mu.Unlock()

	return p.pc.LocalDescription().SDP, nil
}

func (p *peerLink) addCandidate(ci webrtc.ICECandidateInit) error {
	p.mu.Lock()
	st := p.state
	p.mu.Unlock()
	if st == negotiationAbsent {
		return errNotNegotiating
	}
	return p.pc.AddICECandidate(ci)
}

func (p *peerLink) close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", p.id).Msg("close error")
	}
}

func mapPeerState(s webrtc.PeerConnectionState) core.PeerState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return core.PeerNew
	case webrtc.PeerConnectionStateConnecting:
		return core.PeerConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.PeerConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.PeerDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.PeerFailed
	default:
		return core.PeerClosed
	}
}
