package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateBeforeOfferRejected(t *testing.T) {
	p, err := newPeerLink(defaultWebRTCConfig(), "peer-1", "user-1", true)
	require.NoError(t, err)
	defer p.close()

	err = p.addCandidate(webrtc.ICECandidateInit{Candidate: "candidate:0 1 UDP 1 127.0.0.1 4242 typ host"})
	assert.ErrorIs(t, err, errNotNegotiating)
}

func TestMapPeerState(t *testing.T) {
	assert.Equal(t, "connected", mapPeerState(webrtc.PeerConnectionStateConnected).String())
	assert.Equal(t, "failed", mapPeerState(webrtc.PeerConnectionStateFailed).String())
	assert.Equal(t, "closed", mapPeerState(webrtc.PeerConnectionStateClosed).String())
	assert.Equal(t, "new", mapPeerState(webrtc.PeerConnectionStateNew).String())
}
