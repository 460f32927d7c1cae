package media

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
)

var (
	ErrNoPublisher     = errors.New("no publisher link established")
	ErrMediaConnect    = errors.New("media negotiation failed")
	errSessionDisposed = errors.New("media session disposed")
)

// relayMessage is the envelope spoken on the relay's own signaling link.
type relayMessage struct {
	Type      string                   `json:"type"`
	ID        string                   `json:"id,omitempty"`
	UserID    string                   `json:"userId,omitempty"`
	IsMain    bool                     `json:"isMain,omitempty"`
	IsSpeaker bool                     `json:"isSpeaker,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Token     string                   `json:"token,omitempty"`
}

// Session implements core.MediaSession on pion/webrtc. One instance spans
// reconnects; placeholder tracks are created once and released on Dispose.
type Session struct {
	cfg webrtc.Configuration

	mu               sync.Mutex
	conn             *websocket.Conn
	peers            map[string]*peerLink
	main             *peerLink
	isStagePublisher bool
	linkUp           bool
	linkDownSent     bool
	disposed         bool

	placeholders *placeholderSet
	audioSender  *webrtc.RTPSender
	videoSender  *webrtc.RTPSender

	streams *streamMap
	poller  levelPoller

	connectedCh chan struct{}

	onPeerState   func(string, core.PeerState)
	onLinkDown    func()
	onScreenShare func(domain.UserID)
	onAudioLevel  func(float64)
	onData        func(core.Frame)
}

func NewSession() *Session {
	return &Session{
		cfg:     defaultWebRTCConfig(),
		peers:   make(map[string]*peerLink),
		streams: newStreamMap(),
	}
}

func (s *Session) OnPeerState(fn func(string, core.PeerState)) { s.onPeerState = fn }
func (s *Session) OnLinkDown(fn func())                        { s.onLinkDown = fn }
func (s *Session) OnScreenShare(fn func(domain.UserID))        { s.onScreenShare = fn }
func (s *Session) OnAudioLevel(fn func(float64))               { s.onAudioLevel = fn }
func (s *Session) OnData(fn func(core.Frame))                  { s.onData = fn }

// Connect dials the relay signaling link and blocks until the main peer
// connection reports connected, the relay drops, or ctx expires.
func (s *Session) Connect(ctx context.Context, address, token string, isStagePublisher bool) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errSessionDisposed
	}
	s.isStagePublisher = isStagePublisher
	s.linkDownSent = false
	s.connectedCh = make(chan struct{})
	connected := s.connectedCh
	s.mu.Unlock()

	if isStagePublisher {
		if err := s.ensurePlaceholders(); err != nil {
			return err
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.sendRelay(relayMessage{Type: "hello", Token: token, IsSpeaker: isStagePublisher}); err != nil {
		s.Disconnect()
		return err
	}

	go s.readLoop(conn)

	select {
	case <-connected:
		// A dying relay link also wakes this wait; only a live main peer
		// counts as success.
		s.mu.Lock()
		up := s.linkUp
		s.mu.Unlock()
		if !up {
			return ErrMediaConnect
		}
		return nil
	case <-ctx.Done():
		s.Disconnect()
		return ErrMediaConnect
	}
}

func (s *Session) ensurePlaceholders() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placeholders != nil {
		return nil
	}
	ps, err := newPlaceholderSet()
	if err != nil {
		return err
	}
	s.placeholders = ps
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.relayDown(err)
			return
		}
		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("bad relay message")
			continue
		}
		s.handleRelayMessage(msg)
	}
}

func (s *Session) handleRelayMessage(msg relayMessage) {
	switch msg.Type {
	case "offer":
		s.handleOffer(msg)
	case "candidate":
		if msg.Candidate == nil {
			return
		}
		s.mu.Lock()
		peer, ok := s.peers[msg.ID]
		s.mu.Unlock()
		if !ok {
			return
		}
		if err := peer.addCandidate(*msg.Candidate); err != nil {
			log.Debug().Err(err).Str("module", "media").Str("peer", msg.ID).Msg("candidate dropped")
		}
	default:
		log.Warn().Str("module", "media").Str("type", msg.Type).Msg("unknown relay message")
	}
}

// handleOffer creates or reuses the peer link for the offer's id and sends
// the answer back. The main publisher link additionally gets the local
// tracks attached before answering.
func (s *Session) handleOffer(msg relayMessage) {
	s.mu.Lock()
	peer, ok := s.peers[msg.ID]
	s.mu.Unlock()

	if !ok {
		var err error
		peer, err = newPeerLink(s.cfg, msg.ID, msg.UserID, msg.IsMain)
		if err != nil {
			log.Error().Err(err).Str("module", "media").Msg("new peer connection")
			return
		}
		s.bindPeer(peer)

		s.mu.Lock()
		s.peers[msg.ID] = peer
		if msg.IsMain {
			s.main = peer
		}
		isPublisher := msg.IsMain && msg.IsSpeaker && s.isStagePublisher
		s.mu.Unlock()

		if isPublisher {
			if err := s.attachLocalTracks(peer); err != nil {
				log.Error().Err(err).Str("module", "media").Msg("attach local tracks")
			}
		}
	}

	if msg.SDP == "" {
		return
	}
	answer, err := peer.applyOffer(msg.SDP)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", msg.ID).Msg("answer failed")
		return
	}
	if err := s.sendRelay(relayMessage{Type: "answer", ID: msg.ID, SDP: answer}); err != nil {
		log.Error().Err(err).Str("module", "media").Msg("send answer")
	}
}

// attachLocalTracks publishes the placeholder tracks. The senders created
// here are the only senders this session will ever have; later track
// changes go through ReplaceTrack.
func (s *Session) attachLocalTracks(peer *peerLink) error {
	s.mu.Lock()
	ps := s.placeholders
	s.mu.Unlock()
	if ps == nil {
		return ErrNoPublisher
	}

	audioSender, err := peer.pc.AddTrack(ps.audio)
	if err != nil {
		return err
	}
	videoSender, err := peer.pc.AddTrack(ps.video)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.audioSender = audioSender
	s.videoSender = videoSender
	s.mu.Unlock()
	return nil
}

func (s *Session) bindPeer(peer *peerLink) {
	peer.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "media").
			Str("peer", peer.id).
			Str("kind", track.Kind().String()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if sharer, isScreen := s.streams.add(track); isScreen && s.onScreenShare != nil {
			s.onScreenShare(sharer)
		}
	})

	peer.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		peer.mu.Lock()
		peer.dataChannel = dc
		peer.mu.Unlock()
		dc.OnMessage(func(m webrtc.DataChannelMessage) {
			if s.onData != nil {
				s.onData(core.Frame(m.Data))
			}
		})
	})

	peer.pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		mapped := mapPeerState(st)
		log.Info().Str("module", "media").Str("peer", peer.id).Str("state", mapped.String()).Msg("peer state")
		if s.onPeerState != nil {
			s.onPeerState(peer.id, mapped)
		}
		if !peer.isMain {
			return
		}
		switch mapped {
		case core.PeerConnected:
			s.mainConnected(peer)
		case core.PeerFailed, core.PeerClosed:
			s.poller.stop()
			s.relayDown(errors.New("main peer connection " + mapped.String()))
		}
	})
}

func (s *Session) mainConnected(peer *peerLink) {
	s.mu.Lock()
	s.linkUp = true
	ch := s.connectedCh
	s.connectedCh = nil
	isPublisher := s.isStagePublisher
	s.mu.Unlock()

	if ch != nil {
		close(ch)
	}
	if isPublisher && s.onAudioLevel != nil {
		s.poller.start(peer.pc, s.onAudioLevel)
	}
}

// relayDown marks the link down and reports it upstream exactly once per
// connect. Transport faults here are surfaced, never retried locally; the
// session above decides what dying media means for the room.
func (s *Session) relayDown(err error) {
	s.mu.Lock()
	wasUp := s.linkUp || s.connectedCh != nil
	alreadySent := s.linkDownSent
	s.linkDownSent = true
	s.linkUp = false
	ch := s.connectedCh
	s.connectedCh = nil
	s.mu.Unlock()

	s.poller.stop()
	if ch != nil {
		close(ch)
	}
	if !wasUp || alreadySent {
		return
	}
	log.Warn().Err(err).Str("module", "media").Msg("relay link down")
	if s.onLinkDown != nil {
		s.onLinkDown()
	}
}

func (s *Session) sendRelay(msg relayMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrMediaConnect
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SetLocalAudioTrack publishes track on the stable audio sender; nil swaps
// the silent placeholder back in. The sender itself is never re-created.
func (s *Session) SetLocalAudioTrack(track webrtc.TrackLocal) error {
	s.mu.Lock()
	sender, ps := s.audioSender, s.placeholders
	s.mu.Unlock()
	if sender == nil {
		return ErrNoPublisher
	}
	if track == nil {
		track = ps.audio
	}
	return sender.ReplaceTrack(track)
}

func (s *Session) SetLocalVideoTrack(track webrtc.TrackLocal) error {
	s.mu.Lock()
	sender, ps := s.videoSender, s.placeholders
	s.mu.Unlock()
	if sender == nil {
		return ErrNoPublisher
	}
	if track == nil {
		track = ps.video
	}
	return sender.ReplaceTrack(track)
}

// SetSubscriptionMode asks the relay to change what it forwards here.
func (s *Session) SetSubscriptionMode(mode core.SubscriptionMode) {
	frame, err := json.Marshal(struct {
		Type string `json:"type"`
		Mode string `json:"mode"`
	}{Type: "subscription", Mode: string(mode)})
	if err != nil {
		return
	}
	s.SendData(frame)
	log.Info().Str("module", "media").Str("mode", string(mode)).Msg("subscription mode")
}

// SendData writes one frame to the relay over the main data channel.
// Dropped while the channel is not open.
func (s *Session) SendData(f core.Frame) {
	s.mu.Lock()
	main := s.main
	s.mu.Unlock()
	if main == nil {
		return
	}
	main.mu.Lock()
	dc := main.dataChannel
	main.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		log.Debug().Str("module", "media").Msg("data send dropped, channel not open")
		return
	}
	if err := dc.Send(f); err != nil {
		log.Error().Err(err).Str("module", "media").Msg("data send")
	}
}

// ScreenSharer exposes the current screen-sharing participant, if any.
func (s *Session) ScreenSharer() (domain.UserID, bool) { return s.streams.screenSharer() }

// RemoteStream returns the remote tracks grouped under one stream id.
func (s *Session) RemoteStream(streamID string) (RemoteStream, bool) {
	return s.streams.get(streamID)
}

// Disconnect tears down every peer connection and the relay link, and
// stops audio-level polling. Placeholders survive for the next connect.
func (s *Session) Disconnect() {
	s.poller.stop()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	peers := s.peers
	s.peers = make(map[string]*peerLink)
	s.main = nil
	s.audioSender = nil
	s.videoSender = nil
	s.linkUp = false
	ch := s.connectedCh
	s.connectedCh = nil
	s.mu.Unlock()

	if ch != nil {
		close(ch)
	}
	if conn != nil {
		_ = conn.Close()
	}
	for _, p := range peers {
		p.close()
	}
	s.streams.clear()
	log.Info().Str("module", "media").Int("peers", len(peers)).Msg("media disconnected")
}

// Dispose is the end of the session: full disconnect plus placeholder
// release. The session cannot connect again afterwards.
func (s *Session) Dispose() {
	s.Disconnect()
	s.mu.Lock()
	s.disposed = true
	ps := s.placeholders
	s.placeholders = nil
	s.mu.Unlock()
	if ps != nil {
		ps.release()
	}
}
