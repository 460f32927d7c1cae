package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/protocol"
)

type fakeChannel struct {
	mu         sync.Mutex
	sent       []core.Frame
	connectErr error
	payload    core.ConnectPayload
	closed     bool

	onMessage      func(core.Frame)
	onReconnecting func(bool)
	onFatal        func(error)
}

func (c *fakeChannel) Connect(_ context.Context, payload core.ConnectPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = payload
	return c.connectErr
}

func (c *fakeChannel) Send(f core.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, f)
}

func (c *fakeChannel) OnMessage(fn func(core.Frame)) { c.onMessage = fn }
func (c *fakeChannel) OnReconnecting(fn func(bool))  { c.onReconnecting = fn }
func (c *fakeChannel) OnFatal(fn func(error))        { c.onFatal = fn }

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// sentKinds decodes the envelope type of every sent frame, in order.
func (c *fakeChannel) sentKinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, 0, len(c.sent))
	for _, f := range c.sent {
		var env protocol.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			kinds = append(kinds, "?")
			continue
		}
		kinds = append(kinds, env.Type)
	}
	return kinds
}

type fakeMedia struct {
	mu         sync.Mutex
	connectErr error

	connected        bool
	stagePublisher   bool
	disconnected     bool
	disposed         bool
	subscriptionMode core.SubscriptionMode
	dataSent         []core.Frame
	audioTracks      []webrtc.TrackLocal
	videoTracks      []webrtc.TrackLocal

	onData func(core.Frame)

	// connectHook runs while Connect is in flight, before it resolves.
	connectHook func()
}

func (m *fakeMedia) Connect(_ context.Context, _, _ string, isStagePublisher bool) error {
	if m.connectHook != nil {
		m.connectHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	m.stagePublisher = isStagePublisher
	return nil
}

func (m *fakeMedia) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
}

func (m *fakeMedia) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
}

func (m *fakeMedia) SetLocalAudioTrack(track webrtc.TrackLocal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioTracks = append(m.audioTracks, track)
	return nil
}

func (m *fakeMedia) SetLocalVideoTrack(track webrtc.TrackLocal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoTracks = append(m.videoTracks, track)
	return nil
}

func (m *fakeMedia) SetSubscriptionMode(mode core.SubscriptionMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptionMode = mode
}

func (m *fakeMedia) OnPeerState(func(string, core.PeerState)) {}
func (m *fakeMedia) OnLinkDown(func())                        {}
func (m *fakeMedia) OnScreenShare(func(domain.UserID))        {}
func (m *fakeMedia) OnAudioLevel(func(float64))               {}
func (m *fakeMedia) OnData(fn func(core.Frame))               { m.onData = fn }

func (m *fakeMedia) SendData(f core.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataSent = append(m.dataSent, f)
}

type fakeSettings struct {
	settings  *domain.RoomSettings
	err       error
	publicErr error

	mu          sync.Mutex
	publicCalls []domain.RoomID
}

func (s *fakeSettings) LoadRoomSettings(context.Context, core.SettingsParams) (*domain.RoomSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.settings, nil
}

func (s *fakeSettings) MakeRoomPublic(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicCalls = append(s.publicCalls, id)
	return s.publicErr
}

type fakePermissions struct{ granted bool }

func (p fakePermissions) CheckAudioPermission(context.Context) bool { return p.granted }

type fakeOracle struct {
	other bool
	err   error
}

func (o fakeOracle) IsThereOtherAdmin(context.Context) (bool, error) { return o.other, o.err }

type fakePrompter struct {
	choice core.LeaveChoice

	mu           sync.Mutex
	called       bool
	withSpeakers bool
}

func (p *fakePrompter) AskLeaveAsLastAdmin(_ context.Context, withSpeakers bool) core.LeaveChoice {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.called = true
	p.withSpeakers = withSpeakers
	return p.choice
}

type fakeNotifier struct {
	mu sync.Mutex

	reconnecting []bool
	handRequests []core.HandRequest
	declined     []string
	adminGranted int
	absolute     []string
	silent       []bool
	muted        []string
	timersOn     []float64
	timersOff    int
	finished     int
}

func (n *fakeNotifier) ReconnectingChanged(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconnecting = append(n.reconnecting, v)
}

func (n *fakeNotifier) HandRequested(req core.HandRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handRequests = append(n.handRequests, req)
}

func (n *fakeNotifier) InviteDeclined(id domain.UserID, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.declined = append(n.declined, string(id))
}

func (n *fakeNotifier) AdminGranted() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adminGranted++
}

func (n *fakeNotifier) AbsoluteSpeakerSet(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.absolute = append(n.absolute, name)
}

func (n *fakeNotifier) SilentModeChanged(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.silent = append(n.silent, enabled)
}

func (n *fakeNotifier) MutedByAdmin(mediaType, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.muted = append(n.muted, mediaType)
}

func (n *fakeNotifier) RoundTimerStarted(seconds float64, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timersOn = append(n.timersOn, seconds)
}

func (n *fakeNotifier) RoundTimerStopped(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timersOff++
}

func (n *fakeNotifier) RoomFinished() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished++
}
