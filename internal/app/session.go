// Package app wires the room session together: the participant registry,
// the reaction ledger, the signaling channel and the media session, driven
// by one inbound dispatch loop.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/protocol"
)

var (
	// ErrSessionActive rejects a second connect while a session is live.
	// One process owns at most one room session.
	ErrSessionActive = errors.New("a room session is already active")
	ErrNotPermitted  = errors.New("audio permission not granted")
)

// liveSessions guards the one-session-per-process invariant.
var liveSessions atomic.Int32

type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

type ConnectResultType int

const (
	ConnectOK ConnectResultType = iota
	ConnectFail
	ConnectFailLoadSettings
	ConnectNotPermitted
	ConnectPaid
	ConnectNftRequired
)

// ConnectResult classifies a connect attempt. EventID is set only for
// ConnectNftRequired.
type ConnectResult struct {
	Type    ConnectResultType
	EventID string
}

// Deps are the components and external collaborators a session runs on.
type Deps struct {
	Settings    core.SettingsLoader
	Permissions core.PermissionChecker
	AdminOracle core.AdminOracle
	Prompter    core.LeavePrompter
	Notifier    core.Notifier
	Channel     core.SignalChannel
	Media       core.MediaSession
}

// Options tune session behavior that comes from the device, not the room.
type Options struct {
	DevicePixelRatio float64
	ReactionTTL      float64 // seconds
}

func (o Options) withDefaults() Options {
	if o.DevicePixelRatio <= 0 {
		o.DevicePixelRatio = 1
	}
	if o.ReactionTTL <= 0 {
		o.ReactionTTL = 10
	}
	return o
}

// Session owns the lifecycle of one room connection.
type Session struct {
	deps Deps
	opts Options

	localID  domain.UserID
	registry *Registry
	ledger   *Ledger

	mu       sync.Mutex
	state    ConnectionState
	settings *domain.RoomSettings
	identity domain.RoomIdentity
	radar    domain.Radar

	silentMode               bool
	absoluteSpeakerEnabled   bool
	absoluteSpeakerAvailable bool

	// skipRelayDisconnect is set when settings said the room is already
	// done: the relay was never engaged, so destroy must not notify it.
	skipRelayDisconnect bool
	destroyed           bool
	guarded             bool
}

func NewSession(localID domain.UserID, deps Deps, opts Options) *Session {
	s := &Session{
		deps:                     deps,
		opts:                     opts.withDefaults(),
		localID:                  localID,
		registry:                 NewRegistry(localID),
		ledger:                   NewLedger(localID),
		state:                    StateIdle,
		absoluteSpeakerAvailable: true,
	}
	s.registry.OnLocalRole(func(u domain.LocalUser) {
		log.Info().
			Str("module", "app.session").
			Str("mode", string(u.Mode)).
			Bool("admin", u.IsAdmin).
			Msg("local role changed")
	})
	s.ledger.OnLocalExpired(func() {
		// Tell the room our own reaction ended; remote expiries stay local.
		s.deps.Channel.Send(protocol.EncodeReaction(domain.ReactionNone, 0))
	})
	return s
}

func (s *Session) Registry() *Registry    { return s.registry }
func (s *Session) Ledger() *Ledger        { return s.ledger }
func (s *Session) LocalID() domain.UserID { return s.localID }

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() domain.RoomIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Radar() domain.Radar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radar
}

func (s *Session) IsSilentMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silentMode
}

func (s *Session) IsAbsoluteSpeakerEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.absoluteSpeakerEnabled
}

func (s *Session) IsAbsoluteSpeakerAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.absoluteSpeakerAvailable
}

// Connect runs the full join sequence: settings fetch, permission gate,
// signaling open, relay negotiation. Each await has its own failure path,
// and a Destroy arriving mid-flight aborts before any later step installs
// state.
func (s *Session) Connect(ctx context.Context, roomID domain.RoomID, roomPass domain.RoomPass) (ConnectResult, error) {
	if !liveSessions.CompareAndSwap(0, 1) {
		return ConnectResult{Type: ConnectFail}, ErrSessionActive
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		liveSessions.Store(0)
		return ConnectResult{Type: ConnectFail}, ErrSessionActive
	}
	s.guarded = true
	s.state = StateConnecting
	s.mu.Unlock()

	res := s.connect(ctx, roomID, roomPass)
	if res.Type != ConnectOK {
		s.mu.Lock()
		// On a destroy mid-connect the guard was already released there.
		if !s.destroyed {
			s.state = StateIdle
			s.guarded = false
			liveSessions.Store(0)
		}
		s.mu.Unlock()
	}
	return res, nil
}

func (s *Session) connect(ctx context.Context, roomID domain.RoomID, roomPass domain.RoomPass) ConnectResult {
	settings, err := s.deps.Settings.LoadRoomSettings(ctx, core.SettingsParams{
		RoomID:   roomID,
		RoomPass: roomPass,
		Endpoint: string(s.localID),
	})
	if err != nil {
		return classifySettingsError(err)
	}
	if s.isDestroyed() {
		return ConnectResult{Type: ConnectFail}
	}

	if settings.IsDone {
		log.Error().Str("module", "app.session").Str("room", string(roomID)).Msg("room already done")
		s.mu.Lock()
		s.skipRelayDisconnect = true
		s.mu.Unlock()
		return ConnectResult{Type: ConnectFailLoadSettings}
	}

	if s.needsAudioPermission(settings) && !s.deps.Permissions.CheckAudioPermission(ctx) {
		return ConnectResult{Type: ConnectNotPermitted}
	}

	s.mu.Lock()
	s.settings = settings
	s.identity = domain.RoomIdentity{
		ID:               settings.Name,
		Pass:             settings.Password,
		OwnerID:          settings.OwnerID,
		IsPrivate:        settings.IsPrivate,
		HasStageSpeakers: settings.WithSpeakers,
	}
	s.radar = domain.Radar{Radius: settings.RadarSize / 2 * s.opts.DevicePixelRatio}
	s.mu.Unlock()

	s.bindChannel()
	s.bindMedia()

	err = s.deps.Channel.Connect(ctx, core.ConnectPayload{
		URL:                settings.SocketURL,
		RoomID:             settings.Name,
		RoomPass:           settings.Password,
		UserID:             s.localID,
		RoomName:           settings.Description,
		RoomWidthMul:       settings.RoomWidthMul,
		RoomHeightMul:      settings.RoomHeightMul,
		AdaptiveBubbleSize: 1,
		DevicePixelRatio:   s.opts.DevicePixelRatio,
		Address:            settings.RelayAddress,
		Token:              settings.RelayToken,
		VideoWidth:         settings.VideoWidth,
		VideoHeight:        settings.VideoHeight,
		FPS:                settings.FPS,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.session").Msg("signaling open failed")
		return ConnectResult{Type: ConnectFail}
	}
	if s.isDestroyed() {
		return ConnectResult{Type: ConnectFail}
	}

	err = s.deps.Media.Connect(ctx, settings.RelayAddress, settings.RelayToken, s.isStagePublisher(settings))
	if err != nil {
		log.Error().Err(err).Str("module", "app.session").Msg("relay negotiation failed")
		s.deps.Channel.Close()
		return ConnectResult{Type: ConnectFail}
	}
	s.mu.Lock()
	// A destroy that won the race already set StateClosed; installing
	// Connected over it would resurrect a dead session.
	if s.destroyed {
		s.mu.Unlock()
		return ConnectResult{Type: ConnectFail}
	}
	s.state = StateConnected
	s.mu.Unlock()
	log.Info().Str("module", "app.session").Str("room", string(roomID)).Msg("connected")
	return ConnectResult{Type: ConnectOK}
}

// classifySettingsError maps server-side error classes onto connect
// results. NFT gating carries the event id as the suffix after the last
// underscore of the error name.
func classifySettingsError(err error) ConnectResult {
	var se *core.SettingsError
	if !errors.As(err, &se) {
		return ConnectResult{Type: ConnectFail}
	}
	name := se.Name
	if strings.HasPrefix(name, "room_required_nft_wallet") ||
		strings.HasPrefix(name, "room_required_nft_token_in_wallet") {
		return ConnectResult{
			Type:    ConnectNftRequired,
			EventID: name[strings.LastIndex(name, "_")+1:],
		}
	}
	switch name {
	case "v1.video_room.payment_required":
		return ConnectResult{Type: ConnectPaid}
	default:
		return ConnectResult{Type: ConnectFail}
	}
}

// needsAudioPermission reports whether this role may publish immediately
// and therefore has to hold the audio permission before signaling opens.
func (s *Session) needsAudioPermission(settings *domain.RoomSettings) bool {
	return !settings.WithSpeakers ||
		settings.IsAdmin ||
		settings.OwnerID == s.localID ||
		settings.IsSpecialSpeaker
}

func (s *Session) isStagePublisher(settings *domain.RoomSettings) bool {
	return !settings.WithSpeakers ||
		settings.IsAdmin ||
		settings.OwnerID == s.localID ||
		settings.IsSpecialSpeaker
}

func (s *Session) bindChannel() {
	ch := s.deps.Channel
	ch.OnMessage(s.handleFrame)
	ch.OnReconnecting(func(isReconnecting bool) {
		s.mu.Lock()
		if !s.destroyed {
			if isReconnecting {
				s.state = StateReconnecting
			} else {
				s.state = StateConnected
			}
		}
		s.mu.Unlock()
		s.deps.Notifier.ReconnectingChanged(isReconnecting)
	})
	ch.OnFatal(func(err error) {
		log.Error().Err(err).Str("module", "app.session").Msg("signaling gave up")
		s.finishRoom()
	})
}

func (s *Session) bindMedia() {
	m := s.deps.Media
	m.OnData(s.handleFrame)
	m.OnLinkDown(func() {
		log.Warn().Str("module", "app.session").Msg("relay link down")
		s.finishRoom()
	})
}

// PhoneState switches the relay subscription with the app's foreground
// state: a backgrounded phone stops pulling video, and listeners fall back
// to the premixed audio stream.
type PhoneState string

const (
	PhoneForeground PhoneState = "foreground"
	PhoneBackground PhoneState = "background"
)

func (s *Session) SetPhoneState(state PhoneState) {
	switch state {
	case PhoneBackground:
		mode := core.SubscriptionMixedAudioOnly
		if s.registry.Local().Mode == domain.ModeOnStage || s.isMultiroom() {
			mode = core.SubscriptionAudioOnly
		}
		s.deps.Media.SetSubscriptionMode(mode)
	case PhoneForeground:
		s.deps.Media.SetSubscriptionMode(core.SubscriptionNormal)
	}
}

func (s *Session) isMultiroom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings != nil && s.settings.IsMultiroom
}

// finishRoom handles fatal room faults: ban, end-by-admin, dead relay.
// Not retried, not negotiated.
func (s *Session) finishRoom() {
	s.deps.Notifier.RoomFinished()
	s.Destroy()
}

func (s *Session) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy tears the session down: own-reaction end, ledger timers,
// signaling channel, registry, then media. Safe to call at any point of a
// connect in flight; the connect's continuation will observe it and stop.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.state = StateClosed
	skipRelay := s.skipRelayDisconnect
	guarded := s.guarded
	s.mu.Unlock()

	s.sendEndReaction(s.localID)
	s.ledger.Stop()
	s.deps.Channel.Close()
	s.registry.Teardown()
	if !skipRelay {
		s.deps.Media.Disconnect()
	}
	s.deps.Media.Dispose()

	if guarded {
		liveSessions.Store(0)
	}
	log.Info().Str("module", "app.session").Msg("session destroyed")
}
