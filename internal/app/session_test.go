package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/protocol"
)

func testSettings() *domain.RoomSettings {
	return &domain.RoomSettings{
		Name:         "room-1",
		Password:     "pass",
		SocketURL:    "wss://example.invalid/ws",
		RelayAddress: "wss://relay.invalid/ws",
		RelayToken:   "token",
		OwnerID:      "owner",
		WithSpeakers: true,
		RadarSize:    240,
	}
}

type sessionFixture struct {
	session  *Session
	channel  *fakeChannel
	media    *fakeMedia
	settings *fakeSettings
	notifier *fakeNotifier
	prompter *fakePrompter
}

func newFixture(t *testing.T, localID domain.UserID) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		channel:  &fakeChannel{},
		media:    &fakeMedia{},
		settings: &fakeSettings{settings: testSettings()},
		notifier: &fakeNotifier{},
		prompter: &fakePrompter{},
	}
	f.session = NewSession(localID, Deps{
		Settings:    f.settings,
		Permissions: fakePermissions{granted: true},
		AdminOracle: fakeOracle{},
		Prompter:    f.prompter,
		Notifier:    f.notifier,
		Channel:     f.channel,
		Media:       f.media,
	}, Options{})
	t.Cleanup(func() {
		f.session.Destroy()
		liveSessions.Store(0)
	})
	return f
}

func (f *sessionFixture) connect(t *testing.T) {
	t.Helper()
	res, err := f.session.Connect(context.Background(), "room-1", "pass")
	require.NoError(t, err)
	require.Equal(t, ConnectOK, res.Type)
}

func TestConnectHappyPath(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	assert.Equal(t, StateConnected, f.session.State())
	assert.Equal(t, domain.RoomID("room-1"), f.channel.payload.RoomID)
	assert.Equal(t, domain.UserID("me"), f.channel.payload.UserID)
	assert.True(t, f.media.connected)
	assert.False(t, f.media.stagePublisher, "a plain listener does not publish")
}

func TestConnectSecondSessionRejected(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	other := NewSession("me2", f.session.deps, Options{})
	_, err := other.Connect(context.Background(), "room-1", "pass")
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestConnectClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    ConnectResultType
		eventID string
	}{
		{
			name: "plain api failure",
			err:  &core.SettingsError{Name: "v1.video_room.not_found"},
			want: ConnectFail,
		},
		{
			name: "transport failure",
			err:  errors.New("dial tcp: connection refused"),
			want: ConnectFail,
		},
		{
			name: "payment required",
			err:  &core.SettingsError{Name: "v1.video_room.payment_required"},
			want: ConnectPaid,
		},
		{
			name:    "nft wallet required",
			err:     &core.SettingsError{Name: "room_required_nft_wallet_event42"},
			want:    ConnectNftRequired,
			eventID: "event42",
		},
		{
			name:    "nft token required",
			err:     &core.SettingsError{Name: "room_required_nft_token_in_wallet_77"},
			want:    ConnectNftRequired,
			eventID: "77",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "me")
			f.settings.err = tt.err

			res, err := f.session.Connect(context.Background(), "room-1", "pass")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Type)
			assert.Equal(t, tt.eventID, res.EventID)
			assert.Equal(t, StateIdle, f.session.State())
		})
	}
}

func TestConnectRoomAlreadyDone(t *testing.T) {
	f := newFixture(t, "me")
	f.settings.settings.IsDone = true

	res, err := f.session.Connect(context.Background(), "room-1", "pass")
	require.NoError(t, err)
	assert.Equal(t, ConnectFailLoadSettings, res.Type)

	// The relay was never engaged, so destroy must not tell it anything.
	f.session.Destroy()
	assert.False(t, f.media.disconnected)
	assert.True(t, f.media.disposed)
}

func TestConnectAudioPermissionGate(t *testing.T) {
	f := newFixture(t, "me")
	f.settings.settings.IsAdmin = true
	f.session.deps.Permissions = fakePermissions{granted: false}

	res, err := f.session.Connect(context.Background(), "room-1", "pass")
	require.NoError(t, err)
	assert.Equal(t, ConnectNotPermitted, res.Type)
}

func TestConnectListenerSkipsPermissionGate(t *testing.T) {
	f := newFixture(t, "me")
	f.session.deps.Permissions = fakePermissions{granted: false}
	f.connect(t)
}

func TestStagePublisherRoles(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*domain.RoomSettings)
		stage bool
	}{
		{"listener", func(*domain.RoomSettings) {}, false},
		{"admin", func(s *domain.RoomSettings) { s.IsAdmin = true }, true},
		{"owner", func(s *domain.RoomSettings) { s.OwnerID = "me" }, true},
		{"special speaker", func(s *domain.RoomSettings) { s.IsSpecialSpeaker = true }, true},
		{"networking room", func(s *domain.RoomSettings) { s.WithSpeakers = false }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "me")
			tt.mut(f.settings.settings)
			f.connect(t)
			assert.Equal(t, tt.stage, f.media.stagePublisher)
		})
	}
}

func TestConnectMediaFailureClosesChannel(t *testing.T) {
	f := newFixture(t, "me")
	f.media.connectErr = errors.New("relay refused")

	res, err := f.session.Connect(context.Background(), "room-1", "pass")
	require.NoError(t, err)
	assert.Equal(t, ConnectFail, res.Type)
	assert.True(t, f.channel.closed)
}

func TestPhoneStateSubscription(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.session.SetPhoneState(PhoneBackground)
	assert.Equal(t, core.SubscriptionMixedAudioOnly, f.media.subscriptionMode,
		"backgrounded listener falls back to the premixed stream")

	f.session.SetPhoneState(PhoneForeground)
	assert.Equal(t, core.SubscriptionNormal, f.media.subscriptionMode)

	f.session.registry.SetLocalFromServer(domain.ModeOnStage, false, false, false)
	f.session.SetPhoneState(PhoneBackground)
	assert.Equal(t, core.SubscriptionAudioOnly, f.media.subscriptionMode,
		"stage publishers keep per-participant audio")
}

// A destroy landing between the last connect await and the state install
// must win: the session stays Closed and the connect reports failure.
func TestDestroyDuringConnectStaysClosed(t *testing.T) {
	f := newFixture(t, "me")
	f.media.connectHook = func() { f.session.Destroy() }

	res, err := f.session.Connect(context.Background(), "room-1", "pass")
	require.NoError(t, err)
	assert.Equal(t, ConnectFail, res.Type)
	assert.Equal(t, StateClosed, f.session.State())
}

func TestDestroyOrderAndIdempotence(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)
	f.session.SendReaction(domain.ReactionLike)

	f.session.Destroy()
	f.session.Destroy()

	assert.Equal(t, StateClosed, f.session.State())
	assert.True(t, f.channel.closed)
	assert.True(t, f.media.disconnected)
	assert.True(t, f.media.disposed)
	assert.Zero(t, f.session.Registry().Len())
	assert.False(t, f.session.Ledger().HasReaction("me"))
}

func TestDispatchState(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	frame := []byte(`{"type":"state","payload":{
		"current":{"isAdmin":true,"isHandRaised":true,"mode":"room","isAbsoluteSpeaker":false},
		"room":[
			{"id":"me","isLocal":true,"mode":"room","isAdmin":true,"name":"Me"},
			{"id":"u2","mode":"popup","name":"Guest"}
		],
		"listenersCount":7,"raisedHandsCount":2,
		"handsAllowed":false,"absoluteSpeakerPresent":true}}`)
	f.channel.onMessage(frame)

	listeners, raised := f.session.Registry().Counts()
	assert.Equal(t, 7, listeners)
	assert.Equal(t, 2, raised)
	assert.Equal(t, 2, f.session.Registry().Len())

	local := f.session.Registry().Local()
	assert.True(t, local.IsAdmin)
	assert.True(t, local.IsHandRaised)
	assert.Equal(t, domain.ModeOnStage, local.Mode)

	assert.True(t, f.session.IsSilentMode())
	assert.False(t, f.session.IsAbsoluteSpeakerAvailable(),
		"someone else holds the absolute speaker slot")
}

func TestDispatchBadFrameIsIsolated(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onMessage([]byte(`not json at all`))
	f.channel.onMessage([]byte(`{"type":"somethingNew","payload":{}}`))
	f.channel.onMessage([]byte(`{"type":"path","payload":{"id":"u2","x":1,"y":2}}`))

	// The loop survived and later frames still land.
	assert.Equal(t, StateConnected, f.session.State())
}

func TestDispatchBanFinishesRoom(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onMessage([]byte(`{"type":"ban","payload":{}}`))

	assert.Equal(t, 1, f.notifier.finished)
	assert.Equal(t, StateClosed, f.session.State())
}

func TestDispatchMuteRequest(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onMessage([]byte(`{"type":"muteRequest","payload":{"type":"video","fromName":"Ada"}}`))

	require.Len(t, f.media.videoTracks, 1)
	assert.Nil(t, f.media.videoTracks[0], "force mute swaps in the placeholder")
	assert.Equal(t, []string{"video"}, f.notifier.muted)
}

func TestDispatchHandNotifyActions(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onMessage([]byte(`{"type":"serverHandNotify","payload":
		{"id":"u2","type":"request","fromId":"u2","fromName":"Ada","fromSurname":"L"}}`))

	require.Len(t, f.notifier.handRequests, 1)
	req := f.notifier.handRequests[0]
	assert.Equal(t, "Ada L", req.FromName)

	req.Accept()
	req.Decline()
	assert.Equal(t, []string{"callToStage", "declineCallToStage"}, f.channel.sentKinds())
}

func TestDispatchTimer(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onMessage([]byte(`{"type":"timer","payload":{"duration":60,"startUserName":"Ada"}}`))
	f.channel.onMessage([]byte(`{"type":"timer","payload":{"duration":-1,"startUserName":"Ada"}}`))

	assert.Equal(t, []float64{60}, f.notifier.timersOn)
	assert.Equal(t, 1, f.notifier.timersOff)
}

func TestDispatchReactionFeedsLedger(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onMessage([]byte(`{"type":"reactions","payload":{"fromId":"u2","reaction":"wave","duration":60}}`))

	sig, ok := f.session.Ledger().Reaction("u2")
	require.True(t, ok)
	assert.Equal(t, domain.ReactionWave, sig.Kind)
}

func TestReconnectingPropagates(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.channel.onReconnecting(true)
	assert.Equal(t, StateReconnecting, f.session.State())
	f.channel.onReconnecting(false)
	assert.Equal(t, StateConnected, f.session.State())
	assert.Equal(t, []bool{true, false}, f.notifier.reconnecting)
}

func TestCommandsEncodeKinds(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.session.HandUp()
	assert.True(t, f.session.Registry().Local().IsHandRaised)
	f.session.HandDown("me", "user")
	assert.False(t, f.session.Registry().Local().IsHandRaised)
	f.session.CallToStage("u2")
	f.session.AddAdmin("u2")
	f.session.SetSilentMode(true)
	f.session.SetAbsoluteSpeaker(true)
	f.session.UpdateProfile()

	assert.Equal(t, []string{
		protocol.KindHandUp,
		protocol.KindHandDown,
		protocol.KindCallToStage,
		protocol.KindAddAdmin,
		protocol.KindSetHandsAllowed,
		protocol.KindBecomeAbsoluteSpeaker,
		protocol.KindUpdateProfile,
	}, f.channel.sentKinds())
}

func TestMoveToStageRequiresPermission(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)
	f.session.deps.Permissions = fakePermissions{granted: false}

	err := f.session.MoveToStage(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, f.channel.sentKinds())
}

func TestSendReactionSeedsLedgerFirst(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.session.SendReaction(domain.ReactionHeart)

	assert.True(t, f.session.Ledger().HasReaction("me"))
	assert.Equal(t, []string{protocol.KindBroadcast}, f.channel.sentKinds())
}

func TestMovesGoOverDataChannel(t *testing.T) {
	f := newFixture(t, "me")
	f.connect(t)

	f.session.Move(0.25, 0.75)

	require.Len(t, f.media.dataSent, 1)
	assert.Empty(t, f.channel.sentKinds(), "movement never rides the signaling channel")
}

func TestMakeRoomPublic(t *testing.T) {
	f := newFixture(t, "me")
	f.settings.settings.IsPrivate = true
	f.connect(t)
	require.True(t, f.session.Identity().IsPrivate)

	require.NoError(t, f.session.MakeRoomPublic(context.Background()))
	assert.Equal(t, []domain.RoomID{"room-1"}, f.settings.publicCalls)
	assert.False(t, f.session.Identity().IsPrivate)
}
