package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/protocol"
)

// Commands the local user (or the UI acting for an admin) issues toward the
// room. All of them are fire-and-forget over the signaling channel; the
// authoritative outcome comes back on the state stream.

func (s *Session) HandUp() {
	s.registry.SetLocalHandRaised(true)
	s.deps.Channel.Send(protocol.EncodeHandUp(s.localID))
}

// HandDown lowers a raised hand. byRole is "admin" when an admin lowers
// someone else's hand, "user" when the user lowers their own.
func (s *Session) HandDown(id domain.UserID, byRole string) {
	if id == s.localID {
		s.registry.SetLocalHandRaised(false)
	}
	s.deps.Channel.Send(protocol.EncodeHandDown(id, byRole))
}

// MoveToStage promotes a participant to stage. Promoting requires the
// audio permission up front: the promoted client starts publishing the
// moment the server flips its mode.
func (s *Session) MoveToStage(ctx context.Context, id domain.UserID) error {
	if !s.deps.Permissions.CheckAudioPermission(ctx) {
		return ErrNotPermitted
	}
	s.deps.Channel.Send(protocol.EncodeHandDown(id, "admin"))
	s.deps.Channel.Send(protocol.EncodeMoveToStage(id))
	s.sendEndReaction(id)
	return nil
}

func (s *Session) MoveFromStage(id domain.UserID) {
	s.deps.Channel.Send(protocol.EncodeMoveFromStage(id))
	s.sendEndReaction(id)
}

func (s *Session) CallToStage(id domain.UserID) {
	s.deps.Channel.Send(protocol.EncodeCallToStage(id))
}

func (s *Session) DeclineStageCall(inviter domain.UserID) {
	s.deps.Channel.Send(protocol.EncodeDeclineStageCall(inviter))
}

func (s *Session) AddAdmin(id domain.UserID) {
	s.deps.Channel.Send(protocol.EncodeAddAdmin(id))
}

func (s *Session) RemoveAdmin(id domain.UserID) {
	s.deps.Channel.Send(protocol.EncodeRemoveAdmin(id))
}

// SendReaction seeds the local ledger first so the sender's own UI reacts
// immediately, then broadcasts. The server echo re-arms the same entry.
func (s *Session) SendReaction(kind domain.ReactionKind) {
	s.ledger.SetReaction(s.localID, kind, s.opts.ReactionTTL)
	s.deps.Channel.Send(protocol.EncodeReaction(kind, s.opts.ReactionTTL))
}

// sendEndReaction announces a reaction ended for id when id is the local
// user. Remote reactions expire on their own echo; ending them here would
// race the owner.
func (s *Session) sendEndReaction(id domain.UserID) {
	if id != s.localID {
		return
	}
	if !s.ledger.HasReaction(id) {
		return
	}
	s.ledger.ResetReaction(id)
	s.deps.Channel.Send(protocol.EncodeReaction(domain.ReactionNone, 0))
}

func (s *Session) StartTimer(seconds float64, startUserName string) {
	s.deps.Channel.Send(protocol.EncodeTimer(seconds, startUserName))
}

func (s *Session) StopTimer(startUserName string) {
	s.deps.Channel.Send(protocol.EncodeTimer(-1, startUserName))
}

// Mute asks the server to force another participant's media off.
func (s *Session) Mute(id domain.UserID, mediaType string) {
	s.deps.Channel.Send(protocol.EncodeMute(id, mediaType))
}

// SetSilentMode toggles whether listeners may raise hands. The wire flag
// is inverted: silent mode on means hands are not allowed.
func (s *Session) SetSilentMode(enabled bool) {
	s.deps.Channel.Send(protocol.EncodeHandsAllowed(!enabled))
}

func (s *Session) SetAbsoluteSpeaker(enable bool) {
	s.deps.Channel.Send(protocol.EncodeAbsoluteSpeaker(enable))
}

// UpdateProfile tells the server to re-read our profile; the refreshed
// fields come back on the state stream.
func (s *Session) UpdateProfile() {
	s.deps.Channel.Send(protocol.EncodeUpdateProfile())
}

// Move reports the local user's movement over the relay data channel, the
// low-latency path the position stream lives on.
func (s *Session) Move(x, y float64) {
	s.deps.Media.SendData(protocol.EncodePath(x, y))
}

// MakeRoomPublic drops the room's private flag via the API and mirrors the
// change locally on success.
func (s *Session) MakeRoomPublic(ctx context.Context) error {
	s.mu.Lock()
	id := s.identity.ID
	s.mu.Unlock()

	if err := s.deps.Settings.MakeRoomPublic(ctx, id); err != nil {
		log.Error().Err(err).Str("module", "app.session").Str("room", string(id)).Msg("make room public failed")
		return err
	}
	s.mu.Lock()
	s.identity.IsPrivate = false
	s.mu.Unlock()
	return nil
}
