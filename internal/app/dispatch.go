package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/protocol"
)

// handleFrame is the single inbound dispatch point for both the signaling
// channel and the relay data channel. A bad frame is logged and skipped;
// the loop never dies on input.
func (s *Session) handleFrame(f core.Frame) {
	msg, err := protocol.Decode(f)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			log.Warn().Err(err).Str("module", "app.dispatch").Msg("skipping frame")
		} else {
			log.Error().Err(err).Str("module", "app.dispatch").Msg("undecodable frame dropped")
		}
		return
	}

	switch m := msg.(type) {
	case protocol.State:
		s.handleState(m)
	case protocol.Path:
		s.registry.ApplyPath(domain.UserID(m.ID), m.X, m.Y, m.Duration, m.AudioLevel)
	case protocol.NativeState:
		s.registry.SeedPositions(m.States)
	case protocol.Reaction:
		s.ledger.SetReaction(domain.UserID(m.FromID), domain.ReactionKind(m.Reaction), m.Duration)
	case protocol.HandNotify:
		s.handleHandNotify(m)
	case protocol.AdminNotify:
		s.handleAdminNotify(m)
	case protocol.AbsoluteSpeakerNotify:
		s.handleAbsoluteSpeakerNotify(m)
	case protocol.HandsAllowedNotify:
		s.handleHandsAllowedNotify(m)
	case protocol.Timer:
		if m.Duration > 0 {
			s.deps.Notifier.RoundTimerStarted(m.Duration, m.StartUserName)
		} else {
			s.deps.Notifier.RoundTimerStopped(m.StartUserName)
		}
	case protocol.Ban:
		log.Warn().Str("module", "app.dispatch").Msg("banned from room")
		s.finishRoom()
	case protocol.MuteRequest:
		s.handleMuteRequest(m)
	}
}

func (s *Session) handleState(m protocol.State) {
	s.registry.SetCounts(m.ListenersCount, m.RaisedHandsCount)

	s.mu.Lock()
	silentChanged := s.silentMode == m.HandsAllowed
	s.silentMode = !m.HandsAllowed
	silent := s.silentMode
	if m.Current != nil {
		// Only an absent or own absolute speaker leaves the slot takeable.
		s.absoluteSpeakerAvailable = !m.AbsoluteSpeakerPresent || m.Current.IsAbsoluteSpeaker
		s.absoluteSpeakerEnabled = m.Current.IsAbsoluteSpeaker
	}
	s.mu.Unlock()

	if m.Current != nil {
		s.registry.SetLocalFromServer(
			domain.ParticipantMode(m.Current.Mode),
			m.Current.IsAdmin,
			m.Current.IsHandRaised,
			m.Current.IsAbsoluteSpeaker,
		)
	}
	s.registry.Reconcile(m.Room)

	if silentChanged {
		s.deps.Notifier.SilentModeChanged(silent)
	}
}

func (s *Session) handleHandNotify(m protocol.HandNotify) {
	target := domain.UserID(m.ID)
	from := domain.UserID(m.FromID)
	name := joinName(m.FromName, m.FromSurname)

	switch m.Type {
	case "request", "invite":
		s.deps.Notifier.HandRequested(core.HandRequest{
			UserID:   target,
			FromID:   from,
			FromName: name,
			Type:     m.Type,
			Accept:   func() { s.CallToStage(target) },
			Move:     func() { _ = s.MoveToStage(context.Background(), target) },
			Decline:  func() { s.DeclineStageCall(from) },
		})
	case "declineInvite":
		s.deps.Notifier.InviteDeclined(from, name)
	default:
		log.Warn().Str("module", "app.dispatch").Str("type", m.Type).Msg("unknown hand notify")
	}
}

func (s *Session) handleAdminNotify(m protocol.AdminNotify) {
	id := domain.UserID(m.ID)
	granted := m.Type == "add"
	s.registry.SetLocalAdmin(id, granted)
	if granted && id == s.localID {
		s.deps.Notifier.AdminGranted()
	}
}

func (s *Session) handleAbsoluteSpeakerNotify(m protocol.AbsoluteSpeakerNotify) {
	id := domain.UserID(m.ID)
	set := m.Type == "set"

	if id == s.localID {
		s.registry.SetLocalAbsoluteSpeaker(set)
		s.mu.Lock()
		s.absoluteSpeakerEnabled = set
		s.absoluteSpeakerAvailable = true
		s.mu.Unlock()
	} else {
		// Someone else holds the slot while it is set.
		s.mu.Lock()
		s.absoluteSpeakerAvailable = !set
		s.mu.Unlock()
	}
	if set {
		s.deps.Notifier.AbsoluteSpeakerSet(joinName(m.FromName, m.FromSurname))
	}
}

func (s *Session) handleHandsAllowedNotify(m protocol.HandsAllowedNotify) {
	silent := m.Type == "banned"
	s.mu.Lock()
	changed := s.silentMode != silent
	s.silentMode = silent
	s.mu.Unlock()
	if changed {
		s.deps.Notifier.SilentModeChanged(silent)
	}
}

// handleMuteRequest is a force mute: the track goes to its placeholder
// immediately, then the user is told who did it.
func (s *Session) handleMuteRequest(m protocol.MuteRequest) {
	var err error
	switch m.Type {
	case "video":
		err = s.deps.Media.SetLocalVideoTrack(nil)
	case "audio":
		err = s.deps.Media.SetLocalAudioTrack(nil)
	default:
		log.Warn().Str("module", "app.dispatch").Str("type", m.Type).Msg("unknown mute request")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatch").Str("type", m.Type).Msg("force mute failed")
	}
	s.deps.Notifier.MutedByAdmin(m.Type, joinName(m.FromName, m.FromSurname))
}

func joinName(name, surname string) string {
	return strings.TrimSpace(name + " " + surname)
}
