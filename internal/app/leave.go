package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
)

// LeaveResult tells the caller what kind of exit was negotiated.
type LeaveResult int

const (
	// LeaveResultCancel means the user backed out; nothing changed.
	LeaveResultCancel LeaveResult = iota
	// LeaveResultExit means the session was already torn down here.
	LeaveResultExit
	// LeaveResultLogoutAndExit means a plain leave: the caller tears down
	// and goes; the room keeps running.
	LeaveResultLogoutAndExit
	// LeaveResultDestroyRoomAndExit means the user chose to end the room
	// for everyone; the caller must close it server-side before leaving.
	LeaveResultDestroyRoomAndExit
)

func (r LeaveResult) String() string {
	switch r {
	case LeaveResultCancel:
		return "cancel"
	case LeaveResultExit:
		return "exit"
	case LeaveResultLogoutAndExit:
		return "logoutAndExit"
	case LeaveResultDestroyRoomAndExit:
		return "destroyRoomAndExit"
	}
	return "unknown"
}

// PrepareForLeave negotiates how the local user leaves. A non-admin, or an
// admin with another admin still present, just leaves. The last admin gets
// asked: end the room, or hand it off and slip out quietly. On a quiet
// leave with another stage speaker present, that speaker inherits admin so
// the room stays moderated. Cancel mutates nothing and may be re-run.
func (s *Session) PrepareForLeave(ctx context.Context) (LeaveResult, error) {
	if !s.registry.Local().IsAdmin {
		return LeaveResultLogoutAndExit, nil
	}

	otherAdmin, err := s.deps.AdminOracle.IsThereOtherAdmin(ctx)
	if err != nil {
		return LeaveResultCancel, fmt.Errorf("admin presence check: %w", err)
	}
	if otherAdmin {
		return LeaveResultLogoutAndExit, nil
	}

	speaker, hasSpeaker := s.registry.OtherSpeaker()

	switch s.deps.Prompter.AskLeaveAsLastAdmin(ctx, hasSpeaker) {
	case core.LeaveCancel:
		return LeaveResultCancel, nil
	case core.LeaveEnd:
		return LeaveResultDestroyRoomAndExit, nil
	case core.LeaveQuietly:
		if hasSpeaker {
			log.Info().Str("module", "app.leave").Str("user", string(speaker)).Msg("handing admin off before leaving")
			s.AddAdmin(speaker)
		}
		s.Destroy()
		return LeaveResultExit, nil
	}
	return LeaveResultCancel, nil
}
