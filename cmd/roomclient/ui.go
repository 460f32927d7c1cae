package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/app"
	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
)

// grantedPermissions is the desktop stand-in for a platform permission
// dialog: microphone access is not gated here.
type grantedPermissions struct{}

func (grantedPermissions) CheckAudioPermission(context.Context) bool { return true }

// registryAdminOracle answers the other-admin question from the local
// participant registry.
type registryAdminOracle struct {
	registry *app.Registry
}

func (o *registryAdminOracle) IsThereOtherAdmin(context.Context) (bool, error) {
	local := o.registry.Local()
	for _, p := range o.registry.Snapshot() {
		if p.ID != local.ID && p.IsAdmin {
			return true, nil
		}
	}
	return false, nil
}

// terminalPrompter runs the last-admin leave dialog on the terminal.
type terminalPrompter struct {
	in  io.Reader
	out io.Writer
}

func (p *terminalPrompter) AskLeaveAsLastAdmin(_ context.Context, withSpeakers bool) core.LeaveChoice {
	if withSpeakers {
		fmt.Fprintln(p.out, "You are the last admin; another speaker is on stage.")
	} else {
		fmt.Fprintln(p.out, "You are the last admin.")
	}
	fmt.Fprint(p.out, "[q]uiet leave / [e]nd room / [c]ancel: ")

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil {
		return core.LeaveCancel
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q":
		return core.LeaveQuietly
	case "e":
		return core.LeaveEnd
	default:
		return core.LeaveCancel
	}
}

// logNotifier routes room events to the log; a real frontend would render
// them instead.
type logNotifier struct{}

func (logNotifier) ReconnectingChanged(isReconnecting bool) {
	log.Info().Bool("reconnecting", isReconnecting).Msg("connection state")
}

func (logNotifier) HandRequested(req core.HandRequest) {
	log.Info().Str("from", string(req.FromID)).Str("name", req.FromName).Str("type", req.Type).Msg("hand request")
}

func (logNotifier) InviteDeclined(id domain.UserID, name string) {
	log.Info().Str("user", string(id)).Str("name", name).Msg("stage invite declined")
}

func (logNotifier) AdminGranted() {
	log.Info().Msg("you are now an admin")
}

func (logNotifier) AbsoluteSpeakerSet(name string) {
	log.Info().Str("name", name).Msg("absolute speaker set")
}

func (logNotifier) SilentModeChanged(enabled bool) {
	log.Info().Bool("enabled", enabled).Msg("silent mode")
}

func (logNotifier) MutedByAdmin(mediaType, byName string) {
	log.Info().Str("media", mediaType).Str("by", byName).Msg("muted by admin")
}

func (logNotifier) RoundTimerStarted(seconds float64, startUserName string) {
	log.Info().Float64("seconds", seconds).Str("by", startUserName).Msg("round timer started")
}

func (logNotifier) RoundTimerStopped(startUserName string) {
	log.Info().Str("by", startUserName).Msg("round timer stopped")
}

func (logNotifier) RoomFinished() {
	log.Warn().Msg("room finished")
}
