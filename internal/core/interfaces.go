// Package core holds the interfaces the session is built against: the
// signaling and media components it owns, and the external collaborators
// (settings API, permission checks, user-facing prompts) it consumes.
package core

import (
	"context"

	"github.com/openstage/roomclient/internal/domain"
)

// SettingsParams identifies the room whose settings to fetch.
type SettingsParams struct {
	RoomID   domain.RoomID
	RoomPass domain.RoomPass
	Endpoint string
}

// SettingsError is a typed failure from the settings API. Name is the
// server-side error class and drives connect classification.
type SettingsError struct {
	Name string
}

func (e *SettingsError) Error() string { return e.Name }

// SettingsLoader is the room settings API.
type SettingsLoader interface {
	LoadRoomSettings(ctx context.Context, p SettingsParams) (*domain.RoomSettings, error)
	// MakeRoomPublic drops the room's private flag server-side.
	MakeRoomPublic(ctx context.Context, id domain.RoomID) error
}

// PermissionChecker answers platform permission questions. Consulted before
// opening signaling for roles that may publish immediately.
type PermissionChecker interface {
	CheckAudioPermission(ctx context.Context) bool
}

// AdminOracle is the relay-side authoritative answer to "is there another
// admin in this room". Used only by the leave negotiation.
type AdminOracle interface {
	IsThereOtherAdmin(ctx context.Context) (bool, error)
}

// LeaveChoice is what the user picked in the last-admin leave dialog.
type LeaveChoice int

const (
	LeaveQuietly LeaveChoice = iota
	LeaveEnd
	LeaveCancel
)

// LeavePrompter shows the last-admin leave dialog. withSpeakers selects the
// wording for "someone else is still on stage".
type LeavePrompter interface {
	AskLeaveAsLastAdmin(ctx context.Context, withSpeakers bool) LeaveChoice
}

// HandRequest is a hand-raise or stage-invite surfaced to the UI with the
// actions the viewer may take on it.
type HandRequest struct {
	UserID   domain.UserID
	FromID   domain.UserID
	FromName string
	Type     string // request | invite

	Accept  func() // call to stage
	Move    func() // move to stage directly
	Decline func()
}

// Notifier is the fire-and-forget surface toward the UI layer.
// Implementations must not block.
type Notifier interface {
	ReconnectingChanged(isReconnecting bool)
	HandRequested(req HandRequest)
	InviteDeclined(id domain.UserID, name string)
	AdminGranted()
	AbsoluteSpeakerSet(name string)
	SilentModeChanged(enabled bool)
	MutedByAdmin(mediaType string, byName string)
	RoundTimerStarted(seconds float64, startUserName string)
	RoundTimerStopped(startUserName string)
	RoomFinished()
}
