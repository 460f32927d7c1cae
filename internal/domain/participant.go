// Package domain contains entities without logic, just meta-data.
package domain

type UserID string

// ParticipantMode tells whether a participant publishes media into the
// shared spatial view or is an audience member.
type ParticipantMode string

const (
	ModeOnStage  ParticipantMode = "room"
	ModeListener ParticipantMode = "popup"
)

// Badge is a cosmetic role marker used only for display priority.
type Badge string

const (
	BadgeOwner        Badge = "owner"
	BadgeSpecialGuest Badge = "special_guest"
	BadgeAdmin        Badge = "admin"
)

// Position is a normalized point in the room plus a presentation hint
// for interpolated movement. Duration is seconds, not velocity.
type Position struct {
	X        float64
	Y        float64
	Duration float64
}

type MediaFlags struct {
	VideoEnabled bool
	AudioEnabled bool
	Expired      bool
	OnPhoneCall  bool
}

// Participant is one remote or local occupant of the room.
// IsLocal is immutable once assigned; exactly one participant may carry it.
type Participant struct {
	ID      UserID
	Name    string
	Surname string
	Avatar  string
	Size    float64

	Mode    ParticipantMode
	IsAdmin bool
	IsLocal bool
	IsOwner bool

	IsSpecialGuest    bool
	IsAbsoluteSpeaker bool

	Media MediaFlags

	// Position is nil until the participant has been placed, either by a
	// path update or by the initial bulk seed.
	Position *Position

	AudioLevel float64

	// InRadar is server authoritative proximity membership.
	InRadar bool

	Badges []Badge
}

func (p *Participant) HasPosition() bool { return p.Position != nil }

// LocalUser mirrors the server's view of the local user's own role.
// The server is the only writer of Mode and IsAdmin.
type LocalUser struct {
	ID                UserID
	Mode              ParticipantMode
	IsAdmin           bool
	IsHandRaised      bool
	IsAbsoluteSpeaker bool
}
