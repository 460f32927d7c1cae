package domain

type (
	RoomID   string
	RoomPass string
)

// RoomIdentity is the immutable part of a joined room.
type RoomIdentity struct {
	ID               RoomID
	Pass             RoomPass
	OwnerID          UserID
	IsPrivate        bool
	HasStageSpeakers bool
}

// Radar carries presentation-only proximity visualization parameters.
type Radar struct {
	Radius       float64
	IsSubscriber bool
}

// RoomSettings is what the settings API returns before a room can be
// joined. Geometry values are multipliers applied to normalized positions.
type RoomSettings struct {
	Name        RoomID
	Password    RoomPass
	Description string

	RelayAddress string
	RelayToken   string
	SocketURL    string

	OwnerID          UserID
	IsAdmin          bool
	IsDone           bool
	IsPrivate        bool
	IsSpecialSpeaker bool
	EventScheduleID  string

	WithSpeakers bool
	IsMultiroom  bool
	RadarSize    float64

	RoomWidthMul  float64
	RoomHeightMul float64

	VideoWidth  int
	VideoHeight int
	FPS         int
}
