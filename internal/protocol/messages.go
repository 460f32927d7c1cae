// Package protocol defines the JSON envelope spoken over the room signaling
// channel and the typed payloads behind every message kind.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openstage/roomclient/internal/domain"
)

var ErrUnknownKind = errors.New("unknown message kind")

// Envelope is the wire form of every message: {"type": ..., "payload": ...}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound message kinds.
const (
	KindState                 = "state"
	KindPath                  = "path"
	KindNativeState           = "nativeState"
	KindReactions             = "reactions"
	KindHandNotify            = "serverHandNotify"
	KindAdminNotify           = "serverAdminNotify"
	KindAbsoluteSpeakerNotify = "serverAbsoluteSpeakerNotify"
	KindHandsAllowedNotify    = "serverHandsAllowedNotify"
	KindTimer                 = "timer"
	KindBan                   = "ban"
	KindMuteRequest           = "muteRequest"
)

// WireParticipant is one entry of a state snapshot.
type WireParticipant struct {
	ID                string   `json:"id"`
	Size              float64  `json:"size"`
	IsLocal           bool     `json:"isLocal"`
	Name              string   `json:"name"`
	Surname           string   `json:"surname"`
	Avatar            string   `json:"avatar"`
	Mode              string   `json:"mode"`
	IsAdmin           bool     `json:"isAdmin"`
	IsOwner           bool     `json:"isOwner"`
	IsExpired         bool     `json:"isExpired"`
	InRadar           bool     `json:"inRadar"`
	Video             bool     `json:"video"`
	Audio             bool     `json:"audio"`
	PhoneCall         bool     `json:"phoneCall"`
	IsSpecialGuest    bool     `json:"isSpecialGuest"`
	IsAbsoluteSpeaker bool     `json:"isAbsoluteSpeaker"`
	Badges            []string `json:"badges"`
}

// WireCurrentUser is the server's view of the local user's own role.
type WireCurrentUser struct {
	IsAdmin           bool   `json:"isAdmin"`
	IsHandRaised      bool   `json:"isHandRaised"`
	Mode              string `json:"mode"`
	IsAbsoluteSpeaker bool   `json:"isAbsoluteSpeaker"`
}

// State is the coarse authoritative snapshot.
type State struct {
	Current                *WireCurrentUser  `json:"current"`
	Room                   []WireParticipant `json:"room"`
	ListenersCount         int               `json:"listenersCount"`
	RaisedHandsCount       int               `json:"raisedHandsCount"`
	HandsAllowed           bool              `json:"handsAllowed"`
	AbsoluteSpeakerPresent bool              `json:"absoluteSpeakerPresent"`
}

// Path is a single fine-grained position update.
type Path struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Duration   float64 `json:"duration"`
	AudioLevel float64 `json:"audioLevel"`
}

// NativeState is the initial bulk position seed.
type NativeState struct {
	States []Path `json:"states"`
}

type Reaction struct {
	FromID   string  `json:"fromId"`
	Reaction string  `json:"reaction"`
	Duration float64 `json:"duration"`
}

type HandNotify struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // request | invite | declineInvite
	FromID      string `json:"fromId"`
	FromName    string `json:"fromName"`
	FromSurname string `json:"fromSurname"`
}

type AdminNotify struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // add | remove
	FromName    string `json:"fromName"`
	FromSurname string `json:"fromSurname"`
}

type AbsoluteSpeakerNotify struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // set | clear
	FromName    string `json:"fromName"`
	FromSurname string `json:"fromSurname"`
}

type HandsAllowedNotify struct {
	Type string `json:"type"` // banned | allowed
}

type Timer struct {
	Duration      float64 `json:"duration"`
	StartUserName string  `json:"startUserName"`
	FromID        string  `json:"fromId"`
}

type Ban struct{}

type MuteRequest struct {
	Type        string `json:"type"` // video | audio
	FromName    string `json:"fromName"`
	FromSurname string `json:"fromSurname"`
}

// Message is the decoded form of an inbound frame. Exactly one of the
// typed payload structs hides behind it.
type Message interface {
	Kind() string
}

func (State) Kind() string                 { return KindState }
func (Path) Kind() string                  { return KindPath }
func (NativeState) Kind() string           { return KindNativeState }
func (Reaction) Kind() string              { return KindReactions }
func (HandNotify) Kind() string            { return KindHandNotify }
func (AdminNotify) Kind() string           { return KindAdminNotify }
func (AbsoluteSpeakerNotify) Kind() string { return KindAbsoluteSpeakerNotify }
func (HandsAllowedNotify) Kind() string    { return KindHandsAllowedNotify }
func (Timer) Kind() string                 { return KindTimer }
func (Ban) Kind() string                   { return KindBan }
func (MuteRequest) Kind() string           { return KindMuteRequest }

// Decode parses one inbound frame into its typed message.
// An unknown kind is reported via ErrUnknownKind so callers can skip it
// without aborting the dispatch loop.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}
	switch env.Type {
	case KindState:
		return decodeAs[State](env.Payload)
	case KindPath:
		return decodeAs[Path](env.Payload)
	case KindNativeState:
		// The bulk seed payload is a bare array of states.
		var states []Path
		if err := json.Unmarshal(env.Payload, &states); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return NativeState{States: states}, nil
	case KindReactions:
		return decodeAs[Reaction](env.Payload)
	case KindHandNotify:
		return decodeAs[HandNotify](env.Payload)
	case KindAdminNotify:
		return decodeAs[AdminNotify](env.Payload)
	case KindAbsoluteSpeakerNotify:
		return decodeAs[AbsoluteSpeakerNotify](env.Payload)
	case KindHandsAllowedNotify:
		return decodeAs[HandsAllowedNotify](env.Payload)
	case KindTimer:
		return decodeAs[Timer](env.Payload)
	case KindBan:
		return Ban{}, nil
	case KindMuteRequest:
		return decodeAs[MuteRequest](env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodeAs[T Message](payload json.RawMessage) (Message, error) {
	var msg T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("%s: %w", msg.Kind(), err)
		}
	}
	return msg, nil
}

// ToParticipant maps a snapshot entry onto a fresh domain participant.
// A newly seen participant inherits radar membership from locality, the
// default proximity assumption until the server says otherwise.
func (w WireParticipant) ToParticipant() *domain.Participant {
	badges := make([]domain.Badge, 0, len(w.Badges))
	for _, b := range w.Badges {
		badges = append(badges, domain.Badge(b))
	}
	return &domain.Participant{
		ID:      domain.UserID(w.ID),
		Name:    w.Name,
		Surname: w.Surname,
		Avatar:  w.Avatar,
		Size:    w.Size,
		Mode:    domain.ParticipantMode(w.Mode),
		IsAdmin: w.IsAdmin,
		IsLocal: w.IsLocal,
		IsOwner: w.IsOwner,

		IsSpecialGuest:    w.IsSpecialGuest,
		IsAbsoluteSpeaker: w.IsAbsoluteSpeaker,

		Media: domain.MediaFlags{
			VideoEnabled: w.Video,
			AudioEnabled: w.Audio,
			Expired:      w.IsExpired,
			OnPhoneCall:  w.PhoneCall,
		},
		InRadar: w.IsLocal,
		Badges:  badges,
	}
}
