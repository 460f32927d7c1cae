package protocol

import (
	"encoding/json"

	"github.com/openstage/roomclient/internal/domain"
)

// Outbound message kinds.
const (
	KindHandUp                = "handUp"
	KindHandDown              = "handDown"
	KindMoveToStage           = "moveToStage"
	KindMoveFromStage         = "moveFromStage"
	KindCallToStage           = "callToStage"
	KindDeclineCallToStage    = "declineCallToStage"
	KindAddAdmin              = "addAdmin"
	KindRemoveAdmin           = "removeAdmin"
	KindBroadcast             = "broadcast"
	KindMute                  = "mute"
	KindSetHandsAllowed       = "setHandsAllowed"
	KindBecomeAbsoluteSpeaker = "becomeAbsoluteSpeaker"
	KindUpdateProfile         = "updateProfile"
)

func marshal(kind string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payloads below are plain structs of strings and numbers;
		// marshaling them cannot fail at runtime.
		panic(err)
	}
	out, err := json.Marshal(Envelope{Type: kind, Payload: raw})
	if err != nil {
		panic(err)
	}
	return out
}

type idPayload struct {
	ID string `json:"id"`
}

func EncodeHandUp(id domain.UserID) []byte {
	return marshal(KindHandUp, idPayload{ID: string(id)})
}

func EncodeHandDown(id domain.UserID, byRole string) []byte {
	return marshal(KindHandDown, struct {
		ID   string `json:"id"`
		Type string `json:"type"` // admin | user
	}{ID: string(id), Type: byRole})
}

func EncodeMoveToStage(id domain.UserID) []byte {
	return marshal(KindMoveToStage, idPayload{ID: string(id)})
}

func EncodeMoveFromStage(id domain.UserID) []byte {
	return marshal(KindMoveFromStage, idPayload{ID: string(id)})
}

func EncodeCallToStage(id domain.UserID) []byte {
	return marshal(KindCallToStage, idPayload{ID: string(id)})
}

func EncodeDeclineStageCall(inviter domain.UserID) []byte {
	return marshal(KindDeclineCallToStage, struct {
		InviterID string `json:"inviterId"`
	}{InviterID: string(inviter)})
}

func EncodeAddAdmin(id domain.UserID) []byte {
	return marshal(KindAddAdmin, idPayload{ID: string(id)})
}

func EncodeRemoveAdmin(id domain.UserID) []byte {
	return marshal(KindRemoveAdmin, idPayload{ID: string(id)})
}

// EncodeReaction ships a reaction as a nonverbal broadcast. The server
// echoes it back to everyone, sender included.
func EncodeReaction(kind domain.ReactionKind, ttlSeconds float64) []byte {
	return marshal(KindBroadcast, struct {
		Type     string  `json:"type"`
		Message  string  `json:"message"`
		Duration float64 `json:"duration"`
	}{Type: "nonverbal", Message: string(kind), Duration: ttlSeconds})
}

// EncodeTimer starts a broadcast round timer; a non-positive duration
// stops the timer named by startUserName.
func EncodeTimer(seconds float64, startUserName string) []byte {
	return marshal(KindBroadcast, struct {
		Type          string  `json:"type"`
		Duration      float64 `json:"duration"`
		StartUserName string  `json:"startUserName"`
	}{Type: "timer", Duration: seconds, StartUserName: startUserName})
}

func EncodeMute(id domain.UserID, mediaType string) []byte {
	return marshal(KindMute, struct {
		Type string `json:"type"` // video | audio
		ID   string `json:"id"`
	}{Type: mediaType, ID: string(id)})
}

// EncodeHandsAllowed carries the inverted silent-mode flag: silent mode on
// means hands are not allowed.
func EncodeHandsAllowed(allowed bool) []byte {
	return marshal(KindSetHandsAllowed, struct {
		Value bool `json:"value"`
	}{Value: allowed})
}

func EncodeAbsoluteSpeaker(enable bool) []byte {
	return marshal(KindBecomeAbsoluteSpeaker, struct {
		State bool `json:"state"`
	}{State: enable})
}

func EncodeUpdateProfile() []byte {
	return marshal(KindUpdateProfile, struct{}{})
}

// EncodePath reports the local user's own movement on the fine-grained
// position stream.
func EncodePath(x, y float64) []byte {
	return marshal(KindPath, struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}{X: x, Y: y})
}
