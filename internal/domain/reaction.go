package domain

// ReactionKind enumerates the ephemeral per-user signals. ReactionNone is
// the wire form of "reaction ended" and is never stored.
type ReactionKind string

const (
	ReactionNone     ReactionKind = "none"
	ReactionSad      ReactionKind = "sad"
	ReactionLike     ReactionKind = "like"
	ReactionSurprise ReactionKind = "surprise"
	ReactionWave     ReactionKind = "wave"
	ReactionHeart    ReactionKind = "heart"
	ReactionThink    ReactionKind = "think"
	ReactionDislike  ReactionKind = "dislike"
	ReactionLaugh    ReactionKind = "laugh"
	ReactionHung     ReactionKind = "hung"
	ReactionRaise    ReactionKind = "raise"
)

// ReactionSignal is an ephemeral per-user state with a TTL.
// A user has at most one active signal at a time.
type ReactionSignal struct {
	UserID     UserID
	Kind       ReactionKind
	TTLSeconds float64
}
