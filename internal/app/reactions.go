package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/domain"
)

// Ledger keeps the ephemeral per-user reaction signals and owns their
// expiry timers. A user has at most one active signal: setting a new one
// replaces the pending timer, never stacks a second.
type Ledger struct {
	mu      sync.Mutex
	localID domain.UserID
	signals map[domain.UserID]domain.ReactionSignal
	timers  map[domain.UserID]reactionTimer
	nextGen uint64
	stopped bool

	// onLocalExpired fires when the local user's own reaction times out,
	// so the signaling layer can announce the reaction ended. Remote
	// expiries are local bookkeeping only.
	onLocalExpired func()
}

// reactionTimer pairs a timer with its generation. Stopping a timer whose
// callback is already running cannot be prevented; the generation lets the
// stale callback recognize it was replaced and back off.
type reactionTimer struct {
	timer *time.Timer
	gen   uint64
}

func NewLedger(localID domain.UserID) *Ledger {
	return &Ledger{
		localID: localID,
		signals: make(map[domain.UserID]domain.ReactionSignal),
		timers:  make(map[domain.UserID]reactionTimer),
	}
}

func (l *Ledger) OnLocalExpired(fn func()) { l.onLocalExpired = fn }

// SetReaction stores a signal and (re)schedules its expiry. Kind none is
// equivalent to Reset and is never stored.
func (l *Ledger) SetReaction(id domain.UserID, kind domain.ReactionKind, ttlSeconds float64) {
	if kind == domain.ReactionNone {
		l.ResetReaction(id)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}

	l.cancelTimerLocked(id)
	l.signals[id] = domain.ReactionSignal{UserID: id, Kind: kind, TTLSeconds: ttlSeconds}

	l.nextGen++
	gen := l.nextGen
	ttl := time.Duration(ttlSeconds * float64(time.Second))
	l.timers[id] = reactionTimer{
		timer: time.AfterFunc(ttl, func() { l.expire(id, gen) }),
		gen:   gen,
	}
}

// expire removes a signal when its own timer fired. A callback that was
// already running while its timer got replaced carries a stale generation
// and must leave the replacement untouched.
func (l *Ledger) expire(id domain.UserID, gen uint64) {
	l.mu.Lock()
	entry, ok := l.timers[id]
	if !ok || entry.gen != gen || l.stopped {
		l.mu.Unlock()
		return
	}
	delete(l.signals, id)
	delete(l.timers, id)
	fn := l.onLocalExpired
	l.mu.Unlock()

	log.Debug().Str("module", "app.ledger").Str("user", string(id)).Msg("reaction expired")
	if id == l.localID && fn != nil {
		fn()
	}
}

// ResetReaction cancels any pending timer before removing state, so a stale
// timer cannot fire after a manual cancellation.
func (l *Ledger) ResetReaction(id domain.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelTimerLocked(id)
	delete(l.signals, id)
}

func (l *Ledger) cancelTimerLocked(id domain.UserID) {
	if entry, ok := l.timers[id]; ok {
		entry.timer.Stop()
		delete(l.timers, id)
	}
}

func (l *Ledger) HasReaction(id domain.UserID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.signals[id]
	return ok
}

func (l *Ledger) Reaction(id domain.UserID) (domain.ReactionSignal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.signals[id]
	return s, ok
}

// Snapshot returns the active signals for rendering.
func (l *Ledger) Snapshot() map[domain.UserID]domain.ReactionKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.UserID]domain.ReactionKind, len(l.signals))
	for id, s := range l.signals {
		out[id] = s.Kind
	}
	return out
}

// Stop cancels every timer and freezes the ledger. Expiry side effects no
// longer fire after Stop.
func (l *Ledger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	for id, entry := range l.timers {
		entry.timer.Stop()
		delete(l.timers, id)
	}
	l.signals = make(map[domain.UserID]domain.ReactionSignal)
}
