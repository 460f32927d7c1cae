package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/domain"
	"github.com/openstage/roomclient/internal/protocol"
)

// Registry holds the authoritative participant set and the local user's
// own role mirror. Coarse snapshots reconcile the set; the fine-grained
// position stream updates placement independently.
type Registry struct {
	mu           sync.RWMutex
	participants map[domain.UserID]*domain.Participant
	local        domain.LocalUser

	listeners   int
	raisedHands int

	// onLocalRole fires when a snapshot changes the local user's mode or
	// admin flag. Runs on the reconciling goroutine.
	onLocalRole func(local domain.LocalUser)
}

func NewRegistry(localID domain.UserID) *Registry {
	return &Registry{
		participants: make(map[domain.UserID]*domain.Participant),
		local: domain.LocalUser{
			ID:   localID,
			Mode: domain.ModeListener,
		},
	}
}

func (r *Registry) OnLocalRole(fn func(domain.LocalUser)) { r.onLocalRole = fn }

// Reconcile applies one coarse snapshot: departed participants go away,
// unseen ones are inserted, known ones get field-level updates so unchanged
// fields keep their identity. A malformed entry is skipped, never fatal.
func (r *Registry) Reconcile(snapshot []protocol.WireParticipant) {
	r.mu.Lock()
	roleChanged := false

	present := make(map[domain.UserID]struct{}, len(snapshot))
	for _, w := range snapshot {
		if w.ID != "" {
			present[domain.UserID(w.ID)] = struct{}{}
		}
	}
	for id := range r.participants {
		if _, ok := present[id]; !ok {
			delete(r.participants, id)
		}
	}

	for _, w := range snapshot {
		if w.ID == "" {
			log.Debug().Str("module", "app.registry").Msg("skipping snapshot entry without id")
			continue
		}
		id := domain.UserID(w.ID)

		if w.IsLocal {
			mode := domain.ParticipantMode(w.Mode)
			if r.local.Mode != mode {
				r.local.Mode = mode
				roleChanged = true
			}
			if r.local.IsAdmin != w.IsAdmin {
				r.local.IsAdmin = w.IsAdmin
				roleChanged = true
			}
		}

		existing, ok := r.participants[id]
		if !ok {
			r.participants[id] = w.ToParticipant()
			continue
		}
		updateParticipant(existing, w)
	}

	local := r.local
	fn := r.onLocalRole
	r.mu.Unlock()

	if roleChanged && fn != nil {
		fn(local)
	}
}

// updateParticipant copies only the fields that differ, so downstream
// observers keyed on field identity do not re-render spuriously.
func updateParticipant(p *domain.Participant, w protocol.WireParticipant) {
	if p.Media.Expired != w.IsExpired {
		p.Media.Expired = w.IsExpired
	}
	if p.IsAdmin != w.IsAdmin {
		p.IsAdmin = w.IsAdmin
	}
	if mode := domain.ParticipantMode(w.Mode); p.Mode != mode {
		p.Mode = mode
	}
	if p.Avatar != w.Avatar {
		p.Avatar = w.Avatar
	}
	if p.InRadar != w.InRadar {
		p.InRadar = w.InRadar
	}
	if p.Media.VideoEnabled != w.Video {
		p.Media.VideoEnabled = w.Video
	}
	if p.Media.AudioEnabled != w.Audio {
		p.Media.AudioEnabled = w.Audio
	}
	if p.Media.OnPhoneCall != w.PhoneCall {
		p.Media.OnPhoneCall = w.PhoneCall
	}
	if p.IsAbsoluteSpeaker != w.IsAbsoluteSpeaker {
		p.IsAbsoluteSpeaker = w.IsAbsoluteSpeaker
	}
}

// ApplyPath applies one fine-grained position update. A path for an id the
// coarse stream has not materialized yet is dropped; the two streams carry
// no cross-ordering guarantee.
func (r *Registry) ApplyPath(id domain.UserID, x, y, duration, audioLevel float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		log.Debug().Str("module", "app.registry").Str("user", string(id)).Msg("path for unknown participant dropped")
		return
	}
	p.Position = &domain.Position{X: x, Y: y, Duration: duration}
	p.AudioLevel = audioLevel
}

// SeedPositions places participants that have no position yet. It never
// overwrites an existing placement, so a user already moved by the path
// stream does not teleport back. Audio levels update unconditionally.
func (r *Registry) SeedPositions(states []protocol.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range states {
		p, ok := r.participants[domain.UserID(s.ID)]
		if !ok {
			continue
		}
		p.AudioLevel = s.AudioLevel
		if p.HasPosition() {
			continue
		}
		p.Position = &domain.Position{X: s.X, Y: s.Y, Duration: s.Duration}
	}
}

// SetLocalFromServer mirrors the snapshot's own-role block. Mode and admin
// changes fire the role callback just like the participant-list mirror.
func (r *Registry) SetLocalFromServer(mode domain.ParticipantMode, isAdmin, isHandRaised, isAbsoluteSpeaker bool) {
	r.mu.Lock()
	roleChanged := false
	if r.local.Mode != mode {
		r.local.Mode = mode
		roleChanged = true
	}
	if r.local.IsAdmin != isAdmin {
		r.local.IsAdmin = isAdmin
		roleChanged = true
	}
	r.local.IsHandRaised = isHandRaised
	r.local.IsAbsoluteSpeaker = isAbsoluteSpeaker
	local := r.local
	fn := r.onLocalRole
	r.mu.Unlock()

	if roleChanged && fn != nil {
		fn(local)
	}
}

// SetLocalAdmin mirrors an admin grant/revoke notification for the local
// user. Remote targets are covered by the next snapshot.
func (r *Registry) SetLocalAdmin(id domain.UserID, isAdmin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.local.ID {
		r.local.IsAdmin = isAdmin
	}
}

func (r *Registry) SetLocalHandRaised(raised bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local.IsHandRaised = raised
}

func (r *Registry) SetLocalAbsoluteSpeaker(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local.IsAbsoluteSpeaker = enabled
}

func (r *Registry) SetCounts(listeners, raisedHands int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = listeners
	r.raisedHands = raisedHands
}

func (r *Registry) Local() domain.LocalUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}

func (r *Registry) Counts() (listeners, raisedHands int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listeners, r.raisedHands
}

func (r *Registry) Get(id domain.UserID) (*domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Snapshot returns the participants as a list for rendering. Entries are
// the live structs; observers treat them as read-only.
func (r *Registry) Snapshot() []*domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// OtherSpeaker returns any stage publisher other than the local user, used
// by the leave negotiation to pick a handoff target.
func (r *Registry) OtherSpeaker() (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, p := range r.participants {
		if id == r.local.ID {
			continue
		}
		if p.Mode != domain.ModeOnStage {
			continue
		}
		return id, true
	}
	return "", false
}

// Teardown drops the whole participant set.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = make(map[domain.UserID]*domain.Participant)
	log.Info().Str("module", "app.registry").Msg("registry torn down")
}
