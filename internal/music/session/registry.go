package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"radiobot/internal/music/audio"
	"radiobot/internal/reactions"
)

// Settings supplies the persisted per-guild defaults a new session
// starts from. A zero ok means "nothing configured".
type Settings interface {
	DefaultVolume(guildID string) (int, bool)
}

// Registry is the sole owner of live sessions, keyed by guild id. At
// most one session exists per guild; concurrent GetOrCreate calls for
// the same guild observe the same instance.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	gw        Gateway
	backend   audio.Backend
	reactions *reactions.Registry
	settings  Settings
}

func NewRegistry(gw Gateway, backend audio.Backend, rr *reactions.Registry, settings Settings) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		gw:        gw,
		backend:   backend,
		reactions: rr,
		settings:  settings,
	}
}

// GetOrCreate returns the guild's session, creating and wiring one if
// absent. Never fails.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s
	}

	volume := DefaultVolume
	if r.settings != nil {
		if v, ok := r.settings.DefaultVolume(guildID); ok {
			volume = v
		}
	}

	s := newSession(guildID, r, r.gw, r.backend.NewPlayer(guildID), volume)
	r.sessions[guildID] = s
	log.Debug().Str("guild", guildID).Msg("session created")
	return s
}

// Get returns the guild's session without creating one.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Kill tears the guild's session down and removes it. Safe to call for
// a guild with no session, and safe to call twice.
func (r *Registry) Kill(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()

	if !ok {
		return
	}
	s.kill()
	log.Info().Str("guild", guildID).Msg("session reclaimed")
}

// Remove detaches the session without teardown. Callers are expected to
// have torn the session down already; Kill is the usual path.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	delete(r.sessions, guildID)
	r.mu.Unlock()
}

// GuildIDs snapshots the guilds with a live session.
func (r *Registry) GuildIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
