// Package reactions implements the message-keyed reaction sessions
// shared by the playback controller and the paginator: a registry with
// timed eviction, and a dispatcher that maps inbound reactions to typed
// actions.
package reactions

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PaginatorTTL is how long a paginator stays live, measured from
// creation regardless of activity.
const PaginatorTTL = 10 * time.Minute

// Session is a reaction-driven message session, keyed by message id.
type Session interface {
	Key() string
	Channel() string
}

// Controls is the mutating action surface a controller session routes
// to. Implemented by the owning playback session; the reaction layer
// never owns or outlives it.
type Controls interface {
	Skip()
	TogglePause()
	Shuffle()
	VolumeBy(delta int)
	Terminate()
}

// ControllerSession routes controller reactions to a guild's playback
// session. Lives until explicitly removed; never evicted by TTL.
type ControllerSession struct {
	MessageID string
	ChannelID string
	GuildID   string
	Controls  Controls
}

func (c *ControllerSession) Key() string     { return c.MessageID }
func (c *ControllerSession) Channel() string { return c.ChannelID }

// EvictFunc runs when a paginator expires; used to clear the stale
// message's reactions. Best-effort.
type EvictFunc func(s Session)

// Registry stores reaction sessions keyed by message id. Paginators
// carry an expiry tracked in a min-heap and are swept periodically;
// controller entries are only ever removed explicitly.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
	expiries expiryHeap
	onEvict  EvictFunc
	now      func() time.Time
	ttl      time.Duration
}

func NewRegistry(onEvict EvictFunc) *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		onEvict:  onEvict,
		now:      time.Now,
		ttl:      PaginatorTTL,
	}
}

// Put stores a session. Paginators get an expiry of PaginatorTTL from
// now; any other kind lives until removed.
func (r *Registry) Put(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Key()] = s
	if _, ok := s.(*Paginator); ok {
		heap.Push(&r.expiries, expiryEntry{key: s.Key(), at: r.now().Add(r.ttl)})
	}
}

func (r *Registry) Get(key string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps expired paginators until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep evicts every paginator whose expiry has passed and fires the
// eviction hook for entries that were still registered.
func (r *Registry) sweep() {
	now := r.now()

	r.mu.Lock()
	var evicted []Session
	for len(r.expiries) > 0 && !r.expiries[0].at.After(now) {
		entry := heap.Pop(&r.expiries).(expiryEntry)
		s, ok := r.sessions[entry.key]
		if !ok {
			continue // removed explicitly before expiring
		}
		delete(r.sessions, entry.key)
		evicted = append(evicted, s)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		log.Debug().Str("message", s.Key()).Msg("paginator expired")
		if r.onEvict != nil {
			r.onEvict(s)
		}
	}
}

type expiryEntry struct {
	key string
	at  time.Time
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
