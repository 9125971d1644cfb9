package session

import (
	"math/rand"
	"sync"

	"radiobot/internal/music/audio"
)

// State is the scheduler's playback state.
type State int

const (
	StateEmpty State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "empty"
	}
}

// QueuedTrack is one queue entry: the playable item plus the identity
// of the user who asked for it.
type QueuedTrack struct {
	Track       audio.Track
	RequestedBy string
	seq         int64
}

// Scheduler owns one guild's ordered queue and drives the player
// through it. All methods are safe for concurrent use; mutations for
// one guild serialize on the scheduler's lock so a reaction-driven skip
// and a late track-end notification cannot race each other.
type Scheduler struct {
	mu      sync.Mutex
	player  audio.Player
	state   State
	current *QueuedTrack
	queue   []QueuedTrack
	nextSeq int64
}

func NewScheduler(player audio.Player) *Scheduler {
	return &Scheduler{player: player}
}

// Enqueue appends tracks in the given order. If nothing is playing, the
// first appended track starts immediately.
func (sc *Scheduler) Enqueue(requestedBy string, tracks ...audio.Track) {
	if len(tracks) == 0 {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, t := range tracks {
		sc.nextSeq++
		sc.queue = append(sc.queue, QueuedTrack{Track: t, RequestedBy: requestedBy, seq: sc.nextSeq})
	}
	if sc.state == StateEmpty {
		sc.player.SetPaused(false)
		sc.advanceLocked()
	}
}

// SkipOne discards the current track and moves to the next queued one,
// or to empty. No-op when nothing is playing.
func (sc *Scheduler) SkipOne() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state == StateEmpty {
		return
	}
	sc.advanceLocked()
}

// Shuffle randomizes the order of not-yet-played entries. The current
// track is unaffected.
func (sc *Scheduler) Shuffle() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rand.Shuffle(len(sc.queue), func(i, j int) {
		sc.queue[i], sc.queue[j] = sc.queue[j], sc.queue[i]
	})
}

// TogglePause flips playing/paused. No-op when empty.
func (sc *Scheduler) TogglePause() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	switch sc.state {
	case StatePlaying:
		sc.state = StatePaused
		sc.player.SetPaused(true)
	case StatePaused:
		sc.state = StatePlaying
		sc.player.SetPaused(false)
	}
}

// Clear discards the queue and the current track and stops the player.
func (sc *Scheduler) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.queue = nil
	sc.current = nil
	sc.state = StateEmpty
	sc.player.Stop()
}

// HandleTrackEnd advances the queue for a naturally ended track. A
// stale notification (for a track that an explicit skip already
// replaced) is ignored, so duplicate or late events never advance the
// queue twice.
func (sc *Scheduler) HandleTrackEnd(seq int64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.current == nil || sc.current.seq != seq {
		return
	}
	sc.advanceLocked()
}

// advanceLocked pops the next track into current, or goes empty.
// Preserves the paused flag across a skip; starting from empty resets
// it via Enqueue.
func (sc *Scheduler) advanceLocked() {
	if len(sc.queue) == 0 {
		sc.current = nil
		sc.state = StateEmpty
		sc.player.Stop()
		return
	}

	next := sc.queue[0]
	sc.queue = sc.queue[1:]
	sc.current = &next

	if sc.state == StateEmpty {
		sc.state = StatePlaying
	}

	t := next.Track
	t.Seq = next.seq
	_ = sc.player.Play(t)
}

func (sc *Scheduler) State() State {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// Current returns a copy of the playing entry, if any.
func (sc *Scheduler) Current() (QueuedTrack, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.current == nil {
		return QueuedTrack{}, false
	}
	return *sc.current, true
}

// Queue returns a copy of the not-yet-played entries.
func (sc *Scheduler) Queue() []QueuedTrack {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]QueuedTrack, len(sc.queue))
	copy(out, sc.queue)
	return out
}

func (sc *Scheduler) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.queue)
}
