package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiobot/internal/music/audio"
)

// fakePlayer records backend calls so scheduler behavior can be
// asserted without a real audio pipeline.
type fakePlayer struct {
	mu        sync.Mutex
	played    []audio.Track
	stops     int
	pauses    []bool
	volume    int
	destroyed bool
	events    chan audio.Event
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan audio.Event, 8)}
}

func (f *fakePlayer) Attach(audio.Sink) {}

func (f *fakePlayer) Play(t audio.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, t)
	return nil
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayer) SetPaused(p bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, p)
}

func (f *fakePlayer) SetVolume(v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakePlayer) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
}

func (f *fakePlayer) Events() <-chan audio.Event { return f.events }

func (f *fakePlayer) playedTracks() []audio.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audio.Track, len(f.played))
	copy(out, f.played)
	return out
}

func (f *fakePlayer) lastPlayed() audio.Track {
	tracks := f.playedTracks()
	return tracks[len(tracks)-1]
}

func track(title string) audio.Track {
	return audio.Track{Title: title, URL: "https://example.com/" + title}
}

func TestSchedulerEnqueueStartsFirstTrack(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)

	sc.Enqueue("user1", track("a"), track("b"), track("c"))

	require.Len(t, p.playedTracks(), 1)
	assert.Equal(t, "a", p.playedTracks()[0].Title)
	assert.Equal(t, StatePlaying, sc.State())
	assert.Equal(t, 2, sc.Len())

	cur, ok := sc.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Track.Title)
	assert.Equal(t, "user1", cur.RequestedBy)
}

func TestSchedulerEnqueueWhilePlayingAppendsOnly(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)

	sc.Enqueue("u", track("a"))
	sc.Enqueue("u", track("b"))

	assert.Len(t, p.playedTracks(), 1)
	assert.Equal(t, 1, sc.Len())
}

func TestSchedulerSkipAdvances(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"))

	sc.SkipOne()

	assert.Equal(t, "b", p.lastPlayed().Title)
	assert.Equal(t, StatePlaying, sc.State())
	assert.Equal(t, 0, sc.Len())
}

func TestSchedulerSkipLastGoesEmpty(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"))

	sc.SkipOne()

	assert.Equal(t, StateEmpty, sc.State())
	_, ok := sc.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, p.stops)
}

func TestSchedulerSkipEmptyIsNoop(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)

	sc.SkipOne()

	assert.Empty(t, p.playedTracks())
	assert.Zero(t, p.stops)
	assert.Equal(t, StateEmpty, sc.State())
}

func TestSchedulerTogglePause(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"))

	sc.TogglePause()
	assert.Equal(t, StatePaused, sc.State())

	sc.TogglePause()
	assert.Equal(t, StatePlaying, sc.State())
}

func TestSchedulerTogglePauseEmptyIsNoop(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)

	sc.TogglePause()

	assert.Equal(t, StateEmpty, sc.State())
	assert.Empty(t, p.pauses)
}

func TestSchedulerPausePreservedAcrossSkip(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"))

	sc.TogglePause()
	sc.SkipOne()

	assert.Equal(t, StatePaused, sc.State())
	assert.Equal(t, "b", p.lastPlayed().Title)
}

func TestSchedulerTrackEndAdvances(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"))

	sc.HandleTrackEnd(p.lastPlayed().Seq)

	assert.Equal(t, "b", p.lastPlayed().Title)

	sc.HandleTrackEnd(p.lastPlayed().Seq)
	assert.Equal(t, StateEmpty, sc.State())
}

func TestSchedulerStaleTrackEndIgnored(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"), track("c"))

	staleSeq := p.lastPlayed().Seq
	sc.SkipOne() // "b" is now current

	sc.HandleTrackEnd(staleSeq)

	cur, ok := sc.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.Track.Title)
	assert.Equal(t, 1, sc.Len())
}

func TestSchedulerDuplicateTrackEndIgnored(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"))

	seq := p.lastPlayed().Seq
	sc.HandleTrackEnd(seq)
	sc.HandleTrackEnd(seq) // late duplicate

	cur, ok := sc.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.Track.Title)
}

func TestSchedulerShuffleKeepsCurrentAndSet(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"), track("c"), track("d"), track("e"))

	before := sc.Queue()
	sc.Shuffle()
	after := sc.Queue()

	cur, ok := sc.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Track.Title)
	require.Len(t, after, len(before))

	seen := make(map[string]bool)
	for _, qt := range after {
		seen[qt.Track.Title] = true
	}
	for _, qt := range before {
		assert.True(t, seen[qt.Track.Title], "track %s lost in shuffle", qt.Track.Title)
	}
}

func TestSchedulerShuffleReordersQueue(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"), track("c"), track("d"), track("e"), track("f"))

	// Over repeated shuffles every queued track should land at more than
	// one position. A shuffle that never moves anything would fail this.
	positions := make(map[string]map[int]bool)
	for i := 0; i < 100; i++ {
		sc.Shuffle()
		for pos, qt := range sc.Queue() {
			title := qt.Track.Title
			if positions[title] == nil {
				positions[title] = make(map[int]bool)
			}
			positions[title][pos] = true
		}
	}

	require.Len(t, positions, 5)
	for title, seen := range positions {
		assert.Greater(t, len(seen), 1, "track %s never moved", title)
	}
}

func TestSchedulerClear(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)
	sc.Enqueue("u", track("a"), track("b"))

	sc.Clear()

	assert.Equal(t, StateEmpty, sc.State())
	assert.Equal(t, 0, sc.Len())
	_, ok := sc.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, p.stops)
}

func TestSchedulerConcurrentEnqueue(t *testing.T) {
	p := newFakePlayer()
	sc := NewScheduler(p)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc.Enqueue("u", track("t"))
		}()
	}
	wg.Wait()

	// One current track, the rest queued.
	assert.Equal(t, 49, sc.Len())
	_, ok := sc.Current()
	assert.True(t, ok)
}
