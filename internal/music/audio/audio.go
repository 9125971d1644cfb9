package audio

import (
	"context"
	"io"
	"time"
)

// Track is a playable item handed to a Player. Open produces the raw
// 48kHz stereo s16le PCM stream for the track; the returned cleanup
// func releases any external process or connection behind it.
type Track struct {
	Title    string
	URL      string
	Duration time.Duration
	Live     bool

	// Seq correlates end-of-track events with the queue entry that
	// started the playback. Assigned by the scheduler, echoed back
	// unchanged in Event.
	Seq int64

	Open OpenFunc
}

type OpenFunc func(ctx context.Context) (io.ReadCloser, func(), error)

type EventKind int

const (
	// EventTrackEnd fires when a track plays to completion. It is not
	// emitted for tracks stopped or replaced explicitly.
	EventTrackEnd EventKind = iota
	// EventTrackError fires when a track's stream failed mid-play.
	EventTrackError
)

type Event struct {
	Kind  EventKind
	Track Track
	Err   error
}

// Sink receives the outbound opus frames for one voice connection.
type Sink interface {
	OpusSend() chan<- []byte
	Speaking(on bool) error
}

// Player is one guild's audio output. Implementations must tolerate
// Play/Stop/SetPaused/SetVolume in any order and treat Destroy as an
// immediate, final stop.
type Player interface {
	// Attach registers the outbound sink. Playback started before a
	// sink is attached fails.
	Attach(sink Sink)
	// Play starts the track, replacing any in-flight one. The replaced
	// track does not emit EventTrackEnd.
	Play(t Track) error
	// Stop halts the in-flight track, if any, without an event.
	Stop()
	SetPaused(paused bool)
	// SetVolume expects an already clamped value in [0,150];
	// 100 is unity gain.
	SetVolume(v int)
	// Destroy stops playback and closes the Events channel. The player
	// is unusable afterwards.
	Destroy()
	Events() <-chan Event
}

// Backend creates Players, one per guild session.
type Backend interface {
	NewPlayer(guildID string) Player
}
