// Package stream is the process-local audio backend: it pulls PCM from a
// track's source, encodes opus and pushes frames into a voice sink.
package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"layeh.com/gopus"

	"radiobot/internal/music/audio"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Backend implements audio.Backend on top of ffmpeg/yt streams and gopus.
type Backend struct{}

func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) NewPlayer(guildID string) audio.Player {
	return &player{
		guildID: guildID,
		volume:  100,
		events:  make(chan audio.Event, 8),
	}
}

type player struct {
	guildID string

	mu        sync.Mutex
	sink      audio.Sink
	volume    int // 0..150, 100 = unity
	paused    bool
	unpause   chan struct{} // closed to wake a paused playback loop
	cancel    context.CancelFunc
	destroyed bool

	events chan audio.Event
}

func (p *player) Attach(sink audio.Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *player) Events() <-chan audio.Event {
	return p.events
}

func (p *player) Play(t audio.Track) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return errors.New("player destroyed")
	}
	if p.sink == nil {
		p.mu.Unlock()
		return errors.New("no sink attached")
	}
	if p.cancel != nil {
		p.cancel() // replace in-flight track, no event
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	sink := p.sink
	p.mu.Unlock()

	go p.run(ctx, t, sink)
	return nil
}

func (p *player) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()
}

func (p *player) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused == paused {
		return
	}
	p.paused = paused
	if paused {
		p.unpause = make(chan struct{})
		return
	}
	if p.unpause != nil {
		close(p.unpause)
		p.unpause = nil
	}
}

func (p *player) SetVolume(v int) {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

func (p *player) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	close(p.events)
	p.mu.Unlock()
}

// run streams one track until it ends, errors out, or ctx is cancelled.
func (p *player) run(ctx context.Context, t audio.Track, sink audio.Sink) {
	src, cleanup, err := t.Open(ctx)
	if err != nil {
		log.Error().Err(err).Str("guild", p.guildID).Str("track", t.Title).Msg("failed to open stream")
		p.emit(audio.Event{Kind: audio.EventTrackError, Track: t, Err: err})
		return
	}
	if cleanup != nil {
		defer cleanup()
	}
	defer src.Close()

	err = p.pump(ctx, src, sink)
	if ctx.Err() != nil {
		return // stopped or replaced, stay silent
	}
	if err != nil {
		p.emit(audio.Event{Kind: audio.EventTrackError, Track: t, Err: err})
		return
	}
	p.emit(audio.Event{Kind: audio.EventTrackEnd, Track: t})
}

func (p *player) pump(ctx context.Context, src io.Reader, sink audio.Sink) error {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	if err := sink.Speaking(true); err != nil {
		log.Warn().Err(err).Str("guild", p.guildID).Msg("speaking toggle failed")
	}
	defer sink.Speaking(false)

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		if err := p.waitWhilePaused(ctx); err != nil {
			return nil
		}

		_, err := io.ReadFull(src, pcmBuf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		vol := p.currentVolume()
		for i := range intBuf {
			s := int32(int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2])))
			s = s * int32(vol) / 100
			if s > 32767 {
				s = 32767
			} else if s < -32768 {
				s = -32768
			}
			intBuf[i] = int16(s)
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case sink.OpusSend() <- opus:
		case <-ctx.Done():
			return nil
		}
	}
}

// waitWhilePaused blocks while the pause flag is set. Returns non-nil
// only when ctx ended.
func (p *player) waitWhilePaused(ctx context.Context) error {
	for {
		p.mu.Lock()
		paused := p.paused
		ch := p.unpause
		p.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *player) currentVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// emit delivers an event without ever blocking the playback goroutine.
// Held under mu so a concurrent Destroy cannot close the channel
// between the liveness check and the send.
func (p *player) emit(ev audio.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	select {
	case p.events <- ev:
	default:
		log.Warn().Str("guild", p.guildID).Msg("player event dropped (channel full)")
	}
}
