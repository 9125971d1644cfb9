// Package resolver turns user input (a YouTube link, a playlist link or
// a direct media URL) into playable tracks for the audio backend.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"

	"radiobot/internal/music/audio"
)

const (
	channels   = 2
	sampleRate = 48000
)

var ErrNoMatch = errors.New("nothing found for that input")

type Resolver struct {
	yt *youtube.Client
}

func New() *Resolver {
	return &Resolver{yt: &youtube.Client{}}
}

// Resolve maps input to one or more tracks. Playlist links preserve the
// playlist's own order.
func (r *Resolver) Resolve(ctx context.Context, input string) ([]audio.Track, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrNoMatch
	}

	if !isURL(input) {
		return nil, fmt.Errorf("%w: expected a link, got a plain query", ErrNoMatch)
	}

	if strings.Contains(input, "youtube.com/playlist") || strings.Contains(input, "&list=") {
		return r.resolvePlaylist(ctx, input)
	}

	if id, err := extractYouTubeID(input); err == nil {
		track, err := r.resolveVideo(ctx, id)
		if err != nil {
			return nil, err
		}
		return []audio.Track{track}, nil
	}

	// Anything else is treated as a direct media URL for ffmpeg.
	return []audio.Track{{
		Title: input,
		URL:   input,
		Live:  true, // unknown duration, assume endless
		Open:  openDirect(input),
	}}, nil
}

func (r *Resolver) resolveVideo(ctx context.Context, videoID string) (audio.Track, error) {
	video, err := r.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return audio.Track{}, fmt.Errorf("youtube lookup failed: %w", err)
	}
	return r.trackFromVideo(video), nil
}

func (r *Resolver) resolvePlaylist(ctx context.Context, link string) ([]audio.Track, error) {
	pl, err := r.yt.GetPlaylistContext(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("playlist lookup failed: %w", err)
	}

	tracks := make([]audio.Track, 0, len(pl.Videos))
	for _, entry := range pl.Videos {
		entry := entry
		tracks = append(tracks, audio.Track{
			Title:    entry.Title,
			URL:      "https://www.youtube.com/watch?v=" + entry.ID,
			Duration: entry.Duration,
			Open:     r.openLazyVideo(entry.ID),
		})
	}
	if len(tracks) == 0 {
		return nil, ErrNoMatch
	}
	return tracks, nil
}

func (r *Resolver) trackFromVideo(video *youtube.Video) audio.Track {
	return audio.Track{
		Title:    video.Title,
		URL:      "https://www.youtube.com/watch?v=" + video.ID,
		Duration: video.Duration,
		Open:     r.openLazyVideo(video.ID),
	}
}

// openLazyVideo defers format/stream selection until playback start, so
// a long queue does not hold hundreds of expiring stream URLs.
func (r *Resolver) openLazyVideo(videoID string) audio.OpenFunc {
	return func(ctx context.Context) (io.ReadCloser, func(), error) {
		video, err := r.yt.GetVideoContext(ctx, videoID)
		if err != nil {
			return nil, nil, fmt.Errorf("youtube client error: %w", err)
		}

		formats := video.Formats.WithAudioChannels()
		if len(formats) == 0 {
			return nil, nil, errors.New("no audio formats found for video")
		}

		src, _, err := r.yt.GetStreamContext(ctx, video, &formats[0])
		if err != nil {
			return nil, nil, fmt.Errorf("get stream error: %w", err)
		}

		reader, cleanup, err := pipeThroughFFmpeg(ctx, src)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
		return reader, func() {
			src.Close()
			cleanup()
		}, nil
	}
}

// pipeThroughFFmpeg transcodes an arbitrary audio container on stdin to
// raw s16le PCM on stdout.
func pipeThroughFFmpeg(ctx context.Context, src io.Reader) (io.ReadCloser, func(), error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)
	cmd.Stdin = src

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	cleanup := func() {
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				log.Debug().Err(err).Msg("ffmpeg kill")
			}
		}
		_ = cmd.Wait()
	}
	return reader, cleanup, nil
}

// openDirect streams a direct URL through ffmpeg with reconnects, for
// radio stations and plain file links.
func openDirect(link string) audio.OpenFunc {
	return func(ctx context.Context) (io.ReadCloser, func(), error) {
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-i", link,
			"-f", "s16le",
			"-ar", fmt.Sprintf("%d", sampleRate),
			"-ac", fmt.Sprintf("%d", channels),
			"-loglevel", "warning",
			"pipe:1",
		)

		reader, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, nil, fmt.Errorf("command start error: %w", err)
		}

		cleanup := func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			_ = cmd.Wait()
		}
		return reader, cleanup, nil
	}
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func extractYouTubeID(link string) (string, error) {
	switch {
	case strings.Contains(link, "youtu.be/"):
		parts := strings.Split(link, "youtu.be/")
		if len(parts) != 2 {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.Split(parts[1], "?")[0], nil

	case strings.Contains(link, "youtube.com/watch?v="):
		parts := strings.Split(link, "v=")
		if len(parts) != 2 {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.Split(parts[1], "&")[0], nil

	default:
		return "", errors.New("unsupported URL format")
	}
}
