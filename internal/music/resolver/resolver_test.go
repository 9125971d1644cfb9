package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{name: "short link", link: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "short link with params", link: "https://youtu.be/dQw4w9WgXcQ?t=42", want: "dQw4w9WgXcQ"},
		{name: "watch link", link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "watch link extra params", link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s", want: "dQw4w9WgXcQ"},
		{name: "not youtube", link: "https://example.com/stream.mp3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractYouTubeID(tt.link)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://example.com/x"))
	assert.True(t, isURL("http://radio.example:8000/stream"))
	assert.False(t, isURL("never gonna give you up"))
	assert.False(t, isURL("ftp://example.com/x"))
	assert.False(t, isURL("https://"))
}

func TestResolveRejectsPlainQueries(t *testing.T) {
	r := New()

	_, err := r.Resolve(context.Background(), "some search terms")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestResolveDirectURLIsLive(t *testing.T) {
	r := New()

	tracks, err := r.Resolve(context.Background(), "https://radio.example/stream.mp3")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	assert.True(t, tracks[0].Live)
	assert.Equal(t, "https://radio.example/stream.mp3", tracks[0].URL)
	assert.NotNil(t, tracks[0].Open)
}
