package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiobot/internal/music/audio"
	"radiobot/internal/reactions"
)

type fakeVoiceConn struct {
	channelID string

	mu           sync.Mutex
	disconnected bool
	opus         chan []byte
}

func newFakeVoiceConn(channelID string) *fakeVoiceConn {
	return &fakeVoiceConn{channelID: channelID, opus: make(chan []byte, 1)}
}

func (f *fakeVoiceConn) OpusSend() chan<- []byte { return f.opus }
func (f *fakeVoiceConn) Speaking(bool) error     { return nil }
func (f *fakeVoiceConn) ChannelID() string       { return f.channelID }

func (f *fakeVoiceConn) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeVoiceConn) isDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

type fakeGateway struct {
	mu        sync.Mutex
	joinErr   error
	joins     []string
	conns     []*fakeVoiceConn
	sent      []string // channel ids of sent embeds
	deleted   []string // message ids
	reactions []string // emojis added
	nextMsgID int
}

func (f *fakeGateway) JoinVoice(guildID, channelID string) (VoiceConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	f.joins = append(f.joins, channelID)
	vc := newFakeVoiceConn(channelID)
	f.conns = append(f.conns, vc)
	return vc, nil
}

func (f *fakeGateway) setJoinErr(err error) {
	f.mu.Lock()
	f.joinErr = err
	f.mu.Unlock()
}

func (f *fakeGateway) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID)
	f.nextMsgID++
	return fmt.Sprintf("msg-%d", f.nextMsgID), nil
}

func (f *fakeGateway) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeGateway) AddReaction(channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emoji)
	return nil
}

type fakeBackend struct {
	mu      sync.Mutex
	players map[string]*fakePlayer
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{players: make(map[string]*fakePlayer)}
}

func (f *fakeBackend) NewPlayer(guildID string) audio.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := newFakePlayer()
	f.players[guildID] = p
	return p
}

type fakeSettings struct {
	volumes map[string]int
}

func (f *fakeSettings) DefaultVolume(guildID string) (int, bool) {
	v, ok := f.volumes[guildID]
	return v, ok
}

func newTestRegistry() (*Registry, *fakeGateway, *fakeBackend) {
	gw := &fakeGateway{}
	backend := newFakeBackend()
	rr := reactions.NewRegistry(nil)
	reg := NewRegistry(gw, backend, rr, &fakeSettings{volumes: map[string]int{"loud": 120}})
	return reg, gw, backend
}

func TestSessionJoinReusesSameChannel(t *testing.T) {
	reg, gw, _ := newTestRegistry()
	s := reg.GetOrCreate("g1")

	require.NoError(t, s.Join("voice-1"))
	require.NoError(t, s.Join("voice-1"))

	assert.Len(t, gw.joins, 1)
}

func TestSessionJoinSwitchesChannel(t *testing.T) {
	reg, gw, _ := newTestRegistry()
	s := reg.GetOrCreate("g1")

	require.NoError(t, s.Join("voice-1"))
	require.NoError(t, s.Join("voice-2"))

	assert.Len(t, gw.joins, 2)
	assert.True(t, gw.conns[0].isDisconnected())

	channelID, ok := s.VoiceChannelID()
	require.True(t, ok)
	assert.Equal(t, "voice-2", channelID)
}

func TestSessionJoinFailureDropsOldConnection(t *testing.T) {
	reg, gw, _ := newTestRegistry()
	s := reg.GetOrCreate("g1")

	require.NoError(t, s.Join("voice-1"))

	gw.setJoinErr(errors.New("gateway down"))
	require.Error(t, s.Join("voice-2"))

	// The old connection was already torn down, so the session must not
	// keep reporting it as live.
	assert.True(t, gw.conns[0].isDisconnected())
	_, ok := s.VoiceChannelID()
	assert.False(t, ok)

	// A later join must go back to the gateway instead of reusing the
	// dead connection.
	gw.setJoinErr(nil)
	require.NoError(t, s.Join("voice-1"))
	assert.Equal(t, []string{"voice-1", "voice-1"}, gw.joins)
}

func TestSessionBindFirstWins(t *testing.T) {
	reg, _, _ := newTestRegistry()
	s := reg.GetOrCreate("g1")

	s.Bind("text-1")
	s.Bind("text-2")
	assert.Equal(t, "text-1", s.BoundChannel())

	s.Unbind()
	assert.Empty(t, s.BoundChannel())

	s.Bind("text-2")
	assert.Equal(t, "text-2", s.BoundChannel())
}

func TestSessionVolumeClamped(t *testing.T) {
	reg, _, backend := newTestRegistry()
	s := reg.GetOrCreate("g1")

	s.SetVolume(999)
	assert.Equal(t, MaxVolume, s.Volume())

	s.SetVolume(-50)
	assert.Equal(t, MinVolume, s.Volume())

	s.SetVolume(42)
	assert.Equal(t, 42, s.Volume())
	assert.Equal(t, 42, backend.players["g1"].volume)
}

func TestSessionDefaultVolumeFromSettings(t *testing.T) {
	reg, _, _ := newTestRegistry()

	assert.Equal(t, 120, reg.GetOrCreate("loud").Volume())
	assert.Equal(t, DefaultVolume, reg.GetOrCreate("other").Volume())
}

func TestSessionPostControllerReplacesPrevious(t *testing.T) {
	reg, gw, _ := newTestRegistry()
	s := reg.GetOrCreate("g1")
	s.Bind("text-1")

	embed := &discordgo.MessageEmbed{Title: "controls"}
	require.NoError(t, s.PostController(embed))
	first := s.ControllerID()
	require.NotEmpty(t, first)

	// The control reactions were added to the message.
	assert.Equal(t, reactions.ControllerEmojis(), gw.reactions)

	// Posting again drops the old message and its reaction session.
	require.NoError(t, s.PostController(embed))
	second := s.ControllerID()
	assert.NotEqual(t, first, second)
	assert.Contains(t, gw.deleted, first)

	_, ok := reg.reactions.Get(first)
	assert.False(t, ok)
	_, ok = reg.reactions.Get(second)
	assert.True(t, ok)
}

func TestSessionPostControllerRequiresBinding(t *testing.T) {
	reg, _, _ := newTestRegistry()
	s := reg.GetOrCreate("g1")

	assert.Error(t, s.PostController(&discordgo.MessageEmbed{}))
}

func TestSessionPlayJoinsAndEnqueues(t *testing.T) {
	reg, gw, backend := newTestRegistry()
	s := reg.GetOrCreate("g1")

	require.NoError(t, s.Play("voice-1", "user1", track("a"), track("b")))

	assert.Len(t, gw.joins, 1)
	assert.Len(t, backend.players["g1"].playedTracks(), 1)
	assert.Equal(t, 1, s.Scheduler().Len())
}
