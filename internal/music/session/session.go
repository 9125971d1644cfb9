// Package session holds the per-guild playback state: one registry of
// sessions, each owning a queue scheduler, a voice binding, a text
// channel binding and the posted controller message.
package session

import (
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"radiobot/internal/music/audio"
	"radiobot/internal/reactions"
)

const (
	DefaultVolume = 30
	MinVolume     = 0
	MaxVolume     = 150
)

var ErrNotInVoice = errors.New("not connected to a voice channel")

// VoiceConn is the session's view of one open voice connection.
type VoiceConn interface {
	audio.Sink
	ChannelID() string
	Disconnect() error
}

// Gateway is what a session needs from the chat gateway. All calls are
// asynchronous on the Discord side; errors are surfaced for best-effort
// handling only.
type Gateway interface {
	JoinVoice(guildID, channelID string) (VoiceConn, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (messageID string, err error)
	DeleteMessage(channelID, messageID string) error
	AddReaction(channelID, messageID, emoji string) error
}

// Session is one guild's live playback context. Created only through
// Registry.GetOrCreate; destroyed through Registry.Kill.
type Session struct {
	guildID string
	reg     *Registry
	gw      Gateway
	player  audio.Player
	sched   *Scheduler

	mu            sync.Mutex
	voice         VoiceConn
	textChannelID string
	controllerID  string
	// controllerChannelID remembers where the controller was posted so
	// it can still be deleted after the binding is cleared.
	controllerChannelID string
	volume              int
	killed              bool
}

func newSession(guildID string, reg *Registry, gw Gateway, player audio.Player, volume int) *Session {
	s := &Session{
		guildID: guildID,
		reg:     reg,
		gw:      gw,
		player:  player,
		sched:   NewScheduler(player),
		volume:  clampVolume(volume),
	}
	go s.pumpEvents()
	return s
}

// pumpEvents feeds backend end-of-track notifications back into the
// scheduler. Exits when the player is destroyed.
func (s *Session) pumpEvents() {
	for ev := range s.player.Events() {
		switch ev.Kind {
		case audio.EventTrackEnd:
			s.sched.HandleTrackEnd(ev.Track.Seq)
		case audio.EventTrackError:
			log.Warn().Err(ev.Err).Str("guild", s.guildID).Str("track", ev.Track.Title).
				Msg("track failed, advancing")
			s.sched.HandleTrackEnd(ev.Track.Seq)
		}
	}
}

func (s *Session) GuildID() string       { return s.guildID }
func (s *Session) Scheduler() *Scheduler { return s.sched }

// Join connects to the voice channel and attaches the player's output
// to it. Reuses an existing connection to the same channel.
func (s *Session) Join(channelID string) error {
	s.mu.Lock()
	if s.voice != nil && s.voice.ChannelID() == channelID {
		s.mu.Unlock()
		return nil
	}
	// Claim the old connection before touching the gateway so a failed
	// join cannot leave the session pointing at a dead connection.
	old := s.voice
	s.voice = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(); err != nil {
			log.Warn().Err(err).Str("guild", s.guildID).Msg("disconnect before rejoin failed")
		}
	}

	vc, err := s.gw.JoinVoice(s.guildID, channelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.voice = vc
	vol := s.volume
	s.mu.Unlock()

	s.player.Attach(vc)
	s.player.SetVolume(vol)
	return nil
}

// Leave releases the voice connection, if any.
func (s *Session) Leave() {
	s.mu.Lock()
	vc := s.voice
	s.voice = nil
	s.mu.Unlock()
	if vc == nil {
		return
	}
	if err := vc.Disconnect(); err != nil {
		log.Warn().Err(err).Str("guild", s.guildID).Msg("voice disconnect failed")
	}
}

// VoiceChannelID returns the connected voice channel, if connected.
func (s *Session) VoiceChannelID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voice == nil {
		return "", false
	}
	return s.voice.ChannelID(), true
}

// Play joins the voice channel and enqueues the tracks, starting
// playback if idle.
func (s *Session) Play(voiceChannelID, requestedBy string, tracks ...audio.Track) error {
	if err := s.Join(voiceChannelID); err != nil {
		return err
	}
	s.sched.Enqueue(requestedBy, tracks...)
	return nil
}

// Bind claims the text channel allowed to carry controller messages.
// First bind wins; later binds are ignored until Unbind clears it.
func (s *Session) Bind(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textChannelID == "" {
		s.textChannelID = channelID
	}
}

func (s *Session) Unbind() {
	s.mu.Lock()
	s.textChannelID = ""
	s.mu.Unlock()
}

// BoundChannel returns the claimed text channel id, empty if unbound.
func (s *Session) BoundChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textChannelID
}

// SetVolume clamps and applies the playback volume.
func (s *Session) SetVolume(v int) {
	v = clampVolume(v)
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	s.player.SetVolume(v)
}

func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// PostController replaces the session's remote-control message: the old
// one (and its reaction session) is removed, the embed is sent to the
// bound channel and the control reactions are added.
func (s *Session) PostController(embed *discordgo.MessageEmbed) error {
	channelID := s.BoundChannel()
	if channelID == "" {
		return errors.New("no text channel bound")
	}

	s.removeController()

	msgID, err := s.gw.SendEmbed(channelID, embed)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.controllerID = msgID
	s.controllerChannelID = channelID
	s.mu.Unlock()

	s.reg.reactions.Put(&reactions.ControllerSession{
		MessageID: msgID,
		ChannelID: channelID,
		GuildID:   s.guildID,
		Controls:  (*sessionControls)(s),
	})

	for _, emoji := range reactions.ControllerEmojis() {
		if err := s.gw.AddReaction(channelID, msgID, emoji); err != nil {
			log.Debug().Err(err).Str("guild", s.guildID).Msg("controller reaction add failed")
		}
	}
	return nil
}

// removeController deletes the posted controller message and its
// reaction session. Best-effort: the message may already be gone.
func (s *Session) removeController() {
	s.mu.Lock()
	msgID := s.controllerID
	channelID := s.controllerChannelID
	s.controllerID = ""
	s.controllerChannelID = ""
	s.mu.Unlock()

	if msgID == "" {
		return
	}
	s.reg.reactions.Remove(msgID)
	if err := s.gw.DeleteMessage(channelID, msgID); err != nil {
		log.Debug().Err(err).Str("guild", s.guildID).Msg("controller delete failed")
	}
}

// ControllerID returns the current controller message id, empty if none.
func (s *Session) ControllerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controllerID
}

// kill tears the session down: leave voice, destroy the player, clear
// the queue, unbind the text channel and remove the controller message.
// Steps after the voice release are each best-effort. Idempotent.
func (s *Session) kill() {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return
	}
	s.killed = true
	s.mu.Unlock()

	s.Leave()
	s.player.Destroy()
	s.sched.Clear()
	s.Unbind()
	s.removeController()
}

// sessionControls adapts a Session to the reaction dispatcher's
// controller action surface.
type sessionControls Session

func (c *sessionControls) Skip()        { (*Session)(c).sched.SkipOne() }
func (c *sessionControls) TogglePause() { (*Session)(c).sched.TogglePause() }
func (c *sessionControls) Shuffle()     { (*Session)(c).sched.Shuffle() }

func (c *sessionControls) VolumeBy(delta int) {
	s := (*Session)(c)
	s.SetVolume(s.Volume() + delta)
}

func (c *sessionControls) Terminate() {
	s := (*Session)(c)
	s.reg.Kill(s.guildID)
}

func clampVolume(v int) int {
	if v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
