package music

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"radiobot/internal/command"
	"radiobot/internal/music/session"
	"radiobot/internal/reactions"
)

const resolveTimeout = 30 * time.Second

type MusicCommand struct{}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }
func (c *MusicCommand) RequireAdmin() bool  { return false }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue a track, playlist or radio stream",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link to a track, playlist or stream",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip to the next track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause or resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the queued tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Show or set the playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "Volume in percent (0-150)",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queued tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "nowplaying",
				Description: "Show the current track and player controls",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "join",
				Description: "Join your voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "leave",
				Description: "Stop playback and leave the voice channel",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return nil
	}

	data := sc.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(sc.Session, sc.Event, "Missing subcommand.")
	}
	sub := data.Options[0]

	switch sub.Name {
	case "play":
		return c.runPlay(sc, sub)
	case "skip":
		return c.runSkip(sc)
	case "pause":
		return c.runPause(sc)
	case "shuffle":
		return c.runShuffle(sc)
	case "volume":
		return c.runVolume(sc, sub)
	case "queue":
		return c.runQueue(sc)
	case "nowplaying":
		return c.runNowPlaying(sc)
	case "join":
		return c.runJoin(sc)
	case "leave":
		return c.runLeave(sc)
	default:
		return command.RespondEphemeral(sc.Session, sc.Event, fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

func (c *MusicCommand) runPlay(sc *command.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	s, e := sc.Session, sc.Event

	var input string
	for _, opt := range sub.Options {
		if opt.Name == "input" {
			input = opt.StringValue()
		}
	}
	if input == "" {
		return command.RespondEphemeral(s, e, "Input is required.")
	}

	userID := e.Member.User.ID
	voiceChannel, err := userVoiceChannel(s, e.GuildID, userID)
	if err != nil {
		return command.RespondEphemeral(s, e, err.Error())
	}

	if err := command.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("defer response: %w", err)
	}

	rctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	tracks, err := sc.Deps.Resolver.Resolve(rctx, input)
	if err != nil {
		return command.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: fmt.Sprintf("Failed to resolve track: %v", err),
		})
	}

	sess := sc.Deps.Sessions.GetOrCreate(e.GuildID)
	sess.Bind(e.ChannelID)
	if !checkBoundChannelFollowup(s, e, sess) {
		return nil
	}

	if err := sess.Play(voiceChannel, userID, tracks...); err != nil {
		return command.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Voice Error",
			Description: fmt.Sprintf("%v", err),
		})
	}

	var desc string
	if len(tracks) == 1 {
		desc = "🎶 Queued " + trackLink(tracks[0])
	} else {
		desc = fmt.Sprintf("🎶 Queued %d tracks", len(tracks))
	}
	return command.FollowupEmbed(s, e, &discordgo.MessageEmbed{
		Description: desc,
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runSkip(sc *command.SlashContext) error {
	sess, ok := c.controlSession(sc)
	if !ok {
		return nil
	}

	sched := sess.Scheduler()
	cur, playing := sched.Current()
	if !playing {
		return command.RespondEphemeral(sc.Session, sc.Event, "Nothing is playing.")
	}
	sched.SkipOne()

	return command.RespondEmbed(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Description: "⏭️ Skipped " + trackLink(cur.Track),
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runPause(sc *command.SlashContext) error {
	sess, ok := c.controlSession(sc)
	if !ok {
		return nil
	}

	sched := sess.Scheduler()
	sched.TogglePause()

	var desc string
	if sched.State() == session.StatePaused {
		desc = "⏸️ Playback paused."
	} else {
		desc = "▶️ Playback resumed."
	}
	return command.RespondEmbed(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Description: desc,
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runShuffle(sc *command.SlashContext) error {
	sess, ok := c.controlSession(sc)
	if !ok {
		return nil
	}

	sess.Scheduler().Shuffle()
	return command.RespondEmbed(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🔀 Shuffled %d queued tracks.", sess.Scheduler().Len()),
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runVolume(sc *command.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	s, e := sc.Session, sc.Event

	sess, exists := sc.Deps.Sessions.Get(e.GuildID)
	if !exists {
		return command.RespondEphemeral(s, e, "No active playback session.")
	}

	var level *int
	for _, opt := range sub.Options {
		if opt.Name == "level" {
			v := int(opt.IntValue())
			level = &v
		}
	}
	if level == nil {
		return command.RespondEphemeral(s, e, fmt.Sprintf("Volume is %d%%.", sess.Volume()))
	}

	if !c.authorized(sc, sess) {
		return nil
	}
	sess.SetVolume(*level)

	return command.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🔊 Volume set to %d%%.", sess.Volume()),
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runQueue(sc *command.SlashContext) error {
	s, e := sc.Session, sc.Event

	sess, exists := sc.Deps.Sessions.Get(e.GuildID)
	if !exists {
		return command.RespondEphemeral(s, e, "No active playback session.")
	}

	entries := sess.Scheduler().Queue()
	if len(entries) == 0 {
		return command.RespondEphemeral(s, e, "The queue is empty.")
	}

	if err := command.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("defer response: %w", err)
	}

	maxPages := (len(entries) + queuePageSize - 1) / queuePageSize
	render := func(page int) *discordgo.MessageEmbed {
		return queuePage(entries, page, maxPages)
	}

	msg, err := s.FollowupMessageCreate(e.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{render(0)},
	})
	if err != nil {
		return fmt.Errorf("send queue message: %w", err)
	}

	p := &reactions.Paginator{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		AuthorID:  e.Member.User.ID,
		MaxPages:  maxPages,
		Render:    render,
	}
	sc.Deps.Reactions.Put(p)

	for _, emoji := range reactions.PaginatorEmojis(maxPages) {
		if err := s.MessageReactionAdd(msg.ChannelID, msg.ID, emoji); err != nil {
			log.Debug().Err(err).Str("message", msg.ID).Msg("paginator reaction add failed")
		}
	}
	return nil
}

func (c *MusicCommand) runNowPlaying(sc *command.SlashContext) error {
	s, e := sc.Session, sc.Event

	sess, exists := sc.Deps.Sessions.Get(e.GuildID)
	if !exists {
		return command.RespondEphemeral(s, e, "No active playback session.")
	}
	sess.Bind(e.ChannelID)
	if !checkBoundChannel(s, e, sess) {
		return nil
	}

	if err := sess.PostController(controllerEmbed(sess)); err != nil {
		return command.RespondEphemeral(s, e, fmt.Sprintf("Failed to post controls: %v", err))
	}
	return command.RespondEphemeral(s, e, "Player controls posted.")
}

func (c *MusicCommand) runJoin(sc *command.SlashContext) error {
	s, e := sc.Session, sc.Event

	voiceChannel, err := userVoiceChannel(s, e.GuildID, e.Member.User.ID)
	if err != nil {
		return command.RespondEphemeral(s, e, err.Error())
	}

	sess := sc.Deps.Sessions.GetOrCreate(e.GuildID)
	sess.Bind(e.ChannelID)
	if err := sess.Join(voiceChannel); err != nil {
		return command.RespondEphemeral(s, e, fmt.Sprintf("Failed to join: %v", err))
	}
	return command.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🔊 Joined <#%s>.", voiceChannel),
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runLeave(sc *command.SlashContext) error {
	sess, ok := c.controlSession(sc)
	if !ok {
		return nil
	}

	sc.Deps.Sessions.Kill(sess.GuildID())
	return command.RespondEmbed(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Description: "⏹️ Playback stopped, queue cleared.",
		Color:       command.EmbedColor,
	})
}

// controlSession resolves the guild session for a playback-control
// subcommand, enforcing the DJ gate, the shared-voice requirement and
// the bound text channel. Responds and returns false on any failure.
func (c *MusicCommand) controlSession(sc *command.SlashContext) (*session.Session, bool) {
	s, e := sc.Session, sc.Event

	sess, exists := sc.Deps.Sessions.Get(e.GuildID)
	if !exists {
		_ = command.RespondEphemeral(s, e, "No active playback session.")
		return nil, false
	}
	if !checkBoundChannel(s, e, sess) {
		return nil, false
	}
	if !sharesVoice(s, sess, e.Member.User.ID) {
		_ = command.RespondEphemeral(s, e, "You need to be in my voice channel to do that.")
		return nil, false
	}
	if !c.authorized(sc, sess) {
		return nil, false
	}
	return sess, true
}

func (c *MusicCommand) authorized(sc *command.SlashContext, sess *session.Session) bool {
	if sc.Deps.Auth.IsPrivileged(sc.Event.Member.User.ID, sess.GuildID()) {
		return true
	}
	_ = command.RespondEphemeral(sc.Session, sc.Event, "You need to be a DJ to perform this action!")
	return false
}

// checkBoundChannelFollowup is checkBoundChannel for already-deferred
// interactions.
func checkBoundChannelFollowup(s *discordgo.Session, e *discordgo.InteractionCreate, sess *session.Session) bool {
	bound := sess.BoundChannel()
	if bound == "" || bound == e.ChannelID {
		return true
	}
	_ = command.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("This session is bound to <#%s>, use music commands there.", bound),
	})
	return false
}
