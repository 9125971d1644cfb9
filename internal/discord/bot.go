package discord

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"radiobot/internal/command"
	"radiobot/internal/command/core"
	"radiobot/internal/command/music"
	"radiobot/internal/config"
	"radiobot/internal/music/resolver"
	"radiobot/internal/music/session"
	"radiobot/internal/music/stream"
	"radiobot/internal/reactions"
	"radiobot/internal/storage"
)

// Bot wires the Discord gateway to the playback engine: slash commands,
// reaction dispatch, the per-guild session registry and the idle
// sweeper.
type Bot struct {
	dg        *discordgo.Session
	cfg       *config.Config
	store     *storage.Storage
	gw        *gateway
	sessions  *session.Registry
	reactions *reactions.Registry
	deps      *command.Deps

	// The dispatcher is built on the first ready event, after the bot
	// user is known, and read from the reaction handler goroutines.
	dispatchOnce sync.Once
	dispatcher   atomic.Pointer[reactions.Dispatcher]

	runCtx context.Context
}

// New builds the bot and its service graph. The gateway is not opened
// until Run.
func New(cfg *config.Config, store *storage.Storage) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{dg: dg, cfg: cfg, store: store}
	b.gw = newGateway(dg)

	// Expired paginators keep their message but lose the control
	// reactions along with their registry entry.
	b.reactions = reactions.NewRegistry(func(s reactions.Session) {
		if err := b.gw.ClearReactions(s.Channel(), s.Key()); err != nil {
			log.Debug().Err(err).Str("message", s.Key()).Msg("expired paginator cleanup failed")
		}
	})

	b.sessions = session.NewRegistry(b.gw, stream.NewBackend(), b.reactions, store)

	b.deps = &command.Deps{
		Sessions:  b.sessions,
		Resolver:  resolver.New(),
		Reactions: b.reactions,
		Storage:   store,
		Auth:      NewDJAuth(dg, store),
	}

	command.Register(command.WithGuildOnly(command.WithCommandLogger(&music.MusicCommand{})))
	command.Register(command.WithGuildOnly(command.WithCommandLogger(&core.MusicSetCommand{})))

	return b, nil
}

// Run opens the gateway and blocks until the context is cancelled, then
// tears every live session down.
func (b *Bot) Run(ctx context.Context) error {
	b.runCtx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onMessageReactionAdd)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.dg.Close()

	go b.reactions.Run(ctx)
	go session.NewSweeper(b.sessions, b.gw).Run(ctx)

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, cleaning up")
	for _, guildID := range b.sessions.GuildIDs() {
		b.sessions.Kill(guildID)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.dispatchOnce.Do(func() {
		b.dispatcher.Store(reactions.NewDispatcher(b.reactions, b.gw, b.deps.Auth, s.State.User.ID))
	})

	for _, g := range r.Guilds {
		if b.cfg.GuildBlacklisted(g.ID) {
			log.Info().Str("guild", g.ID).Msg("leaving blacklisted guild")
			if err := s.GuildLeave(g.ID); err != nil {
				log.Error().Err(err).Str("guild", g.ID).Msg("guild leave failed")
			}
			continue
		}
		if b.cfg.InitSlashCommands {
			if err := b.registerCommands(b.runCtx, g.ID); err != nil {
				log.Error().Err(err).Str("guild", g.ID).Msg("command registration failed")
			}
		}
	}

	log.Info().Str("bot", s.State.User.Username).Int("guilds", len(r.Guilds)).Msg("bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.cfg.GuildBlacklisted(g.Guild.ID) {
		log.Info().Str("guild", g.Guild.ID).Msg("leaving blacklisted guild")
		if err := s.GuildLeave(g.Guild.ID); err != nil {
			log.Error().Err(err).Str("guild", g.Guild.ID).Msg("guild leave failed")
		}
		return
	}

	if b.cfg.InitSlashCommands {
		if err := b.registerCommands(b.runCtx, g.Guild.ID); err != nil {
			log.Error().Err(err).Str("guild", g.Guild.ID).Msg("command registration failed")
		}
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	cmd, ok := command.Get(name)
	if !ok {
		log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	ctx := &command.SlashContext{Session: s, Event: i, Deps: b.deps}
	if err := cmd.Run(ctx); err != nil {
		log.Error().Err(err).Str("command", name).Msg("command failed")
		_ = command.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Error running command: %v", err),
		})
	}
}

func (b *Bot) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	d := b.dispatcher.Load()
	if d == nil {
		return
	}
	d.HandleReactionAdd(reactions.Event{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
	})
}

// Session exposes the raw gateway session for the admin surface.
func (b *Bot) Session() *discordgo.Session { return b.dg }

// Sessions exposes the playback session registry.
func (b *Bot) Sessions() *session.Registry { return b.sessions }
