package command

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"radiobot/internal/storage"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	return w.wrap(ctx)
}

// SlashDefinition passes through to the wrapped command so middleware
// does not hide it from registration.
func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if p, ok := w.Command.(SlashProvider); ok {
		return p.SlashDefinition()
	}
	return nil
}

func WithGuildOnly(cmd Command) Command {
	return &wrappedCommand{
		Command: cmd,
		wrap: func(ctx interface{}) error {
			switch v := ctx.(type) {
			case *SlashContext:
				if v.Event.GuildID == "" {
					_ = v.Session.InteractionRespond(v.Event.Interaction, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseChannelMessageWithSource,
						Data: &discordgo.InteractionResponseData{
							Content: "You must be in a guild to use this command.",
							Flags:   discordgo.MessageFlagsEphemeral,
						},
					})
					return nil
				}
			}
			return cmd.Run(ctx)
		},
	}
}

// WithCommandLogger records invocations in the guild command history and
// the structured log.
func WithCommandLogger(cmd Command) Command {
	return &wrappedCommand{
		Command: cmd,
		wrap: func(ctx interface{}) error {
			if v, ok := ctx.(*SlashContext); ok && v.Event.GuildID != "" {
				record := storage.CommandHistoryRecord{
					ChannelID: v.Event.ChannelID,
					Command:   cmd.Name(),
					Datetime:  time.Now(),
				}
				if v.Event.Member != nil && v.Event.Member.User != nil {
					record.UserID = v.Event.Member.User.ID
					record.Username = v.Event.Member.User.Username
				}
				if data := v.Event.ApplicationCommandData(); len(data.Options) > 0 {
					record.Param = data.Options[0].Name
				}
				if err := v.Deps.Storage.AppendCommandToHistory(v.Event.GuildID, record); err != nil {
					log.Warn().Err(err).Str("guild", v.Event.GuildID).Msg("command history append failed")
				}
				log.Info().
					Str("guild", v.Event.GuildID).
					Str("user", record.UserID).
					Str("command", cmd.Name()).
					Str("param", record.Param).
					Msg("command invoked")
			}
			return cmd.Run(ctx)
		},
	}
}
