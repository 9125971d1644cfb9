package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"radiobot/internal/command"
	"radiobot/internal/music/session"
)

// MusicSetCommand configures per-guild playback settings: the DJ role
// allowed to drive playback and the volume new sessions start with.
type MusicSetCommand struct{}

func (c *MusicSetCommand) Name() string        { return "musicset" }
func (c *MusicSetCommand) Description() string { return "Configure music playback for this server" }
func (c *MusicSetCommand) Group() string       { return "core" }
func (c *MusicSetCommand) Category() string    { return "⚙️ Settings" }
func (c *MusicSetCommand) RequireAdmin() bool  { return true }

func (c *MusicSetCommand) SlashDefinition() *discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              c.Description(),
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "djrole",
				Description: "Set or clear the DJ role",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Role allowed to control playback (omit to clear)",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Set the default volume for new sessions",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "Volume in percent (0-150)",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *MusicSetCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	if e.Member == nil || e.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		return command.RespondEphemeral(s, e, "Only administrators can change music settings.")
	}

	data := e.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(s, e, "Missing subcommand.")
	}
	sub := data.Options[0]

	switch sub.Name {
	case "djrole":
		return c.runDJRole(sc, sub)
	case "volume":
		return c.runVolume(sc, sub)
	default:
		return command.RespondEphemeral(s, e, fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

func (c *MusicSetCommand) runDJRole(sc *command.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	s, e := sc.Session, sc.Event

	var roleID string
	for _, opt := range sub.Options {
		if opt.Name == "role" {
			roleID = opt.RoleValue(s, e.GuildID).ID
		}
	}

	if err := sc.Deps.Storage.SetDJRole(e.GuildID, roleID); err != nil {
		return command.RespondEphemeral(s, e, fmt.Sprintf("Failed to save settings: %v", err))
	}

	if roleID == "" {
		return command.RespondEphemeral(s, e, "DJ role cleared, everyone can control playback.")
	}
	return command.RespondEphemeral(s, e, fmt.Sprintf("DJ role set to <@&%s>.", roleID))
}

func (c *MusicSetCommand) runVolume(sc *command.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	s, e := sc.Session, sc.Event

	var level int
	for _, opt := range sub.Options {
		if opt.Name == "level" {
			level = int(opt.IntValue())
		}
	}
	if level < session.MinVolume || level > session.MaxVolume {
		return command.RespondEphemeral(s, e, fmt.Sprintf("Volume must be between %d and %d.", session.MinVolume, session.MaxVolume))
	}

	if err := sc.Deps.Storage.SetDefaultVolume(e.GuildID, level); err != nil {
		return command.RespondEphemeral(s, e, fmt.Sprintf("Failed to save settings: %v", err))
	}
	return command.RespondEphemeral(s, e, fmt.Sprintf("Default volume set to %d%%.", level))
}
