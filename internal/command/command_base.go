package command

import (
	"radiobot/internal/music/resolver"
	"radiobot/internal/music/session"
	"radiobot/internal/reactions"
	"radiobot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type Command interface {
	Name() string
	Description() string
	Group() string
	Category() string
	RequireAdmin() bool
	Run(ctx interface{}) error
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// Auth gates playback-control commands behind the guild DJ role.
type Auth interface {
	IsPrivileged(userID, guildID string) bool
}

// Deps carries the shared services commands operate on.
type Deps struct {
	Sessions  *session.Registry
	Resolver  *resolver.Resolver
	Reactions *reactions.Registry
	Storage   *storage.Storage
	Auth      Auth
}

type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}
