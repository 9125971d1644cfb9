package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything the bot reads from the environment.
type Config struct {
	DiscordToken      string   `env:"DISCORD_TOKEN,required,notEmpty"`
	StoragePath       string   `env:"STORAGE_PATH" envDefault:"datastore.json"`
	WebAddr           string   `env:"WEB_ADDR" envDefault:":8080"`
	LogLevel          string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFile           string   `env:"LOG_FILE"`
	InitSlashCommands bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	GuildBlacklist    []string `env:"GUILD_BLACKLIST" envSeparator:","`
}

// Load reads .env if present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, falling back to system environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// GuildBlacklisted reports whether a guild is excluded from serving.
func (c *Config) GuildBlacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if strings.TrimSpace(id) == guildID {
			return true
		}
	}
	return false
}
