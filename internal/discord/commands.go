package discord

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"radiobot/internal/command"
	"radiobot/pkg/retrylimit"
)

// registerCommands syncs slash commands for a guild with Discord:
// deletes obsolete ones, creates or updates commands whose definition
// changed since the cached hash.
func (b *Bot) registerCommands(ctx context.Context, guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, _ := b.dg.ApplicationCommands(appID, guildID)
	localHashes := loadGuildCommandHashes(guildID)

	var wanted []*discordgo.ApplicationCommand
	wantedHashes := make(map[string]string)
	for _, cmd := range command.All() {
		if slash, ok := cmd.(command.SlashProvider); ok {
			if def := slash.SlashDefinition(); def != nil {
				if def.Type == 0 {
					def.Type = discordgo.ChatApplicationCommand
				}
				wanted = append(wanted, def)
				wantedHashes[def.Name] = hashCommand(def)
			}
		}
	}

	for _, old := range remote {
		if _, ok := wantedHashes[old.Name]; !ok {
			log.Info().Str("guild", guildID).Str("command", old.Name).Msg("deleting obsolete command")
			if err := b.dg.ApplicationCommandDelete(appID, guildID, old.ID); err != nil {
				log.Error().Err(err).Str("guild", guildID).Str("command", old.Name).Msg("command delete failed")
			}
			delete(localHashes, old.Name)
		}
	}

	var changed []*discordgo.ApplicationCommand
	for _, cmd := range wanted {
		if localHashes[cmd.Name] != wantedHashes[cmd.Name] {
			changed = append(changed, cmd)
		}
	}

	if len(changed) > 0 {
		log.Info().Str("guild", guildID).Int("count", len(changed)).Msg("updating changed commands")
		b.createCommands(ctx, appID, guildID, changed)
		for _, c := range changed {
			localHashes[c.Name] = wantedHashes[c.Name]
		}
	}

	saveGuildCommandHashes(guildID, localHashes)
	return nil
}

// createCommands pushes definitions through an adaptive rate limiter so
// bulk registration across many guilds stays under the API budget.
func (b *Bot) createCommands(ctx context.Context, appID, guildID string, cmds []*discordgo.ApplicationCommand) {
	lim := retrylimit.NewAdaptiveLimiter(rate.Limit(20), 1, 40, 1, 0.5)

	for _, def := range cmds {
		def := def
		err := retrylimit.WithRetryConfig(ctx, func() error {
			_, err := b.dg.ApplicationCommandCreate(appID, guildID, def)
			return err
		}, lim, retrylimit.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		})
		if err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", def.Name).Msg("command create failed")
		} else {
			log.Debug().Str("guild", guildID).Str("command", def.Name).Msg("command registered")
		}
	}
}

func (b *Bot) appID() (string, error) {
	if id := b.dg.State.User.ID; id != "" {
		return id, nil
	}
	user, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("fetch self: %w", err)
	}
	return user.ID, nil
}

// --- definition hash cache ---

func guildCachePath(guildID string) string {
	return filepath.Join("data", "commands", guildID+".json")
}

func loadGuildCommandHashes(guildID string) map[string]string {
	data := make(map[string]string)
	file, err := os.ReadFile(guildCachePath(guildID))
	if err == nil {
		_ = json.Unmarshal(file, &data)
	}
	return data
}

func saveGuildCommandHashes(guildID string, hashes map[string]string) {
	path := guildCachePath(guildID)
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	data, _ := json.MarshalIndent(hashes, "", "  ")
	_ = os.WriteFile(path, data, 0644)
}

// hashCommand creates a deterministic hash for a command definition,
// ignoring runtime-only fields like IDs and versions.
func hashCommand(cmd *discordgo.ApplicationCommand) string {
	obj := map[string]interface{}{
		"name":        cmd.Name,
		"description": cmd.Description,
		"type":        cmd.Type,
	}
	if len(cmd.Options) > 0 {
		obj["options"] = normalizeOptions(cmd.Options)
	}
	data, _ := json.Marshal(obj)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]interface{} {
	normalized := make([]map[string]interface{}, len(opts))
	for i, o := range opts {
		entry := map[string]interface{}{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]interface{}, len(o.Choices))
			for j, c := range o.Choices {
				choices[j] = map[string]interface{}{"name": c.Name, "value": c.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		normalized[i] = entry
	}

	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i]["name"].(string) < normalized[j]["name"].(string)
	})
	return normalized
}
