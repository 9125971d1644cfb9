package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// onVoiceStateUpdate is the fast path for idle reclamation: when the
// last human leaves the bot's voice channel, the session is reclaimed
// immediately instead of waiting for the next sweep. A forced
// disconnect of the bot itself tears the session down too.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.GuildID == "" {
		return
	}

	// The bot was moved out or kicked from voice.
	if v.UserID == s.State.User.ID {
		if v.ChannelID == "" {
			if _, ok := b.sessions.Get(v.GuildID); ok {
				log.Info().Str("guild", v.GuildID).Msg("bot disconnected from voice, reclaiming session")
				b.sessions.Kill(v.GuildID)
			}
		}
		return
	}

	// Only a user leaving or switching channels can empty ours.
	if v.BeforeUpdate == nil || v.BeforeUpdate.ChannelID == "" || v.BeforeUpdate.ChannelID == v.ChannelID {
		return
	}

	sess, ok := b.sessions.Get(v.GuildID)
	if !ok {
		return
	}
	channelID, connected := sess.VoiceChannelID()
	if !connected || channelID != v.BeforeUpdate.ChannelID {
		return
	}

	if b.gw.HumanCount(v.GuildID, channelID) == 0 {
		log.Info().Str("guild", v.GuildID).Str("channel", channelID).Msg("voice channel empty, reclaiming session")
		b.sessions.Kill(v.GuildID)
	}
}
