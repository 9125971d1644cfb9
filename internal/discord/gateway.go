package discord

import (
	"github.com/bwmarrin/discordgo"

	"radiobot/internal/music/session"
)

// gateway adapts a live discordgo session to the narrow interfaces the
// playback and reaction packages depend on.
type gateway struct {
	dg *discordgo.Session
}

func newGateway(dg *discordgo.Session) *gateway {
	return &gateway{dg: dg}
}

// --- session.Gateway ---

func (g *gateway) JoinVoice(guildID, channelID string) (session.VoiceConn, error) {
	vc, err := g.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return &voiceConn{vc: vc}, nil
}

func (g *gateway) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (string, error) {
	msg, err := g.dg.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (g *gateway) DeleteMessage(channelID, messageID string) error {
	return g.dg.ChannelMessageDelete(channelID, messageID)
}

func (g *gateway) AddReaction(channelID, messageID, emoji string) error {
	return g.dg.MessageReactionAdd(channelID, messageID, emoji)
}

// --- reactions.Gateway ---

func (g *gateway) EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	_, err := g.dg.ChannelMessageEditEmbed(channelID, messageID, embed)
	return err
}

func (g *gateway) SendText(channelID, content string) error {
	_, err := g.dg.ChannelMessageSend(channelID, content)
	return err
}

func (g *gateway) RemoveReaction(channelID, messageID, emoji, userID string) error {
	return g.dg.MessageReactionRemove(channelID, messageID, emoji, userID)
}

func (g *gateway) ClearReactions(channelID, messageID string) error {
	return g.dg.MessageReactionsRemoveAll(channelID, messageID)
}

func (g *gateway) CanManageMessages(channelID string) bool {
	perms, err := g.dg.UserChannelPermissions(g.dg.State.User.ID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionManageMessages != 0
}

// --- session.Occupancy ---

// HumanCount counts non-bot members sitting in a voice channel.
func (g *gateway) HumanCount(guildID, channelID string) int {
	guild, err := g.dg.State.Guild(guildID)
	if err != nil || guild == nil {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		member, err := g.dg.State.Member(guildID, vs.UserID)
		if err != nil || member == nil || member.User == nil {
			// Unknown member, assume human so the session survives.
			count++
			continue
		}
		if !member.User.Bot {
			count++
		}
	}
	return count
}

// voiceConn wraps one open discordgo voice connection.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceConn) OpusSend() chan<- []byte {
	return v.vc.OpusSend
}

func (v *voiceConn) Speaking(b bool) error {
	return v.vc.Speaking(b)
}

func (v *voiceConn) ChannelID() string {
	v.vc.RLock()
	defer v.vc.RUnlock()
	return v.vc.ChannelID
}

func (v *voiceConn) Disconnect() error {
	return v.vc.Disconnect()
}
