package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"radiobot/internal/command"
	"radiobot/internal/music/audio"
	"radiobot/internal/music/session"
)

const queuePageSize = 10

// userVoiceChannel returns the voice channel the user currently sits in.
func userVoiceChannel(s *discordgo.Session, guildID, userID string) (string, error) {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", fmt.Errorf("join a voice channel first")
	}
	return vs.ChannelID, nil
}

// sharesVoice reports whether the user sits in the session's channel.
func sharesVoice(s *discordgo.Session, sess *session.Session, userID string) bool {
	botChannel, ok := sess.VoiceChannelID()
	if !ok {
		return false
	}
	userChannel, err := userVoiceChannel(s, sess.GuildID(), userID)
	if err != nil {
		return false
	}
	return botChannel == userChannel
}

// checkBoundChannel enforces the session's text channel claim. Returns
// false after responding when the command came from the wrong channel.
func checkBoundChannel(s *discordgo.Session, e *discordgo.InteractionCreate, sess *session.Session) bool {
	bound := sess.BoundChannel()
	if bound == "" || bound == e.ChannelID {
		return true
	}
	_ = command.RespondEphemeral(s, e, fmt.Sprintf("This session is bound to <#%s>, use music commands there.", bound))
	return false
}

func trackLink(t audio.Track) string {
	title := t.Title
	if title == "" {
		title = t.URL
	}
	if t.URL == "" {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, t.URL)
}

func formatDuration(t audio.Track) string {
	if t.Live {
		return "live"
	}
	d := t.Duration.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func stateEmoji(st session.State) string {
	switch st {
	case session.StatePlaying:
		return "▶️"
	case session.StatePaused:
		return "⏸️"
	default:
		return "⏹️"
	}
}

// controllerEmbed renders the reaction remote-control message.
func controllerEmbed(sess *session.Session) *discordgo.MessageEmbed {
	sched := sess.Scheduler()

	var desc string
	if cur, ok := sched.Current(); ok {
		desc = fmt.Sprintf("%s %s `%s`", stateEmoji(sched.State()), trackLink(cur.Track), formatDuration(cur.Track))
		if cur.RequestedBy != "" {
			desc += fmt.Sprintf("\nrequested by <@%s>", cur.RequestedBy)
		}
	} else {
		desc = "Nothing is playing."
	}

	return &discordgo.MessageEmbed{
		Title:       "🎛️ Player Controls",
		Description: desc,
		Color:       command.EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("queue: %d | volume: %d%%", sched.Len(), sess.Volume()),
		},
	}
}

// queuePage renders one page of the queue listing.
func queuePage(entries []session.QueuedTrack, page, maxPages int) *discordgo.MessageEmbed {
	start := page * queuePageSize
	end := start + queuePageSize
	if end > len(entries) {
		end = len(entries)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "`%d.` %s `%s`\n", i+1, trackLink(entries[i].Track), formatDuration(entries[i].Track))
	}

	return &discordgo.MessageEmbed{
		Title:       "🎵 Queue",
		Description: b.String(),
		Color:       command.EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("page %d/%d | %d tracks", page+1, maxPages, len(entries)),
		},
	}
}
