package reactions

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Control-surface emojis. The variation selector is stripped before
// matching, so both the bare and the emoji-presentation forms of a
// codepoint dispatch the same action.
const (
	EmojiPlayPause  = "⏯️"
	EmojiSkip       = "➡️"
	EmojiShuffle    = "🔀"
	EmojiVolumeDown = "🔉"
	EmojiVolumeUp   = "🔊"
	EmojiStop       = "❌"

	EmojiPrevPage = "⬅️"
	EmojiNextPage = "➡️"
	EmojiDelete   = "🗑️"
)

// ControllerEmojis returns the reactions posted on a controller
// message, in display order.
func ControllerEmojis() []string {
	return []string{EmojiPlayPause, EmojiSkip, EmojiShuffle, EmojiVolumeDown, EmojiVolumeUp, EmojiStop}
}

// PaginatorEmojis returns the reactions posted on a paginated message.
// The page arrows only make sense past one page.
func PaginatorEmojis(maxPages int) []string {
	if maxPages > 1 {
		return []string{EmojiPrevPage, EmojiNextPage, EmojiDelete}
	}
	return []string{EmojiDelete}
}

// ControllerAction is a controller reaction decoded to a typed action.
type ControllerAction int

const (
	ActionNone ControllerAction = iota
	ActionPauseResume
	ActionSkip
	ActionShuffle
	ActionVolumeDown
	ActionVolumeUp
	ActionStop
)

// PageAction is a paginator reaction decoded to a typed action.
type PageAction int

const (
	PageNone PageAction = iota
	PagePrev
	PageNext
	PageDelete
)

// Gateway is what the dispatcher needs from the chat gateway. Every
// call is best-effort: a failure never blocks or reverts the state
// change that triggered it.
type Gateway interface {
	EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error
	DeleteMessage(channelID, messageID string) error
	SendText(channelID, content string) error
	RemoveReaction(channelID, messageID, emoji, userID string) error
	ClearReactions(channelID, messageID string) error
	CanManageMessages(channelID string) bool
}

// Auth is the DJ-gate check. A guild with no privileged role configured
// treats everyone as privileged.
type Auth interface {
	IsPrivileged(userID, guildID string) bool
}

// Event is one inbound reaction-add, already reduced to identifiers.
type Event struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

// Dispatcher resolves inbound reactions to sessions and applies the
// permitted action.
type Dispatcher struct {
	registry *Registry
	gw       Gateway
	auth     Auth
	selfID   string
}

func NewDispatcher(registry *Registry, gw Gateway, auth Auth, selfID string) *Dispatcher {
	return &Dispatcher{registry: registry, gw: gw, auth: auth, selfID: selfID}
}

// HandleReactionAdd processes one reaction-add event. Unknown messages
// and the bot's own reactions are ignored.
func (d *Dispatcher) HandleReactionAdd(ev Event) {
	if ev.UserID == d.selfID {
		return
	}
	sess, ok := d.registry.Get(ev.MessageID)
	if !ok {
		return
	}

	switch s := sess.(type) {
	case *ControllerSession:
		d.handleController(s, ev)
	case *Paginator:
		d.handlePaginator(s, ev)
	default:
		log.Warn().Str("message", ev.MessageID).Msgf("unknown reaction session type %T", sess)
	}
}

func (d *Dispatcher) handleController(s *ControllerSession, ev Event) {
	action := decodeControllerAction(ev.Emoji)
	if action == ActionNone {
		return
	}

	if !d.auth.IsPrivileged(ev.UserID, s.GuildID) {
		// Denied: tell the user and leave their reaction in place.
		err := d.gw.SendText(ev.ChannelID, fmt.Sprintf("<@%s>, you need to be a DJ to perform this action!", ev.UserID))
		if err != nil {
			log.Debug().Err(err).Str("channel", ev.ChannelID).Msg("denial message failed")
		}
		return
	}

	switch action {
	case ActionSkip:
		s.Controls.Skip()
	case ActionPauseResume:
		s.Controls.TogglePause()
	case ActionShuffle:
		s.Controls.Shuffle()
	case ActionVolumeDown:
		s.Controls.VolumeBy(-10)
	case ActionVolumeUp:
		s.Controls.VolumeBy(+10)
	case ActionStop:
		s.Controls.Terminate()
		return // message is gone with the session
	}

	d.consumeReaction(ev)
}

func (d *Dispatcher) handlePaginator(p *Paginator, ev Event) {
	switch decodePageAction(ev.Emoji) {
	case PagePrev:
		if p.PreviousPage() {
			d.editPage(p, ev)
		}
	case PageNext:
		if p.NextPage() {
			d.editPage(p, ev)
		}
	case PageDelete:
		if p.AuthorID != ev.UserID {
			break
		}
		if err := d.gw.DeleteMessage(ev.ChannelID, ev.MessageID); err != nil {
			log.Debug().Err(err).Str("message", ev.MessageID).Msg("paginator delete failed")
		}
		d.registry.Remove(ev.MessageID)
		return
	case PageNone:
		return
	}

	d.consumeReaction(ev)
}

func (d *Dispatcher) editPage(p *Paginator, ev Event) {
	if err := d.gw.EditEmbed(ev.ChannelID, ev.MessageID, p.Embed()); err != nil {
		log.Debug().Err(err).Str("message", ev.MessageID).Msg("page edit failed")
	}
}

// consumeReaction removes the triggering reaction so the control
// surface stays clean. Best-effort and permission-gated.
func (d *Dispatcher) consumeReaction(ev Event) {
	if !d.gw.CanManageMessages(ev.ChannelID) {
		return
	}
	if err := d.gw.RemoveReaction(ev.ChannelID, ev.MessageID, ev.Emoji, ev.UserID); err != nil {
		log.Debug().Err(err).Str("message", ev.MessageID).Msg("reaction removal failed")
	}
}

func decodeControllerAction(emoji string) ControllerAction {
	switch normalizeEmoji(emoji) {
	case normalizeEmoji(EmojiPlayPause):
		return ActionPauseResume
	case normalizeEmoji(EmojiSkip):
		return ActionSkip
	case normalizeEmoji(EmojiShuffle):
		return ActionShuffle
	case normalizeEmoji(EmojiVolumeDown):
		return ActionVolumeDown
	case normalizeEmoji(EmojiVolumeUp):
		return ActionVolumeUp
	case normalizeEmoji(EmojiStop):
		return ActionStop
	default:
		return ActionNone
	}
}

func decodePageAction(emoji string) PageAction {
	switch normalizeEmoji(emoji) {
	case normalizeEmoji(EmojiPrevPage):
		return PagePrev
	case normalizeEmoji(EmojiNextPage):
		return PageNext
	case normalizeEmoji(EmojiDelete):
		return PageDelete
	default:
		return PageNone
	}
}

func normalizeEmoji(emoji string) string {
	return strings.TrimSuffix(emoji, "️")
}
