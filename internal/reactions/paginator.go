package reactions

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// RenderFunc produces the embed for one zero-based page.
type RenderFunc func(page int) *discordgo.MessageEmbed

// Paginator is a reaction-driven multi-page message. Only the initiator
// may delete it; page moves clamp to [0, maxPages-1] as no-ops at the
// bounds.
type Paginator struct {
	MessageID string
	ChannelID string
	AuthorID  string
	MaxPages  int
	Render    RenderFunc

	mu   sync.Mutex
	page int
}

func (p *Paginator) Key() string     { return p.MessageID }
func (p *Paginator) Channel() string { return p.ChannelID }

// Page returns the current zero-based page index.
func (p *Paginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// NextPage advances one page. Reports whether the page changed.
func (p *Paginator) NextPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page >= p.MaxPages-1 {
		return false
	}
	p.page++
	return true
}

// PreviousPage goes back one page. Reports whether the page changed.
func (p *Paginator) PreviousPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page <= 0 {
		return false
	}
	p.page--
	return true
}

// Embed renders the current page.
func (p *Paginator) Embed() *discordgo.MessageEmbed {
	return p.Render(p.Page())
}
