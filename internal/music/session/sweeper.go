package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const SweepInterval = 60 * time.Second

// Occupancy answers who is left in a voice channel. Backed by the
// gateway's member/voice-state cache.
type Occupancy interface {
	// HumanCount reports the number of non-bot members in the channel.
	HumanCount(guildID, channelID string) int
}

// Sweeper periodically reclaims sessions whose voice channel has no
// human occupants left. It only ever tears sessions down; it never
// creates one.
type Sweeper struct {
	reg      *Registry
	occ      Occupancy
	interval time.Duration
}

func NewSweeper(reg *Registry, occ Occupancy) *Sweeper {
	return &Sweeper{reg: reg, occ: occ, interval: SweepInterval}
}

// Run blocks until ctx is cancelled, sweeping on a fixed period.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.Sweep()
		}
	}
}

// Sweep runs one reclamation pass. Idempotent: sweeping an
// already-killed session is a no-op.
func (sw *Sweeper) Sweep() {
	for _, guildID := range sw.reg.GuildIDs() {
		s, ok := sw.reg.Get(guildID)
		if !ok {
			continue // reclaimed concurrently
		}
		channelID, connected := s.VoiceChannelID()
		if !connected {
			// Session without a voice connection: nothing to measure,
			// leave it for an explicit action to clean up.
			continue
		}
		if sw.occ.HumanCount(guildID, channelID) > 0 {
			continue
		}
		log.Info().Str("guild", guildID).Str("channel", channelID).
			Msg("voice channel empty, reclaiming session")
		sw.reg.Kill(guildID)
	}
}
