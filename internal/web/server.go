// Package web serves the admin HTTP surface: liveness, bot info, the
// live playback sessions and a settings-cache drop endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"radiobot/internal/music/session"
	"radiobot/internal/storage"
)

// Bot is the slice of the running bot the admin surface reads from.
type Bot interface {
	Session() *discordgo.Session
	Sessions() *session.Registry
}

type Server struct {
	bot   Bot
	store *storage.Storage
}

func NewServer(bot Bot, store *storage.Storage) *Server {
	return &Server{bot: bot, store: store}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/info", s.handleInfo)
	r.GET("/invite", s.handleInvite)
	r.GET("/shards", s.handleShards)
	r.GET("/sessions", s.handleSessions)
	r.GET("/guild/:id/history", s.handleHistory)
	r.POST("/guild/:id/uncache", s.handleUncache)
	return r
}

// Run serves the admin API until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("admin server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInfo(c *gin.Context) {
	dg := s.bot.Session()

	var username, userID string
	if dg.State.User != nil {
		username = dg.State.User.Username
		userID = dg.State.User.ID
	}

	c.JSON(http.StatusOK, gin.H{
		"bot":           username,
		"bot_id":        userID,
		"guilds":        len(dg.State.Guilds),
		"stored_guilds": len(s.store.GuildIDs()),
		"sessions":      s.bot.Sessions().Count(),
	})
}

// Permissions baked into the invite link: text control surface plus
// voice playback.
const invitePermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionManageMessages |
	discordgo.PermissionAddReactions |
	discordgo.PermissionEmbedLinks |
	discordgo.PermissionVoiceConnect |
	discordgo.PermissionVoiceSpeak

func (s *Server) handleInvite(c *gin.Context) {
	dg := s.bot.Session()
	if dg.State.User == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot not connected yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invite": fmt.Sprintf(
			"https://discord.com/api/oauth2/authorize?client_id=%s&permissions=%d&scope=bot%%20applications.commands",
			dg.State.User.ID, invitePermissions),
	})
}

func (s *Server) handleShards(c *gin.Context) {
	dg := s.bot.Session()
	c.JSON(http.StatusOK, gin.H{
		"shard_id":    dg.ShardID,
		"shard_count": dg.ShardCount,
		"guilds":      len(dg.State.Guilds),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	reg := s.bot.Sessions()

	list := make([]gin.H, 0)
	for _, guildID := range reg.GuildIDs() {
		sess, ok := reg.Get(guildID)
		if !ok {
			continue
		}
		entry := gin.H{
			"guild":  guildID,
			"state":  sess.Scheduler().State().String(),
			"queue":  sess.Scheduler().Len(),
			"volume": sess.Volume(),
		}
		if channelID, connected := sess.VoiceChannelID(); connected {
			entry["voice_channel"] = channelID
		}
		if cur, ok := sess.Scheduler().Current(); ok {
			entry["track"] = cur.Track.Title
		}
		list = append(list, entry)
	}

	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

// handleHistory returns the recorded command invocations for a guild,
// oldest first.
func (s *Server) handleHistory(c *gin.Context) {
	guildID := c.Param("id")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild id required"})
		return
	}

	history, err := s.store.FetchCommandHistory(guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guild": guildID, "history": history})
}

// handleUncache drops a guild's stored settings so the next command
// rereads defaults.
func (s *Server) handleUncache(c *gin.Context) {
	guildID := c.Param("id")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild id required"})
		return
	}
	s.store.Uncache(guildID)
	c.JSON(http.StatusOK, gin.H{"uncached": guildID})
}
