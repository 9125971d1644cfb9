package discord

import (
	"github.com/bwmarrin/discordgo"

	"radiobot/internal/storage"
)

// DJAuth answers playback-permission checks against the guild's stored
// DJ role. A guild without a configured role treats everyone as a DJ.
// Administrators and the guild owner always pass.
type DJAuth struct {
	dg    *discordgo.Session
	store *storage.Storage
}

func NewDJAuth(dg *discordgo.Session, store *storage.Storage) *DJAuth {
	return &DJAuth{dg: dg, store: store}
}

func (a *DJAuth) IsPrivileged(userID, guildID string) bool {
	roleID, err := a.store.GetDJRole(guildID)
	if err != nil || roleID == "" {
		return true
	}

	member, err := a.dg.State.Member(guildID, userID)
	if err != nil || member == nil {
		member, err = a.dg.GuildMember(guildID, userID)
		if err != nil || member == nil {
			return false
		}
	}

	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return isAdministrator(a.dg, guildID, member)
}

// isAdministrator reports whether a member owns the guild or carries a
// role with administrator permission.
func isAdministrator(s *discordgo.Session, guildID string, member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}

	guild, err := s.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, err = s.Guild(guildID)
		if err != nil || guild == nil {
			return false
		}
	}

	if member.User.ID == guild.OwnerID {
		return true
	}
	for _, roleID := range member.Roles {
		if role, _ := s.State.Role(guild.ID, roleID); role != nil {
			if role.Permissions&discordgo.PermissionAdministrator != 0 {
				return true
			}
		}
	}
	return false
}
