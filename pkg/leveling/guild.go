package leveling

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Guild is the subset of the Discord API the leveling engine needs for one guild
type Guild interface {
	ID() string
	Member(ctx context.Context, userID string) (*discordgo.Member, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// GuildResolver returns the Guild for an ID, or nil when the bot is not in it
type GuildResolver func(guildID string) Guild

// SessionGuild implements Guild over a discordgo session
type SessionGuild struct {
	session *discordgo.Session
	guildID string
}

// NewSessionGuild binds a session to a guild
func NewSessionGuild(s *discordgo.Session, guildID string) *SessionGuild {
	return &SessionGuild{session: s, guildID: guildID}
}

// SessionResolver returns a GuildResolver that only yields guilds present in the state cache
func SessionResolver(s *discordgo.Session) GuildResolver {
	return func(guildID string) Guild {
		if s == nil || guildID == "" {
			return nil
		}
		if s.StateEnabled && s.State != nil {
			if _, err := s.State.Guild(guildID); err != nil {
				return nil
			}
		}
		return NewSessionGuild(s, guildID)
	}
}

func (g *SessionGuild) ID() string {
	return g.guildID
}

func (g *SessionGuild) Member(ctx context.Context, userID string) (*discordgo.Member, error) {
	if g.session.StateEnabled && g.session.State != nil {
		if m, err := g.session.State.Member(g.guildID, userID); err == nil {
			return m, nil
		}
	}
	return g.session.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
}

func (g *SessionGuild) AddRole(ctx context.Context, userID, roleID string) error {
	return g.session.GuildMemberRoleAdd(g.guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (g *SessionGuild) RemoveRole(ctx context.Context, userID, roleID string) error {
	return g.session.GuildMemberRoleRemove(g.guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (g *SessionGuild) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := g.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}
