package onboarding

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Discord is the subset of the Discord API used by onboarding
type Discord interface {
	CreatePrivateThread(ctx context.Context, channelID, name string) (string, error)
	AddThreadMember(ctx context.Context, threadID, userID string) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	Typing(ctx context.Context, channelID string) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// IsNotFound reports whether err is a Discord 404 (the resource is already gone)
func IsNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// SessionDiscord implements Discord over a discordgo session
type SessionDiscord struct {
	Session *discordgo.Session
}

func (d SessionDiscord) CreatePrivateThread(ctx context.Context, channelID, name string) (string, error) {
	thread, err := d.Session.ThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 10080,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
		Invitable:           false,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (d SessionDiscord) AddThreadMember(ctx context.Context, threadID, userID string) error {
	return d.Session.ThreadMemberAdd(threadID, userID, discordgo.WithContext(ctx))
}

func (d SessionDiscord) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return d.Session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (d SessionDiscord) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return d.Session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (d SessionDiscord) Typing(ctx context.Context, channelID string) error {
	return d.Session.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

func (d SessionDiscord) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	_, err := d.Session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return err
}

func (d SessionDiscord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.Session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}
