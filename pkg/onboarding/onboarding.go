// Package onboarding creates the private welcome thread of new members, plays back the
// configured welcome messages and deletes the thread once its retention has passed.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

// RoleMenuPrefix prefixes the custom ID of onboarding role menus
const RoleMenuPrefix = "onboarding_roles:"

const maxThreadName = 100

// Service runs onboarding for every guild
type Service struct {
	store   database.OnboardingStore
	discord Discord
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewService creates a Service
func NewService(store database.OnboardingStore, discord Discord) *Service {
	return &Service{
		store:   store,
		discord: discord,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config returns the stored configuration or a disabled default
func (s *Service) Config(ctx context.Context, guildID string) (*models.OnboardingConfig, error) {
	cfg, err := s.store.GetOnboardingConfig(ctx, guildID)
	if errors.Is(err, database.ErrNotFound) {
		return models.DefaultOnboardingConfig(guildID), nil
	}
	return cfg, err
}

// Member is the joining user
type Member struct {
	GuildID   string
	GuildName string
	UserID    string
	Username  string
}

func (m Member) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{user}", "<@"+m.UserID+">",
		"{username}", m.Username,
		"{server}", m.GuildName,
	)
}

// ThreadName renders the configured thread name for m, trimmed to the Discord limit
func ThreadName(pattern string, m Member) string {
	name := strings.TrimSpace(m.replacer().Replace(pattern))
	if name == "" {
		name = m.Username
	}
	if r := []rune(name); len(r) > maxThreadName {
		name = string(r[:maxThreadName])
	}
	return name
}

// Welcome creates the welcome thread of m and plays back the messages.
// It returns nil, nil when onboarding is disabled for the guild.
func (s *Service) Welcome(ctx context.Context, m Member) (*models.OnboardingThread, error) {
	cfg, err := s.Config(ctx, m.GuildID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled || cfg.ChannelID == "" {
		return nil, nil
	}

	threadID, err := s.discord.CreatePrivateThread(ctx, cfg.ChannelID, ThreadName(cfg.ThreadName, m))
	if err != nil {
		return nil, fmt.Errorf("crear hilo de bienvenida: %w", err)
	}

	record := &models.OnboardingThread{
		ThreadID: threadID,
		GuildID:  m.GuildID,
		UserID:   m.UserID,
		DeleteAt: s.now().Add(cfg.Retention()).UTC(),
	}
	// tracked before playback so cleanup still happens if a send fails
	if err := s.store.SaveOnboardingThread(ctx, record); err != nil {
		return nil, err
	}

	if err := s.discord.AddThreadMember(ctx, threadID, m.UserID); err != nil {
		logger.Warn(fmt.Sprintf("No se pudo añadir a %s al hilo %s: %v", m.UserID, threadID, err), "Onboarding")
	}

	for _, roleID := range cfg.JoinRoleIDs {
		if err := s.discord.AddRole(ctx, m.GuildID, m.UserID, roleID); err != nil {
			logger.Warn(fmt.Sprintf("No se pudo asignar el rol de entrada %s a %s: %v", roleID, m.UserID, err), "Onboarding")
		}
	}

	messages, err := s.store.ListOnboardingMessages(ctx, m.GuildID)
	if err != nil {
		return record, err
	}

	rep := m.replacer()
	for _, msg := range messages {
		if cfg.TypingDelay && cfg.TypingDelayMs > 0 {
			_ = s.discord.Typing(ctx, threadID)
			if err := s.sleep(ctx, time.Duration(cfg.TypingDelayMs)*time.Millisecond); err != nil {
				return record, err
			}
		}
		if err := s.discord.Send(ctx, threadID, BuildMessage(msg, rep)); err != nil {
			logger.Warn(fmt.Sprintf("No se pudo enviar el mensaje %s en %s: %v", msg.ID, threadID, err), "Onboarding")
		}
	}

	logger.Info(fmt.Sprintf("Hilo de bienvenida %s creado para %s", threadID, m.Username), "Onboarding")
	return record, nil
}

// BuildMessage renders an onboarding message with its optional embed and role menu
func BuildMessage(msg models.OnboardingMessage, rep *strings.Replacer) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: rep.Replace(msg.Content)}

	if msg.EmbedTitle != "" || msg.EmbedDescription != "" {
		send.Embeds = []*discordgo.MessageEmbed{{
			Title:       rep.Replace(msg.EmbedTitle),
			Description: rep.Replace(msg.EmbedDescription),
			Color:       0xBAE1FF,
		}}
	}

	if menu := msg.RoleMenu; menu != nil && len(menu.Options) > 0 {
		options := make([]discordgo.SelectMenuOption, 0, len(menu.Options))
		for _, opt := range menu.Options {
			o := discordgo.SelectMenuOption{
				Label:       opt.Label,
				Value:       opt.RoleID,
				Description: opt.Description,
			}
			if opt.Emoji != "" {
				o.Emoji = &discordgo.ComponentEmoji{Name: opt.Emoji}
			}
			options = append(options, o)
		}

		minValues := menu.MinValues
		maxValues := menu.MaxValues
		if maxValues <= 0 || maxValues > len(options) {
			maxValues = len(options)
		}
		if minValues > maxValues {
			minValues = maxValues
		}

		send.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    RoleMenuPrefix + msg.ID,
					Placeholder: menu.Placeholder,
					MinValues:   &minValues,
					MaxValues:   maxValues,
					Options:     options,
				},
			}},
		}
	}
	return send
}

// RoleSelection is the result of applying a role menu choice
type RoleSelection struct {
	Added   []string
	Removed []string
}

// ApplyRoleSelection gives the member the selected roles of the menu attached to messageID
// and removes the menu roles left unselected. Values outside the menu are ignored.
func (s *Service) ApplyRoleSelection(ctx context.Context, guildID, userID, messageID string, selected []string) (*RoleSelection, error) {
	messages, err := s.store.ListOnboardingMessages(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var menu *models.RoleMenu
	for _, msg := range messages {
		if msg.ID == messageID {
			menu = msg.RoleMenu
			break
		}
	}
	if menu == nil {
		return nil, database.ErrNotFound
	}

	chosen := make(map[string]bool, len(selected))
	for _, id := range selected {
		chosen[id] = true
	}

	result := &RoleSelection{}
	for _, opt := range menu.Options {
		if chosen[opt.RoleID] {
			if err := s.discord.AddRole(ctx, guildID, userID, opt.RoleID); err != nil {
				logger.Warn(fmt.Sprintf("No se pudo asignar %s a %s: %v", opt.RoleID, userID, err), "Onboarding")
				continue
			}
			result.Added = append(result.Added, opt.RoleID)
			continue
		}
		if err := s.discord.RemoveRole(ctx, guildID, userID, opt.RoleID); err != nil {
			logger.Warn(fmt.Sprintf("No se pudo quitar %s a %s: %v", opt.RoleID, userID, err), "Onboarding")
			continue
		}
		result.Removed = append(result.Removed, opt.RoleID)
	}
	return result, nil
}

// Cleanup deletes the threads whose retention has passed. The tracking record is removed
// even when the Discord delete fails. It returns how many records were removed.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredOnboardingThreads(ctx, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, thread := range expired {
		if err := s.discord.DeleteChannel(ctx, thread.ThreadID); err != nil && !IsNotFound(err) {
			logger.Warn(fmt.Sprintf("No se pudo borrar el hilo %s: %v", thread.ThreadID, err), "Onboarding")
		}
		if err := s.store.DeleteOnboardingThread(ctx, thread.ThreadID); err != nil {
			logger.Error(fmt.Sprintf("No se pudo borrar el registro del hilo %s: %v", thread.ThreadID, err), "Onboarding")
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info(fmt.Sprintf("%d hilos de bienvenida eliminados", removed), "Onboarding")
	}
	return removed, nil
}
