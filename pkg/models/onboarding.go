package models

import (
	"fmt"
	"time"
)

// OnboardingConfig configures the private welcome thread created for new members
type OnboardingConfig struct {
	GuildID       string   `bson:"guildId" json:"guildId" gorm:"primaryKey"`
	Enabled       bool     `bson:"enabled" json:"enabled"`
	ChannelID     string   `bson:"channelId" json:"channelId"`
	ThreadName    string   `bson:"threadName" json:"threadName"`
	JoinRoleIDs   []string `bson:"joinRoleIds" json:"joinRoleIds" gorm:"serializer:json"`
	TypingDelay   bool     `bson:"typingDelay" json:"typingDelay"`
	TypingDelayMs int      `bson:"typingDelayMs" json:"typingDelayMs"`
	RetentionDays int      `bson:"retentionDays" json:"retentionDays"` // 1 o 7
}

// DefaultOnboardingConfig returns a disabled onboarding configuration
func DefaultOnboardingConfig(guildID string) *OnboardingConfig {
	return &OnboardingConfig{
		GuildID:       guildID,
		ThreadName:    "Bienvenida {username}",
		JoinRoleIDs:   []string{},
		TypingDelayMs: 1500,
		RetentionDays: 7,
	}
}

// Retention returns how long a welcome thread is kept before cleanup
func (c *OnboardingConfig) Retention() time.Duration {
	if c.RetentionDays == 1 {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// RoleOption is a single selectable role in an onboarding menu
type RoleOption struct {
	RoleID      string `bson:"roleId" json:"roleId"`
	Label       string `bson:"label" json:"label"`
	Description string `bson:"description" json:"description"`
	Emoji       string `bson:"emoji" json:"emoji"`
}

// RoleMenu is a role selection menu attached to an onboarding message
type RoleMenu struct {
	Placeholder string       `bson:"placeholder" json:"placeholder"`
	MinValues   int          `bson:"minValues" json:"minValues"`
	MaxValues   int          `bson:"maxValues" json:"maxValues"`
	Options     []RoleOption `bson:"options" json:"options"`
}

// OnboardingMessage is one step of the welcome sequence, played back in Position order
type OnboardingMessage struct {
	ID               string    `bson:"_id" json:"id" gorm:"primaryKey"`
	GuildID          string    `bson:"guildId" json:"guildId" gorm:"index"`
	Position         int       `bson:"position" json:"position"`
	Content          string    `bson:"content" json:"content"`
	EmbedTitle       string    `bson:"embedTitle" json:"embedTitle"`
	EmbedDescription string    `bson:"embedDescription" json:"embedDescription"`
	RoleMenu         *RoleMenu `bson:"roleMenu,omitempty" json:"roleMenu,omitempty" gorm:"serializer:json"`
}

// OnboardingThread tracks a welcome thread until DeleteAt has passed
type OnboardingThread struct {
	ThreadID string    `bson:"_id" json:"threadId" gorm:"primaryKey"`
	GuildID  string    `bson:"guildId" json:"guildId" gorm:"index"`
	UserID   string    `bson:"userId" json:"userId"`
	DeleteAt time.Time `bson:"deleteAt" json:"deleteAt" gorm:"index"`
}

// Validate checks the onboarding configuration
func (c *OnboardingConfig) Validate() error {
	switch {
	case c.Enabled && c.ChannelID == "":
		return fmt.Errorf("%w: channelId es obligatorio para activar la bienvenida", ErrInvalidConfig)
	case c.RetentionDays != 1 && c.RetentionDays != 7:
		return fmt.Errorf("%w: retentionDays debe ser 1 o 7", ErrInvalidConfig)
	case c.TypingDelayMs < 0 || c.TypingDelayMs > 10000:
		return fmt.Errorf("%w: typingDelayMs fuera de rango", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the selection bounds of a role menu
func (m *RoleMenu) Validate() error {
	n := len(m.Options)
	switch {
	case n == 0 || n > 25:
		return fmt.Errorf("%w: un menú necesita entre 1 y 25 roles", ErrInvalidConfig)
	case m.MinValues < 0 || m.MaxValues < 0:
		return fmt.Errorf("%w: minValues y maxValues no pueden ser negativos", ErrInvalidConfig)
	case m.MaxValues > n:
		return fmt.Errorf("%w: maxValues supera el número de roles", ErrInvalidConfig)
	case m.MaxValues != 0 && m.MinValues > m.MaxValues:
		return fmt.Errorf("%w: minValues mayor que maxValues", ErrInvalidConfig)
	}
	for _, opt := range m.Options {
		if opt.RoleID == "" || opt.Label == "" {
			return fmt.Errorf("%w: cada opción necesita roleId y label", ErrInvalidConfig)
		}
	}
	return nil
}
