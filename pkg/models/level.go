package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a level configuration breaks one of its invariants
var ErrInvalidConfig = errors.New("configuración de niveles inválida")

// SimilaritySeverity controls how aggressively near-duplicate messages are ignored
type SimilaritySeverity string

const (
	SimilarityOff    SimilaritySeverity = "off"
	SimilarityLow    SimilaritySeverity = "low"
	SimilarityMedium SimilaritySeverity = "medium"
	SimilarityHigh   SimilaritySeverity = "high"
	SimilarityStrict SimilaritySeverity = "strict"
)

// Threshold returns the Jaccard similarity at which a message is considered spam.
// The second value is false when the severity never suppresses.
func (s SimilaritySeverity) Threshold() (float64, bool) {
	switch s {
	case SimilarityLow:
		return 0.9, true
	case SimilarityMedium:
		return 0.7, true
	case SimilarityHigh:
		return 0.5, true
	case SimilarityStrict:
		return 0.3, true
	default:
		return 0, false
	}
}

// Valid reports whether s is a known severity
func (s SimilaritySeverity) Valid() bool {
	switch s {
	case SimilarityOff, SimilarityLow, SimilarityMedium, SimilarityHigh, SimilarityStrict:
		return true
	}
	return false
}

// XpCap is an optional upper bound on XP earned from messages in a time bucket
type XpCap struct {
	Enabled bool `bson:"enabled" json:"enabled"`
	Value   int  `bson:"value" json:"value"`
}

// EmbedTemplate is a notification embed with optional alternate descriptions
type EmbedTemplate struct {
	Title                 string   `bson:"title" json:"title"`
	Description           string   `bson:"description" json:"description"`
	AlternateDescriptions []string `bson:"alternateDescriptions" json:"alternateDescriptions"`
}

// LevelTemplates groups every notification template of the leveling system
type LevelTemplates struct {
	Promotion     EmbedTemplate `bson:"promotion" json:"promotion"`
	Demotion      EmbedTemplate `bson:"demotion" json:"demotion"`
	RoleLoss      EmbedTemplate `bson:"roleLoss" json:"roleLoss"`
	Log           EmbedTemplate `bson:"log" json:"log"`
	MonthlyHelper EmbedTemplate `bson:"monthlyHelper" json:"monthlyHelper"`
}

// ForumXpSettings configures XP awarded when forum support threads are closed
type ForumXpSettings struct {
	Enabled               bool     `bson:"enabled" json:"enabled"`
	ChannelIDs            []string `bson:"channelIds" json:"channelIds" gorm:"serializer:json"`
	XpOnClose             int      `bson:"xpOnClose" json:"xpOnClose"`
	HelperBonus           int      `bson:"helperBonus" json:"helperBonus"`
	FastResolutionBonus   int      `bson:"fastResolutionBonus" json:"fastResolutionBonus"`
	FastResolutionMinutes int      `bson:"fastResolutionMinutes" json:"fastResolutionMinutes"`
}

// BoosterSettings configures the XP perks of server boosters
type BoosterSettings struct {
	Enabled      bool    `bson:"enabled" json:"enabled"`
	Multiplier   float64 `bson:"multiplier" json:"multiplier"`
	BoostBonusXp int     `bson:"boostBonusXp" json:"boostBonusXp"`
}

// MonthlyHelperSettings configures the monthly top helper announcement
type MonthlyHelperSettings struct {
	Enabled    bool      `bson:"enabled" json:"enabled"`
	ChannelID  string    `bson:"channelId" json:"channelId"`
	// DayOfMonth is 1..31; in shorter months 29-31 fire on the last day
	DayOfMonth int       `bson:"dayOfMonth" json:"dayOfMonth"`
	HourUTC    int       `bson:"hourUtc" json:"hourUtc"`
	Rewards    []int     `bson:"rewards" json:"rewards" gorm:"serializer:json"`
	LastRun    time.Time `bson:"lastRun" json:"lastRun"`
	ForceRun   bool      `bson:"forceRun" json:"forceRun"`
}

// LevelConfig is the per-guild configuration of the leveling system
type LevelConfig struct {
	GuildID                string                `bson:"guildId" json:"guildId" gorm:"primaryKey"`
	Enabled                bool                  `bson:"enabled" json:"enabled"`
	MinXpPerMessage        int                   `bson:"minXpPerMessage" json:"minXpPerMessage"`
	MaxXpPerMessage        int                   `bson:"maxXpPerMessage" json:"maxXpPerMessage"`
	CooldownSeconds        int                   `bson:"cooldownSeconds" json:"cooldownSeconds"`
	HourlyCap              XpCap                 `bson:"hourlyCap" json:"hourlyCap" gorm:"embedded;embeddedPrefix:hourly_cap_"`
	DailyCap               XpCap                 `bson:"dailyCap" json:"dailyCap" gorm:"embedded;embeddedPrefix:daily_cap_"`
	MinMessageLength       int                   `bson:"minMessageLength" json:"minMessageLength"`
	SimilaritySeverity     SimilaritySeverity    `bson:"similaritySeverity" json:"similaritySeverity"`
	ChannelWhitelist       []string              `bson:"channelWhitelist" json:"channelWhitelist" gorm:"serializer:json"`
	ForumXp                ForumXpSettings       `bson:"forumXp" json:"forumXp" gorm:"embedded;embeddedPrefix:forum_"`
	AutoRemovePreviousRole bool                  `bson:"autoRemovePreviousRole" json:"autoRemovePreviousRole"`
	LogChannelID           string                `bson:"logChannelId" json:"logChannelId"`
	CongratsChannelID      string                `bson:"congratsChannelId" json:"congratsChannelId"`
	DemotionChannelID      string                `bson:"demotionChannelId" json:"demotionChannelId"`
	Templates              LevelTemplates        `bson:"templates" json:"templates" gorm:"serializer:json"`
	Booster                BoosterSettings       `bson:"booster" json:"booster" gorm:"embedded;embeddedPrefix:booster_"`
	MonthlyHelper          MonthlyHelperSettings `bson:"monthlyHelper" json:"monthlyHelper" gorm:"embedded;embeddedPrefix:monthly_helper_"`
}

// DefaultLevelConfig returns the configuration a guild starts with
func DefaultLevelConfig(guildID string) *LevelConfig {
	return &LevelConfig{
		GuildID:            guildID,
		Enabled:            true,
		MinXpPerMessage:    15,
		MaxXpPerMessage:    25,
		CooldownSeconds:    60,
		MinMessageLength:   3,
		SimilaritySeverity: SimilarityMedium,
		ChannelWhitelist:   []string{},
		ForumXp: ForumXpSettings{
			ChannelIDs:            []string{},
			XpOnClose:             20,
			HelperBonus:           50,
			FastResolutionBonus:   25,
			FastResolutionMinutes: 60,
		},
		AutoRemovePreviousRole: true,
		Templates: LevelTemplates{
			Promotion: EmbedTemplate{
				Title:                 "🎉 ¡Nuevo rol!",
				Description:           "{user} ha subido a {role}. ¡Felicidades!",
				AlternateDescriptions: []string{},
			},
			Demotion: EmbedTemplate{
				Title:                 "📉 Cambio de rol",
				Description:           "{user} ha pasado de {oldRole} a {newRole}.",
				AlternateDescriptions: []string{},
			},
			RoleLoss: EmbedTemplate{
				Title:                 "📉 Rol perdido",
				Description:           "{user} ya no tiene el rol {oldRole}.",
				AlternateDescriptions: []string{},
			},
			Log: EmbedTemplate{
				Title:                 "📝 XP actualizada",
				Description:           "{user}: {oldXp} → {newXp} XP ({source})",
				AlternateDescriptions: []string{},
			},
			MonthlyHelper: EmbedTemplate{
				Title:                 "🏆 Top ayudantes de {month}",
				Description:           "🥇 {first}\n🥈 {second}\n🥉 {third}",
				AlternateDescriptions: []string{},
			},
		},
		Booster: BoosterSettings{
			Multiplier: 1.5,
		},
		MonthlyHelper: MonthlyHelperSettings{
			DayOfMonth: 1,
			HourUTC:    12,
			Rewards:    []int{500, 300, 150},
		},
	}
}

// Normalize replaces nil collections with empty ones so the config serializes consistently
func (c *LevelConfig) Normalize() {
	if c.ChannelWhitelist == nil {
		c.ChannelWhitelist = []string{}
	}
	if c.ForumXp.ChannelIDs == nil {
		c.ForumXp.ChannelIDs = []string{}
	}
	if c.MonthlyHelper.Rewards == nil {
		c.MonthlyHelper.Rewards = []int{}
	}
	for _, tpl := range []*EmbedTemplate{
		&c.Templates.Promotion,
		&c.Templates.Demotion,
		&c.Templates.RoleLoss,
		&c.Templates.Log,
		&c.Templates.MonthlyHelper,
	} {
		if tpl.AlternateDescriptions == nil {
			tpl.AlternateDescriptions = []string{}
		}
	}
}

// Validate checks the invariants of the configuration
func (c *LevelConfig) Validate() error {
	switch {
	case c.MinXpPerMessage < 0 || c.MaxXpPerMessage < 0:
		return fmt.Errorf("%w: la XP por mensaje no puede ser negativa", ErrInvalidConfig)
	case c.MinXpPerMessage > c.MaxXpPerMessage:
		return fmt.Errorf("%w: minXpPerMessage debe ser menor o igual que maxXpPerMessage", ErrInvalidConfig)
	case c.CooldownSeconds < 0 || c.MinMessageLength < 0:
		return fmt.Errorf("%w: cooldown y longitud mínima no pueden ser negativos", ErrInvalidConfig)
	case c.HourlyCap.Value < 0 || c.DailyCap.Value < 0:
		return fmt.Errorf("%w: los límites de XP no pueden ser negativos", ErrInvalidConfig)
	case c.SimilaritySeverity != "" && !c.SimilaritySeverity.Valid():
		return fmt.Errorf("%w: severidad desconocida %q", ErrInvalidConfig, c.SimilaritySeverity)
	case c.ForumXp.XpOnClose < 0 || c.ForumXp.HelperBonus < 0 || c.ForumXp.FastResolutionBonus < 0 || c.ForumXp.FastResolutionMinutes < 0:
		return fmt.Errorf("%w: los valores de XP de foros no pueden ser negativos", ErrInvalidConfig)
	case c.Booster.Multiplier < 0 || c.Booster.BoostBonusXp < 0:
		return fmt.Errorf("%w: los valores de boosters no pueden ser negativos", ErrInvalidConfig)
	case c.MonthlyHelper.DayOfMonth < 0 || c.MonthlyHelper.DayOfMonth > 31:
		return fmt.Errorf("%w: dayOfMonth fuera de rango", ErrInvalidConfig)
	case c.MonthlyHelper.Enabled && c.MonthlyHelper.DayOfMonth == 0:
		return fmt.Errorf("%w: dayOfMonth debe estar entre 1 y 31", ErrInvalidConfig)
	case c.MonthlyHelper.HourUTC < 0 || c.MonthlyHelper.HourUTC > 23:
		return fmt.Errorf("%w: hourUtc fuera de rango", ErrInvalidConfig)
	}
	for _, reward := range c.MonthlyHelper.Rewards {
		if reward < 0 {
			return fmt.Errorf("%w: las recompensas mensuales no pueden ser negativas", ErrInvalidConfig)
		}
	}
	return nil
}

// LevelRole is a Discord role granted once a member reaches XpRequired
type LevelRole struct {
	GuildID    string `bson:"guildId" json:"guildId" gorm:"primaryKey"`
	RoleID     string `bson:"roleId" json:"roleId" gorm:"primaryKey"`
	XpRequired int    `bson:"xpRequired" json:"xpRequired"`
	Order      int    `bson:"order" json:"order"`
}

// MemberXp is the ledger row of a member inside a guild
type MemberXp struct {
	GuildID            string    `bson:"guildId" json:"guildId" gorm:"primaryKey"`
	UserID             string    `bson:"userId" json:"userId" gorm:"primaryKey"`
	TotalXp            int       `bson:"totalXp" json:"totalXp"`
	CurrentRoleID      string    `bson:"currentRoleId" json:"currentRoleId"`
	HourlyXp           int       `bson:"hourlyXp" json:"hourlyXp"`
	DailyXp            int       `bson:"dailyXp" json:"dailyXp"`
	LastHourReset      time.Time `bson:"lastHourReset" json:"lastHourReset"`
	LastDayReset       time.Time `bson:"lastDayReset" json:"lastDayReset"`
	LastMessageAt      time.Time `bson:"lastMessageAt" json:"lastMessageAt"`
	MonthlyHelperCount int       `bson:"monthlyHelperCount" json:"monthlyHelperCount"`
}
