package leveling

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// IsBooster reports whether the member is currently boosting the guild
func IsBooster(m *discordgo.Member) bool {
	return m != nil && m.PremiumSince != nil
}

// BoostStarted reports a transition from not boosting to boosting
func BoostStarted(before, after *discordgo.Member) bool {
	return !IsBooster(before) && IsBooster(after)
}

// HandleBoostStart awards the one time boost bonus. It returns nil when the bonus is disabled.
func (e *Engine) HandleBoostStart(ctx context.Context, guild Guild, userID string) (*AwardResult, error) {
	cfg, err := e.Config(ctx, guild.ID())
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled || !cfg.Booster.Enabled || cfg.Booster.BoostBonusXp <= 0 {
		return nil, nil
	}
	return e.AwardXp(ctx, guild, userID, cfg.Booster.BoostBonusXp, SourceBooster)
}
