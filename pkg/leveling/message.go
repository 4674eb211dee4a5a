package leveling

import (
	"context"
	"fmt"
	"math"

	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
)

// MessageInput is a guild message candidate for XP
type MessageInput struct {
	UserID    string
	ChannelID string
	Content   string
	Booster   bool
}

// ProcessMessage runs the message path: gate, random amount, booster multiplier, caps and award.
// It returns nil without error when the message earns nothing.
func (e *Engine) ProcessMessage(ctx context.Context, guild Guild, msg MessageInput) (*AwardResult, error) {
	guildID := guild.ID()

	cfg, err := e.Config(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	if e.gate.ShouldSuppress(guildID, msg.UserID, msg.ChannelID, msg.Content, cfg) {
		return nil, nil
	}

	amount := e.RandomAmount(cfg.MinXpPerMessage, cfg.MaxXpPerMessage)
	if msg.Booster && cfg.Booster.Enabled && cfg.Booster.Multiplier > 0 {
		amount = int(math.Round(float64(amount) * cfg.Booster.Multiplier))
	}

	got, err := e.store.GetOrCreateMember(ctx, guildID, msg.UserID)
	if err != nil {
		return nil, err
	}
	member := got.Member

	allowed := ApplyCaps(member, cfg, e.now(), amount)
	if allowed == 0 {
		logger.Debug(fmt.Sprintf("Límite de XP alcanzado para %s en %s", msg.UserID, guildID), "Levels")
		return nil, nil
	}

	if err := e.store.SaveRateCounters(ctx, member); err != nil {
		return nil, err
	}

	return e.AwardXp(ctx, guild, msg.UserID, allowed, SourceMessage)
}
