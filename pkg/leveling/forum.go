package leveling

import (
	"context"
	"errors"
	"time"
)

// ForumHelperPrefix prefixes the custom ID of the helper picker shown when a thread is closed
const ForumHelperPrefix = "forum_helper:"

// ErrForumXpDisabled is returned when forum rewards are off or the forum is not tracked
var ErrForumXpDisabled = errors.New("la XP de foros no está habilitada para este canal")

// ForumClose describes a support thread being marked as resolved
type ForumClose struct {
	ThreadID  string
	ForumID   string
	OwnerID   string
	HelperID  string
	CreatedAt time.Time
	ClosedAt  time.Time
}

// ForumResult holds the awards of a forum resolution. Either may be nil.
type ForumResult struct {
	Owner       *AwardResult
	Helper      *AwardResult
	HelperBonus int
	Fast        bool
}

// ForumEnabled reports whether closing threads of forumID earns XP
func (e *Engine) ForumEnabled(ctx context.Context, guildID, forumID string) bool {
	cfg, err := e.Config(ctx, guildID)
	if err != nil || !cfg.Enabled || !cfg.ForumXp.Enabled {
		return false
	}
	return len(cfg.ForumXp.ChannelIDs) == 0 || contains(cfg.ForumXp.ChannelIDs, forumID)
}

// ResolveForumThread rewards the thread owner and, when one was picked, the helper.
// The helper earns the fast resolution bonus when the thread closed within the configured window.
func (e *Engine) ResolveForumThread(ctx context.Context, guild Guild, fc ForumClose) (*ForumResult, error) {
	if !e.ForumEnabled(ctx, guild.ID(), fc.ForumID) {
		return nil, ErrForumXpDisabled
	}
	cfg, err := e.Config(ctx, guild.ID())
	if err != nil {
		return nil, err
	}

	result := &ForumResult{}

	if fc.OwnerID != "" && cfg.ForumXp.XpOnClose > 0 {
		result.Owner, err = e.AwardXp(ctx, guild, fc.OwnerID, cfg.ForumXp.XpOnClose, SourceThread)
		if err != nil {
			return result, err
		}
	}

	if fc.HelperID == "" || fc.HelperID == fc.OwnerID {
		return result, nil
	}

	bonus := cfg.ForumXp.HelperBonus
	if cfg.ForumXp.FastResolutionMinutes > 0 && !fc.CreatedAt.IsZero() {
		window := time.Duration(cfg.ForumXp.FastResolutionMinutes) * time.Minute
		if fc.ClosedAt.Sub(fc.CreatedAt) <= window {
			result.Fast = true
			bonus += cfg.ForumXp.FastResolutionBonus
		}
	}
	result.HelperBonus = bonus

	if bonus > 0 {
		result.Helper, err = e.AwardXp(ctx, guild, fc.HelperID, bonus, SourceHelper)
		if err != nil {
			return result, err
		}
	}
	if err := e.store.IncrementHelperCount(ctx, guild.ID(), fc.HelperID, 1); err != nil {
		return result, err
	}
	return result, nil
}
