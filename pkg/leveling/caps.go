package leveling

import (
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

// ApplyCaps resets the hourly and daily buckets of member when a wall-clock boundary has
// passed, then returns how much of amount can be awarded. A zero result means an enabled
// cap is already reached. The member counters are updated in place with the allowed amount.
func ApplyCaps(member *models.MemberXp, cfg *models.LevelConfig, now time.Time, amount int) int {
	now = now.UTC()

	if member.LastHourReset.IsZero() || now.Truncate(time.Hour).After(member.LastHourReset.UTC().Truncate(time.Hour)) {
		member.HourlyXp = 0
		member.LastHourReset = now
	}
	if member.LastDayReset.IsZero() || startOfDay(now).After(startOfDay(member.LastDayReset.UTC())) {
		member.DailyXp = 0
		member.LastDayReset = now
	}

	allowed := amount
	if cfg.HourlyCap.Enabled {
		allowed = minInt(allowed, cfg.HourlyCap.Value-member.HourlyXp)
	}
	if cfg.DailyCap.Enabled {
		allowed = minInt(allowed, cfg.DailyCap.Value-member.DailyXp)
	}
	if allowed <= 0 {
		return 0
	}

	member.HourlyXp += allowed
	member.DailyXp += allowed
	member.LastMessageAt = now
	return allowed
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
