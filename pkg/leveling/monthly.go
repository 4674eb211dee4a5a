package leveling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthName returns the Spanish name of m
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

// MonthlyHelperJob announces and rewards the top helpers of each guild once a month
type MonthlyHelperJob struct {
	engine *Engine
	store  Store
	guilds GuildResolver
	now    Clock
}

// NewMonthlyHelperJob creates the job. A nil clock uses the engine clock.
func NewMonthlyHelperJob(engine *Engine, guilds GuildResolver, clock Clock) *MonthlyHelperJob {
	if clock == nil {
		clock = engine.now
	}
	return &MonthlyHelperJob{engine: engine, store: engine.store, guilds: guilds, now: clock}
}

// Due reports whether the job must fire for cfg at now
func Due(cfg *models.LevelConfig, now time.Time) bool {
	mh := cfg.MonthlyHelper
	if !mh.Enabled {
		return false
	}
	if mh.ForceRun {
		return true
	}
	now = now.UTC()
	last := mh.LastRun.UTC()
	if !mh.LastRun.IsZero() && last.Year() == now.Year() && last.Month() == now.Month() {
		return false
	}
	return now.Day() == scheduledDay(mh.DayOfMonth, now) && now.Hour() == mh.HourUTC
}

// scheduledDay clamps day to the last day of the month of t
func scheduledDay(day int, t time.Time) int {
	last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// previousMonth returns the last day of the month before t
func previousMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// ForceRun marks cfg so the next poll fires immediately
func ForceRun(cfg *models.LevelConfig, now time.Time) {
	now = now.UTC()
	cfg.MonthlyHelper.ForceRun = true
	cfg.MonthlyHelper.LastRun = previousMonth(now)
	cfg.MonthlyHelper.DayOfMonth = now.Day()
	cfg.MonthlyHelper.HourUTC = now.Hour()
}

// RunGuild fires the job for one guild when it is due and reports whether it ran
func (j *MonthlyHelperJob) RunGuild(ctx context.Context, guild Guild, cfg *models.LevelConfig) (bool, error) {
	now := j.now().UTC()
	if !Due(cfg, now) {
		return false, nil
	}

	top, err := j.store.TopHelpers(ctx, cfg.GuildID, 3)
	if err != nil {
		return false, err
	}

	// the announcement covers the month that just ended unless forced
	month := previousMonth(now).Month()
	if cfg.MonthlyHelper.ForceRun {
		month = now.Month()
	}

	// claim the run before paying so a failed award is never paid twice on the next poll
	if err := j.store.ResetHelperCounts(ctx, cfg.GuildID); err != nil {
		return false, err
	}
	cfg.MonthlyHelper.LastRun = now
	cfg.MonthlyHelper.ForceRun = false
	if err := j.store.SaveLevelConfig(ctx, cfg); err != nil {
		return false, err
	}

	var failed []error
	places := []string{"—", "—", "—"}
	for i, member := range top {
		places[i] = fmt.Sprintf("%s (%d)", mention(member.UserID), member.MonthlyHelperCount)
		if i >= len(cfg.MonthlyHelper.Rewards) || cfg.MonthlyHelper.Rewards[i] <= 0 {
			continue
		}
		if _, err := j.engine.AwardXp(ctx, guild, member.UserID, cfg.MonthlyHelper.Rewards[i], SourceMonthly); err != nil {
			logger.Error(fmt.Sprintf("No se pudo premiar a %s en %s: %v", member.UserID, cfg.GuildID, err), "MonthlyHelper")
			failed = append(failed, fmt.Errorf("premio de %s: %w", member.UserID, err))
		}
	}

	if len(top) > 0 {
		announced := j.engine.notifier.Notify(ctx, guild, cfg.MonthlyHelper.ChannelID, cfg.Templates.MonthlyHelper, map[string]string{
			"month":  MonthName(month),
			"first":  places[0],
			"second": places[1],
			"third":  places[2],
		})
		_ = Wait(announced)
	}

	if len(failed) > 0 {
		return true, errors.Join(failed...)
	}

	logger.Success(fmt.Sprintf("Top ayudantes de %s anunciado en %s", MonthName(month), cfg.GuildID), "MonthlyHelper")
	return true, nil
}

// RunAll checks every stored configuration. Errors are logged per guild.
func (j *MonthlyHelperJob) RunAll(ctx context.Context) {
	configs, err := j.store.ListLevelConfigs(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("No se pudieron cargar las configuraciones: %v", err), "MonthlyHelper")
		return
	}

	now := j.now()
	for _, cfg := range configs {
		if !Due(cfg, now) {
			continue
		}
		guild := j.guilds(cfg.GuildID)
		if guild == nil {
			continue
		}
		if _, err := j.RunGuild(ctx, guild, cfg); err != nil {
			logger.Error(fmt.Sprintf("Fallo el top mensual en %s: %v", cfg.GuildID, err), "MonthlyHelper")
		}
	}
}
