// Package sqlstore implements database.Store on an embedded SQLite file through gorm.
// It is used for self-hosted deployments without MongoDB and by the tests.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store is a gorm backed database.Store
type Store struct {
	db *gorm.DB
}

var _ database.Store = (*Store)(nil)

// slowQuery is the duration above which gorm reports a query
const slowQuery = 500 * time.Millisecond

// gormWriter forwards gorm log lines to the bot logger
type gormWriter struct {
	emit func(message, prefix string)
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.emit(fmt.Sprintf(format, args...), "SQLite")
}

// newGormLogger reports slow queries and real errors. Misses from First are expected
// on every new member and are not logged.
func newGormLogger(emit func(message, prefix string)) gormlogger.Interface {
	return gormlogger.New(gormWriter{emit: emit}, gormlogger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open opens (or creates) the SQLite database at path and migrates the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection also keeps ":memory:" shared
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.LevelConfig{},
		&models.LevelRole{},
		&models.MemberXp{},
		&models.OnboardingConfig{},
		&models.OnboardingMessage{},
		&models.OnboardingThread{},
		&models.SavedEmbed{},
		&models.Session{},
	); err != nil {
		return nil, fmt.Errorf("migración: %w", err)
	}

	logger.Success(fmt.Sprintf("Base de datos SQLite lista: %s", path), "DB")
	return &Store{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.ErrNotFound
	}
	return err
}

// Status returns the connection status line shown by /utils status
func (s *Store) Status(ctx context.Context) (string, bool) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return "🔴 | Desconectado", false
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "🔴 | Desconectado", false
	}
	return "🟢 | En linea (SQLite)", true
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ===== Level config =====

func (s *Store) GetLevelConfig(ctx context.Context, guildID string) (*models.LevelConfig, error) {
	var cfg models.LevelConfig
	if err := s.db.WithContext(ctx).First(&cfg, "guild_id = ?", guildID).Error; err != nil {
		return nil, notFound(err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func (s *Store) SaveLevelConfig(ctx context.Context, cfg *models.LevelConfig) error {
	cfg.Normalize()
	return s.db.WithContext(ctx).Save(cfg).Error
}

func (s *Store) ListLevelConfigs(ctx context.Context) ([]*models.LevelConfig, error) {
	var configs []*models.LevelConfig
	if err := s.db.WithContext(ctx).Find(&configs).Error; err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		cfg.Normalize()
	}
	return configs, nil
}

var roleOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "xp_required"}},
	{Column: clause.Column{Name: "order"}},
	{Column: clause.Column{Name: "role_id"}},
}}

func (s *Store) ListLevelRoles(ctx context.Context, guildID string) ([]models.LevelRole, error) {
	roles := make([]models.LevelRole, 0)
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order(roleOrder).Find(&roles).Error
	return roles, err
}

func (s *Store) SaveLevelRole(ctx context.Context, role *models.LevelRole) error {
	return s.db.WithContext(ctx).Save(role).Error
}

func (s *Store) DeleteLevelRole(ctx context.Context, guildID, roleID string) error {
	res := s.db.WithContext(ctx).Where("guild_id = ? AND role_id = ?", guildID, roleID).Delete(&models.LevelRole{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ===== Ledger =====

func (s *Store) GetMember(ctx context.Context, guildID, userID string) (*models.MemberXp, error) {
	var member models.MemberXp
	if err := s.db.WithContext(ctx).First(&member, "guild_id = ? AND user_id = ?", guildID, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

func (s *Store) GetOrCreateMember(ctx context.Context, guildID, userID string) (database.MemberResult, error) {
	var result database.MemberResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.MemberXp
		err := tx.First(&member, "guild_id = ? AND user_id = ?", guildID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			member = models.MemberXp{GuildID: guildID, UserID: userID}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
			result = database.MemberResult{Member: &member, Created: true}
			return nil
		}
		if err != nil {
			return err
		}
		result = database.MemberResult{Member: &member}
		return nil
	})
	return result, err
}

// AddXp reads and writes the total inside one transaction
func (s *Store) AddXp(ctx context.Context, guildID, userID string, delta int) (database.LedgerUpdate, error) {
	var update database.LedgerUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.MemberXp
		err := tx.First(&member, "guild_id = ? AND user_id = ?", guildID, userID).Error
		created := false
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			member = models.MemberXp{GuildID: guildID, UserID: userID}
		} else if err != nil {
			return err
		}

		oldXp := member.TotalXp
		member.TotalXp = database.ClampXp(oldXp, delta)

		if created {
			err = tx.Create(&member).Error
		} else {
			err = tx.Model(&models.MemberXp{}).
				Where("guild_id = ? AND user_id = ?", guildID, userID).
				Update("total_xp", member.TotalXp).Error
		}
		if err != nil {
			return err
		}

		update = database.LedgerUpdate{Member: &member, OldXp: oldXp, NewXp: member.TotalXp, Created: created}
		return nil
	})
	return update, err
}

func (s *Store) SetCurrentRole(ctx context.Context, guildID, userID, roleID string) error {
	return s.db.WithContext(ctx).Model(&models.MemberXp{}).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Update("current_role_id", roleID).Error
}

func (s *Store) SaveRateCounters(ctx context.Context, member *models.MemberXp) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MemberXp{}).
			Where("guild_id = ? AND user_id = ?", member.GuildID, member.UserID).
			Updates(map[string]interface{}{
				"hourly_xp":       member.HourlyXp,
				"daily_xp":        member.DailyXp,
				"last_hour_reset": member.LastHourReset,
				"last_day_reset":  member.LastDayReset,
				"last_message_at": member.LastMessageAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(member).Error
		}
		return nil
	})
}

func (s *Store) IncrementHelperCount(ctx context.Context, guildID, userID string, delta int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MemberXp{}).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			Update("monthly_helper_count", gorm.Expr("monthly_helper_count + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(&models.MemberXp{GuildID: guildID, UserID: userID, MonthlyHelperCount: delta}).Error
		}
		return nil
	})
}

func (s *Store) TopMembers(ctx context.Context, guildID string, limit, offset int) ([]models.MemberXp, error) {
	members := make([]models.MemberXp, 0)
	err := s.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("total_xp DESC").Order("user_id ASC").
		Limit(limit).Offset(offset).
		Find(&members).Error
	return members, err
}

func (s *Store) TopHelpers(ctx context.Context, guildID string, limit int) ([]models.MemberXp, error) {
	members := make([]models.MemberXp, 0)
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND monthly_helper_count > 0", guildID).
		Order("monthly_helper_count DESC").Order("user_id ASC").
		Limit(limit).
		Find(&members).Error
	return members, err
}

func (s *Store) ResetHelperCounts(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Model(&models.MemberXp{}).
		Where("guild_id = ?", guildID).
		Update("monthly_helper_count", 0).Error
}

func (s *Store) MemberRank(ctx context.Context, guildID, userID string) (int, error) {
	member, err := s.GetMember(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	err = s.db.WithContext(ctx).Model(&models.MemberXp{}).
		Where("guild_id = ? AND total_xp > ?", guildID, member.TotalXp).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// ===== Onboarding =====

func (s *Store) GetOnboardingConfig(ctx context.Context, guildID string) (*models.OnboardingConfig, error) {
	var cfg models.OnboardingConfig
	if err := s.db.WithContext(ctx).First(&cfg, "guild_id = ?", guildID).Error; err != nil {
		return nil, notFound(err)
	}
	if cfg.JoinRoleIDs == nil {
		cfg.JoinRoleIDs = []string{}
	}
	return &cfg, nil
}

func (s *Store) SaveOnboardingConfig(ctx context.Context, cfg *models.OnboardingConfig) error {
	return s.db.WithContext(ctx).Save(cfg).Error
}

func (s *Store) ListOnboardingMessages(ctx context.Context, guildID string) ([]models.OnboardingMessage, error) {
	messages := make([]models.OnboardingMessage, 0)
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("position ASC").Find(&messages).Error
	return messages, err
}

func (s *Store) ReplaceOnboardingMessages(ctx context.Context, guildID string, messages []models.OnboardingMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guild_id = ?", guildID).Delete(&models.OnboardingMessage{}).Error; err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}
		for i := range messages {
			messages[i].GuildID = guildID
		}
		return tx.Create(&messages).Error
	})
}

func (s *Store) SaveOnboardingThread(ctx context.Context, thread *models.OnboardingThread) error {
	// timestamps are stored as text, keep them in one zone so comparisons hold
	row := *thread
	row.DeleteAt = row.DeleteAt.UTC()
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) ListExpiredOnboardingThreads(ctx context.Context, before int64) ([]models.OnboardingThread, error) {
	threads := make([]models.OnboardingThread, 0)
	err := s.db.WithContext(ctx).Where("delete_at <= ?", time.UnixMilli(before).UTC()).Find(&threads).Error
	return threads, err
}

func (s *Store) DeleteOnboardingThread(ctx context.Context, threadID string) error {
	return s.db.WithContext(ctx).Delete(&models.OnboardingThread{}, "thread_id = ?", threadID).Error
}

// ===== Saved embeds =====

func (s *Store) ListEmbeds(ctx context.Context, guildID string) ([]models.SavedEmbed, error) {
	embeds := make([]models.SavedEmbed, 0)
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("name ASC").Find(&embeds).Error
	return embeds, err
}

func (s *Store) GetEmbed(ctx context.Context, guildID, id string) (*models.SavedEmbed, error) {
	var embed models.SavedEmbed
	if err := s.db.WithContext(ctx).First(&embed, "id = ? AND guild_id = ?", id, guildID).Error; err != nil {
		return nil, notFound(err)
	}
	return &embed, nil
}

func (s *Store) SaveEmbed(ctx context.Context, embed *models.SavedEmbed) error {
	return s.db.WithContext(ctx).Save(embed).Error
}

func (s *Store) DeleteEmbed(ctx context.Context, guildID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND guild_id = ?", id, guildID).Delete(&models.SavedEmbed{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ===== Sessions =====

func (s *Store) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "token = ?", token).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *Store) SaveSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Save(session).Error
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&models.Session{}, "token = ?", token).Error
}
