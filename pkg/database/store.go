package database

import (
	"context"
	"errors"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

var (
	ErrNotFound            = errors.New("registro no encontrado")
	ErrStoreNotInitialized = errors.New("store not initialized")
	ErrNotConnected        = errors.New("database not connected")
)

// MemberResult is the outcome of a get-or-create on the ledger.
// Created is true when the row did not exist before the call.
type MemberResult struct {
	Member  *models.MemberXp
	Created bool
}

// LedgerUpdate describes an atomic XP change applied to a member
type LedgerUpdate struct {
	Member  *models.MemberXp
	OldXp   int
	NewXp   int
	Created bool
}

// LevelStore persists level configuration and role thresholds
type LevelStore interface {
	GetLevelConfig(ctx context.Context, guildID string) (*models.LevelConfig, error)
	SaveLevelConfig(ctx context.Context, cfg *models.LevelConfig) error
	ListLevelConfigs(ctx context.Context) ([]*models.LevelConfig, error)
	// ListLevelRoles returns the roles of a guild sorted by XpRequired ascending
	ListLevelRoles(ctx context.Context, guildID string) ([]models.LevelRole, error)
	SaveLevelRole(ctx context.Context, role *models.LevelRole) error
	DeleteLevelRole(ctx context.Context, guildID, roleID string) error
}

// LedgerStore persists member XP rows
type LedgerStore interface {
	GetMember(ctx context.Context, guildID, userID string) (*models.MemberXp, error)
	GetOrCreateMember(ctx context.Context, guildID, userID string) (MemberResult, error)
	// AddXp applies delta atomically, clamping the total at zero
	AddXp(ctx context.Context, guildID, userID string, delta int) (LedgerUpdate, error)
	SetCurrentRole(ctx context.Context, guildID, userID, roleID string) error
	SaveRateCounters(ctx context.Context, member *models.MemberXp) error
	IncrementHelperCount(ctx context.Context, guildID, userID string, delta int) error
	TopMembers(ctx context.Context, guildID string, limit, offset int) ([]models.MemberXp, error)
	TopHelpers(ctx context.Context, guildID string, limit int) ([]models.MemberXp, error)
	ResetHelperCounts(ctx context.Context, guildID string) error
	MemberRank(ctx context.Context, guildID, userID string) (int, error)
}

// OnboardingStore persists onboarding configuration and tracked threads
type OnboardingStore interface {
	GetOnboardingConfig(ctx context.Context, guildID string) (*models.OnboardingConfig, error)
	SaveOnboardingConfig(ctx context.Context, cfg *models.OnboardingConfig) error
	// ListOnboardingMessages returns the messages of a guild sorted by Position
	ListOnboardingMessages(ctx context.Context, guildID string) ([]models.OnboardingMessage, error)
	ReplaceOnboardingMessages(ctx context.Context, guildID string, messages []models.OnboardingMessage) error
	SaveOnboardingThread(ctx context.Context, thread *models.OnboardingThread) error
	ListExpiredOnboardingThreads(ctx context.Context, before int64) ([]models.OnboardingThread, error)
	DeleteOnboardingThread(ctx context.Context, threadID string) error
}

// EmbedStore persists saved embed messages
type EmbedStore interface {
	ListEmbeds(ctx context.Context, guildID string) ([]models.SavedEmbed, error)
	GetEmbed(ctx context.Context, guildID, id string) (*models.SavedEmbed, error)
	SaveEmbed(ctx context.Context, embed *models.SavedEmbed) error
	DeleteEmbed(ctx context.Context, guildID, id string) error
}

// SessionStore persists dashboard sessions
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, token string) error
}

// Store is the full persistence contract used by the bot and the dashboard
type Store interface {
	LevelStore
	LedgerStore
	OnboardingStore
	EmbedStore
	SessionStore
	Status(ctx context.Context) (string, bool)
	Close() error
}

// ClampXp returns old+delta bounded below by zero
func ClampXp(old, delta int) int {
	if next := old + delta; next > 0 {
		return next
	}
	return 0
}
