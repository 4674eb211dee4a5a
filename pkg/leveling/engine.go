// Package leveling implements the XP to role progression engine: the anti-spam gate,
// message caps, role resolution, role mutation and templated notifications.
package leveling

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

// Source identifies what produced an XP change
type Source string

const (
	SourceMessage   Source = "message"
	SourceThread    Source = "thread"
	SourceHelper    Source = "helper"
	SourceDashboard Source = "dashboard"
	SourceBooster   Source = "booster"
	SourceMonthly   Source = "monthly"
)

// Store is the persistence the engine needs
type Store interface {
	database.LevelStore
	database.LedgerStore
}

// XpEvent is published after every ledger change
type XpEvent struct {
	GuildID string    `json:"guildId"`
	UserID  string    `json:"userId"`
	Source  Source    `json:"source"`
	OldXp   int       `json:"oldXp"`
	NewXp   int       `json:"newXp"`
	RoleID  string    `json:"roleId,omitempty"`
	Change  string    `json:"change"`
	At      time.Time `json:"at"`
}

// Publisher receives XP events. Implementations must not block.
type Publisher interface {
	PublishXpEvent(event XpEvent)
}

// AwardResult describes an applied award
type AwardResult struct {
	OldXp       int
	NewXp       int
	Created     bool
	RoleChanged bool
	Decision    RoleDecision
	// Notifications are the pending sends started by the award
	Notifications []<-chan error
}

// Engine awards XP and keeps Discord roles in sync with the ledger
type Engine struct {
	store      Store
	gate       *Gate
	notifier   *Notifier
	now        Clock
	mu         sync.Mutex
	rng        *rand.Rand
	publishers []Publisher
}

// Options configures an Engine. Zero values fall back to real implementations.
type Options struct {
	Gate     *Gate
	Notifier *Notifier
	Clock    Clock
	Rand     *rand.Rand
}

// NewEngine creates an Engine on top of a store
func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:    store,
		gate:     opts.Gate,
		notifier: opts.Notifier,
		now:      opts.Clock,
		rng:      opts.Rand,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.gate == nil {
		e.gate = NewGate(e.now)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.notifier == nil {
		e.notifier = NewNotifier(rand.New(rand.NewSource(e.rng.Int63())), e.now)
	}
	return e
}

// AddPublisher registers a sink for XP events
func (e *Engine) AddPublisher(p Publisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publishers = append(e.publishers, p)
}

// Gate returns the anti-spam gate used by the message path
func (e *Engine) Gate() *Gate {
	return e.gate
}

// Notifier returns the notifier used for every announcement
func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

// Config returns the guild configuration or the defaults when none is stored
func (e *Engine) Config(ctx context.Context, guildID string) (*models.LevelConfig, error) {
	cfg, err := e.store.GetLevelConfig(ctx, guildID)
	if errors.Is(err, database.ErrNotFound) {
		return models.DefaultLevelConfig(guildID), nil
	}
	return cfg, err
}

// RandomAmount draws uniformly from [min, max]
func (e *Engine) RandomAmount(min, max int) int {
	if max <= min {
		return min
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.rng.Float64()*float64(max-min+1)) + min
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func roleMention(role *models.LevelRole) string {
	if role == nil {
		return "ninguno"
	}
	return "<@&" + role.RoleID + ">"
}

// AwardXp applies amount to the member ledger, then reconciles the member role.
// Only a failing ledger write fails the award; notification and role removal
// errors are logged.
func (e *Engine) AwardXp(ctx context.Context, guild Guild, userID string, amount int, source Source) (*AwardResult, error) {
	if guild == nil {
		return nil, errors.New("guild requerido")
	}
	guildID := guild.ID()

	cfg, err := e.Config(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("leer configuración: %w", err)
	}

	update, err := e.store.AddXp(ctx, guildID, userID, amount)
	if err != nil {
		logger.Error(fmt.Sprintf("No se pudo actualizar la XP de %s en %s: %v", userID, guildID, err), "Levels")
		return nil, err
	}

	result := &AwardResult{OldXp: update.OldXp, NewXp: update.NewXp, Created: update.Created}

	if cfg.LogChannelID != "" {
		result.Notifications = append(result.Notifications, e.notifier.Notify(ctx, guild, cfg.LogChannelID, cfg.Templates.Log, map[string]string{
			"user":   mention(userID),
			"oldXp":  strconv.Itoa(update.OldXp),
			"newXp":  strconv.Itoa(update.NewXp),
			"source": string(source),
		}))
	}

	roles, err := e.store.ListLevelRoles(ctx, guildID)
	if err != nil {
		return result, fmt.Errorf("leer roles de nivel: %w", err)
	}

	currentRoleID := ""
	if update.Member != nil {
		currentRoleID = update.Member.CurrentRoleID
	}
	result.Decision = ResolveRole(roles, currentRoleID, update.NewXp)

	if result.Decision.Changed() {
		changed, futures, err := e.applyDecision(ctx, guild, cfg, userID, currentRoleID, result.Decision)
		result.RoleChanged = changed
		result.Notifications = append(result.Notifications, futures...)
		if err != nil {
			return result, err
		}
	}

	e.publish(guildID, userID, source, result)
	return result, nil
}

// applyDecision adds the target role before removing the previous one so a failed
// removal never takes away the new role
func (e *Engine) applyDecision(ctx context.Context, guild Guild, cfg *models.LevelConfig, userID, currentRoleID string, d RoleDecision) (bool, []<-chan error, error) {
	guildID := guild.ID()
	var futures []<-chan error

	if d.Kind == ChangeLoss {
		if err := guild.RemoveRole(ctx, userID, currentRoleID); err != nil {
			logger.Warn(fmt.Sprintf("No se pudo quitar el rol %s a %s: %v", currentRoleID, userID, err), "Levels")
		}
		if err := e.store.SetCurrentRole(ctx, guildID, userID, ""); err != nil {
			return false, futures, err
		}
		futures = append(futures, e.notifier.Notify(ctx, guild, demotionChannel(cfg), cfg.Templates.RoleLoss, map[string]string{
			"user":    mention(userID),
			"oldRole": "<@&" + currentRoleID + ">",
			"role":    "<@&" + currentRoleID + ">",
		}))
		return true, futures, nil
	}

	if err := guild.AddRole(ctx, userID, d.Target.RoleID); err != nil {
		logger.Warn(fmt.Sprintf("No se pudo asignar el rol %s a %s: %v", d.Target.RoleID, userID, err), "Levels")
		return false, futures, nil
	}

	if cfg.AutoRemovePreviousRole && currentRoleID != "" {
		if err := guild.RemoveRole(ctx, userID, currentRoleID); err != nil {
			logger.Warn(fmt.Sprintf("No se pudo quitar el rol anterior %s a %s: %v", currentRoleID, userID, err), "Levels")
		}
	}

	if err := e.store.SetCurrentRole(ctx, guildID, userID, d.Target.RoleID); err != nil {
		return true, futures, err
	}

	oldRole := "ninguno"
	if currentRoleID != "" {
		oldRole = "<@&" + currentRoleID + ">"
	}
	vars := map[string]string{
		"user":    mention(userID),
		"role":    roleMention(d.Target),
		"newRole": roleMention(d.Target),
		"oldRole": oldRole,
	}

	if d.Kind == ChangePromotion {
		futures = append(futures, e.notifier.Notify(ctx, guild, cfg.CongratsChannelID, cfg.Templates.Promotion, vars))
	} else {
		futures = append(futures, e.notifier.Notify(ctx, guild, demotionChannel(cfg), cfg.Templates.Demotion, vars))
	}
	return true, futures, nil
}

func demotionChannel(cfg *models.LevelConfig) string {
	if cfg.DemotionChannelID != "" {
		return cfg.DemotionChannelID
	}
	return cfg.CongratsChannelID
}

func (e *Engine) publish(guildID, userID string, source Source, result *AwardResult) {
	e.mu.Lock()
	publishers := append([]Publisher(nil), e.publishers...)
	e.mu.Unlock()
	if len(publishers) == 0 {
		return
	}

	event := XpEvent{
		GuildID: guildID,
		UserID:  userID,
		Source:  source,
		OldXp:   result.OldXp,
		NewXp:   result.NewXp,
		Change:  ChangeNone.String(),
		At:      e.now().UTC(),
	}
	if result.RoleChanged {
		event.Change = result.Decision.Kind.String()
		if result.Decision.Target != nil {
			event.RoleID = result.Decision.Target.RoleID
		}
	}
	for _, p := range publishers {
		p.PublishXpEvent(event)
	}
}
