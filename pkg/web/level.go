package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*limit far from integer overflow
	maxPage = 10000
)

func (s *Server) getLevelConfig(c *gin.Context) {
	cfg, err := s.deps.Engine.Config(c.Request.Context(), c.Param("guildId"))
	if err != nil {
		failErr(c, err)
		return
	}
	cfg.Normalize()
	ok(c, http.StatusOK, cfg)
}

// putLevelConfig replaces the guild configuration. The monthly job bookkeeping is
// kept from the stored config; POST /level/monthly-helper is the only way to force it.
func (s *Server) putLevelConfig(c *gin.Context) {
	ctx := c.Request.Context()
	guildID := c.Param("guildId")

	current, err := s.deps.Engine.Config(ctx, guildID)
	if err != nil {
		failErr(c, err)
		return
	}

	var cfg models.LevelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	cfg.GuildID = guildID
	cfg.MonthlyHelper.LastRun = current.MonthlyHelper.LastRun
	cfg.MonthlyHelper.ForceRun = current.MonthlyHelper.ForceRun
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		failErr(c, err)
		return
	}
	if err := s.deps.Store.SaveLevelConfig(ctx, &cfg); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, &cfg)
}

type roleRequest struct {
	RoleID     string `json:"roleId"`
	XpRequired *int   `json:"xpRequired"`
	Order      *int   `json:"order"`
}

// checkThreshold rejects a threshold already used by another role of the guild
func checkThreshold(roles []models.LevelRole, roleID string, xp int) error {
	if xp < 0 {
		return fmt.Errorf("%w: xpRequired no puede ser negativo", errBadInput)
	}
	for _, r := range roles {
		if r.RoleID != roleID && r.XpRequired == xp {
			return fmt.Errorf("%w: el rol %s ya usa %d XP", errBadInput, r.RoleID, xp)
		}
	}
	return nil
}

func findRole(roles []models.LevelRole, roleID string) (models.LevelRole, bool) {
	for _, r := range roles {
		if r.RoleID == roleID {
			return r, true
		}
	}
	return models.LevelRole{}, false
}

func (s *Server) listLevelRoles(c *gin.Context) {
	roles, err := s.deps.Store.ListLevelRoles(c.Request.Context(), c.Param("guildId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, leveling.SortRoles(roles))
}

func (s *Server) createLevelRole(c *gin.Context) {
	ctx := c.Request.Context()
	guildID := c.Param("guildId")

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	if !isSnowflake(req.RoleID) {
		fail(c, http.StatusBadRequest, "roleId inválido")
		return
	}
	if req.XpRequired == nil {
		fail(c, http.StatusBadRequest, "xpRequired es obligatorio")
		return
	}

	roles, err := s.deps.Store.ListLevelRoles(ctx, guildID)
	if err != nil {
		failErr(c, err)
		return
	}
	if _, exists := findRole(roles, req.RoleID); exists {
		fail(c, http.StatusBadRequest, "El rol ya está configurado")
		return
	}
	if err := checkThreshold(roles, req.RoleID, *req.XpRequired); err != nil {
		failErr(c, err)
		return
	}

	role := models.LevelRole{GuildID: guildID, RoleID: req.RoleID, XpRequired: *req.XpRequired, Order: len(roles)}
	if req.Order != nil {
		role.Order = *req.Order
	}
	if err := s.deps.Store.SaveLevelRole(ctx, &role); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, role)
}

func (s *Server) updateLevelRole(c *gin.Context) {
	ctx := c.Request.Context()
	guildID, roleID := c.Param("guildId"), c.Param("roleId")

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}

	roles, err := s.deps.Store.ListLevelRoles(ctx, guildID)
	if err != nil {
		failErr(c, err)
		return
	}
	role, exists := findRole(roles, roleID)
	if !exists {
		fail(c, http.StatusNotFound, "Rol no configurado")
		return
	}
	if req.XpRequired != nil {
		if err := checkThreshold(roles, roleID, *req.XpRequired); err != nil {
			failErr(c, err)
			return
		}
		role.XpRequired = *req.XpRequired
	}
	if req.Order != nil {
		role.Order = *req.Order
	}

	if err := s.deps.Store.SaveLevelRole(ctx, &role); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, role)
}

func (s *Server) deleteLevelRole(c *gin.Context) {
	if err := s.deps.Store.DeleteLevelRole(c.Request.Context(), c.Param("guildId"), c.Param("roleId")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": c.Param("roleId")})
}

// LeaderboardEntry is a ledger row with its position in the guild
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	models.MemberXp
}

func (s *Server) leaderboard(c *gin.Context) {
	page := queryInt(c, "page", 1)
	if page > maxPage {
		fail(c, http.StatusBadRequest, fmt.Sprintf("page debe estar entre 1 y %d", maxPage))
		return
	}
	limit := queryInt(c, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	members, err := s.deps.Store.TopMembers(c.Request.Context(), c.Param("guildId"), limit, offset)
	if err != nil {
		failErr(c, err)
		return
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		entries = append(entries, LeaderboardEntry{Rank: offset + i + 1, MemberXp: m})
	}
	ok(c, http.StatusOK, gin.H{
		"page":    page,
		"limit":   limit,
		"members": entries,
	})
}

func (s *Server) leaderboardMember(c *gin.Context) {
	ctx := c.Request.Context()
	guildID, userID := c.Param("guildId"), c.Param("userId")

	member, err := s.deps.Store.GetMember(ctx, guildID, userID)
	if err != nil {
		failErr(c, err)
		return
	}
	rank, err := s.deps.Store.MemberRank(ctx, guildID, userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LeaderboardEntry{Rank: rank, MemberXp: *member})
}

type adjustRequest struct {
	Amount *int `json:"amount"`
}

// AdjustResult is returned by the manual XP adjustment
type AdjustResult struct {
	OldXp       int    `json:"oldXp"`
	NewXp       int    `json:"newXp"`
	RoleChanged bool   `json:"roleChanged"`
	Change      string `json:"change"`
}

// adjustMemberXp adds amount to the member through the award engine so roles and
// notifications follow. Negative amounts are clamped at zero by the ledger.
func (s *Server) adjustMemberXp(c *gin.Context) {
	userID := c.Param("userId")
	if !isSnowflake(userID) {
		fail(c, http.StatusBadRequest, "userId inválido")
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	if req.Amount == nil || *req.Amount == 0 {
		fail(c, http.StatusBadRequest, "amount debe ser un entero distinto de cero")
		return
	}

	// notifications outlive the request
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.deps.Engine.AwardXp(ctx, guildFrom(c), userID, *req.Amount, leveling.SourceDashboard)
	if err != nil {
		failErr(c, err)
		return
	}

	change := leveling.ChangeNone.String()
	if result.RoleChanged {
		change = result.Decision.Kind.String()
	}
	ok(c, http.StatusOK, AdjustResult{
		OldXp:       result.OldXp,
		NewXp:       result.NewXp,
		RoleChanged: result.RoleChanged,
		Change:      change,
	})
}

// forceMonthlyHelper schedules the monthly top helper announcement for the next poll
func (s *Server) forceMonthlyHelper(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := s.deps.Engine.Config(ctx, c.Param("guildId"))
	if err != nil {
		failErr(c, err)
		return
	}
	if !cfg.MonthlyHelper.Enabled {
		fail(c, http.StatusBadRequest, "El top mensual de ayudantes no está activado")
		return
	}

	leveling.ForceRun(cfg, s.now())
	if err := s.deps.Store.SaveLevelConfig(ctx, cfg); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cfg.MonthlyHelper)
}
