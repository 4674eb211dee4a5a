// Package web provides API routes for the web server.
package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/PancyStudios/PancyCommunityGo/pkg/config"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/gin-gonic/gin"
)

var errBadInput = errors.New("solicitud inválida")

// SetupAPIRoutes sets up the API routes
func SetupAPIRoutes(s *Server) {
	api := s.engine.Group("/api")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/health", healthHandler)

		auth := api.Group("/auth")
		auth.GET("/login", s.loginHandler)
		auth.GET("/callback", s.callbackHandler)
		auth.POST("/logout", s.requireSession(), s.logoutHandler)

		authed := api.Group("", s.requireSession())
		authed.GET("/me", s.meHandler)
		authed.GET("/guilds", s.guildsHandler)

		guild := authed.Group("/guilds/:guildId", s.requireGuild())

		guild.GET("/level", s.getLevelConfig)
		guild.PUT("/level", s.putLevelConfig)
		guild.GET("/level/roles", s.listLevelRoles)
		guild.POST("/level/roles", s.createLevelRole)
		guild.PUT("/level/roles/:roleId", s.updateLevelRole)
		guild.DELETE("/level/roles/:roleId", s.deleteLevelRole)
		guild.POST("/level/monthly-helper", s.forceMonthlyHelper)

		guild.GET("/leaderboard", s.leaderboard)
		guild.GET("/leaderboard/:userId", s.leaderboardMember)
		guild.PATCH("/leaderboard/:userId", s.adjustMemberXp)

		guild.GET("/onboarding", s.getOnboarding)
		guild.PUT("/onboarding", s.putOnboarding)
		guild.GET("/onboarding/messages", s.getOnboardingMessages)
		guild.PUT("/onboarding/messages", s.putOnboardingMessages)

		guild.GET("/embeds", s.listEmbeds)
		guild.POST("/embeds", s.createEmbed)
		guild.GET("/embeds/:embedId", s.getEmbed)
		guild.PUT("/embeds/:embedId", s.updateEmbed)
		guild.DELETE("/embeds/:embedId", s.deleteEmbed)
		guild.POST("/embeds/:embedId/send", s.sendEmbed)

		guild.GET("/live", s.liveHandler)
	}
}

func guildFrom(c *gin.Context) leveling.Guild {
	return c.MustGet(guildKey).(leveling.Guild)
}

// queryInt reads a positive integer query parameter
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// statusHandler returns the bot and database status
func (s *Server) statusHandler(c *gin.Context) {
	dbStatus, dbOnline := s.deps.Store.Status(c.Request.Context())

	botOnline, guilds := false, 0
	if s.deps.Bot != nil {
		botOnline = s.deps.Bot.IsReady()
		guilds = s.deps.Bot.GuildCount()
	}

	ok(c, http.StatusOK, gin.H{
		"version": config.Version,
		"database": gin.H{
			"status":   dbStatus,
			"isOnline": dbOnline,
		},
		"bot": gin.H{
			"isOnline": botOnline,
			"guilds":   guilds,
		},
	})
}

// healthHandler returns a simple health check response
func healthHandler(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "PancyCommunity está funcionando",
	})
}
