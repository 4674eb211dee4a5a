package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxOnboardingMessages = 10

func (s *Server) getOnboarding(c *gin.Context) {
	cfg, err := s.deps.Onboarding.Config(c.Request.Context(), c.Param("guildId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cfg)
}

func (s *Server) putOnboarding(c *gin.Context) {
	var cfg models.OnboardingConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	cfg.GuildID = c.Param("guildId")
	if cfg.JoinRoleIDs == nil {
		cfg.JoinRoleIDs = []string{}
	}
	if err := cfg.Validate(); err != nil {
		failErr(c, err)
		return
	}

	if err := s.deps.Store.SaveOnboardingConfig(c.Request.Context(), &cfg); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, &cfg)
}

func (s *Server) getOnboardingMessages(c *gin.Context) {
	messages, err := s.deps.Store.ListOnboardingMessages(c.Request.Context(), c.Param("guildId"))
	if err != nil {
		failErr(c, err)
		return
	}
	if messages == nil {
		messages = []models.OnboardingMessage{}
	}
	ok(c, http.StatusOK, messages)
}

// normalizeMessages assigns ownership, ids and positions in request order
func normalizeMessages(guildID string, messages []models.OnboardingMessage) error {
	if len(messages) > maxOnboardingMessages {
		return fmt.Errorf("%w: máximo %d mensajes", errBadInput, maxOnboardingMessages)
	}
	for i := range messages {
		m := &messages[i]
		m.GuildID = guildID
		m.Position = i
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		empty := strings.TrimSpace(m.Content) == "" && strings.TrimSpace(m.EmbedTitle) == "" && strings.TrimSpace(m.EmbedDescription) == ""
		if empty && m.RoleMenu == nil {
			return fmt.Errorf("%w: el mensaje %d está vacío", errBadInput, i+1)
		}
		if m.RoleMenu != nil {
			if err := m.RoleMenu.Validate(); err != nil {
				return fmt.Errorf("mensaje %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// putOnboardingMessages replaces the whole welcome sequence
func (s *Server) putOnboardingMessages(c *gin.Context) {
	guildID := c.Param("guildId")

	var messages []models.OnboardingMessage
	if err := c.ShouldBindJSON(&messages); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	if messages == nil {
		messages = []models.OnboardingMessage{}
	}
	if err := normalizeMessages(guildID, messages); err != nil {
		failErr(c, err)
		return
	}

	if err := s.deps.Store.ReplaceOnboardingMessages(c.Request.Context(), guildID, messages); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, messages)
}
