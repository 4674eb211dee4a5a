package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/PancyStudios/PancyCommunityGo/pkg/embeds"
	"github.com/gin-gonic/gin"
)

func (s *Server) listEmbeds(c *gin.Context) {
	views, err := s.deps.Embeds.List(c.Request.Context(), c.Param("guildId"))
	if err != nil {
		failErr(c, err)
		return
	}
	if views == nil {
		views = []embeds.View{}
	}
	ok(c, http.StatusOK, views)
}

func (s *Server) createEmbed(c *gin.Context) {
	var draft embeds.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	view, err := s.deps.Embeds.Create(c.Request.Context(), c.Param("guildId"), draft)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, view)
}

func (s *Server) getEmbed(c *gin.Context) {
	view, err := s.deps.Embeds.Get(c.Request.Context(), c.Param("guildId"), c.Param("embedId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) updateEmbed(c *gin.Context) {
	var draft embeds.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	view, err := s.deps.Embeds.Update(c.Request.Context(), c.Param("guildId"), c.Param("embedId"), draft)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) deleteEmbed(c *gin.Context) {
	if err := s.deps.Embeds.Delete(c.Request.Context(), c.Param("guildId"), c.Param("embedId")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": c.Param("embedId")})
}

type sendRequest struct {
	ChannelID string `json:"channelId"`
}

// sendEmbed publishes the saved message. The body is optional; without a
// channelId the stored channel is used.
func (s *Server) sendEmbed(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return
	}
	if req.ChannelID != "" && !isSnowflake(req.ChannelID) {
		fail(c, http.StatusBadRequest, "channelId inválido")
		return
	}

	view, err := s.deps.Embeds.Send(c.Request.Context(), c.Param("guildId"), c.Param("embedId"), req.ChannelID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}
