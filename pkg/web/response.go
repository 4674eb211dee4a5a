package web

import (
	"errors"
	"net/http"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/embeds"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope of every dashboard response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, APIResponse{Success: false, Error: message})
}

// failErr maps service errors to a status code. Unknown errors are logged and hidden.
func failErr(c *gin.Context, err error) {
	var restErr *discordgo.RESTError
	switch {
	case errors.As(err, &restErr) && restErr.Response != nil &&
		(restErr.Response.StatusCode == http.StatusNotFound || restErr.Response.StatusCode == http.StatusForbidden):
		fail(c, http.StatusBadRequest, "Discord rechazó la operación: revisa el canal y los permisos del bot")
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, "No encontrado")
	case errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, embeds.ErrInvalidEmbed),
		errors.Is(err, embeds.ErrWrongGuild),
		errors.Is(err, errBadInput):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Error en "+c.Request.Method+" "+c.FullPath()+": "+err.Error(), "WebServer")
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
	}
}
