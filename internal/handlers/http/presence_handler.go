package http

import (
	"net/http"

	"pairchat/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// PresenceHandler exposes a read-only view of the lobby over REST.
type PresenceHandler struct {
	presence ports.PresenceRegistry
}

func NewPresenceHandler(presence ports.PresenceRegistry) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.GET("/presence", h.ListPresence)
		api.GET("/stats", h.GetStats)
	}
}

// ListPresence returns everyone online. The optional exclude query drops a
// nickname from the list, the same way the websocket broadcast does.
func (h *PresenceHandler) ListPresence(c *gin.Context) {
	users := h.presence.ListOnline(c.Request.Context(), c.Query("exclude"))

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

func (h *PresenceHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats": h.presence.Stats(c.Request.Context()),
	})
}

var _ ports.HTTPHandler = (*PresenceHandler)(nil)
