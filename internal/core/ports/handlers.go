package ports

import (
	"context"

	"pairchat/internal/core/domain"

	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	ListPresence(c *gin.Context)
	GetStats(c *gin.Context)
}

type WebSocketHandler interface {
	HandleMessage(ctx context.Context, id domain.ConnectionID, message []byte) error
	HandleDisconnect(ctx context.Context, id domain.ConnectionID) error
}
