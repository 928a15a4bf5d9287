package ws

import (
	"net/http"
	"strconv"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/response"
	"tablevoice-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard runs on a different origin; the token check gates
		// the connection.
		return true
	},
}

type WSHandler struct {
	hub        *ws.Hub
	authorizer *authz.Authorizer
	logger     *zap.Logger
}

func NewWSHandler(hub *ws.Hub, authorizer *authz.Authorizer, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:        hub,
		authorizer: authorizer,
		logger:     logger,
	}
}

// Subscribe upgrades the connection and attaches it to one restaurant's event
// stream. The caller needs reservation view permission on that restaurant.
func (h *WSHandler) Subscribe(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	restaurantID, err := strconv.ParseInt(c.Param("restaurantID"), 10, 64)
	if err != nil || restaurantID <= 0 {
		response.ValidationError(c, "invalid restaurantID", err)
		return
	}

	if _, err := h.authorizer.Authorize(c.Request.Context(), identityID, restaurantID, authz.PermReservationView); err != nil {
		response.FromError(c, "subscription denied", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, identityID, restaurantID, h.logger)
	client.Start()
}
