package handler

import (
	"os"

	"cc-intelligence-be/internal/pkg/logger"
	internalWS "cc-intelligence-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SessionStreamHandler upgrades websocket connections that want live session
// snapshots pushed as research progresses.
type SessionStreamHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewSessionStreamHandler(hub *internalWS.Hub, log logger.ILogger) *SessionStreamHandler {
	return &SessionStreamHandler{
		hub:    hub,
		logger: log,
	}
}

// ServeWs handles the websocket handshake. The token is accepted from the
// query param (browser standard) or the Authorization header.
func (h *SessionStreamHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")

	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}

	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	// Same secret as the HTTP middleware.
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})

	if err != nil || !token.Valid {
		h.logger.Warn("SessionStreamHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SessionStreamHandler", "Starting WebSocket session", nil)
			internalWS.ServeWs(h.hub, conn)
			h.logger.Info("SessionStreamHandler", "WebSocket session ended", nil)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the websocket endpoint.
func (h *SessionStreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
