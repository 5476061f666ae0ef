package handlers

import (
	"log"
	"time"

	"selfie-mailer/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type clientMessage struct {
	Event string `json:"event"`
}

// StatusSocketHandler keeps a socket open for capture status events.
// IdentityMiddleware must have stored the caller's email in locals.
func StatusSocketHandler(hub *StatusHub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		email, _ := c.Locals(localEmail).(string)
		connID := uuid.New().String()

		hub.Register(email, connID, c)
		defer func() {
			hub.Unregister(email, connID)
			c.Close()
		}()

		hub.Send(email, connID, fiber.Map{
			"event":     "connected",
			"email":     email,
			"timestamp": time.Now().UnixMilli(),
		})

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			var in clientMessage
			if err := utils.SafeJSONParse(msg, &in); err != nil {
				utils.LogError(err, "JSON Parse")
				continue
			}
			switch in.Event {
			case "ping":
				hub.Send(email, connID, fiber.Map{"event": "pong", "timestamp": time.Now().UnixMilli()})
			default:
				log.Printf("Unknown event: %s", in.Event)
			}
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests on the socket route
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
