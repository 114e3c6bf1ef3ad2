package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/ports"
)

// menuContextFrame is an inbound full-document push from a dashboard. The
// same payload shape is accepted on the HTTP context endpoint.
type menuContextFrame struct {
	Type  string            `json:"type"`
	Items []domain.MenuItem `json:"items"`
}

// menuContextEnvelope is the outbound full-document frame sent on connect
// and after every snapshot replacement.
type menuContextEnvelope struct {
	Type string              `json:"type"`
	Data domain.MenuDocument `json:"data"`
}

// DashboardStreamHandler connects dashboards to the change feed. Each
// connection immediately receives the full current document, then every
// committed change in version order.
type DashboardStreamHandler struct {
	hub    *Hub
	store  ports.MenuStore
	logger *zap.Logger
}

func NewDashboardStreamHandler(hub *Hub, store ports.MenuStore, logger *zap.Logger) *DashboardStreamHandler {
	h := &DashboardStreamHandler{hub: hub, store: store, logger: logger}
	hub.OnMessage(h.handleInbound)
	return h
}

func (h *DashboardStreamHandler) HandleDashboardStream(c *websocket.Conn) {
	identity, _ := c.Locals("identity").(string)

	welcome, err := json.Marshal(menuContextEnvelope{Type: "menu-context", Data: h.store.Snapshot()})
	if err != nil {
		h.logger.Error("Failed to encode menu snapshot", zap.Error(err))
		c.Close()
		return
	}

	h.logger.Info("Dashboard connected", zap.String("identity", identity))
	h.hub.AddClient(c, identity, welcome)
}

// handleInbound processes dashboard pushes: a full menu-context replaces
// the document and every session re-validates against the new version.
func (h *DashboardStreamHandler) handleInbound(client *Client, data []byte) {
	var frame menuContextFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "menu-context" {
		h.logger.Warn("Ignoring malformed dashboard frame",
			zap.String("identity", client.identity),
		)
		return
	}

	version := h.store.ReplaceSnapshot(context.Background(), frame.Items)
	h.logger.Info("Menu context replaced from dashboard",
		zap.String("identity", client.identity),
		zap.Int("items", len(frame.Items)),
		zap.Uint64("version", version),
	)
}

// SetupDashboardRoutes mounts the dashboard websocket endpoint behind the
// given token middleware.
func SetupDashboardRoutes(app *fiber.App, handler *DashboardStreamHandler, tokenMiddleware fiber.Handler) {
	app.Use("/ws/dashboard", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, tokenMiddleware)

	app.Get("/ws/dashboard", websocket.New(handler.HandleDashboardStream))
}
