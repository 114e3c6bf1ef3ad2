package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/ports"
)

// MenuHandler serves the current menu document and accepts full snapshot
// pushes from the extraction collaborator.
type MenuHandler struct {
	store ports.MenuStore
	log   *zap.Logger
}

func NewMenuHandler(store ports.MenuStore, log *zap.Logger) *MenuHandler {
	return &MenuHandler{
		store: store,
		log:   log,
	}
}

// Get handles GET /api/v1/menu.
func (h *MenuHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.store.Snapshot())
}

type menuContextRequest struct {
	Items []domain.MenuItem `json:"items"`
}

// PushContext handles POST /api/v1/menu/context: the whole document is
// replaced and every observer is notified.
func (h *MenuHandler) PushContext(c *fiber.Ctx) error {
	var req menuContextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	version := h.store.ReplaceSnapshot(c.Context(), req.Items)

	h.log.Info("Menu context replaced via API",
		zap.Int("items", len(req.Items)),
		zap.Uint64("version", version),
	)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"version": version})
}
