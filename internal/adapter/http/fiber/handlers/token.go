package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/ports"
)

// TokenHandler issues session connection tokens for voice clients and
// dashboards.
type TokenHandler struct {
	service ports.TokenService
	wsURL   string
	log     *zap.Logger
}

func NewTokenHandler(service ports.TokenService, wsURL string, log *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		wsURL:   wsURL,
		log:     log,
	}
}

type tokenRequest struct {
	Identity   string `json:"identity"`
	Room       string `json:"room"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// Issue handles POST /api/v1/token.
func (h *TokenHandler) Issue(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.Identity == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "identity is required"})
	}
	if req.Room == "" {
		req.Room = "default"
	}

	token, err := h.service.Issue(req.Identity, req.Room, req.TTLSeconds)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.Info("Session token issued",
		zap.String("identity", req.Identity),
		zap.String("room", req.Room),
	)

	return c.JSON(tokenResponse{
		Token:    token,
		URL:      h.wsURL,
		Room:     req.Room,
		Identity: req.Identity,
	})
}
