package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/service/auth"
)

func newTokenApp(service *auth.TokenService) *fiber.App {
	app := fiber.New()
	handler := NewTokenHandler(service, "ws://localhost:8080", zap.NewNop())
	app.Post("/api/v1/token", handler.Issue)
	return app
}

func TestTokenHandler_Issue(t *testing.T) {
	// Arrange
	service := auth.NewTokenService("test-secret", time.Hour, zap.NewNop())
	app := newTokenApp(service)

	req := httptest.NewRequest("POST", "/api/v1/token", strings.NewReader(`{"identity":"sofia","room":"kitchen"}`))
	req.Header.Set("Content-Type", "application/json")

	// Act
	resp, err := app.Test(req)

	// Assert
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Token    string `json:"token"`
		URL      string `json:"url"`
		Room     string `json:"room"`
		Identity string `json:"identity"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if out.Token == "" || out.URL != "ws://localhost:8080" || out.Room != "kitchen" || out.Identity != "sofia" {
		t.Errorf("unexpected response: %+v", out)
	}

	// The issued token must validate back to the same identity
	identity, room, sessionID, err := service.Validate(out.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if identity != "sofia" || room != "kitchen" || sessionID == "" {
		t.Errorf("unexpected claims: identity=%q room=%q session=%q", identity, room, sessionID)
	}
}

func TestTokenHandler_Issue_MissingIdentity(t *testing.T) {
	service := auth.NewTokenService("test-secret", time.Hour, zap.NewNop())
	app := newTokenApp(service)

	req := httptest.NewRequest("POST", "/api/v1/token", strings.NewReader(`{"room":"kitchen"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
