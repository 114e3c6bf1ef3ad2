package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/mocks"
)

func newMenuApp(store *mocks.MockMenuStore) *fiber.App {
	app := fiber.New()
	handler := NewMenuHandler(store, zap.NewNop())
	app.Get("/api/v1/menu", handler.Get)
	app.Post("/api/v1/menu/context", handler.PushContext)
	return app
}

func TestMenuHandler_Get(t *testing.T) {
	// Arrange
	store := mocks.NewMockMenuStore(
		domain.MenuItem{ID: "i1", Name: "Burger Deluxe", Price: 9.99, Available: true},
		domain.MenuItem{ID: "i2", Name: "Tiramisu", Price: 6.00, Available: true},
	)
	app := newMenuApp(store)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/menu", nil))

	// Assert
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var doc domain.MenuDocument
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if doc.Version != 1 || len(doc.Items) != 2 {
		t.Errorf("unexpected document: version=%d items=%d", doc.Version, len(doc.Items))
	}
}

func TestMenuHandler_PushContext(t *testing.T) {
	// Arrange
	store := mocks.NewMockMenuStore()
	app := newMenuApp(store)

	payload := `{"items":[{"id":"i1","name":"Pad Thai","price":12.5,"available":true}]}`
	req := httptest.NewRequest("POST", "/api/v1/menu/context", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	// Act
	resp, err := app.Test(req)

	// Assert
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var out struct {
		Version uint64 `json:"version"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if out.Version != 2 {
		t.Errorf("expected version 2 after replace, got %d", out.Version)
	}

	doc := store.Snapshot()
	if len(doc.Items) != 1 || doc.Items[0].Name != "Pad Thai" {
		t.Errorf("store was not updated: %+v", doc.Items)
	}
}

func TestMenuHandler_PushContext_BadBody(t *testing.T) {
	store := mocks.NewMockMenuStore()
	app := newMenuApp(store)

	req := httptest.NewRequest("POST", "/api/v1/menu/context", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
