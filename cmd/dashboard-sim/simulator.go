package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	APIURL      string
	WSURL       string
	Identity    string
	Room        string
	ContextFile string
}

// Simulator acts as a restaurant dashboard: it obtains a connection token,
// joins the change feed, optionally pushes an editing context, and prints
// every menu update it receives.
type Simulator struct {
	config *SimulatorConfig
	conn   *websocket.Conn
	log    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type tokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

type tokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type menuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Available   bool    `json:"available"`
}

type menuDocument struct {
	Version uint64     `json:"version"`
	Items   []menuItem `json:"items"`
}

type changeEvent struct {
	Version   uint64    `json:"version"`
	Operation string    `json:"operation"`
	ItemID    string    `json:"item_id,omitempty"`
	Item      *menuItem `json:"item,omitempty"`
}

// inboundFrame covers both frame types the server sends to dashboards.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewSimulator creates a new dashboard simulator
func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	return &Simulator{
		config:   config,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Connect obtains a token and joins the dashboard change feed
func (s *Simulator) Connect() error {
	token, err := s.fetchToken()
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}

	url := fmt.Sprintf("%s/ws/dashboard?token=%s", s.config.WSURL, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.conn = conn
	s.log.Info("Connected to dashboard feed",
		zap.String("identity", s.config.Identity),
		zap.String("room", s.config.Room),
	)

	s.wg.Add(1)
	go s.readMessages()

	if s.config.ContextFile != "" {
		if err := s.pushContext(s.config.ContextFile); err != nil {
			s.log.Error("Failed to push menu context", zap.Error(err))
		}
	}

	return nil
}

// Run blocks until the connection drops or Stop is called
func (s *Simulator) Run() {
	s.wg.Wait()
}

// Stop closes the connection
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.conn != nil {
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.conn.Close()
		}
	})
}

func (s *Simulator) fetchToken() (string, error) {
	body, err := json.Marshal(tokenRequest{Identity: s.config.Identity, Room: s.config.Room})
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(s.config.APIURL+"/api/v1/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	return tr.Token, nil
}

// pushContext reads a JSON file of menu items and sends it as the full
// editing context, replacing the server's document.
func (s *Simulator) pushContext(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var items []menuItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("context file must be a JSON array of menu items: %w", err)
	}

	frame := map[string]interface{}{"type": "menu-context", "items": items}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.log.Info("Pushing menu context", zap.Int("items", len(items)))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Simulator) readMessages() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Error("Connection lost", zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("Ignoring malformed frame", zap.ByteString("data", data))
			continue
		}

		switch frame.Type {
		case "menu-context":
			var doc menuDocument
			if err := json.Unmarshal(frame.Data, &doc); err != nil {
				s.log.Warn("Malformed menu context", zap.Error(err))
				continue
			}
			s.printDocument(doc)
		case "menu-edit":
			var event changeEvent
			if err := json.Unmarshal(frame.Data, &event); err != nil {
				s.log.Warn("Malformed change event", zap.Error(err))
				continue
			}
			s.printEvent(event)
		default:
			s.log.Debug("Unhandled frame type", zap.String("type", frame.Type))
		}
	}
}

func (s *Simulator) printDocument(doc menuDocument) {
	fmt.Printf("=== Menu (version %d, %d items) ===\n", doc.Version, len(doc.Items))
	for _, item := range doc.Items {
		availability := ""
		if !item.Available {
			availability = " [86'd]"
		}
		fmt.Printf("  %-30s $%.2f%s\n", item.Name, item.Price, availability)
	}
}

func (s *Simulator) printEvent(event changeEvent) {
	switch event.Operation {
	case "add", "update":
		if event.Item != nil {
			fmt.Printf(">>> v%d %s: %s ($%.2f)\n", event.Version, event.Operation, event.Item.Name, event.Item.Price)
			return
		}
	case "delete":
		fmt.Printf(">>> v%d delete: %s\n", event.Version, event.ItemID)
		return
	}
	fmt.Printf(">>> v%d %s\n", event.Version, event.Operation)
}
