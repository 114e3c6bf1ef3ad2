package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/service/session"
)

// voiceFrame is a message from the voice client: one transcribed utterance
// per frame.
type voiceFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// voiceReply is what the server speaks back for one turn.
type voiceReply struct {
	Type      string      `json:"type"`
	Text      string      `json:"text"`
	Committed interface{} `json:"committed,omitempty"`
	Cancelled bool        `json:"cancelled,omitempty"`
}

type VoiceStreamHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewVoiceStreamHandler(sessions *session.Manager, logger *zap.Logger) *VoiceStreamHandler {
	return &VoiceStreamHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// HandleVoiceStream runs the turn loop for one voice connection. The token
// middleware has already stashed the session identity in the connection
// locals.
func (h *VoiceStreamHandler) HandleVoiceStream(c *websocket.Conn) {
	sessionID, _ := c.Locals("session_id").(string)
	identity, _ := c.Locals("identity").(string)
	if sessionID == "" {
		c.Close()
		return
	}

	ctx := context.Background()
	log := h.logger.With(
		zap.String("session_id", sessionID),
		zap.String("identity", identity),
	)

	if err := h.sessions.StartSession(ctx, sessionID); err != nil {
		log.Error("Failed to start session", zap.Error(err))
		c.Close()
		return
	}
	defer h.sessions.EndSession(ctx, sessionID)

	h.writeReply(c, voiceReply{Type: "greeting", Text: h.sessions.Greeting(sessionID)})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			break
		}

		var frame voiceFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "utterance" {
			log.Warn("Ignoring malformed voice frame")
			continue
		}

		reply, err := h.sessions.HandleUtterance(ctx, sessionID, frame.Text)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				break
			}
			log.Error("Turn failed", zap.Error(err))
			h.writeReply(c, voiceReply{Type: "error", Text: "Something went wrong. Please try again."})
			continue
		}

		out := voiceReply{Type: "reply", Text: reply.Speech, Cancelled: reply.Cancelled}
		if reply.Committed != nil {
			out.Committed = reply.Committed
		}
		h.writeReply(c, out)
	}

	log.Info("Voice stream closed")
}

func (h *VoiceStreamHandler) writeReply(c *websocket.Conn, reply voiceReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		h.logger.Error("Failed to encode voice reply", zap.Error(err))
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn("Failed to write voice reply", zap.Error(err))
	}
}

// SetupVoiceRoutes mounts the voice websocket endpoint behind the given
// token middleware.
func SetupVoiceRoutes(app *fiber.App, handler *VoiceStreamHandler, tokenMiddleware fiber.Handler) {
	app.Use("/ws/voice", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, tokenMiddleware)

	app.Get("/ws/voice", websocket.New(handler.HandleVoiceStream))
}
