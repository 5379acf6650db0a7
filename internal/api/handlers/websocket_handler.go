package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/chat"
	"github.com/stockwise/stockwizard/pkg/logger"
)

// WebSocketHandler answers each text frame {"question","company_id"} with the
// same body POST /chat would return.
type WebSocketHandler struct {
	service *chat.Service
}

func NewWebSocketHandler(service *chat.Service) *WebSocketHandler {
	return &WebSocketHandler{service: service}
}

func (h *WebSocketHandler) Register(r fiber.Router, path string) {
	r.Use(path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get(path, websocket.New(h.HandleConnection))
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if err := c.WriteJSON(h.answer(ctx, data)); err != nil {
			logger.Error("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) answer(ctx context.Context, data []byte) fiber.Map {
	req, err := decodeChatRequest(data)
	if err != nil {
		return fiber.Map{"error": err.Error()}
	}

	reply, err := h.service.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			return fiber.Map{"error": err.Error()}
		}
		logger.Error("Failed to process WebSocket chat request", zap.Error(err))
		return fiber.Map{"error": internalErrorLabel + err.Error()}
	}

	return fiber.Map{"response": reply.Payload()}
}
