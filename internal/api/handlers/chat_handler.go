package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/chat"
	"github.com/stockwise/stockwizard/internal/middleware/validation"
	"github.com/stockwise/stockwizard/pkg/logger"
)

const (
	greeting           = "Oi, gente!"
	missingCompanyID   = "O campo 'company_id' é obrigatório."
	noRecordsFound     = "Nenhum dado encontrado."
	internalErrorLabel = "Erro interno: "
)

type ChatHandler struct {
	service *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Register(r fiber.Router) {
	r.Get("/", h.Root)
	r.Post("/chat", h.HandleChat)
	r.Get("/chat", h.GetHistory)
	r.Get("/health", h.Health)
}

func (h *ChatHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": greeting})
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	req, err := decodeChatRequest(c.Body())
	if err != nil {
		logger.Warn("Rejected chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	reply, err := h.service.Handle(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to process chat request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": internalErrorLabel + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"response": reply.Payload(),
	})
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	records, err := h.service.History(c.UserContext(), c.Query("company_id"))
	switch {
	case errors.Is(err, chat.ErrMissingCompanyID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": missingCompanyID,
		})
	case errors.Is(err, chat.ErrNoRecords):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": noRecordsFound,
		})
	case err != nil:
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": internalErrorLabel + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"responses": records,
	})
}

func (h *ChatHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "healthy",
		"time":           time.Now().Unix(),
		"document_index": h.service.DocumentContextAvailable(),
	})
}

// decodeChatRequest accepts exactly one JSON object with string fields
// question and company_id, both present and non-blank.
func decodeChatRequest(body []byte) (chat.ChatRequest, error) {
	var raw struct {
		Question  *string `json:"question"`
		CompanyID *string `json:"company_id"`
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return chat.ChatRequest{}, fmt.Errorf("%w: %v", chat.ErrInvalidRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return chat.ChatRequest{}, fmt.Errorf("%w: unexpected data after JSON object", chat.ErrInvalidRequest)
	}
	if raw.Question == nil {
		return chat.ChatRequest{}, fmt.Errorf("%w: question is required", chat.ErrInvalidRequest)
	}
	if raw.CompanyID == nil {
		return chat.ChatRequest{}, fmt.Errorf("%w: company_id is required", chat.ErrInvalidRequest)
	}

	req := chat.ChatRequest{
		Question:  validation.SanitizeString(*raw.Question),
		CompanyID: validation.SanitizeString(*raw.CompanyID),
	}
	return req, req.Validate()
}
