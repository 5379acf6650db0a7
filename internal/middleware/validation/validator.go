package validation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxQuestionLength   int
	AllowedContentTypes []string
	// ChatPath is the route whose POST body carries a question.
	ChatPath string
	Logger   *zap.Logger
}

// Middleware rejects bodies with a foreign content type and chat questions
// that are too long. Shape errors are left to the handler's strict decoder.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 5000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = "/chat"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedContentType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if strings.TrimRight(c.Path(), "/") == cfg.ChatPath {
			var req struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal(c.Body(), &req); err == nil {
				if utf8.RuneCountInString(req.Question) > cfg.MaxQuestionLength {
					cfg.Logger.Warn("Rejected oversized question",
						zap.String("ip", c.IP()),
						zap.Int("length", utf8.RuneCountInString(req.Question)),
					)
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Question exceeds maximum length",
					})
				}
			}
		}

		return c.Next()
	}
}

func allowedContentType(contentType string, allowed []string) bool {
	contentType = strings.ToLower(contentType)
	for _, a := range allowed {
		if strings.Contains(contentType, a) {
			return true
		}
	}
	return false
}

func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}
