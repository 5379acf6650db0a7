package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// ConnectSources are extra origins allowed in connect-src, e.g. the
	// frontend that opens the chat websocket.
	ConnectSources []string
	IsDevelopment  bool
}

// HeadersMiddleware sets response headers for a JSON API that is never
// framed or rendered as a page.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := "default-src 'none'; " +
		"connect-src 'self'" + buildConnectSrc(cfg.ConnectSources) + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'; " +
		"form-action 'none'"

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

func buildConnectSrc(origins []string) string {
	var b strings.Builder
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			b.WriteByte(' ')
			b.WriteString(origin)
		}
	}
	return b.String()
}
