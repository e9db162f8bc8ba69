package middleware

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"
)

// SanitizeInput strips HTML from top-level string fields of JSON bodies.
// Password fields are passed through untouched.
func SanitizeInput() fiber.Handler {
	policy := bluemonday.StrictPolicy()
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		default:
			return c.Next()
		}
		raw := c.Body()
		if len(raw) == 0 || !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return c.Next()
		}

		var body map[string]interface{}
		if err := json.Unmarshal(raw, &body); err != nil {
			return JsonResponse(c, fiber.StatusBadRequest, false, "Malformed JSON", nil)
		}
		for k, v := range body {
			str, ok := v.(string)
			if !ok || strings.Contains(strings.ToLower(k), "password") {
				continue
			}
			body[k] = policy.Sanitize(str)
		}

		cleaned, err := json.Marshal(body)
		if err != nil {
			return JsonResponse(c, fiber.StatusBadRequest, false, "Malformed JSON", nil)
		}
		c.Request().SetBody(cleaned)
		return c.Next()
	}
}
