package middleware

import "github.com/gofiber/fiber/v2"

// JsonResponse writes the standard envelope. Failed responses repeat the
// message under "error".
func JsonResponse(c *fiber.Ctx, statusCode int, success bool, message string, data interface{}) error {
	body := fiber.Map{
		"success": success,
		"message": message,
		"data":    data,
	}
	if !success {
		body["error"] = message
	}
	return c.Status(statusCode).JSON(body)
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}
