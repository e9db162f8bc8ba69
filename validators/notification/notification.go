package notificationValidator

import (
	"multiproduct/validators"

	"github.com/gofiber/fiber/v2"
)

func List() fiber.Handler {
	return validators.Paginate()
}
