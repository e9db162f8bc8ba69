package middleware

import (
	"errors"

	"multiproduct/models"
	"multiproduct/policy"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RequirePermission loads the authenticated user with their role and
// rejects the request unless the role grants action. The user is stored
// in Locals("user") for handlers.
func RequirePermission(db *gorm.DB, action policy.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == 0 {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: User ID not found", nil)
		}

		var user models.User
		err := db.WithContext(c.UserContext()).
			Preload("Role").
			Where("is_deleted = ?", false).
			First(&user, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: User not found", nil)
		}
		if err != nil {
			return JsonResponse(c, fiber.StatusInternalServerError, false, "Server error while checking permissions!", nil)
		}

		if !policy.Can(&user, action, nil) {
			return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
		}

		c.Locals("user", &user)
		return c.Next()
	}
}

// CurrentUser returns the user loaded by RequirePermission, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}
