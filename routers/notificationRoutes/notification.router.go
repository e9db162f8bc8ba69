package notificationRoutes

import (
	notificationController "multiproduct/controllers/notification"
	"multiproduct/middleware"
	"multiproduct/policy"
	notificationValidator "multiproduct/validators/notification"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupNotificationRoutes(app *fiber.App, h *notificationController.Handler, tokens *middleware.Tokens, db *gorm.DB) {
	group := app.Group("/notifications", tokens.JWTMiddleware())

	group.Get("/", middleware.RequirePermission(db, policy.NotificationView), notificationValidator.List(), h.List)
	group.Patch("/:id/read", middleware.RequirePermission(db, policy.NotificationUpdate), h.MarkRead)
}
