package adminRoutes

import (
	adminController "multiproduct/controllers/admin"
	"multiproduct/middleware"
	"multiproduct/policy"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupAdminRoutes(app *fiber.App, h *adminController.Handler, tokens *middleware.Tokens, db *gorm.DB) {
	group := app.Group("/admin", tokens.JWTMiddleware())

	group.Post("/subscriptions/sweep", middleware.RequirePermission(db, policy.SubscriptionSweep), h.SweepSubscriptions)
	group.Post("/subscriptions/reminders", middleware.RequirePermission(db, policy.SubscriptionSweep), h.DispatchReminders)
	group.Post("/otp/cleanup", middleware.RequirePermission(db, policy.OTPCleanup), h.CleanupOTPs)
}
