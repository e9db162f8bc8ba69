package userProfileRoutes

import (
	userProfileController "multiproduct/controllers/userControllers"
	"multiproduct/middleware"
	userProfileValidator "multiproduct/validators/userValidator"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, h *userProfileController.Handler, tokens *middleware.Tokens) {
	userGroup := app.Group("/user", tokens.JWTMiddleware())

	userGroup.Get("/profile", h.GetProfile)
	userGroup.Put("/profile", userProfileValidator.UpdateProfile(), h.UpdateProfile)
}
