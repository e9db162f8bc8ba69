package authRoutes

import (
	authController "multiproduct/controllers/auth"
	"multiproduct/middleware"
	authValidators "multiproduct/validators/auth"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, h *authController.Handler, tokens *middleware.Tokens) {
	authGroup := app.Group("/auth")

	authGroup.Post("/signup", authValidators.Signup(), h.Signup)
	authGroup.Post("/verify-otp", authValidators.VerifyOTP(), h.VerifyOTP)
	authGroup.Post("/resend-otp", authValidators.Email(), h.ResendOTP)
	authGroup.Post("/login", authValidators.Login(), h.Login)
	authGroup.Post("/login/otp", authValidators.Email(), h.RequestLoginOTP)
	authGroup.Get("/login/history", tokens.JWTMiddleware(), authValidators.LoginHistoryList(), h.LoginHistoryList)
	authGroup.Post("/password/forgot", authValidators.Email(), h.ForgotPassword)
	authGroup.Post("/password/reset", authValidators.ResetPassword(), h.ResetPassword)
	authGroup.Put("/password/change", tokens.JWTMiddleware(), authValidators.ChangePassword(), h.ChangePassword)
}
