package subscriptionRoutes

import (
	subscriptionController "multiproduct/controllers/subscription"
	"multiproduct/middleware"
	"multiproduct/policy"
	subscriptionValidator "multiproduct/validators/subscription"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupSubscriptionRoutes(app *fiber.App, h *subscriptionController.Handler, tokens *middleware.Tokens, db *gorm.DB) {
	products := app.Group("/products")
	products.Get("/", h.ListProducts)
	products.Get("/:id", h.GetProduct)

	auth := tokens.JWTMiddleware()
	can := func(action policy.Action) fiber.Handler {
		return middleware.RequirePermission(db, action)
	}

	subs := app.Group("/subscriptions", auth)
	subs.Get("/", can(policy.SubscriptionView), h.ListSubscriptions)
	subs.Get("/:id", can(policy.SubscriptionView), h.GetSubscription)
	subs.Post("/trial", can(policy.SubscriptionCreate), subscriptionValidator.Trial(), h.StartTrial)
	subs.Post("/purchase", can(policy.SubscriptionCreate), subscriptionValidator.Purchase(), h.Purchase)
	subs.Post("/:id/upgrade", can(policy.SubscriptionCreate), subscriptionValidator.Upgrade(), h.Upgrade)
	subs.Post("/:id/cancel", can(policy.SubscriptionCancel), h.Cancel)
	subs.Post("/:id/renew", can(policy.SubscriptionRenew), h.Renew)

	invoices := app.Group("/invoices", auth)
	invoices.Get("/", can(policy.InvoiceView), subscriptionValidator.InvoiceList(), h.ListInvoices)
	invoices.Post("/pay", can(policy.InvoicePay), subscriptionValidator.PayInvoices(), h.PayInvoices)
}
