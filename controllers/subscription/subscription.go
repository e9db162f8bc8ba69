package subscriptionController

import (
	"errors"
	"log/slog"
	"strconv"

	"multiproduct/middleware"
	"multiproduct/models"
	"multiproduct/policy"
	"multiproduct/services/subscription"
	"multiproduct/validators"
	subscriptionValidator "multiproduct/validators/subscription"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	subs   *subscription.Service
	logger *slog.Logger
}

func NewHandler(subs *subscription.Service, logger *slog.Logger) *Handler {
	return &Handler{subs: subs, logger: logger}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, subscription.ErrAlreadyActive),
		errors.Is(err, subscription.ErrAlreadyTrialed),
		errors.Is(err, subscription.ErrInvoicePaid):
		status = fiber.StatusConflict
	case errors.Is(err, subscription.ErrTrialUnavailable),
		errors.Is(err, subscription.ErrInvalidPlan),
		errors.Is(err, subscription.ErrNotTrial),
		errors.Is(err, subscription.ErrNotCancellable),
		errors.Is(err, subscription.ErrNotRenewable):
		status = fiber.StatusBadRequest
	case errors.Is(err, subscription.ErrPaymentFailed):
		status = fiber.StatusPaymentRequired
	}
	if status == fiber.StatusInternalServerError {
		h.logger.Error("subscription request failed", "path", c.Path(), "user_id", middleware.UserID(c), "error", err)
		return middleware.JsonResponse(c, status, false, "Failed to process your request!", nil)
	}
	msg := err.Error()
	if errors.Is(err, subscription.ErrPaymentFailed) {
		msg = subscription.ErrPaymentFailed.Error()
	}
	return middleware.JsonResponse(c, status, false, msg, nil)
}

func paramID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid id!", nil)
}

type planView struct {
	models.SubscriptionPlan
	FinalPrice string `json:"finalPrice"`
}

type productView struct {
	models.Product
	Plans []planView `json:"plans"`
}

func toProductView(p models.Product) productView {
	v := productView{Product: p, Plans: make([]planView, 0, len(p.Plans))}
	for _, plan := range p.Plans {
		v.Plans = append(v.Plans, planView{SubscriptionPlan: plan, FinalPrice: plan.FinalPrice().StringFixed(2)})
	}
	v.Product.Plans = nil
	return v
}

func (h *Handler) ListProducts(c *fiber.Ctx) error {
	products, err := h.subs.ListProducts(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Products fetched successfully.", views)
}

func (h *Handler) GetProduct(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	product, err := h.subs.GetProduct(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Product fetched successfully.", toProductView(*product))
}

func (h *Handler) ListSubscriptions(c *fiber.Ctx) error {
	subs, err := h.subs.ListSubscriptions(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscriptions fetched successfully.", subs)
}

func (h *Handler) GetSubscription(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	sub, err := h.subs.GetSubscription(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	if !policy.Can(middleware.CurrentUser(c), policy.SubscriptionView, sub) {
		return h.fail(c, subscription.ErrNotFound)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription fetched successfully.", sub)
}

func (h *Handler) StartTrial(c *fiber.Ctx) error {
	req := c.Locals("validatedTrial").(*subscriptionValidator.TrialRequest)
	sub, err := h.subs.CreateTrial(c.UserContext(), middleware.UserID(c), req.ProductID)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Trial started successfully.", sub)
}

func (h *Handler) Purchase(c *fiber.Ctx) error {
	req := c.Locals("validatedPurchase").(*subscriptionValidator.PurchaseRequest)
	sub, err := h.subs.Purchase(c.UserContext(), middleware.UserID(c), req.ProductID, req.PlanID, req.AutoRenew)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Subscription purchased successfully.", sub)
}

func (h *Handler) Upgrade(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	req := c.Locals("validatedUpgrade").(*subscriptionValidator.UpgradeRequest)
	sub, err := h.subs.UpgradeFromTrial(c.UserContext(), middleware.UserID(c), id, req.PlanID, req.AutoRenew)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription upgraded successfully.", sub)
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	sub, err := h.subs.Cancel(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription cancelled successfully.", sub)
}

func (h *Handler) Renew(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return invalidID(c)
	}
	sub, err := h.subs.Renew(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription renewed successfully.", sub)
}

func (h *Handler) ListInvoices(c *fiber.Ctx) error {
	page, limit := validators.PaginationFrom(c)
	invoices, total, err := h.subs.ListInvoices(c.UserContext(), middleware.UserID(c), page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Invoices fetched successfully.", fiber.Map{
		"items": invoices,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) PayInvoices(c *fiber.Ctx) error {
	req := c.Locals("validatedPayInvoices").(*subscriptionValidator.PayInvoicesRequest)
	txn, err := h.subs.SettleInvoices(c.UserContext(), middleware.UserID(c), req.InvoiceIDs)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Invoices paid successfully.", txn)
}
