package adminController

import (
	"context"
	"log/slog"

	"multiproduct/middleware"
	"multiproduct/services/subscription"

	"github.com/gofiber/fiber/v2"
)

type OTPCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Handler lets administrators run the scheduled maintenance jobs on demand.
type Handler struct {
	subs   *subscription.Service
	otps   OTPCleaner
	logger *slog.Logger
}

func NewHandler(subs *subscription.Service, otps OTPCleaner, logger *slog.Logger) *Handler {
	return &Handler{subs: subs, otps: otps, logger: logger}
}

func (h *Handler) SweepSubscriptions(c *fiber.Ctx) error {
	res, err := h.subs.SweepExpired(c.UserContext())
	if err != nil {
		h.logger.Error("manual sweep failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Subscription sweep failed!", res)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription sweep completed.", res)
}

func (h *Handler) DispatchReminders(c *fiber.Ctx) error {
	sent, err := h.subs.DispatchExpiryReminders(c.UserContext())
	if err != nil {
		h.logger.Error("manual reminder dispatch failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Reminder dispatch failed!", fiber.Map{"sent": sent})
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Expiry reminders dispatched.", fiber.Map{"sent": sent})
}

func (h *Handler) CleanupOTPs(c *fiber.Ctx) error {
	removed, err := h.otps.Cleanup(c.UserContext())
	if err != nil {
		h.logger.Error("manual otp cleanup failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "OTP cleanup failed!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "OTP cleanup completed.", fiber.Map{"removed": removed})
}
