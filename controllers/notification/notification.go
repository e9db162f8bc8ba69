package notificationController

import (
	"errors"
	"log/slog"
	"strconv"

	"multiproduct/middleware"
	"multiproduct/services/notification"
	"multiproduct/validators"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	notifications *notification.Service
	logger        *slog.Logger
}

func NewHandler(notifications *notification.Service, logger *slog.Logger) *Handler {
	return &Handler{notifications: notifications, logger: logger}
}

// List returns the caller's notifications, unread first.
func (h *Handler) List(c *fiber.Ctx) error {
	page, limit := validators.PaginationFrom(c)
	userID := middleware.UserID(c)

	items, total, err := h.notifications.List(c.UserContext(), userID, page, limit)
	if err != nil {
		h.logger.Error("listing notifications failed", "user_id", userID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch notifications!", nil)
	}
	unread, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		h.logger.Error("counting notifications failed", "user_id", userID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch notifications!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Notifications fetched successfully.", fiber.Map{
		"items":  items,
		"total":  total,
		"unread": unread,
		"page":   page,
		"limit":  limit,
	})
}

func (h *Handler) MarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid id!", nil)
	}
	n, err := h.notifications.MarkRead(c.UserContext(), middleware.UserID(c), uint(id))
	if errors.Is(err, notification.ErrNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Notification not found!", nil)
	}
	if err != nil {
		h.logger.Error("marking notification failed", "notification_id", id, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update notification!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Notification marked as read.", n)
}
