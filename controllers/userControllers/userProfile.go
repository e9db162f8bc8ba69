package userController

import (
	"errors"
	"log/slog"

	"multiproduct/middleware"
	"multiproduct/models"
	userValidator "multiproduct/validators/userValidator"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type profile struct {
	models.User
	ActiveSubscriptions int64 `json:"activeSubscriptions"`
	UnreadNotifications int64 `json:"unreadNotifications"`
}

func (h *Handler) load(c *fiber.Ctx) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(c.UserContext()).
		Preload("Role").
		Where("id = ? AND is_deleted = ?", middleware.UserID(c), false).
		First(&user).Error
	return &user, err
}

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	user, err := h.load(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}
	if err != nil {
		h.logger.Error("loading profile failed", "user_id", middleware.UserID(c), "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch profile!", nil)
	}

	view := profile{User: *user}
	db := h.db.WithContext(c.UserContext())
	if err := db.Model(&models.UserSubscription{}).
		Where("user_id = ? AND status IN ?", user.ID, models.LiveStatuses).
		Count(&view.ActiveSubscriptions).Error; err != nil {
		h.logger.Error("counting subscriptions failed", "user_id", user.ID, "error", err)
	}
	if err := db.Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", user.ID, false).
		Count(&view.UnreadNotifications).Error; err != nil {
		h.logger.Error("counting notifications failed", "user_id", user.ID, "error", err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile fetched successfully.", view)
}

// UpdateProfile changes the caller's display name. Email and phone are
// identity fields and stay fixed.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	req := c.Locals("validatedProfile").(*userValidator.UpdateProfileRequest)
	req.Normalize()

	user, err := h.load(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}
	if err != nil {
		h.logger.Error("loading profile failed", "user_id", middleware.UserID(c), "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update profile!", nil)
	}

	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if len(updates) == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Nothing to update!", nil)
	}
	if err := h.db.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
		h.logger.Error("updating profile failed", "user_id", user.ID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update profile!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile updated successfully.", user)
}
