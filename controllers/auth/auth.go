package authController

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"multiproduct/database"
	"multiproduct/middleware"
	"multiproduct/models"
	"multiproduct/queue"
	"multiproduct/services/otp"
	"multiproduct/utils"
	"multiproduct/validators"
	authValidator "multiproduct/validators/auth"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	msgSignup        = "Signup successful. Verify the OTP sent to your email."
	msgResent        = "If the account is awaiting verification, a new OTP has been sent."
	msgLoginOTP      = "If the account exists, a login OTP has been sent."
	msgForgot        = "If the account exists, a password reset link has been sent."
	msgBadCredential = "Invalid credentials!"
)

type Handler struct {
	db          *gorm.DB
	otps        *otp.Service
	tokens      *middleware.Tokens
	dispatcher  queue.Dispatcher
	saltRound   int
	frontendURL string
	logger      *slog.Logger
}

func NewHandler(db *gorm.DB, otps *otp.Service, tokens *middleware.Tokens, dispatcher queue.Dispatcher, saltRound int, frontendURL string, logger *slog.Logger) *Handler {
	return &Handler{
		db:          db,
		otps:        otps,
		tokens:      tokens,
		dispatcher:  dispatcher,
		saltRound:   saltRound,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// otpError maps OTP workflow errors to responses.
func otpError(c *fiber.Ctx, err error) error {
	var rl *otp.RateLimitError
	var inv *otp.InvalidCodeError
	switch {
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		return middleware.JsonResponse(c, fiber.StatusTooManyRequests, false, "Too many OTP requests. Please try again later.", fiber.Map{"retryAfter": secs})
	case errors.As(err, &inv):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, inv.Error(), fiber.Map{"remainingAttempts": inv.Remaining})
	case errors.Is(err, otp.ErrLockedOut):
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Too many failed attempts. Please request a new OTP.", nil)
	case errors.Is(err, otp.ErrNoActiveOTP):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "No active OTP. Please request a new one.", nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
}

func (h *Handler) userByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(ctx).Preload("Role").
		Where("email = ? AND is_deleted = ?", strings.ToLower(strings.TrimSpace(email)), false).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// uniqueUsername derives a username from the email local part.
func (h *Handler) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := strings.SplitN(email, "@", 2)[0]
	if len(base) > 140 {
		base = base[:140]
	}
	candidate := base
	for i := 1; ; i++ {
		var n int64
		if err := h.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func (h *Handler) signupAccepted(c *fiber.Ctx, email string) error {
	return middleware.JsonResponse(c, fiber.StatusCreated, true, msgSignup, fiber.Map{"email": email})
}

// Signup registers an inactive customer and sends a verification OTP.
// Existing addresses get the same response so accounts cannot be probed.
func (h *Handler) Signup(c *fiber.Ctx) error {
	req := c.Locals("validatedSignup").(*authValidator.SignupRequest)
	req.Normalize()
	ctx := c.UserContext()

	existing, err := h.userByEmail(ctx, req.Email)
	switch {
	case err == nil && !existing.IsActive:
		if _, err := h.otps.Issue(ctx, existing, models.OTPPurposeResend); err != nil {
			return otpError(c, err)
		}
		return h.signupAccepted(c, req.Email)
	case err == nil:
		h.dispatcher.Enqueue(ctx, queue.KindAccountExistsEmail, existing.Email, map[string]any{"user_id": existing.ID})
		return h.signupAccepted(c, req.Email)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		h.logger.Error("signup lookup failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	var phoneTaken int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("phone = ?", req.Phone).Count(&phoneTaken).Error; err != nil {
		h.logger.Error("signup phone lookup failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	if phoneTaken > 0 {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Mobile number is already registered!", nil)
	}

	hashed, err := utils.HashPassword(req.Password, h.saltRound)
	if err != nil {
		h.logger.Error("hashing password failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	role, err := database.RoleByName(h.db.WithContext(ctx), models.RoleCustomer)
	if err != nil {
		h.logger.Error("customer role missing", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	username, err := h.uniqueUsername(ctx, req.Email)
	if err != nil {
		h.logger.Error("username lookup failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	user := models.User{
		Username:  username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  hashed,
		RoleID:    &role.ID,
		Role:      role,
	}
	if err := h.db.WithContext(ctx).Omit("Role").Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent signup for the same address
			return h.signupAccepted(c, req.Email)
		}
		h.logger.Error("creating user failed", "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to Signup user!", nil)
	}

	if _, err := h.otps.Issue(ctx, &user, models.OTPPurposeSignup); err != nil {
		return otpError(c, err)
	}
	h.logger.Info("user signed up", "user_id", user.ID)
	return h.signupAccepted(c, req.Email)
}

// VerifyOTP activates the account on a correct code and logs the user in.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	req := c.Locals("validatedVerifyOTP").(*authValidator.VerifyOTPRequest)
	ctx := c.UserContext()

	user, err := h.userByEmail(ctx, req.Email)
	if err != nil {
		return otpError(c, otp.ErrNoActiveOTP)
	}
	if err := h.otps.Verify(ctx, user, req.OTP); err != nil {
		return otpError(c, err)
	}

	if !user.IsActive {
		if err := h.db.WithContext(ctx).Model(user).Update("is_active", true).Error; err != nil {
			h.logger.Error("activating user failed", "user_id", user.ID, "error", err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to activate account!", nil)
		}
		user.IsActive = true
		h.dispatcher.Enqueue(ctx, queue.KindWelcomeEmail, user.Email, map[string]any{"user_id": user.ID, "name": user.FullName()})
	}
	return h.completeLogin(c, user, models.LoginMethodOTP, "Account verified successfully.")
}

// ResendOTP issues a fresh code to an account that is not verified yet.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	req := c.Locals("validatedEmail").(*authValidator.EmailRequest)
	ctx := c.UserContext()

	user, err := h.userByEmail(ctx, req.Email)
	if err == nil && !user.IsActive {
		if _, err := h.otps.Issue(ctx, user, models.OTPPurposeResend); err != nil {
			return otpError(c, err)
		}
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, msgResent, nil)
}

// RequestLoginOTP sends a one-time login code to an active account.
func (h *Handler) RequestLoginOTP(c *fiber.Ctx) error {
	req := c.Locals("validatedEmail").(*authValidator.EmailRequest)
	ctx := c.UserContext()

	user, err := h.userByEmail(ctx, req.Email)
	if err == nil && user.IsActive {
		if _, err := h.otps.Issue(ctx, user, models.OTPPurposeLogin); err != nil {
			return otpError(c, err)
		}
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, msgLoginOTP, nil)
}

// Login accepts email or phone with a password, or email with an OTP.
func (h *Handler) Login(c *fiber.Ctx) error {
	req := c.Locals("validatedLogin").(*authValidator.LoginRequest)
	ctx := c.UserContext()

	q := h.db.WithContext(ctx).Preload("Role").Where("is_deleted = ?", false)
	if req.Email != "" {
		q = q.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email)))
	} else {
		q = q.Where("phone = ?", req.Phone)
	}
	var user models.User
	if err := q.First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("login lookup failed", "error", err)
		}
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, msgBadCredential, nil)
	}

	if req.OTP != "" {
		if !user.IsActive {
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Account is not verified!", nil)
		}
		if err := h.otps.Verify(ctx, &user, req.OTP); err != nil {
			return otpError(c, err)
		}
		return h.completeLogin(c, &user, models.LoginMethodOTP, "Login successful.")
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, msgBadCredential, nil)
	}
	if !user.IsActive {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Account is not verified!", nil)
	}
	return h.completeLogin(c, &user, models.LoginMethodPassword, "Login successful.")
}

func (h *Handler) completeLogin(c *fiber.Ctx, user *models.User, method, message string) error {
	ctx := c.UserContext()
	token, err := h.tokens.GenerateJWT(user)
	if err != nil {
		h.logger.Error("signing token failed", "user_id", user.ID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to generate token!", nil)
	}

	now := time.Now().UTC()
	track := models.LoginTracking{
		UserID:    user.ID,
		Method:    method,
		IPAddress: c.IP(),
		Device:    c.Get(fiber.HeaderUserAgent),
		Timestamp: now,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&track).Error; err != nil {
			return err
		}
		return tx.Model(user).Update("last_login", now).Error
	})
	if err != nil {
		// login still succeeds without the audit row
		h.logger.Warn("recording login failed", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	return middleware.JsonResponse(c, fiber.StatusOK, true, message, fiber.Map{
		"token": token,
		"user":  user,
	})
}

// ForgotPassword mails a reset link bound to the current password.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	req := c.Locals("validatedEmail").(*authValidator.EmailRequest)
	ctx := c.UserContext()

	user, err := h.userByEmail(ctx, req.Email)
	if err == nil && user.IsActive {
		token, err := h.tokens.GenerateResetToken(user)
		if err != nil {
			h.logger.Error("signing reset token failed", "user_id", user.ID, "error", err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
		}
		link := h.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
		h.dispatcher.Enqueue(ctx, queue.KindPasswordResetEmail, user.Email, map[string]any{
			"user_id":     user.ID,
			"name":        user.FullName(),
			"link":        link,
			"ttl_minutes": int(middleware.ResetTokenTTL.Minutes()),
		})
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, msgForgot, nil)
}

// ResetPassword sets a new password from a reset link. The token stops
// working as soon as the password hash changes.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	req := c.Locals("validatedResetPassword").(*authValidator.ResetPasswordRequest)
	ctx := c.UserContext()

	invalid := func() error {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid or expired reset link!", nil)
	}
	userID, fp, err := h.tokens.ParseResetToken(c.Query("token"))
	if err != nil {
		return invalid()
	}
	var user models.User
	if err := h.db.WithContext(ctx).Where("is_deleted = ?", false).First(&user, userID).Error; err != nil {
		return invalid()
	}
	if utils.Fingerprint(user.Password) != fp {
		return invalid()
	}

	if err := h.setPassword(ctx, &user, req.Password); err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to reset password!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password reset successfully.", nil)
}

// ChangePassword updates the password of the logged-in user.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	req := c.Locals("validatedChangePassword").(*authValidator.ChangePasswordRequest)
	ctx := c.UserContext()

	var user models.User
	if err := h.db.WithContext(ctx).Where("is_deleted = ?", false).First(&user, middleware.UserID(c)).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}
	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Current password is incorrect!", nil)
	}
	if err := h.setPassword(ctx, &user, req.NewPassword); err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to change password!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password changed successfully.", nil)
}

func (h *Handler) setPassword(ctx context.Context, user *models.User, password string) error {
	hashed, err := utils.HashPassword(password, h.saltRound)
	if err != nil {
		h.logger.Error("hashing password failed", "user_id", user.ID, "error", err)
		return err
	}
	if err := h.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		h.logger.Error("saving password failed", "user_id", user.ID, "error", err)
		return err
	}
	user.Password = hashed
	return nil
}

// LoginHistoryList pages through the caller's successful logins.
func (h *Handler) LoginHistoryList(c *fiber.Ctx) error {
	page, limit := validators.PaginationFrom(c)
	userID := middleware.UserID(c)

	var (
		history []models.LoginTracking
		total   int64
	)
	q := h.db.WithContext(c.UserContext()).Model(&models.LoginTracking{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch login history!", nil)
	}
	if err := q.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&history).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch login history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login history fetched successfully.", fiber.Map{
		"items": history,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
