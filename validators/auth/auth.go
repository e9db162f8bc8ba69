package authValidator

import (
	"strings"

	"multiproduct/validators"

	"github.com/gofiber/fiber/v2"
)

type SignupRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"required,phone"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// Normalize lowercases the email and trims names.
func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest accepts email or phone with a password, or email with an OTP.
type LoginRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Password string `json:"password" validate:"omitempty,max=128"`
	OTP      string `json:"otp" validate:"omitempty,otp"`
}

func (r *LoginRequest) Check() map[string]string {
	errs := map[string]string{}
	if r.Email == "" && r.Phone == "" {
		errs["credentials"] = "Either email or mobile number is required!"
	}
	switch {
	case r.Password == "" && r.OTP == "":
		errs["password"] = "Either password or otp is required!"
	case r.Password != "" && r.OTP != "":
		errs["otp"] = "Send either password or otp, not both!"
	case r.OTP != "" && r.Email == "":
		errs["email"] = "OTP login requires an email!"
	}
	return errs
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func Signup() fiber.Handler {
	return validators.Body[SignupRequest]("validatedSignup")
}

func VerifyOTP() fiber.Handler {
	return validators.Body[VerifyOTPRequest]("validatedVerifyOTP")
}

// Email validates bodies that only carry an email address.
func Email() fiber.Handler {
	return validators.Body[EmailRequest]("validatedEmail")
}

func Login() fiber.Handler {
	return validators.Body[LoginRequest]("validatedLogin")
}

func ResetPassword() fiber.Handler {
	return validators.Body[ResetPasswordRequest]("validatedResetPassword")
}

func ChangePassword() fiber.Handler {
	return validators.Body[ChangePasswordRequest]("validatedChangePassword")
}

func LoginHistoryList() fiber.Handler {
	return validators.Paginate()
}
