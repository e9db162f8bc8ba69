package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"multiproduct/models"
	"multiproduct/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	tokenTypeAccess        = "access"
	tokenTypePasswordReset = "password_reset"

	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = 30 * time.Minute
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Tokens signs and verifies access and password reset tokens with one
// HMAC secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) parse(tokenString, typ string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != typ || claims["userId"] == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateJWT issues an access token for user.
func (t *Tokens) GenerateJWT(user *models.User) (string, error) {
	now := t.now()
	return t.sign(jwt.MapClaims{
		"typ":    tokenTypeAccess,
		"userId": user.ID,
		"role":   user.RoleName(),
		"email":  user.Email,
		"mobile": user.Phone,
		"iat":    now.Unix(),
		"exp":    now.Add(t.ttl).Unix(),
	})
}

// GenerateResetToken issues a password reset token bound to the user's
// current password hash, so it stops working once the password changes.
func (t *Tokens) GenerateResetToken(user *models.User) (string, error) {
	now := t.now()
	return t.sign(jwt.MapClaims{
		"typ":    tokenTypePasswordReset,
		"userId": user.ID,
		"fp":     utils.Fingerprint(user.Password),
		"iat":    now.Unix(),
		"exp":    now.Add(ResetTokenTTL).Unix(),
	})
}

// ParseResetToken returns the user id and password fingerprint carried by
// a reset token.
func (t *Tokens) ParseResetToken(tokenString string) (uint, string, error) {
	claims, err := t.parse(tokenString, tokenTypePasswordReset)
	if err != nil {
		return 0, "", err
	}
	id, _ := claims["userId"].(float64)
	fp, _ := claims["fp"].(string)
	if id <= 0 || fp == "" {
		return 0, "", ErrInvalidToken
	}
	return uint(id), fp, nil
}

// JWTMiddleware checks the bearer access token and stores userId and role
// in the request locals.
func (t *Tokens) JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Missing or invalid Authorization header", nil)
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid Authorization header format", nil)
		}

		claims, err := t.parse(authHeader[len("Bearer "):], tokenTypeAccess)
		if err != nil {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid or expired token", nil)
		}

		// numeric claims decode as float64
		userID, _ := claims["userId"].(float64)
		if userID <= 0 {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid token payload", nil)
		}
		role, _ := claims["role"].(string)
		c.Locals("userId", uint(userID))
		c.Locals("role", role)

		return c.Next()
	}
}

// UserID returns the authenticated user id set by JWTMiddleware.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userId").(uint)
	return id
}
