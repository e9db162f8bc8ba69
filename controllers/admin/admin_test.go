package adminController

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"multiproduct/middleware"
	"multiproduct/policy"
	"multiproduct/services/payment"
	"multiproduct/services/subscription"
	"multiproduct/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cleanerFunc func(ctx context.Context) (int64, error)

func (f cleanerFunc) Cleanup(ctx context.Context) (int64, error) { return f(ctx) }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	app           *fiber.App
	adminToken    string
	customerToken string
}

func newHarness(t *testing.T, cleaner OTPCleaner) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	subs := subscription.NewService(db, payment.NewStubGateway(true), &testutil.Dispatcher{}, subscription.WithLogger(testutil.Logger()))
	h := NewHandler(subs, cleaner, testutil.Logger())
	tokens := middleware.NewTokens("test-secret", time.Hour)

	app := fiber.New()
	group := app.Group("/admin", tokens.JWTMiddleware())
	group.Post("/subscriptions/sweep", middleware.RequirePermission(db, policy.SubscriptionSweep), h.SweepSubscriptions)
	group.Post("/subscriptions/reminders", middleware.RequirePermission(db, policy.SubscriptionSweep), h.DispatchReminders)
	group.Post("/otp/cleanup", middleware.RequirePermission(db, policy.OTPCleanup), h.CleanupOTPs)

	adminToken, err := tokens.GenerateJWT(testutil.CreateAdmin(t, db, "root@example.com"))
	require.NoError(t, err)
	customerToken, err := tokens.GenerateJWT(testutil.CreateUser(t, db, "plain@example.com", true))
	require.NoError(t, err)
	return &harness{app: app, adminToken: adminToken, customerToken: customerToken}
}

func (h *harness) post(t *testing.T, token, path string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestAdminRunsMaintenance(t *testing.T) {
	h := newHarness(t, cleanerFunc(func(context.Context) (int64, error) { return 3, nil }))

	status, env := h.post(t, h.adminToken, "/admin/subscriptions/sweep")
	require.Equal(t, fiber.StatusOK, status)
	var res subscription.SweepResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, subscription.SweepResult{}, res)

	status, env = h.post(t, h.adminToken, "/admin/subscriptions/reminders")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"sent":0}`, string(env.Data))

	status, env = h.post(t, h.adminToken, "/admin/otp/cleanup")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"removed":3}`, string(env.Data))
}

func TestCustomerIsForbidden(t *testing.T) {
	h := newHarness(t, cleanerFunc(func(context.Context) (int64, error) { return 0, nil }))

	for _, path := range []string{"/admin/subscriptions/sweep", "/admin/subscriptions/reminders", "/admin/otp/cleanup"} {
		status, env := h.post(t, h.customerToken, path)
		assert.Equal(t, fiber.StatusForbidden, status, path)
		assert.False(t, env.Success)
	}
}

func TestCleanupFailureIsReported(t *testing.T) {
	h := newHarness(t, cleanerFunc(func(context.Context) (int64, error) { return 0, errors.New("db gone") }))

	status, env := h.post(t, h.adminToken, "/admin/otp/cleanup")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "OTP cleanup failed!", env.Message)
}
