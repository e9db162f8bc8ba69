package subscriptionController

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"multiproduct/middleware"
	"multiproduct/models"
	"multiproduct/policy"
	"multiproduct/services/payment"
	"multiproduct/services/subscription"
	"multiproduct/testutil"
	subscriptionValidator "multiproduct/validators/subscription"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	db      *gorm.DB
	app     *fiber.App
	gateway *payment.StubGateway
	token   string
	user    *models.User
	product *models.Product
	plan    *models.SubscriptionPlan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: testutil.NewDB(t), gateway: payment.NewStubGateway(true)}
	tokens := middleware.NewTokens("test-secret", time.Hour)
	svc := subscription.NewService(f.db, f.gateway, &testutil.Dispatcher{}, subscription.WithLogger(testutil.Logger()))
	h := NewHandler(svc, testutil.Logger())

	can := func(a policy.Action) fiber.Handler { return middleware.RequirePermission(f.db, a) }
	f.app = fiber.New()
	f.app.Get("/products", h.ListProducts)
	f.app.Get("/products/:id", h.GetProduct)
	subs := f.app.Group("/subscriptions", tokens.JWTMiddleware())
	subs.Get("/", can(policy.SubscriptionView), h.ListSubscriptions)
	subs.Get("/:id", can(policy.SubscriptionView), h.GetSubscription)
	subs.Post("/trial", can(policy.SubscriptionCreate), subscriptionValidator.Trial(), h.StartTrial)
	subs.Post("/purchase", can(policy.SubscriptionCreate), subscriptionValidator.Purchase(), h.Purchase)
	subs.Post("/:id/upgrade", can(policy.SubscriptionCreate), subscriptionValidator.Upgrade(), h.Upgrade)
	subs.Post("/:id/cancel", can(policy.SubscriptionCancel), h.Cancel)
	subs.Post("/:id/renew", can(policy.SubscriptionRenew), h.Renew)
	inv := f.app.Group("/invoices", tokens.JWTMiddleware())
	inv.Get("/", can(policy.InvoiceView), subscriptionValidator.InvoiceList(), h.ListInvoices)
	inv.Post("/pay", can(policy.InvoicePay), subscriptionValidator.PayInvoices(), h.PayInvoices)

	f.user = testutil.CreateUser(t, f.db, "buyer@example.com", true)
	token, err := tokens.GenerateJWT(f.user)
	require.NoError(t, err)
	f.token = token
	f.product = testutil.CreateProduct(t, f.db, "Analytics", 14)
	f.plan = testutil.CreatePlan(t, f.db, f.product, "Pro", models.PlanMonthly, "50.00")
	require.NoError(t, f.db.Model(f.plan).Update("discount", decimal.NewNullDecimal(decimal.NewFromInt(10))).Error)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func subscriptionFrom(t *testing.T, env envelope) models.UserSubscription {
	t.Helper()
	var sub models.UserSubscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	return sub
}

func TestListProductsShowsFinalPrice(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, fiber.MethodGet, "/products", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var products []struct {
		Name  string `json:"name"`
		Plans []struct {
			Name       string `json:"name"`
			FinalPrice string `json:"finalPrice"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &products))
	require.Len(t, products, 1)
	require.Len(t, products[0].Plans, 1)
	assert.Equal(t, "45.00", products[0].Plans[0].FinalPrice)

	resp, _ = f.do(t, fiber.MethodGet, "/products/9999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTrialThenPurchaseKeepsRow(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, fiber.MethodPost, "/subscriptions/trial", fiber.Map{"productId": f.product.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	trial := subscriptionFrom(t, env)
	assert.Equal(t, models.SubscriptionTrial, trial.Status)

	resp, env = f.do(t, fiber.MethodPost, "/subscriptions/trial", fiber.Map{"productId": f.product.ID})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, subscription.ErrAlreadyTrialed.Error(), env.Error)

	resp, env = f.do(t, fiber.MethodPost, "/subscriptions/purchase", fiber.Map{"productId": f.product.ID, "planId": f.plan.ID, "autoRenew": true})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	paid := subscriptionFrom(t, env)
	assert.Equal(t, trial.ID, paid.ID)
	assert.Equal(t, models.SubscriptionActive, paid.Status)

	resp, _ = f.do(t, fiber.MethodPost, "/subscriptions/purchase", fiber.Map{"productId": f.product.ID, "planId": f.plan.ID})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestUpgradeEndpoint(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, fiber.MethodPost, "/subscriptions/trial", fiber.Map{"productId": f.product.ID})
	trial := subscriptionFrom(t, env)

	resp, env := f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/upgrade", trial.ID), fiber.Map{"planId": f.plan.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, trial.ID, subscriptionFrom(t, env).ID)

	resp, _ = f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/upgrade", trial.ID), fiber.Map{"planId": f.plan.ID})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCancelAndRenewErrors(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, fiber.MethodPost, "/subscriptions/purchase", fiber.Map{"productId": f.product.ID, "planId": f.plan.ID})
	sub := subscriptionFrom(t, env)

	resp, env := f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/renew", sub.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	want := sub.EndDate.AddDate(0, 0, 1+f.plan.DurationDays)
	assert.Equal(t, want.Format(subscription.DateLayout), subscriptionFrom(t, env).EndDate.Format(subscription.DateLayout))

	resp, _ = f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/cancel", sub.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/cancel", sub.ID), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, subscription.ErrNotCancellable.Error(), env.Message)

	resp, _ = f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/renew", sub.ID), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/subscriptions/abc/cancel", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/subscriptions/9999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPurchaseDeclined(t *testing.T) {
	f := newFixture(t)
	f.gateway.Succeed = false

	resp, env := f.do(t, fiber.MethodPost, "/subscriptions/purchase", fiber.Map{"productId": f.product.ID, "planId": f.plan.ID})
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, subscription.ErrPaymentFailed.Error(), env.Message)
}

func TestOtherUsersSubscriptionIsHidden(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateUser(t, f.db, "other@example.com", true)
	svc := subscription.NewService(f.db, payment.NewStubGateway(true), &testutil.Dispatcher{})
	theirs, err := svc.Purchase(context.Background(), other.ID, f.product.ID, f.plan.ID, false)
	require.NoError(t, err)

	resp, _ := f.do(t, fiber.MethodGet, fmt.Sprintf("/subscriptions/%d", theirs.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, fiber.MethodPost, fmt.Sprintf("/subscriptions/%d/cancel", theirs.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestInvoicesListAndPay(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, fiber.MethodPost, "/subscriptions/purchase", fiber.Map{"productId": f.product.ID, "planId": f.plan.ID})
	sub := subscriptionFrom(t, env)

	resp, env := f.do(t, fiber.MethodGet, "/invoices?page=1&limit=10", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page struct {
		Items []models.Invoice `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.EqualValues(t, 1, page.Total)
	assert.True(t, page.Items[0].IsPaid)

	resp, _ = f.do(t, fiber.MethodPost, "/invoices/pay", fiber.Map{"invoiceIds": []uint{page.Items[0].ID}})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	unpaid := models.Invoice{UserID: f.user.ID, SubscriptionID: sub.ID, Amount: decimal.NewFromInt(12), IssuedDate: testutil.Day(2026, 5, 1), DueDate: testutil.Day(2026, 5, 31)}
	require.NoError(t, f.db.Create(&unpaid).Error)
	resp, env = f.do(t, fiber.MethodPost, "/invoices/pay", fiber.Map{"invoiceIds": []uint{unpaid.ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var txn models.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.NotEmpty(t, txn.Ref)

	resp, _ = f.do(t, fiber.MethodPost, "/invoices/pay", fiber.Map{"invoiceIds": []uint{}})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
