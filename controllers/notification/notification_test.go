package notificationController

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"multiproduct/middleware"
	"multiproduct/models"
	"multiproduct/policy"
	"multiproduct/services/notification"
	"multiproduct/testutil"
	notificationValidator "multiproduct/validators/notification"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*fiber.App, *notification.Service, *models.User, string) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := notification.NewService(db)
	tokens := middleware.NewTokens("test-secret", time.Hour)
	h := NewHandler(svc, testutil.Logger())

	app := fiber.New()
	group := app.Group("/notifications", tokens.JWTMiddleware())
	group.Get("/", middleware.RequirePermission(db, policy.NotificationView), notificationValidator.List(), h.List)
	group.Patch("/:id/read", middleware.RequirePermission(db, policy.NotificationUpdate), h.MarkRead)

	user := testutil.CreateUser(t, db, "reader@example.com", true)
	token, err := tokens.GenerateJWT(user)
	require.NoError(t, err)
	return app, svc, user, token
}

func call(t *testing.T, app *fiber.App, token, method, path string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestListAndMarkRead(t *testing.T) {
	app, svc, user, token := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, user.ID, nil, "Welcome", "Thanks for joining", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, user.ID, nil, "Renewed", "Your plan was renewed", map[string]any{"subscription_id": 4})
	require.NoError(t, err)

	status, env := call(t, app, token, fiber.MethodGet, "/notifications?page=1&limit=10")
	require.Equal(t, fiber.StatusOK, status)
	var page struct {
		Items  []models.Notification `json:"items"`
		Total  int64                 `json:"total"`
		Unread int64                 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, 2, page.Unread)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Renewed", page.Items[0].Title)

	status, _ = call(t, app, token, fiber.MethodPatch, fmt.Sprintf("/notifications/%d/read", first.ID))
	require.Equal(t, fiber.StatusOK, status)

	_, env = call(t, app, token, fiber.MethodGet, "/notifications")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Unread)
}

func TestMarkReadRejectsForeignAndBadIDs(t *testing.T) {
	app, svc, user, token := setup(t)

	other, err := svc.Create(context.Background(), user.ID+1, nil, "Private", "not yours", nil)
	require.NoError(t, err)

	status, _ := call(t, app, token, fiber.MethodPatch, fmt.Sprintf("/notifications/%d/read", other.ID))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = call(t, app, token, fiber.MethodPatch, "/notifications/zero/read")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestListRequiresToken(t *testing.T) {
	app, _, _, _ := setup(t)

	status, env := call(t, app, "", fiber.MethodGet, "/notifications")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.False(t, env.Success)
}
