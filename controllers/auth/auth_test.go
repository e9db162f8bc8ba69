package authController

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"multiproduct/middleware"
	"multiproduct/models"
	"multiproduct/queue"
	"multiproduct/services/otp"
	"multiproduct/testutil"
	"multiproduct/validators"
	authValidators "multiproduct/validators/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	db         *gorm.DB
	app        *fiber.App
	dispatcher *testutil.Dispatcher
	tokens     *middleware.Tokens
	codes      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:         testutil.NewDB(t),
		dispatcher: &testutil.Dispatcher{},
		tokens:     middleware.NewTokens("test-secret", time.Hour),
	}
	otps := otp.NewService(f.db, f.dispatcher,
		otp.WithLogger(testutil.Logger()),
		otp.WithCodeGenerator(func() (string, error) {
			f.codes++
			return fmt.Sprintf("%06d", 200000+f.codes), nil
		}),
	)
	h := NewHandler(f.db, otps, f.tokens, f.dispatcher, 4, "https://app.example.com", testutil.Logger())

	f.app = fiber.New()
	g := f.app.Group("/auth")
	g.Post("/signup", authValidators.Signup(), h.Signup)
	g.Post("/verify-otp", authValidators.VerifyOTP(), h.VerifyOTP)
	g.Post("/resend-otp", authValidators.Email(), h.ResendOTP)
	g.Post("/login", authValidators.Login(), h.Login)
	g.Post("/login/otp", authValidators.Email(), h.RequestLoginOTP)
	g.Get("/login/history", f.tokens.JWTMiddleware(), validators.Paginate(), h.LoginHistoryList)
	g.Post("/password/forgot", authValidators.Email(), h.ForgotPassword)
	g.Post("/password/reset", authValidators.ResetPassword(), h.ResetPassword)
	g.Put("/password/change", f.tokens.JWTMiddleware(), authValidators.ChangePassword(), h.ChangePassword)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	jobs := f.dispatcher.ByKind(queue.KindOTPSend)
	require.NotEmpty(t, jobs)
	return jobs[len(jobs)-1].String("code")
}

func (f *fixture) signup(t *testing.T, email, phone string) {
	t.Helper()
	resp, _ := f.do(t, fiber.MethodPost, "/auth/signup", fiber.Map{
		"email": email, "phone": phone, "password": "password123", "firstName": "Ada",
	}, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func tokenFrom(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestSignupAndVerify(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "Ada@Example.com", "+15550000001")

	var user models.User
	require.NoError(t, f.db.Where("email = ?", "ada@example.com").First(&user).Error)
	assert.False(t, user.IsActive)
	assert.Equal(t, "ada", user.Username)

	resp, env := f.do(t, fiber.MethodPost, "/auth/verify-otp", fiber.Map{"email": "ada@example.com", "otp": "999999"}, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"remainingAttempts":4}`, string(env.Data))

	resp, env = f.do(t, fiber.MethodPost, "/auth/verify-otp", fiber.Map{"email": "ada@example.com", "otp": f.lastCode(t)}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	tokenFrom(t, env)

	require.NoError(t, f.db.First(&user, user.ID).Error)
	assert.True(t, user.IsActive)
	assert.NotNil(t, user.LastLogin)
	assert.Len(t, f.dispatcher.ByKind(queue.KindWelcomeEmail), 1)

	resp, _ = f.do(t, fiber.MethodPost, "/auth/verify-otp", fiber.Map{"email": "ada@example.com", "otp": f.lastCode(t)}, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "a code works once")
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, fiber.MethodPost, "/auth/signup", fiber.Map{"email": "bad", "phone": "1", "password": "x"}, "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var errs map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "phone")
	assert.Contains(t, errs, "password")
}

func TestSignupExistingActiveAccountLooksTheSame(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.db, "taken@example.com", true)

	resp, env := f.do(t, fiber.MethodPost, "/auth/signup", fiber.Map{
		"email": "taken@example.com", "phone": "+15550000002", "password": "password123",
	}, "")
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, msgSignup, env.Message)
	assert.Empty(t, f.dispatcher.ByKind(queue.KindOTPSend))
	assert.Len(t, f.dispatcher.ByKind(queue.KindAccountExistsEmail), 1)
}

func TestSignupExistingInactiveAccountReissuesOTP(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "slow@example.com", "+15550000003")
	first := f.lastCode(t)

	f.signup(t, "slow@example.com", "+15550000003")
	assert.NotEqual(t, first, f.lastCode(t))

	var users int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "slow@example.com").Count(&users).Error)
	assert.EqualValues(t, 1, users)
}

func TestSignupPhoneConflict(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "one@example.com", "+15550000004")

	resp, _ := f.do(t, fiber.MethodPost, "/auth/signup", fiber.Map{
		"email": "two@example.com", "phone": "+15550000004", "password": "password123",
	}, "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestResendOTPRateLimited(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "rl@example.com", "+15550000005")

	for i := 0; i < 2; i++ {
		resp, _ := f.do(t, fiber.MethodPost, "/auth/resend-otp", fiber.Map{"email": "rl@example.com"}, "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, env := f.do(t, fiber.MethodPost, "/auth/resend-otp", fiber.Map{"email": "rl@example.com"}, "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	assert.False(t, env.Success)
	assert.Len(t, f.dispatcher.ByKind(queue.KindOTPSend), 3)
}

func TestResendOTPUnknownEmail(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, fiber.MethodPost, "/auth/resend-otp", fiber.Map{"email": "ghost@example.com"}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, msgResent, env.Message)
	assert.Empty(t, f.dispatcher.Jobs())
}

func TestPasswordLogin(t *testing.T) {
	f := newFixture(t)
	active := testutil.CreateUser(t, f.db, "active@example.com", true)
	testutil.CreateUser(t, f.db, "pending@example.com", false)

	resp, env := f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "active@example.com", "password": "password123"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	tokenFrom(t, env)

	resp, _ = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"phone": active.Phone, "password": "password123"}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "active@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgBadCredential, env.Message)

	resp, env = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "ghost@example.com", "password": "password123"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgBadCredential, env.Message)

	resp, _ = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "pending@example.com", "password": "password123"}, "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var logins int64
	require.NoError(t, f.db.Model(&models.LoginTracking{}).Where("user_id = ?", active.ID).Count(&logins).Error)
	assert.EqualValues(t, 2, logins)
}

func TestLoginNeedsCredentials(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "a@example.com"}, "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"phone": "+15550000009", "otp": "123456"}, "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestOTPLogin(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.db, "otp@example.com", true)

	resp, env := f.do(t, fiber.MethodPost, "/auth/login/otp", fiber.Map{"email": "otp@example.com"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, msgLoginOTP, env.Message)
	jobs := f.dispatcher.ByKind(queue.KindOTPSend)
	require.Len(t, jobs, 1)
	assert.Equal(t, "login", jobs[0].String("purpose"))

	resp, env = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "otp@example.com", "otp": f.lastCode(t)}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	tokenFrom(t, env)

	var track models.LoginTracking
	require.NoError(t, f.db.Order("id DESC").First(&track).Error)
	assert.Equal(t, models.LoginMethodOTP, track.Method)
}

func TestOTPLoginUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, fiber.MethodPost, "/auth/login/otp", fiber.Map{"email": "ghost@example.com"}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, msgLoginOTP, env.Message)
	assert.Empty(t, f.dispatcher.Jobs())
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.db, "forgot@example.com", true)

	resp, env := f.do(t, fiber.MethodPost, "/auth/password/forgot", fiber.Map{"email": "forgot@example.com"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, msgForgot, env.Message)

	jobs := f.dispatcher.ByKind(queue.KindPasswordResetEmail)
	require.Len(t, jobs, 1)
	link, err := url.Parse(jobs[0].String("link"))
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")

	body := fiber.Map{"password": "brand-new-pass", "confirmPassword": "brand-new-pass"}
	resp, _ = f.do(t, fiber.MethodPost, "/auth/password/reset?token="+url.QueryEscape(token), body, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/auth/password/reset?token="+url.QueryEscape(token), body, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "reset links are single use")

	resp, _ = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "forgot@example.com", "password": "brand-new-pass"}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, fiber.MethodPost, "/auth/password/forgot", fiber.Map{"email": "ghost@example.com"}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, msgForgot, env.Message)
	assert.Empty(t, f.dispatcher.Jobs())
}

func TestChangePasswordAndHistory(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.db, "change@example.com", true)

	_, env := f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "change@example.com", "password": "password123"}, "")
	token := tokenFrom(t, env)

	resp, _ := f.do(t, fiber.MethodPut, "/auth/password/change", fiber.Map{
		"currentPassword": "wrong-one", "newPassword": "another-pass", "confirmPassword": "another-pass",
	}, token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPut, "/auth/password/change", fiber.Map{
		"currentPassword": "password123", "newPassword": "another-pass", "confirmPassword": "another-pass",
	}, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/auth/login", fiber.Map{"email": "change@example.com", "password": "another-pass"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = f.do(t, fiber.MethodGet, "/auth/login/history?page=1&limit=1", nil, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page struct {
		Items []models.LoginTracking `json:"items"`
		Total int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
}
