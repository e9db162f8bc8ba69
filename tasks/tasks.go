// Package tasks holds the queue handlers that deliver emails, SMS and
// in-app notifications.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"multiproduct/models"
	"multiproduct/queue"
	"multiproduct/services/subscription"
	"multiproduct/utils"
)

// Notifier stores an in-app notification.
type Notifier interface {
	Create(ctx context.Context, receiverID uint, senderID *uint, title, message string, data map[string]any) (*models.Notification, error)
}

type Runner struct {
	mailer        utils.Mailer
	sms           utils.SMSSender
	notifications Notifier
	frontendURL   string
	logger        *slog.Logger
}

func NewRunner(mailer utils.Mailer, sms utils.SMSSender, notifications Notifier, frontendURL string, logger *slog.Logger) *Runner {
	return &Runner{
		mailer:        mailer,
		sms:           sms,
		notifications: notifications,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		logger:        logger,
	}
}

// Register binds every job kind the service emits.
func (r *Runner) Register(reg *queue.Registry) {
	reg.Register(queue.KindOTPSend, r.sendOTP)
	reg.Register(queue.KindWelcomeEmail, r.welcome)
	reg.Register(queue.KindAccountExistsEmail, r.accountExists)
	reg.Register(queue.KindPasswordResetEmail, r.passwordReset)
	reg.Register(queue.KindSubscriptionConfirmation, r.subscriptionEmail)
	reg.Register(queue.KindSubscriptionCancelled, r.subscriptionEmail)
	reg.Register(queue.KindSubscriptionRenewed, r.subscriptionEmail)
	reg.Register(queue.KindSubscriptionExpired, r.subscriptionEmail)
	reg.Register(queue.KindSubscriptionRenewalFailed, r.subscriptionEmail)
	reg.Register(queue.KindSubscriptionExpiryReminder, r.subscriptionEmail)
	reg.Register(queue.KindNotificationCreate, r.createNotification)
}

func (r *Runner) link(path string) string {
	return r.frontendURL + path
}

func (r *Runner) sendOTP(ctx context.Context, job queue.Job) error {
	code := job.String("code")
	if code == "" {
		return errors.New("otp job without code")
	}
	ttl := job.Int("ttl_minutes")
	if err := r.mailer.Send(ctx, job.Recipient, utils.OTPEmail(code, ttl)); err != nil {
		return err
	}
	// a failed SMS must not resend the email on retry
	if phone := job.String("phone"); phone != "" {
		if err := r.sms.Send(ctx, phone, utils.OTPText(code, ttl)); err != nil {
			r.logger.Warn("otp sms failed", "user_id", job.Uint("user_id"), "error", err)
		}
	}
	return nil
}

func (r *Runner) welcome(ctx context.Context, job queue.Job) error {
	return r.mailer.Send(ctx, job.Recipient, utils.WelcomeEmail(job.String("name")))
}

func (r *Runner) accountExists(ctx context.Context, job queue.Job) error {
	return r.mailer.Send(ctx, job.Recipient, utils.AccountExistsEmail(r.link("/login"), r.link("/forgot-password")))
}

func (r *Runner) passwordReset(ctx context.Context, job queue.Job) error {
	link := job.String("link")
	if link == "" {
		return errors.New("password reset job without link")
	}
	ttl := time.Duration(job.Int("ttl_minutes")) * time.Minute
	return r.mailer.Send(ctx, job.Recipient, utils.PasswordResetEmail(job.String("name"), link, ttl))
}

func (r *Runner) subscriptionEmail(ctx context.Context, job queue.Job) error {
	name := job.String("name")
	product := job.String("product")
	end, err := time.Parse(subscription.DateLayout, job.String("end_date"))
	if err != nil {
		return fmt.Errorf("bad end_date in %s job: %w", job.Kind, err)
	}
	renewURL := r.link("/subscriptions")

	var content utils.EmailContent
	switch job.Kind {
	case queue.KindSubscriptionConfirmation:
		content = utils.SubscriptionConfirmationEmail(name, product, job.String("plan"), end, job.Bool("trial"))
	case queue.KindSubscriptionCancelled:
		content = utils.SubscriptionCancelledEmail(name, product, end)
	case queue.KindSubscriptionRenewed:
		content = utils.SubscriptionRenewedEmail(name, product, end)
	case queue.KindSubscriptionExpired:
		content = utils.SubscriptionExpiredEmail(name, product, renewURL)
	case queue.KindSubscriptionRenewalFailed:
		content = utils.RenewalFailedEmail(name, product, renewURL)
	case queue.KindSubscriptionExpiryReminder:
		content = utils.ExpiryReminderEmail(name, product, end, job.Int("days"), renewURL)
	default:
		return fmt.Errorf("%w: %s", queue.ErrNoHandler, job.Kind)
	}
	return r.mailer.Send(ctx, job.Recipient, content)
}

func (r *Runner) createNotification(ctx context.Context, job queue.Job) error {
	receiver := job.Uint("receiver_id")
	if receiver == 0 {
		return errors.New("notification job without receiver")
	}
	var sender *uint
	if id := job.Uint("sender_id"); id != 0 {
		sender = &id
	}
	_, err := r.notifications.Create(ctx, receiver, sender, job.String("title"), job.String("message"), job.Map("data"))
	return err
}
