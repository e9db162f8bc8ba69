package utils

import (
	"fmt"
	"html"
	"time"
)

const (
	brandName  = "MultiProduct"
	dateLayout = "January 2, 2006"
)

// HTML wrapper shared by every outgoing email
func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; box-shadow: 0 4px 15px rgba(0,0,0,0.05); }
			.header { background-color: #1F2A44; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #1F2A44; line-height: 1.6; }
			.code { text-align: center; color: #2E7D32; font-size: 40px; letter-spacing: 6px; margin: 20px 0; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; border-top: 1px solid #E0E0E0; }
			.btn { display: inline-block; padding: 12px 24px; background-color: #3B82F6; color: #FFFFFF; text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 20px; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #3B82F6; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>%s</h1>
			</div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">
				This is an automated message from %s.
			</div>
		</div>
	</body>
	</html>
	`, brandName, html.EscapeString(title), bodyContent, brandName)
}

func OTPEmail(code string, ttlMinutes int) EmailContent {
	body := fmt.Sprintf(`
		<p>Your one time password is:</p>
		<div class="code">%s</div>
		<p>It expires in %d minutes. Do not share this code with anyone.</p>
	`, html.EscapeString(code), ttlMinutes)
	return EmailContent{
		Subject: "Your verification code",
		HTML:    getEmailTemplate("Verification Code", body),
	}
}

// OTPText is the SMS body for a code.
func OTPText(code string, ttlMinutes int) string {
	return fmt.Sprintf("%s: your verification code is %s. It expires in %d minutes.", brandName, code, ttlMinutes)
}

func WelcomeEmail(name string) EmailContent {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Welcome to <strong>%s</strong>! Your account is now active.</p>
		<p>You can start a free trial or subscribe to any of our products from your dashboard.</p>
	`, html.EscapeString(name), brandName)
	return EmailContent{
		Subject: "Welcome to " + brandName,
		HTML:    getEmailTemplate("Welcome Onboard!", body),
	}
}

func AccountExistsEmail(loginURL, resetURL string) EmailContent {
	body := fmt.Sprintf(`
		<p>Someone tried to create a new account with this email address, but an account already exists.</p>
		<p>If this was you, sign in instead or reset your password.</p>
		<a class="btn" href="%s">Sign in</a>
		<p style="margin-top: 20px;">Forgot your password? <a href="%s">Reset it here</a>.</p>
		<p>If this wasn't you, you can ignore this email.</p>
	`, html.EscapeString(loginURL), html.EscapeString(resetURL))
	return EmailContent{
		Subject: "Sign-up attempt on your account",
		HTML:    getEmailTemplate("You already have an account", body),
	}
}

func PasswordResetEmail(name, link string, ttl time.Duration) EmailContent {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>We received a request to reset your password. The link below is valid for %d minutes.</p>
		<a class="btn" href="%s">Reset Password</a>
		<p style="margin-top: 20px;">If you did not request this, you can ignore this email.</p>
	`, html.EscapeString(name), int(ttl.Minutes()), html.EscapeString(link))
	return EmailContent{
		Subject: "Reset your password",
		HTML:    getEmailTemplate("Password Reset", body),
	}
}

func SubscriptionConfirmationEmail(name, product, plan string, end time.Time, trial bool) EmailContent {
	title, subject := "Subscription Successful", "Subscription Confirmed: "+product
	intro := fmt.Sprintf("You are now subscribed to <strong>%s</strong> on the <strong>%s</strong> plan.",
		html.EscapeString(product), html.EscapeString(plan))
	if trial {
		title, subject = "Your Trial Has Started", "Trial Started: "+product
		intro = fmt.Sprintf("Your free trial of <strong>%s</strong> has started.", html.EscapeString(product))
	}
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>%s</p>
		<div class="info-box">Access is valid until <strong>%s</strong>.</div>
	`, html.EscapeString(name), intro, end.Format(dateLayout))
	return EmailContent{Subject: subject, HTML: getEmailTemplate(title, body)}
}

func SubscriptionCancelledEmail(name, product string, end time.Time) EmailContent {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your subscription to <strong>%s</strong> has been cancelled and will not renew.</p>
		<p>The subscription period was scheduled to end on %s.</p>
	`, html.EscapeString(name), html.EscapeString(product), end.Format(dateLayout))
	return EmailContent{
		Subject: "Subscription Cancelled: " + product,
		HTML:    getEmailTemplate("Subscription Cancelled", body),
	}
}

func SubscriptionRenewedEmail(name, product string, end time.Time) EmailContent {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your subscription to <strong>%s</strong> has been renewed.</p>
		<div class="info-box">New end date: <strong>%s</strong></div>
	`, html.EscapeString(name), html.EscapeString(product), end.Format(dateLayout))
	return EmailContent{
		Subject: "Subscription Renewed: " + product,
		HTML:    getEmailTemplate("Subscription Renewed", body),
	}
}

func SubscriptionExpiredEmail(name, product, renewURL string) EmailContent {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your subscription to <strong>%s</strong> has expired.</p>
		<a class="btn" href="%s">Renew Subscription</a>
	`, html.EscapeString(name), html.EscapeString(product), html.EscapeString(renewURL))
	return EmailContent{
		Subject: "Subscription Expired: " + product,
		HTML:    getEmailTemplate("Subscription Expired", body),
	}
}

func RenewalFailedEmail(name, product, renewURL string) EmailContent {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>We could not renew your subscription to <strong>%s</strong> because the payment did not go through.</p>
		<p>Your subscription has expired. You can renew manually at any time.</p>
		<a class="btn" href="%s">Renew Now</a>
	`, html.EscapeString(name), html.EscapeString(product), html.EscapeString(renewURL))
	return EmailContent{
		Subject: "Renewal Failed: " + product,
		HTML:    getEmailTemplate("Automatic Renewal Failed", body),
	}
}

func ExpiryReminderEmail(name, product string, end time.Time, days int, renewURL string) EmailContent {
	when := fmt.Sprintf("in %d days", days)
	if days == 1 {
		when = "tomorrow"
	}
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your subscription to <strong>%s</strong> expires %s, on <strong>%s</strong>.</p>
		<p>Renew now to keep uninterrupted access.</p>
		<a class="btn" href="%s">Renew Now</a>
	`, html.EscapeString(name), html.EscapeString(product), when, end.Format(dateLayout), html.EscapeString(renewURL))
	return EmailContent{
		Subject: fmt.Sprintf("Your %s subscription expires %s", product, when),
		HTML:    getEmailTemplate("Subscription Expiring Soon", body),
	}
}
