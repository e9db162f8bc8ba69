package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateOTPFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestFingerprintChangesWithSecret(t *testing.T) {
	assert.Equal(t, Fingerprint("a"), Fingerprint("a"))
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
	assert.Len(t, Fingerprint("a"), 16)
}

func TestEmailTemplatesEscapeInput(t *testing.T) {
	email := WelcomeEmail("<b>Eve</b>")
	assert.Contains(t, email.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
	assert.NotContains(t, email.HTML, "<b>Eve</b>")
}

func TestExpiryReminderWording(t *testing.T) {
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Contains(t, ExpiryReminderEmail("Ann", "Pro", end, 1, "http://x").Subject, "tomorrow")
	assert.Contains(t, ExpiryReminderEmail("Ann", "Pro", end, 7, "http://x").Subject, "in 7 days")
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello world", stripTags("<p>Hello</p>\n<b>world</b>"))
}
