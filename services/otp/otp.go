// Package otp issues, rate-limits, verifies and purges one-time passcodes.
//
// Each user has at most one live code: issuing a new one retires every
// earlier unused code in the same transaction. Verification locks the
// live row so concurrent attempts serialise.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"multiproduct/models"
	"multiproduct/queue"
	"multiproduct/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TTL               = 10 * time.Minute
	MaxFailedAttempts = 5

	DailyLimit  = 10
	DailyWindow = 24 * time.Hour
	BurstLimit  = 3
	BurstWindow = 10 * time.Minute

	// Rows younger than this are kept by Cleanup so the daily cap still sees them.
	RetentionWindow = DailyWindow
)

var (
	ErrRateLimited = errors.New("too many OTP requests")
	ErrNoActiveOTP = errors.New("no active OTP, request a new code")
	ErrInvalidOTP  = errors.New("invalid OTP")
	ErrLockedOut   = errors.New("too many failed attempts, request a new code")
)

type RateLimitError struct {
	Scope      string // "daily" or "burst"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s OTP limit of %d reached, retry in %s", e.Scope, e.Limit, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	if e.Remaining > 0 {
		return fmt.Sprintf("invalid OTP, %d attempt(s) remaining", e.Remaining)
	}
	return "invalid OTP, no attempts remaining, request a new code"
}

func (e *InvalidCodeError) Is(target error) bool { return target == ErrInvalidOTP }

type Service struct {
	db         *gorm.DB
	dispatcher queue.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	generate   func() (string, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.generate = gen }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(db *gorm.DB, dispatcher queue.Dispatcher, opts ...Option) *Service {
	s := &Service{
		db:         db,
		dispatcher: dispatcher,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		generate:   utils.GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Issue creates a new code for user after checking the daily and burst
// caps, and queues its delivery once the row is committed.
func (s *Service) Issue(ctx context.Context, user *models.User, purpose models.OTPPurpose) (*models.OTP, error) {
	code, err := s.generate()
	if err != nil {
		return nil, err
	}
	now := s.clock()
	record := &models.OTP{
		UserID:    user.ID,
		Code:      code,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(TTL),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialise issuance per user so concurrent requests cannot slip past the caps
		var locked models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&locked, user.ID).Error; err != nil {
			return err
		}

		if err := checkWindow(tx, user.ID, now, DailyWindow, DailyLimit, "daily"); err != nil {
			return err
		}
		if err := checkWindow(tx, user.ID, now, BurstWindow, BurstLimit, "burst"); err != nil {
			return err
		}

		if err := tx.Model(&models.OTP{}).
			Where("user_id = ? AND is_used = ?", user.ID, false).
			Update("is_used", true).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			s.logger.Warn("otp rate limited", "user_id", user.ID, "scope", rl.Scope, "retry_after", rl.RetryAfter)
		}
		return nil, err
	}

	s.dispatcher.Enqueue(ctx, queue.KindOTPSend, user.Email, map[string]any{
		"user_id":     user.ID,
		"phone":       user.Phone,
		"code":        code,
		"purpose":     string(purpose),
		"ttl_minutes": int(TTL.Minutes()),
	})
	s.logger.Info("otp issued", "user_id", user.ID, "purpose", purpose, "otp_id", record.ID)
	return record, nil
}

// checkWindow counts every issuance at or after now-window, whatever its state.
func checkWindow(tx *gorm.DB, userID uint, now time.Time, window time.Duration, limit int, scope string) error {
	cutoff := now.Add(-window)
	var count int64
	if err := tx.Model(&models.OTP{}).
		Where("user_id = ? AND issued_at >= ?", userID, cutoff).
		Count(&count).Error; err != nil {
		return err
	}
	if count < int64(limit) {
		return nil
	}

	var oldest models.OTP
	if err := tx.Where("user_id = ? AND issued_at >= ?", userID, cutoff).
		Order("issued_at ASC").
		First(&oldest).Error; err != nil {
		return err
	}
	retry := oldest.IssuedAt.Add(window).Sub(now)
	if retry <= 0 {
		retry = time.Second
	}
	return &RateLimitError{Scope: scope, Limit: limit, RetryAfter: retry}
}

// Verify checks submitted against the user's live code. A failed
// comparison is committed before the error is returned so the attempt
// counter survives.
func (s *Service) Verify(ctx context.Context, user *models.User, submitted string) error {
	now := s.clock()
	var result error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.OTP
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND is_used = ? AND expires_at > ?", user.ID, false, now).
			Order("issued_at DESC").
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = ErrNoActiveOTP
			return nil
		}
		if err != nil {
			return err
		}

		if record.FailedAttempts >= MaxFailedAttempts {
			result = ErrLockedOut
			return tx.Model(&record).Update("is_used", true).Error
		}

		if subtle.ConstantTimeCompare([]byte(record.Code), []byte(submitted)) != 1 {
			record.FailedAttempts++
			remaining := MaxFailedAttempts - record.FailedAttempts
			if remaining < 0 {
				remaining = 0
			}
			result = &InvalidCodeError{Remaining: remaining}
			return tx.Model(&record).Update("failed_attempts", record.FailedAttempts).Error
		}

		return tx.Model(&record).Update("is_used", true).Error
	})
	if err != nil {
		return err
	}
	if result != nil {
		s.logger.Info("otp verification failed", "user_id", user.ID, "reason", result.Error())
		return result
	}
	s.logger.Info("otp verified", "user_id", user.ID)
	return nil
}

// Cleanup deletes codes that are used or expired and older than the
// retention window. It returns the number of rows removed.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	now := s.clock()
	res := s.db.WithContext(ctx).
		Where("(is_used = ? OR expires_at <= ?) AND issued_at < ?", true, now, now.Add(-RetentionWindow)).
		Delete(&models.OTP{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Active returns the user's live code, if any.
func (s *Service) Active(ctx context.Context, userID uint) (*models.OTP, error) {
	var record models.OTP
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_used = ? AND expires_at > ?", userID, false, s.clock()).
		Order("issued_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveOTP
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
