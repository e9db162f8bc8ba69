// Package subscription runs the per-product subscription lifecycle:
// trial, purchase, upgrade, cancel, renew and the daily expiry sweep.
//
// Every mutation locks the user row first and the subscription row
// second, so operations for one user serialise and at most one trial or
// active subscription exists per user and product.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"multiproduct/models"
	"multiproduct/queue"
	"multiproduct/services/payment"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const trialPlanName = "Free Trial"

type Service struct {
	db         *gorm.DB
	gateway    payment.Gateway
	dispatcher queue.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(db *gorm.DB, gateway payment.Gateway, dispatcher queue.Dispatcher, opts ...Option) *Service {
	s := &Service{
		db:         db,
		gateway:    gateway,
		dispatcher: dispatcher,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the current calendar day at UTC midnight.
func (s *Service) today() time.Time {
	return now.With(s.now().UTC()).BeginningOfDay()
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Clauses(forUpdate).Where("is_deleted = ?", false).First(&user, userID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func lockSubscription(tx *gorm.DB, userID, subscriptionID uint) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := tx.Clauses(forUpdate).Where("user_id = ?", userID).First(&sub, subscriptionID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func activeProduct(tx *gorm.DB, productID uint) (*models.Product, error) {
	var product models.Product
	if err := tx.Where("is_active = ?", true).First(&product, productID).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func loadProduct(tx *gorm.DB, productID uint) (*models.Product, error) {
	var product models.Product
	if err := tx.First(&product, productID).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func loadPlan(tx *gorm.DB, planID uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := tx.First(&plan, planID).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

// paidPlan loads planID and checks it is a non-trial plan of productID.
func paidPlan(tx *gorm.DB, productID, planID uint) (*models.SubscriptionPlan, error) {
	plan, err := loadPlan(tx, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsTrial || plan.ProductID != productID {
		return nil, ErrInvalidPlan
	}
	return plan, nil
}

// liveSubscription returns the trial or active row for (user, product),
// ignoring excludeID, or nil when there is none.
func liveSubscription(tx *gorm.DB, userID, productID, excludeID uint) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	q := tx.Clauses(forUpdate).
		Where("user_id = ? AND product_id = ? AND status IN ?", userID, productID, models.LiveStatuses)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Order("id").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// trialPlan gets or creates the shared zero-price plan used by trials.
func trialPlan(tx *gorm.DB, product *models.Product) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := tx.Where(models.SubscriptionPlan{ProductID: product.ID, IsTrial: true}).
		Attrs(models.SubscriptionPlan{
			Name:         trialPlanName,
			PlanType:     models.PlanWeekly,
			DurationDays: *product.TrialDuration,
			Price:        decimal.Zero,
		}).
		FirstOrCreate(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// charge runs inside the caller's row transaction, before its writes. A
// rollback after an approved charge leaves money taken with no record, so
// a real gateway needs an idempotency key per attempt or a refund path.
func (s *Service) charge(ctx context.Context, userID uint, amount decimal.Decimal) (payment.Result, error) {
	if !amount.IsPositive() {
		return payment.Result{Method: "none"}, nil
	}
	res, err := s.gateway.Charge(ctx, userID, amount)
	if err != nil {
		return payment.Result{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return res, nil
}

// CreateTrial starts the product's free trial. A user gets one trial per
// product, ever.
func (s *Service) CreateTrial(ctx context.Context, userID, productID uint) (*models.UserSubscription, error) {
	var (
		sub models.UserSubscription
		ev  event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		product, err := activeProduct(tx, productID)
		if err != nil {
			return err
		}
		if !product.HasTrial() {
			return ErrTrialUnavailable
		}

		var trialed int64
		if err := tx.Model(&models.UserSubscription{}).
			Where("user_id = ? AND product_id = ? AND (status = ? OR trial_used = ?)",
				userID, productID, models.SubscriptionTrial, true).
			Count(&trialed).Error; err != nil {
			return err
		}
		if trialed > 0 {
			return ErrAlreadyTrialed
		}

		live, err := liveSubscription(tx, userID, productID, 0)
		if err != nil {
			return err
		}
		if live != nil {
			return ErrAlreadyActive
		}

		plan, err := trialPlan(tx, product)
		if err != nil {
			return err
		}

		start := s.today()
		sub = models.UserSubscription{
			UserID:    userID,
			ProductID: productID,
			PlanID:    plan.ID,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, *product.TrialDuration),
			Status:    models.SubscriptionTrial,
			TrialUsed: true,
		}
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		ev = newEvent(queue.KindSubscriptionConfirmation, user, &sub, product, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trial started", "user_id", userID, "product_id", productID, "subscription_id", sub.ID)
	s.emit(ctx, ev)
	return &sub, nil
}

// Purchase buys planID for productID. An existing trial is upgraded in
// place instead of creating a second row.
func (s *Service) Purchase(ctx context.Context, userID, productID, planID uint, autoRenew bool) (*models.UserSubscription, error) {
	var (
		sub models.UserSubscription
		ev  event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		product, err := activeProduct(tx, productID)
		if err != nil {
			return err
		}
		plan, err := paidPlan(tx, productID, planID)
		if err != nil {
			return err
		}

		live, err := liveSubscription(tx, userID, productID, 0)
		if err != nil {
			return err
		}
		if live != nil {
			if live.Status != models.SubscriptionTrial {
				return ErrAlreadyActive
			}
			if err := s.upgradeLocked(ctx, tx, live, plan, autoRenew); err != nil {
				return err
			}
			sub = *live
			ev = newEvent(queue.KindSubscriptionConfirmation, user, &sub, product, plan)
			return nil
		}

		amount := plan.FinalPrice()
		result, err := s.charge(ctx, userID, amount)
		if err != nil {
			return err
		}

		start := s.today()
		sub = models.UserSubscription{
			UserID:    userID,
			ProductID: productID,
			PlanID:    plan.ID,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, plan.DurationDays),
			Status:    models.SubscriptionActive,
			AutoRenew: autoRenew,
		}
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		if _, _, err := s.bill(tx, &sub, amount, result); err != nil {
			return err
		}
		ev = newEvent(queue.KindSubscriptionConfirmation, user, &sub, product, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription purchased", "user_id", userID, "product_id", productID, "plan_id", planID, "subscription_id", sub.ID)
	s.emit(ctx, ev)
	return &sub, nil
}

// UpgradeFromTrial converts a trial to a paid plan on the same row.
func (s *Service) UpgradeFromTrial(ctx context.Context, userID, subscriptionID, planID uint, autoRenew bool) (*models.UserSubscription, error) {
	var (
		sub *models.UserSubscription
		ev  event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		sub, err = lockSubscription(tx, userID, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != models.SubscriptionTrial {
			return ErrNotTrial
		}
		product, err := loadProduct(tx, sub.ProductID)
		if err != nil {
			return err
		}
		plan, err := paidPlan(tx, sub.ProductID, planID)
		if err != nil {
			return err
		}
		if err := s.upgradeLocked(ctx, tx, sub, plan, autoRenew); err != nil {
			return err
		}
		ev = newEvent(queue.KindSubscriptionConfirmation, user, sub, product, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trial upgraded", "user_id", userID, "subscription_id", sub.ID, "plan_id", planID)
	s.emit(ctx, ev)
	return sub, nil
}

func (s *Service) upgradeLocked(ctx context.Context, tx *gorm.DB, sub *models.UserSubscription, plan *models.SubscriptionPlan, autoRenew bool) error {
	if sub.Status != models.SubscriptionTrial {
		return ErrNotTrial
	}
	amount := plan.FinalPrice()
	result, err := s.charge(ctx, sub.UserID, amount)
	if err != nil {
		return err
	}

	start := s.today()
	end := start.AddDate(0, 0, plan.DurationDays)
	if err := tx.Model(sub).Updates(map[string]any{
		"plan_id":           plan.ID,
		"start_date":        start,
		"end_date":          end,
		"status":            models.SubscriptionActive,
		"auto_renew":        autoRenew,
		"reminder_sent_for": 0,
	}).Error; err != nil {
		return err
	}
	sub.PlanID = plan.ID
	sub.StartDate = start
	sub.EndDate = end
	sub.Status = models.SubscriptionActive
	sub.AutoRenew = autoRenew
	sub.ReminderSentFor = 0

	_, _, err = s.bill(tx, sub, amount, result)
	return err
}

// Cancel ends a trial or active subscription. Cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, userID, subscriptionID uint) (*models.UserSubscription, error) {
	var (
		sub *models.UserSubscription
		ev  event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		sub, err = lockSubscription(tx, userID, subscriptionID)
		if err != nil {
			return err
		}
		if !sub.IsLive() {
			return ErrNotCancellable
		}
		if err := tx.Model(sub).Updates(map[string]any{
			"status":     models.SubscriptionCancelled,
			"auto_renew": false,
		}).Error; err != nil {
			return err
		}
		sub.Status = models.SubscriptionCancelled
		sub.AutoRenew = false

		product, err := loadProduct(tx, sub.ProductID)
		if err != nil {
			return err
		}
		ev = newEvent(queue.KindSubscriptionCancelled, user, sub, product, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription cancelled", "user_id", userID, "subscription_id", sub.ID)
	s.emit(ctx, ev)
	return sub, nil
}

// Renew extends a subscription by one plan period starting the day after
// its current end date.
func (s *Service) Renew(ctx context.Context, userID, subscriptionID uint) (*models.UserSubscription, error) {
	var (
		sub *models.UserSubscription
		ev  event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		sub, err = lockSubscription(tx, userID, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == models.SubscriptionCancelled {
			return ErrNotRenewable
		}
		if sub.Status == models.SubscriptionExpired {
			other, err := liveSubscription(tx, userID, sub.ProductID, sub.ID)
			if err != nil {
				return err
			}
			if other != nil {
				return ErrAlreadyActive
			}
		}

		product, err := loadProduct(tx, sub.ProductID)
		if err != nil {
			return err
		}
		plan, err := loadPlan(tx, sub.PlanID)
		if err != nil {
			return err
		}
		// a trial plan carries one renewal, the trial to active edge; later
		// periods need a paid plan
		if plan.IsTrial && sub.Status != models.SubscriptionTrial {
			return ErrNotRenewable
		}
		if err := s.renewLocked(ctx, tx, sub, plan); err != nil {
			return err
		}
		ev = newEvent(queue.KindSubscriptionRenewed, user, sub, product, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription renewed", "user_id", userID, "subscription_id", sub.ID, "end_date", sub.EndDate.Format(DateLayout))
	s.emit(ctx, ev)
	return sub, nil
}

// renewLocked charges for one more period and moves the dates. sub is
// only modified once every write has succeeded.
func (s *Service) renewLocked(ctx context.Context, tx *gorm.DB, sub *models.UserSubscription, plan *models.SubscriptionPlan) error {
	amount := plan.FinalPrice()
	result, err := s.charge(ctx, sub.UserID, amount)
	if err != nil {
		return err
	}

	start := sub.EndDate.AddDate(0, 0, 1)
	end := start.AddDate(0, 0, plan.DurationDays)
	if _, _, err := s.bill(tx, sub, amount, result); err != nil {
		return err
	}
	if err := tx.Model(&models.UserSubscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
		"start_date":        start,
		"end_date":          end,
		"status":            models.SubscriptionActive,
		"reminder_sent_for": 0,
	}).Error; err != nil {
		return err
	}
	sub.StartDate = start
	sub.EndDate = end
	sub.Status = models.SubscriptionActive
	sub.ReminderSentFor = 0
	return nil
}
