package subscription

import (
	"context"
	"fmt"
	"time"

	"multiproduct/models"
	"multiproduct/queue"

	"gorm.io/gorm"
)

// ReminderOffsets are the days before end_date on which a reminder goes out.
var ReminderOffsets = []int{7, 3, 1}

type SweepResult struct {
	Scanned       int `json:"scanned"`
	Renewed       int `json:"renewed"`
	Expired       int `json:"expired"`
	RenewalFailed int `json:"renewalFailed"`
	Errors        int `json:"errors"`
}

type sweepOutcome int

const (
	outcomeSkipped sweepOutcome = iota
	outcomeRenewed
	outcomeExpired
	outcomeRenewalFailed
)

// SweepExpired processes every trial or active subscription whose end
// date has passed, one transaction per row. Auto-renewing active rows are
// renewed; everything else, including failed renewals, becomes expired.
func (s *Service) SweepExpired(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	today := s.today()

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.UserSubscription{}).
		Where("end_date < ? AND status IN ?", today, models.LiveStatuses).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return res, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		outcome, err := s.sweepOne(ctx, id, today)
		if err != nil {
			res.Errors++
			s.logger.Error("sweep failed for subscription", "subscription_id", id, "error", err)
			if s.forceExpire(ctx, id) {
				res.Expired++
			}
			continue
		}
		switch outcome {
		case outcomeRenewed:
			res.Renewed++
		case outcomeExpired:
			res.Expired++
		case outcomeRenewalFailed:
			res.RenewalFailed++
			res.Expired++
		}
	}

	s.logger.Info("subscription sweep finished",
		"scanned", res.Scanned, "renewed", res.Renewed, "expired", res.Expired,
		"renewal_failed", res.RenewalFailed, "errors", res.Errors)
	return res, nil
}

func (s *Service) sweepOne(ctx context.Context, id uint, today time.Time) (outcome sweepOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var events []event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.UserSubscription
		if err := tx.Clauses(forUpdate).First(&sub, id).Error; err != nil {
			return err
		}
		// the row may have changed since the id scan
		if !sub.IsLive() || !sub.EndDate.Before(today) {
			outcome = outcomeSkipped
			return nil
		}

		var user models.User
		if err := tx.First(&user, sub.UserID).Error; err != nil {
			return err
		}
		product, err := loadProduct(tx, sub.ProductID)
		if err != nil {
			return err
		}
		plan, err := loadPlan(tx, sub.PlanID)
		if err != nil {
			return err
		}

		if sub.AutoRenew && sub.Status == models.SubscriptionActive {
			renewErr := tx.Transaction(func(inner *gorm.DB) error {
				return s.renewLocked(ctx, inner, &sub, plan)
			})
			if renewErr == nil {
				outcome = outcomeRenewed
				events = append(events, newEvent(queue.KindSubscriptionRenewed, &user, &sub, product, plan))
				return nil
			}
			s.logger.Warn("auto-renewal failed, expiring", "subscription_id", sub.ID, "user_id", sub.UserID, "error", renewErr)
			outcome = outcomeRenewalFailed
		} else {
			outcome = outcomeExpired
		}

		if err := tx.Model(&sub).Update("status", models.SubscriptionExpired).Error; err != nil {
			return err
		}
		sub.Status = models.SubscriptionExpired
		kind := queue.KindSubscriptionExpired
		if outcome == outcomeRenewalFailed {
			kind = queue.KindSubscriptionRenewalFailed
		}
		events = append(events, newEvent(kind, &user, &sub, product, plan))
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	s.emit(ctx, events...)
	return outcome, nil
}

// forceExpire is the last resort after a failed sweep transaction.
func (s *Service) forceExpire(ctx context.Context, id uint) bool {
	res := s.db.WithContext(ctx).Model(&models.UserSubscription{}).
		Where("id = ? AND status IN ?", id, models.LiveStatuses).
		Update("status", models.SubscriptionExpired)
	if res.Error != nil {
		s.logger.Error("could not expire subscription", "subscription_id", id, "error", res.Error)
		return false
	}
	return res.RowsAffected > 0
}

// DispatchExpiryReminders queues one reminder per subscription per offset
// for trial or active rows ending exactly ReminderOffsets days from today.
func (s *Service) DispatchExpiryReminders(ctx context.Context) (int, error) {
	today := s.today()
	sent := 0

	for _, days := range ReminderOffsets {
		target := today.AddDate(0, 0, days)

		var subs []models.UserSubscription
		if err := s.db.WithContext(ctx).
			Preload("Product").
			Preload("Plan").
			Where("status IN ? AND end_date = ? AND (reminder_sent_for = 0 OR reminder_sent_for > ?)",
				models.LiveStatuses, target, days).
			Order("id").
			Find(&subs).Error; err != nil {
			return sent, err
		}

		for i := range subs {
			sub := &subs[i]
			// claim the reminder so a concurrent run cannot send it twice
			res := s.db.WithContext(ctx).Model(&models.UserSubscription{}).
				Where("id = ? AND (reminder_sent_for = 0 OR reminder_sent_for > ?)", sub.ID, days).
				Update("reminder_sent_for", days)
			if res.Error != nil {
				s.logger.Error("could not mark reminder", "subscription_id", sub.ID, "error", res.Error)
				continue
			}
			if res.RowsAffected == 0 {
				continue
			}

			var user models.User
			if err := s.db.WithContext(ctx).First(&user, sub.UserID).Error; err != nil {
				s.logger.Error("reminder recipient missing", "subscription_id", sub.ID, "error", err)
				continue
			}
			ev := newEvent(queue.KindSubscriptionExpiryReminder, &user, sub, sub.Product, sub.Plan)
			ev.days = days
			s.emit(ctx, ev)
			sent++
		}
	}

	s.logger.Info("expiry reminders dispatched", "count", sent)
	return sent, nil
}
