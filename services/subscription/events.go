package subscription

import (
	"context"
	"fmt"
	"strconv"

	"multiproduct/models"
	"multiproduct/queue"
)

// DateLayout is the wire format for calendar dates in job payloads.
const DateLayout = "2006-01-02"

// event is a side effect collected inside a transaction and dispatched
// after it commits.
type event struct {
	kind    queue.Kind
	user    models.User
	sub     models.UserSubscription
	product string
	plan    string
	days    int
}

func newEvent(kind queue.Kind, user *models.User, sub *models.UserSubscription, product *models.Product, plan *models.SubscriptionPlan) event {
	e := event{kind: kind, user: *user, sub: *sub}
	if product != nil {
		e.product = product.Name
	}
	if plan != nil {
		e.plan = plan.Name
	}
	return e
}

func (e event) notificationText() (string, string) {
	end := e.sub.EndDate.Format("Jan 2, 2006")
	switch e.kind {
	case queue.KindSubscriptionConfirmation:
		if e.sub.Status == models.SubscriptionTrial {
			return "Trial started", fmt.Sprintf("Your %s trial is active until %s.", e.product, end)
		}
		return "Subscription confirmed", fmt.Sprintf("You are subscribed to %s (%s) until %s.", e.product, e.plan, end)
	case queue.KindSubscriptionCancelled:
		return "Subscription cancelled", fmt.Sprintf("Your %s subscription has been cancelled.", e.product)
	case queue.KindSubscriptionRenewed:
		return "Subscription renewed", fmt.Sprintf("Your %s subscription now runs until %s.", e.product, end)
	case queue.KindSubscriptionExpired:
		return "Subscription expired", fmt.Sprintf("Your %s subscription has expired.", e.product)
	case queue.KindSubscriptionRenewalFailed:
		return "Renewal failed", fmt.Sprintf("We could not renew your %s subscription and it has expired.", e.product)
	case queue.KindSubscriptionExpiryReminder:
		return "Subscription expiring soon", fmt.Sprintf("Your %s subscription expires in %d day(s), on %s.", e.product, e.days, end)
	default:
		return string(e.kind), ""
	}
}

func (s *Service) emit(ctx context.Context, events ...event) {
	for _, e := range events {
		s.dispatcher.Enqueue(ctx, e.kind, e.user.Email, map[string]any{
			"user_id":         e.user.ID,
			"name":            e.user.FullName(),
			"subscription_id": e.sub.ID,
			"product":         e.product,
			"plan":            e.plan,
			"status":          string(e.sub.Status),
			"start_date":      e.sub.StartDate.Format(DateLayout),
			"end_date":        e.sub.EndDate.Format(DateLayout),
			"trial":           e.sub.Status == models.SubscriptionTrial,
			"days":            e.days,
		})

		title, message := e.notificationText()
		s.dispatcher.Enqueue(ctx, queue.KindNotificationCreate, strconv.FormatUint(uint64(e.user.ID), 10), map[string]any{
			"receiver_id": e.user.ID,
			"title":       title,
			"message":     message,
			"data": map[string]any{
				"kind":            string(e.kind),
				"subscription_id": e.sub.ID,
				"product_id":      e.sub.ProductID,
			},
		})
	}
}
