// Package policy decides whether a user may perform an action.
package policy

import "multiproduct/models"

type Action string

const (
	SubscriptionView   Action = "subscription:view"
	SubscriptionCreate Action = "subscription:create"
	SubscriptionCancel Action = "subscription:cancel"
	SubscriptionRenew  Action = "subscription:renew"
	SubscriptionSweep  Action = "subscription:sweep"
	InvoiceView        Action = "invoice:view"
	InvoicePay         Action = "invoice:pay"
	NotificationView   Action = "notification:view"
	NotificationUpdate Action = "notification:update"
	OTPCleanup         Action = "otp:cleanup"
)

// CustomerActions are granted to the customer role at seed time.
var CustomerActions = []Action{
	SubscriptionView,
	SubscriptionCreate,
	SubscriptionCancel,
	SubscriptionRenew,
	InvoiceView,
	InvoicePay,
	NotificationView,
	NotificationUpdate,
}

// Owned is implemented by records that belong to a single user.
type Owned interface {
	OwnerID() uint
}

// Can reports whether user may perform action on resource. resource may
// be nil for actions that do not target a specific record.
func Can(user *models.User, action Action, resource any) bool {
	if user == nil || !user.IsActive || user.IsDeleted || user.Role == nil {
		return false
	}
	if user.Role.Name == models.RoleAdmin {
		return true
	}
	if !user.Role.HasPermission(string(action)) {
		return false
	}
	if owned, ok := resource.(Owned); ok {
		return owned.OwnerID() == user.ID
	}
	return true
}
