package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceDueDays is the gap between issue and due date.
const InvoiceDueDays = 30

type Invoice struct {
	gorm.Model
	UserID         uint              `gorm:"not null;index" json:"userId"`
	SubscriptionID uint              `gorm:"not null;index" json:"subscriptionId"`
	Subscription   *UserSubscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
	Amount         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	IssuedDate     time.Time         `gorm:"type:date;not null" json:"issuedDate"`
	DueDate        time.Time         `gorm:"type:date;not null" json:"dueDate"`
	IsPaid         bool              `gorm:"not null;default:false" json:"isPaid"`
	TransactionRef *string           `gorm:"size:64;index" json:"transactionRef"`
}

func (i Invoice) OwnerID() uint {
	return i.UserID
}
