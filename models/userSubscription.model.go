package models

import (
	"time"

	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// LiveStatuses are the states counted by the one-live-row-per-product rule.
var LiveStatuses = []SubscriptionStatus{SubscriptionTrial, SubscriptionActive}

// UserSubscription dates are calendar days stored at UTC midnight.
type UserSubscription struct {
	gorm.Model
	UserID          uint               `gorm:"not null;index:idx_usersub_user_product" json:"userId"`
	ProductID       uint               `gorm:"not null;index:idx_usersub_user_product" json:"productId"`
	PlanID          uint               `gorm:"not null" json:"planId"`
	Product         *Product           `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Plan            *SubscriptionPlan  `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	StartDate       time.Time          `gorm:"type:date;not null" json:"startDate"`
	EndDate         time.Time          `gorm:"type:date;not null;index" json:"endDate"`
	Status          SubscriptionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	AutoRenew       bool               `gorm:"not null;default:false" json:"autoRenew"`
	TrialUsed       bool               `gorm:"not null;default:false" json:"trialUsed"`
	ReminderSentFor int                `gorm:"not null;default:0" json:"-"` // last reminder offset in days, 0 = none
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

func (s UserSubscription) IsLive() bool {
	return s.Status == SubscriptionTrial || s.Status == SubscriptionActive
}

func (s UserSubscription) OwnerID() uint {
	return s.UserID
}
