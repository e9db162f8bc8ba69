package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product is a sellable offering. A nil TrialDuration means no trial.
type Product struct {
	gorm.Model
	Name          string             `gorm:"size:120;uniqueIndex;not null" json:"name"`
	Description   string             `gorm:"type:text" json:"description"`
	BasePrice     decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"basePrice"`
	Schema        datatypes.JSON     `json:"schema,omitempty"`
	IsActive      bool               `gorm:"not null" json:"isActive"`
	TrialDuration *int               `json:"trialDuration"` // days
	Plans         []SubscriptionPlan `gorm:"foreignKey:ProductID" json:"plans,omitempty"`
}

func (p Product) HasTrial() bool {
	return p.TrialDuration != nil && *p.TrialDuration > 0
}
