package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PlanType string

const (
	PlanWeekly     PlanType = "weekly"
	PlanMonthly    PlanType = "monthly"
	PlanQuarterly  PlanType = "quarterly"
	PlanHalfYearly PlanType = "half_yearly"
	PlanYearly     PlanType = "yearly"
)

var planDays = map[PlanType]int{
	PlanWeekly:     7,
	PlanMonthly:    30,
	PlanQuarterly:  90,
	PlanHalfYearly: 180,
	PlanYearly:     365,
}

// DefaultDays is the duration used when a plan is created without one.
func (t PlanType) DefaultDays() int {
	return planDays[t]
}

func (t PlanType) Valid() bool {
	_, ok := planDays[t]
	return ok
}

var hundred = decimal.NewFromInt(100)

type SubscriptionPlan struct {
	gorm.Model
	ProductID    uint                `gorm:"not null;uniqueIndex:idx_plan_product_name_type" json:"productId"`
	Product      *Product            `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Name         string              `gorm:"size:100;not null;uniqueIndex:idx_plan_product_name_type" json:"name"`
	PlanType     PlanType            `gorm:"type:varchar(20);not null;uniqueIndex:idx_plan_product_name_type" json:"planType"`
	DurationDays int                 `gorm:"not null" json:"durationDays"`
	Price        decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	Discount     decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"discount"` // percent
	IsTrial      bool                `gorm:"not null;default:false" json:"isTrial"`
}

func (p *SubscriptionPlan) BeforeCreate(tx *gorm.DB) error {
	if p.DurationDays <= 0 {
		p.DurationDays = p.PlanType.DefaultDays()
	}
	return nil
}

// FinalPrice applies the discount percentage, rounded to cents.
func (p SubscriptionPlan) FinalPrice() decimal.Decimal {
	if !p.Discount.Valid || p.Discount.Decimal.IsZero() {
		return p.Price.Round(2)
	}
	factor := hundred.Sub(p.Discount.Decimal).Div(hundred)
	return p.Price.Mul(factor).Round(2)
}
