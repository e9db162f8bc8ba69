package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFinalPriceAppliesDiscount(t *testing.T) {
	plan := SubscriptionPlan{
		Price:    decimal.NewFromInt(100),
		Discount: decimal.NewNullDecimal(decimal.NewFromInt(20)),
	}
	assert.True(t, plan.FinalPrice().Equal(decimal.RequireFromString("80.00")))
	assert.Equal(t, "80.00", plan.FinalPrice().StringFixed(2))
}

func TestFinalPriceWithoutDiscount(t *testing.T) {
	plan := SubscriptionPlan{Price: decimal.RequireFromString("19.99")}
	assert.Equal(t, "19.99", plan.FinalPrice().StringFixed(2))

	plan.Discount = decimal.NewNullDecimal(decimal.Zero)
	assert.Equal(t, "19.99", plan.FinalPrice().StringFixed(2))
}

func TestFinalPriceIsExact(t *testing.T) {
	plan := SubscriptionPlan{
		Price:    decimal.RequireFromString("0.30"),
		Discount: decimal.NewNullDecimal(decimal.RequireFromString("33.33")),
	}
	// 0.30 * 0.6667 = 0.20001
	assert.Equal(t, "0.20", plan.FinalPrice().StringFixed(2))

	plan = SubscriptionPlan{
		Price:    decimal.RequireFromString("49.90"),
		Discount: decimal.NewNullDecimal(decimal.RequireFromString("10")),
	}
	assert.Equal(t, "44.91", plan.FinalPrice().StringFixed(2))
}

func TestPlanTypeDefaults(t *testing.T) {
	assert.Equal(t, 7, PlanWeekly.DefaultDays())
	assert.Equal(t, 180, PlanHalfYearly.DefaultDays())
	assert.False(t, PlanType("daily").Valid())
}
