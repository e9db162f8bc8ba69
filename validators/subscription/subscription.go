package subscriptionValidator

import (
	"multiproduct/validators"

	"github.com/gofiber/fiber/v2"
)

type TrialRequest struct {
	ProductID uint `json:"productId" validate:"required"`
}

type PurchaseRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	PlanID    uint `json:"planId" validate:"required"`
	AutoRenew bool `json:"autoRenew"`
}

type UpgradeRequest struct {
	PlanID    uint `json:"planId" validate:"required"`
	AutoRenew bool `json:"autoRenew"`
}

type PayInvoicesRequest struct {
	InvoiceIDs []uint `json:"invoiceIds" validate:"required,min=1,max=50,dive,required"`
}

func Trial() fiber.Handler {
	return validators.Body[TrialRequest]("validatedTrial")
}

func Purchase() fiber.Handler {
	return validators.Body[PurchaseRequest]("validatedPurchase")
}

func Upgrade() fiber.Handler {
	return validators.Body[UpgradeRequest]("validatedUpgrade")
}

func PayInvoices() fiber.Handler {
	return validators.Body[PayInvoicesRequest]("validatedPayInvoices")
}

func InvoiceList() fiber.Handler {
	return validators.Paginate()
}
