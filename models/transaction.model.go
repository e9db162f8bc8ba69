package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus defines the status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction settles one or more invoices.
type Transaction struct {
	gorm.Model
	UserID        uint              `gorm:"not null;index" json:"userId"`
	Ref           string            `gorm:"size:64;uniqueIndex;not null" json:"transactionRef"`
	TotalAmount   decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	Status        TransactionStatus `gorm:"type:varchar(20);not null;default:'success'" json:"status"`
	PaymentMethod string            `gorm:"size:50;not null" json:"paymentMethod"`
	GatewayRef    string            `gorm:"size:100;index" json:"gatewayRef"` // reference returned by the payment gateway
	Invoices      []Invoice         `gorm:"many2many:transaction_invoices;" json:"invoices,omitempty"`
}
