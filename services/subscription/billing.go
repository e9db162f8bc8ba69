package subscription

import (
	"context"

	"multiproduct/models"
	"multiproduct/services/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// bill issues an invoice for sub and settles it with the charge result.
func (s *Service) bill(tx *gorm.DB, sub *models.UserSubscription, amount decimal.Decimal, result payment.Result) (*models.Invoice, *models.Transaction, error) {
	issued := s.today()
	invoice := models.Invoice{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		IssuedDate:     issued,
		DueDate:        issued.AddDate(0, 0, models.InvoiceDueDays),
	}
	if err := tx.Create(&invoice).Error; err != nil {
		return nil, nil, err
	}
	txn, err := settle(tx, sub.UserID, []models.Invoice{invoice}, result)
	if err != nil {
		return nil, nil, err
	}
	ref := txn.Ref
	invoice.IsPaid = true
	invoice.TransactionRef = &ref
	return &invoice, txn, nil
}

// settle records one transaction covering invoices and marks them paid.
func settle(tx *gorm.DB, userID uint, invoices []models.Invoice, result payment.Result) (*models.Transaction, error) {
	total := decimal.Zero
	ids := make([]uint, 0, len(invoices))
	for _, inv := range invoices {
		total = total.Add(inv.Amount)
		ids = append(ids, inv.ID)
	}

	txn := models.Transaction{
		UserID:        userID,
		Ref:           uuid.NewString(),
		TotalAmount:   total,
		Status:        models.TransactionStatusSuccess,
		PaymentMethod: result.Method,
		GatewayRef:    result.Reference,
		Invoices:      invoices,
	}
	// link existing invoices through the join table without re-inserting them
	if err := tx.Omit("Invoices.*").Create(&txn).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Invoice{}).Where("id IN ?", ids).Updates(map[string]any{
		"is_paid":         true,
		"transaction_ref": txn.Ref,
	}).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// SettleInvoices charges the user for the given unpaid invoices and
// settles them with a single transaction.
func (s *Service) SettleInvoices(ctx context.Context, userID uint, invoiceIDs []uint) (*models.Transaction, error) {
	unique := make(map[uint]struct{}, len(invoiceIDs))
	for _, id := range invoiceIDs {
		unique[id] = struct{}{}
	}
	if len(unique) == 0 {
		return nil, ErrNotFound
	}

	var txn *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockUser(tx, userID); err != nil {
			return err
		}
		var invoices []models.Invoice
		if err := tx.Clauses(forUpdate).
			Where("id IN ? AND user_id = ?", invoiceIDs, userID).
			Order("id").
			Find(&invoices).Error; err != nil {
			return err
		}
		if len(invoices) != len(unique) {
			return ErrNotFound
		}

		total := decimal.Zero
		for _, inv := range invoices {
			if inv.IsPaid {
				return ErrInvoicePaid
			}
			total = total.Add(inv.Amount)
		}

		result, err := s.charge(ctx, userID, total)
		if err != nil {
			return err
		}
		txn, err = settle(tx, userID, invoices, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoices settled", "user_id", userID, "transaction_ref", txn.Ref, "count", len(unique))
	return txn, nil
}
