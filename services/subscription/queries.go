package subscription

import (
	"context"

	"multiproduct/models"

	"gorm.io/gorm"
)

// ListProducts returns active products with their paid plans.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Preload("Plans", "is_trial = ?", false, func(db *gorm.DB) *gorm.DB { return db.Order("price") }).
		Where("is_active = ?", true).
		Order("name").
		Find(&products).Error
	return products, err
}

func (s *Service) GetProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Plans", "is_trial = ?", false, func(db *gorm.DB) *gorm.DB { return db.Order("price") }).
		Where("is_active = ?", true).
		First(&product, productID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, userID uint) ([]models.UserSubscription, error) {
	var subs []models.UserSubscription
	err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}

func (s *Service) GetSubscription(ctx context.Context, userID, subscriptionID uint) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Plan").
		Where("user_id = ?", userID).
		First(&sub, subscriptionID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// ListInvoices pages through the user's invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, userID uint, page, limit int) ([]models.Invoice, int64, error) {
	var (
		invoices []models.Invoice
		total    int64
	)
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&invoices).Error
	return invoices, total, err
}
