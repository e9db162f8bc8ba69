// Package notification stores in-app notifications for users.
package notification

import (
	"context"
	"errors"

	"multiproduct/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("notification not found")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, receiverID uint, senderID *uint, title, message string, data map[string]any) (*models.Notification, error) {
	n := models.Notification{
		ReceiverID: receiverID,
		SenderID:   senderID,
		Title:      title,
		Message:    message,
	}
	if len(data) > 0 {
		n.Data = datatypes.JSONMap(data)
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns the user's notifications, unread first, newest first
// within each group.
func (s *Service) List(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	var (
		items []models.Notification
		total int64
	)
	q := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ?", userID).
		Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("is_read ASC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&items).Error
	return items, total, err
}

// MarkRead flags one of the user's notifications as read. Marking an
// already read notification is not an error.
func (s *Service) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("receiver_id = ?", userID).First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return &n, nil
	}
	if err := s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	return &n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}
