package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Notification struct {
	gorm.Model
	ReceiverID uint              `gorm:"not null;index" json:"receiverId"`
	SenderID   *uint             `json:"senderId"`
	Title      string            `gorm:"size:200;not null" json:"title"`
	Message    string            `gorm:"type:text;not null" json:"message"`
	Data       datatypes.JSONMap `json:"data,omitempty"`
	IsRead     bool              `gorm:"not null;default:false;index" json:"isRead"`
}

func (n Notification) OwnerID() uint {
	return n.ReceiverID
}
