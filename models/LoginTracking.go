package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	LoginMethodPassword = "password"
	LoginMethodOTP      = "otp"
)

type LoginTracking struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Method    string    `gorm:"type:varchar(16);not null" json:"method"`
	IPAddress string    `gorm:"size:64" json:"ipAddress"`
	Device    string    `gorm:"size:255" json:"device"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}
