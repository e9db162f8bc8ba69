package models

import (
	"time"
)

type OTPPurpose string

const (
	OTPPurposeSignup OTPPurpose = "signup"
	OTPPurposeResend OTPPurpose = "resend"
	OTPPurposeLogin  OTPPurpose = "login"
)

// OTP is one issued passcode. Rows are hard-deleted by the cleanup job.
type OTP struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index:idx_otp_user_issued,priority:1" json:"userId"`
	Code           string     `gorm:"size:6;not null" json:"-"`
	Purpose        OTPPurpose `gorm:"type:varchar(16);not null" json:"purpose"`
	IssuedAt       time.Time  `gorm:"not null;index:idx_otp_user_issued,priority:2" json:"issuedAt"`
	ExpiresAt      time.Time  `gorm:"not null;index" json:"expiresAt"`
	IsUsed         bool       `gorm:"not null;default:false" json:"isUsed"`
	FailedAttempts int        `gorm:"not null;default:0" json:"failedAttempts"`
}

func (OTP) TableName() string {
	return "otp_records"
}

// Active reports whether the code can still be verified at t.
func (o OTP) Active(t time.Time) bool {
	return !o.IsUsed && t.Before(o.ExpiresAt)
}
