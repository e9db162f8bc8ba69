package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username  string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName string     `gorm:"size:100;default:''" json:"firstName"`
	LastName  string     `gorm:"size:100;default:''" json:"lastName"`
	Email     string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Phone     string     `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	Password  string     `gorm:"not null" json:"-"`
	IsActive  bool       `gorm:"not null;default:false" json:"isActive"`
	RoleID    *uint      `gorm:"index" json:"roleId"`
	Role      *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	LastLogin *time.Time `json:"lastLogin"`
	IsDeleted bool       `gorm:"not null;default:false" json:"-"`
}

// FullName falls back to the username when no name was given at signup.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// RoleName is empty for users without a role.
func (u User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}
