package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Role groups the actions a user may perform. Admins bypass the list.
type Role struct {
	gorm.Model
	Name        string                      `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string                      `gorm:"size:255;default:''" json:"description"`
	Permissions datatypes.JSONSlice[string] `json:"permissions"`
}

func (r Role) HasPermission(action string) bool {
	for _, p := range r.Permissions {
		if p == action {
			return true
		}
	}
	return false
}
