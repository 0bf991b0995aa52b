package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

type User struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email     string    `gorm:"unique;not null" json:"email"`
	Phone     string    `gorm:"not null" json:"phone"`
	Password  string    `gorm:"not null" json:"-"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `gorm:"not null;default:'USER'" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	Payments  []Payment `json:"payments,omitempty"`
	Sessions  []Session `json:"sessions,omitempty"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

func (user *User) IsAdmin() bool {
	return user.Role == RoleAdmin || user.Role == RoleSuperAdmin
}
