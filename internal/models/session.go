package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SessionActive     = "ACTIVE"
	SessionExpired    = "EXPIRED"
	SessionTerminated = "TERMINATED"
)

// Session is a time-boxed grant of network access. EndTime is always
// StartTime plus the plan's duration in whole hours. The unique
// PaymentID keeps session provisioning at one per completed payment.
type Session struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	SessionToken string         `gorm:"uniqueIndex;not null" json:"session_token"`
	Status       string         `gorm:"not null;default:'ACTIVE'" json:"status"`
	StartTime    time.Time      `gorm:"not null" json:"start_time"`
	EndTime      time.Time      `gorm:"not null" json:"end_time"`
	DataUsed     int64          `gorm:"not null;default:0" json:"data_used"`
	IPAddress    string         `json:"ip_address"`
	MacAddress   string         `json:"mac_address"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PlanID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	Plan         *Plan          `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	PaymentID    uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"payment_id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
