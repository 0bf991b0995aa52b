package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

// Payment records one STK push purchase attempt. CheckoutRequestID is
// assigned at initiation time and correlates the asynchronous gateway
// callback back to this row. Status moves out of PENDING exactly once.
type Payment struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	Amount             float64        `gorm:"not null" json:"amount"`
	Phone              string         `gorm:"not null" json:"phone"`
	Status             string         `gorm:"not null;default:'PENDING'" json:"status"`
	CheckoutRequestID  string         `gorm:"uniqueIndex" json:"checkout_request_id"`
	MerchantRequestID  string         `json:"merchant_request_id"`
	MpesaReceiptNumber *string        `json:"mpesa_receipt_number"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User               *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PlanID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	Plan               *Plan          `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}
