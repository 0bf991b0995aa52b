package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan is a purchasable internet access package. Duration is in hours.
type Plan struct {
	gorm.Model
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name        string    `gorm:"unique;not null" json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null" json:"price"`
	Duration    int       `gorm:"not null" json:"duration"`
	DataLimit   string    `json:"data_limit"`
	SpeedLimit  string    `json:"speed_limit"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
}

func (plan *Plan) BeforeCreate(tx *gorm.DB) (err error) {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	return
}
