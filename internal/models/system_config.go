package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SystemConfig struct {
	gorm.Model
	ID    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Key   string    `gorm:"unique;not null" json:"key"`
	Value string    `gorm:"not null" json:"value"`
}

func (config *SystemConfig) BeforeCreate(tx *gorm.DB) (err error) {
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}
	return
}
