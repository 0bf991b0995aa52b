package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

// GormSweepStore backs the sweeps with the application database.
type GormSweepStore struct {
	db *gorm.DB
}

func NewGormSweepStore(db *gorm.DB) *GormSweepStore {
	return &GormSweepStore{db: db}
}

func (s *GormSweepStore) ExpireOverdueSessions(now time.Time) (int64, error) {
	result := s.db.Model(&models.Session{}).
		Where("status = ? AND end_time < ?", models.SessionActive, now).
		Update("status", models.SessionExpired)
	return result.RowsAffected, result.Error
}

func (s *GormSweepStore) ListStalePending(cutoff time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.
		Where("status = ? AND created_at < ?", models.PaymentPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
