package mpesa

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

// GormStore backs the reconciler with the shared GORM connection.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) TransitionPayment(ctx context.Context, checkoutRequestID, status string, receipt *string) (bool, error) {
	updates := map[string]interface{}{"status": status}
	if receipt != nil {
		updates["mpesa_receipt_number"] = *receipt
	}
	result := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, models.PaymentPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Plan").
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *GormStore) InTx(ctx context.Context, fn func(PaymentStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
