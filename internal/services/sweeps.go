package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/logger"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/mpesa"
)

const (
	// Pending payments younger than this are left alone: the callback
	// usually lands within seconds of the payer approving the prompt.
	staleAfter = 3 * time.Minute

	reconcileBatch = 100
	sweepTimeout   = 30 * time.Second
)

// SweepStore is the persistence slice the scheduled sweeps consume.
type SweepStore interface {
	// ExpireOverdueSessions moves every ACTIVE session whose end time
	// is before now to EXPIRED and reports how many it touched.
	ExpireOverdueSessions(now time.Time) (int64, error)
	// ListStalePending returns PENDING payments created before the
	// cutoff, oldest first, capped at limit.
	ListStalePending(cutoff time.Time, limit int) ([]models.Payment, error)
}

// StatusQuerier is the slice of the gateway client the reconciliation
// sweep needs.
type StatusQuerier interface {
	QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// ExpireSessions retires sessions whose end time has passed. Run on a
// schedule.
func ExpireSessions(store SweepStore) {
	count, err := store.ExpireOverdueSessions(time.Now())
	if err != nil {
		logger.Error("session expiry sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Info("expired sessions", zap.Int64("count", count))
	}
}

// ReconcilePendingPayments polls the gateway for payments whose
// callback never arrived. It covers callbacks lost in transit and
// crashes between initiation and delivery: the status query is the
// fallback path for the same state machine the callback drives.
func ReconcilePendingPayments(store SweepStore, gateway StatusQuerier, reconciler *mpesa.Reconciler) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().Add(-staleAfter)
	pending, err := store.ListStalePending(cutoff, reconcileBatch)
	if err != nil {
		logger.Error("pending payment scan failed", zap.Error(err))
		return
	}

	for _, payment := range pending {
		if payment.CheckoutRequestID == "" {
			continue
		}
		status, err := gateway.QuerySTKStatus(ctx, payment.CheckoutRequestID)
		if err != nil {
			// Includes "transaction is being processed": leave the
			// payment PENDING for the next sweep.
			logger.Warn("stk status query failed",
				zap.String("checkout_request_id", payment.CheckoutRequestID),
				zap.Error(err))
			continue
		}
		code, err := strconv.Atoi(status.ResultCode)
		if err != nil {
			continue
		}
		outcome, err := reconciler.Apply(ctx, payment.CheckoutRequestID, code, nil)
		if err != nil {
			logger.Error("payment reconciliation failed",
				zap.String("checkout_request_id", payment.CheckoutRequestID),
				zap.Error(err))
			continue
		}
		logger.Info("reconciled stale payment",
			zap.String("checkout_request_id", payment.CheckoutRequestID),
			zap.String("outcome", outcome.String()))
	}
}
