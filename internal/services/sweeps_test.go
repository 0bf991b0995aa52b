package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/mpesa"
)

// fakeBilling backs SweepStore and mpesa.PaymentStore with the same
// in-memory rows, the way GormSweepStore and GormStore share one
// database.
type fakeBilling struct {
	sessionRows []*models.Session
	paymentRows []*models.Payment
	newSessions []*models.Session

	gotCutoff time.Time
	gotLimit  int
	expireErr error
	listErr   error
}

func (f *fakeBilling) ExpireOverdueSessions(now time.Time) (int64, error) {
	if f.expireErr != nil {
		return 0, f.expireErr
	}
	var count int64
	for _, s := range f.sessionRows {
		if s.Status == models.SessionActive && s.EndTime.Before(now) {
			s.Status = models.SessionExpired
			count++
		}
	}
	return count, nil
}

func (f *fakeBilling) ListStalePending(cutoff time.Time, limit int) ([]models.Payment, error) {
	f.gotCutoff = cutoff
	f.gotLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var stale []models.Payment
	for _, p := range f.paymentRows {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff) {
			stale = append(stale, *p)
			if len(stale) == limit {
				break
			}
		}
	}
	return stale, nil
}

func (f *fakeBilling) TransitionPayment(ctx context.Context, checkoutRequestID, status string, receipt *string) (bool, error) {
	for _, p := range f.paymentRows {
		if p.CheckoutRequestID == checkoutRequestID && p.Status == models.PaymentPending {
			p.Status = status
			if receipt != nil {
				p.MpesaReceiptNumber = receipt
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBilling) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	for _, p := range f.paymentRows {
		if p.CheckoutRequestID == checkoutRequestID {
			return p, nil
		}
	}
	return nil, mpesa.ErrPaymentNotFound
}

func (f *fakeBilling) CreateSession(ctx context.Context, session *models.Session) error {
	f.newSessions = append(f.newSessions, session)
	return nil
}

func (f *fakeBilling) InTx(ctx context.Context, fn func(mpesa.PaymentStore) error) error {
	return fn(f)
}

// fakeGateway records which checkout request ids get queried and
// answers from a canned result table.
type fakeGateway struct {
	results map[string]string
	errs    map[string]error
	queried []string
}

func (f *fakeGateway) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
	f.queried = append(f.queried, checkoutRequestID)
	if err, ok := f.errs[checkoutRequestID]; ok {
		return nil, err
	}
	return &mpesa.STKQueryResponse{
		ResponseCode:      "0",
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        f.results[checkoutRequestID],
	}, nil
}

func agedPendingPayment(checkoutRequestID string, age time.Duration) *models.Payment {
	return &models.Payment{
		ID:                uuid.New(),
		Amount:            50,
		Phone:             "254712345678",
		Status:            models.PaymentPending,
		CheckoutRequestID: checkoutRequestID,
		UserID:            uuid.New(),
		PlanID:            uuid.New(),
		Plan:              &models.Plan{Name: "Quick Browse 1 Hour", Price: 50, Duration: 1},
		CreatedAt:         time.Now().Add(-age),
	}
}

func TestExpireSessionsRetiresOverdueActiveOnly(t *testing.T) {
	now := time.Now()
	overdue := &models.Session{Status: models.SessionActive, EndTime: now.Add(-time.Minute)}
	running := &models.Session{Status: models.SessionActive, EndTime: now.Add(time.Hour)}
	terminated := &models.Session{Status: models.SessionTerminated, EndTime: now.Add(-time.Hour)}
	store := &fakeBilling{sessionRows: []*models.Session{overdue, running, terminated}}

	ExpireSessions(store)

	assert.Equal(t, models.SessionExpired, overdue.Status)
	assert.Equal(t, models.SessionActive, running.Status, "session with time remaining must keep running")
	assert.Equal(t, models.SessionTerminated, terminated.Status, "terminated is a terminal state")
}

func TestExpireSessionsSurvivesStoreError(t *testing.T) {
	session := &models.Session{Status: models.SessionActive, EndTime: time.Now().Add(-time.Minute)}
	store := &fakeBilling{
		sessionRows: []*models.Session{session},
		expireErr:   errors.New("connection refused"),
	}

	ExpireSessions(store)

	assert.Equal(t, models.SessionActive, session.Status)
}

func TestReconcileQueriesOnlyStalePaymentsWithCorrelationIDs(t *testing.T) {
	stale := agedPendingPayment("ws_CO_stale", 10*time.Minute)
	fresh := agedPendingPayment("ws_CO_fresh", time.Minute)
	blank := agedPendingPayment("", 10*time.Minute)
	store := &fakeBilling{paymentRows: []*models.Payment{stale, fresh, blank}}
	gateway := &fakeGateway{results: map[string]string{"ws_CO_stale": "1032"}}

	ReconcilePendingPayments(store, gateway, mpesa.NewReconciler(store))

	assert.Equal(t, []string{"ws_CO_stale"}, gateway.queried,
		"fresh payments wait for their callback and rows without a checkout request id cannot be queried")
	assert.Equal(t, models.PaymentPending, fresh.Status)
	assert.Equal(t, models.PaymentPending, blank.Status)

	assert.Equal(t, reconcileBatch, store.gotLimit)
	wantCutoff := time.Now().Add(-staleAfter)
	assert.WithinDuration(t, wantCutoff, store.gotCutoff, 5*time.Second)
}

func TestReconcileCompletesConfirmedPayment(t *testing.T) {
	payment := agedPendingPayment("ws_CO_paid", 10*time.Minute)
	store := &fakeBilling{paymentRows: []*models.Payment{payment}}
	gateway := &fakeGateway{results: map[string]string{"ws_CO_paid": "0"}}

	ReconcilePendingPayments(store, gateway, mpesa.NewReconciler(store))

	assert.Equal(t, models.PaymentCompleted, payment.Status)
	require.Len(t, store.newSessions, 1)
	session := store.newSessions[0]
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, payment.UserID, session.UserID)
	assert.Equal(t, time.Hour, session.EndTime.Sub(session.StartTime))
}

func TestReconcileFailsCancelledPayment(t *testing.T) {
	payment := agedPendingPayment("ws_CO_cancelled", 10*time.Minute)
	store := &fakeBilling{paymentRows: []*models.Payment{payment}}
	gateway := &fakeGateway{results: map[string]string{"ws_CO_cancelled": "1032"}}

	ReconcilePendingPayments(store, gateway, mpesa.NewReconciler(store))

	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Empty(t, store.newSessions)
}

func TestReconcileQueryErrorLeavesPaymentPending(t *testing.T) {
	payment := agedPendingPayment("ws_CO_flaky", 10*time.Minute)
	store := &fakeBilling{paymentRows: []*models.Payment{payment}}
	gateway := &fakeGateway{errs: map[string]error{"ws_CO_flaky": errors.New("gateway timeout")}}

	ReconcilePendingPayments(store, gateway, mpesa.NewReconciler(store))

	assert.Equal(t, models.PaymentPending, payment.Status, "an unanswered query must defer to the next sweep")
	assert.Empty(t, store.newSessions)
}

func TestReconcileNonNumericResultCodeLeavesPaymentPending(t *testing.T) {
	payment := agedPendingPayment("ws_CO_odd", 10*time.Minute)
	store := &fakeBilling{paymentRows: []*models.Payment{payment}}
	gateway := &fakeGateway{results: map[string]string{"ws_CO_odd": ""}}

	ReconcilePendingPayments(store, gateway, mpesa.NewReconciler(store))

	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Empty(t, store.newSessions)
}

func TestReconcileScanErrorQueriesNothing(t *testing.T) {
	payment := agedPendingPayment("ws_CO_unreachable", 10*time.Minute)
	store := &fakeBilling{
		paymentRows: []*models.Payment{payment},
		listErr:     errors.New("connection refused"),
	}
	gateway := &fakeGateway{}

	ReconcilePendingPayments(store, gateway, mpesa.NewReconciler(store))

	assert.Empty(t, gateway.queried)
	assert.Equal(t, models.PaymentPending, payment.Status)
}
