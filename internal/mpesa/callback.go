package mpesa

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/helpers"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/logger"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

// CallbackPayload mirrors the JSON body Daraja posts to the callback
// URL after an STK push resolves.
type CallbackPayload struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values are heterogeneous on the wire: the receipt is a
// string while amount and phone arrive as numbers.
type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// Metadata scans the callback metadata for the three well-known items.
// Any of them may be absent, including the whole metadata list; a
// missing item is reported as nil, never as an error.
func (cb *STKCallback) Metadata() (receipt *string, amount *float64, phone *string) {
	if cb.CallbackMetadata == nil {
		return nil, nil, nil
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			receipt = itemString(item.Value)
		case "Amount":
			amount = itemFloat(item.Value)
		case "PhoneNumber":
			phone = itemString(item.Value)
		}
	}
	return receipt, amount, phone
}

func itemString(v interface{}) *string {
	switch val := v.(type) {
	case string:
		return &val
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	}
	return nil
}

func itemFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return &f
		}
	}
	return nil
}

// Outcome reports what a reconciliation attempt actually did, so
// callers can tell a fresh transition from a re-delivered or unknown
// callback instead of inferring it from logs.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeAlreadyProcessed
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAlreadyProcessed:
		return "already processed"
	case OutcomeNotFound:
		return "not found"
	}
	return "unknown"
}

// ErrPaymentNotFound is returned by a PaymentStore lookup when no
// payment carries the given checkout request id.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentStore is the slice of persistence the reconciler consumes.
type PaymentStore interface {
	// TransitionPayment moves the payment out of PENDING, recording the
	// receipt when one is given. It is a compare-and-set: it reports
	// false when the payment is missing or already terminal.
	TransitionPayment(ctx context.Context, checkoutRequestID, status string, receipt *string) (bool, error)
	// FindByCheckoutRequestID loads a payment with its user and plan.
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	CreateSession(ctx context.Context, session *models.Session) error
	// InTx runs fn against a transactional view of the store.
	InTx(ctx context.Context, fn func(PaymentStore) error) error
}

// Reconciler applies the payment state machine: PENDING moves to
// COMPLETED or FAILED exactly once, and a completed payment provisions
// exactly one active session. Re-delivered callbacks are no-ops.
type Reconciler struct {
	store PaymentStore
}

func NewReconciler(store PaymentStore) *Reconciler {
	return &Reconciler{store: store}
}

// Process reconciles one asynchronous gateway notification.
func (r *Reconciler) Process(ctx context.Context, payload *CallbackPayload) (Outcome, error) {
	cb := payload.Body.STKCallback
	receipt, _, _ := cb.Metadata()
	return r.Apply(ctx, cb.CheckoutRequestID, cb.ResultCode, receipt)
}

// Apply records the result for the payment identified by the checkout
// request id. A result code of zero denotes success; any other value
// denotes failure. Safe to call concurrently for the same id: the
// conditional update lets exactly one caller win.
func (r *Reconciler) Apply(ctx context.Context, checkoutRequestID string, resultCode int, receipt *string) (Outcome, error) {
	if resultCode != 0 {
		applied, err := r.store.TransitionPayment(ctx, checkoutRequestID, models.PaymentFailed, nil)
		if err != nil {
			return OutcomeUnknown, err
		}
		if !applied {
			return r.classifyNoop(ctx, r.store, checkoutRequestID)
		}
		logger.Info("payment failed",
			zap.String("checkout_request_id", checkoutRequestID),
			zap.Int("result_code", resultCode))
		return OutcomeFailed, nil
	}

	// Success: the status transition and the session provisioning
	// happen in one transaction so a payment is never left COMPLETED
	// without its session.
	outcome := OutcomeCompleted
	err := r.store.InTx(ctx, func(s PaymentStore) error {
		applied, err := s.TransitionPayment(ctx, checkoutRequestID, models.PaymentCompleted, receipt)
		if err != nil {
			return err
		}
		if !applied {
			outcome, err = r.classifyNoop(ctx, s, checkoutRequestID)
			return err
		}

		payment, err := s.FindByCheckoutRequestID(ctx, checkoutRequestID)
		if err != nil {
			return err
		}
		if payment.Plan == nil {
			return errors.New("payment has no plan")
		}

		token, err := helpers.GenerateSessionToken()
		if err != nil {
			return err
		}
		now := time.Now()
		session := &models.Session{
			SessionToken: token,
			Status:       models.SessionActive,
			StartTime:    now,
			EndTime:      now.Add(time.Duration(payment.Plan.Duration) * time.Hour),
			UserID:       payment.UserID,
			PlanID:       payment.PlanID,
			PaymentID:    payment.ID,
		}
		return s.CreateSession(ctx, session)
	})
	if err != nil {
		return OutcomeUnknown, err
	}
	if outcome == OutcomeCompleted {
		logger.Info("payment completed",
			zap.String("checkout_request_id", checkoutRequestID))
	}
	return outcome, nil
}

func (r *Reconciler) classifyNoop(ctx context.Context, s PaymentStore, checkoutRequestID string) (Outcome, error) {
	if _, err := s.FindByCheckoutRequestID(ctx, checkoutRequestID); err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return OutcomeNotFound, nil
		}
		return OutcomeUnknown, err
	}
	return OutcomeAlreadyProcessed, nil
}
