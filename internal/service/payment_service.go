package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/dispatcher"
	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/event"
)

// CreatePayment carries the fields for recording an invoice payment
type CreatePayment struct {
	Amount        float64
	Currency      string
	Date          time.Time
	InvoiceID     string
	InvoiceNumber string
	Method        string
	Notes         string
	ClientName    string
}

// PaymentService records invoice payments and publishes the creation event
// consumed by the external sync reactor. The event fires once, on creation;
// later updates to the payment do not re-fire it.
type PaymentService struct {
	store      *docstore.Store
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaymentService creates a payment service
func NewPaymentService(store *docstore.Store, d dispatcher.Dispatcher, logger *zap.Logger) *PaymentService {
	return &PaymentService{store: store, dispatcher: d, logger: logger, now: time.Now}
}

// Record creates a payment document and dispatches payment.recorded
func (s *PaymentService) Record(ctx context.Context, input CreatePayment, recordedBy entity.Submitter) (*entity.Payment, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidArgument)
	}
	if input.InvoiceID == "" {
		return nil, fmt.Errorf("%w: invoice id is required", ErrInvalidArgument)
	}

	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	payment := &entity.Payment{
		ID:            uuid.NewString(),
		Amount:        input.Amount,
		Currency:      input.Currency,
		Date:          date,
		InvoiceID:     input.InvoiceID,
		InvoiceNumber: input.InvoiceNumber,
		Method:        input.Method,
		Notes:         input.Notes,
		ClientName:    input.ClientName,
		RecordedBy:    recordedBy,
		CreatedAt:     now,
	}

	if err := s.store.Create(ctx, entity.CollectionPayments, payment.ID, payment); err != nil {
		return nil, err
	}

	s.logger.Info("Payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("invoice_id", payment.InvoiceID),
		zap.Float64("amount", payment.Amount))

	s.dispatcher.DispatchAsync(ctx, event.New(event.TypePaymentRecorded, entity.CollectionPayments, payment.ID, nil))
	return payment, nil
}
