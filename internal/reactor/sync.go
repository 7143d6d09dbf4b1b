package reactor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/event"
)

const (
	defaultCurrency    = "USD"
	defaultRecordedBy  = "System"
	maxErrorBodyLength = 512
)

// SyncPayload is the normalized payment representation sent to the external
// requisition system
type SyncPayload struct {
	ID            string  `json:"id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Date          string  `json:"date"`
	InvoiceID     string  `json:"invoiceId"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Method        string  `json:"method"`
	Notes         string  `json:"notes"`
	ClientName    string  `json:"clientName"`
	RecordedBy    string  `json:"recordedBy"`
	Timestamp     string  `json:"timestamp"`
}

// SyncConfig configures the external sync reactor
type SyncConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// SyncReactor forwards newly recorded payments to the external system. It
// fires once per payment; a failed sync is terminal until manually
// re-triggered, no retry is scheduled here.
type SyncReactor struct {
	store    *docstore.Store
	client   *http.Client
	endpoint string
	apiKey   string
	logger   *zap.Logger
	now      func() time.Time
}

// NewSyncReactor creates the external sync reactor
func NewSyncReactor(store *docstore.Store, cfg SyncConfig, logger *zap.Logger) *SyncReactor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SyncReactor{
		store:    store,
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes a payment.recorded event
func (r *SyncReactor) Handle(ctx context.Context, evt *event.Event) error {
	var payment entity.Payment
	if err := r.store.Get(ctx, entity.CollectionPayments, evt.DocID, &payment); err != nil {
		return fmt.Errorf("load payment %s: %w", evt.DocID, err)
	}

	if err := r.send(ctx, &payment); err != nil {
		r.logger.Error("Payment sync failed",
			zap.String("payment_id", payment.ID),
			zap.Error(err))
		if recErr := r.recordOutcome(ctx, payment.ID, err); recErr != nil {
			r.logger.Error("Failed to record sync failure",
				zap.String("payment_id", payment.ID),
				zap.Error(recErr))
		}
		return err
	}

	if err := r.recordOutcome(ctx, payment.ID, nil); err != nil {
		return fmt.Errorf("record sync success: %w", err)
	}

	r.logger.Info("Payment synced to external system",
		zap.String("payment_id", payment.ID))
	return nil
}

// BuildPayload normalizes a payment for the external system, substituting
// defaults for optional fields
func BuildPayload(payment *entity.Payment, now time.Time) SyncPayload {
	currency := payment.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	recordedBy := payment.RecordedBy.Name
	if recordedBy == "" {
		recordedBy = defaultRecordedBy
	}
	date := payment.Date
	if date.IsZero() {
		date = now
	}
	return SyncPayload{
		ID:            payment.ID,
		Amount:        payment.Amount,
		Currency:      currency,
		Date:          date.UTC().Format(time.RFC3339),
		InvoiceID:     payment.InvoiceID,
		InvoiceNumber: payment.InvoiceNumber,
		Method:        payment.Method,
		Notes:         payment.Notes,
		ClientName:    payment.ClientName,
		RecordedBy:    recordedBy,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
}

func (r *SyncReactor) send(ctx context.Context, payment *entity.Payment) error {
	payload := BuildPayload(payment, r.now())

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to external system: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return fmt.Errorf("external system responded with status %d: %s", resp.StatusCode, string(errBody))
	}
	return nil
}

// recordOutcome writes the sync result onto the payment document
func (r *SyncReactor) recordOutcome(ctx context.Context, paymentID string, syncErr error) error {
	now := r.now()
	return r.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var payment entity.Payment
		if err := tx.Get(entity.CollectionPayments, paymentID, &payment); err != nil {
			return err
		}
		if syncErr == nil {
			payment.SyncStatus = entity.SyncStatusSuccess
			payment.SyncError = ""
			payment.SyncedAt = &now
		} else {
			payment.SyncStatus = entity.SyncStatusFailed
			payment.SyncError = syncErr.Error()
			payment.LastSyncAttempt = &now
		}
		return tx.Put(entity.CollectionPayments, paymentID, &payment)
	})
}
