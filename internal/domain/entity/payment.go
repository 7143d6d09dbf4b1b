package entity

import "time"

// Payment sync outcomes. Absence of a status means no sync attempt has run.
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// Payment is an invoice payment record. It is created once and afterwards
// mutated only by the external sync reactor.
type Payment struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	Date          time.Time `json:"date"`
	InvoiceID     string    `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	Method        string    `json:"method,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ClientName    string    `json:"clientName,omitempty"`
	RecordedBy    Submitter `json:"recordedBy"`

	SyncStatus      string     `json:"syncStatus,omitempty"`
	SyncError       string     `json:"syncError,omitempty"`
	SyncedAt        *time.Time `json:"syncedAt,omitempty"`
	LastSyncAttempt *time.Time `json:"lastSyncAttempt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
