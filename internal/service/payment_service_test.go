package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/dispatcher"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/event"
)

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)

	d := dispatcher.New()
	var mu sync.Mutex
	var dispatched []*event.Event
	d.SubscribeNamed(event.TypePaymentRecorded, "capture", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, evt)
		return nil
	})

	payments := NewPaymentService(f.store, d, zap.NewNop())
	payment, err := payments.Record(f.ctx, CreatePayment{
		Amount:        300,
		Currency:      "USD",
		Date:          time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		InvoiceID:     "inv-1",
		InvoiceNumber: "INV-0001",
		Method:        "ecocash",
	}, entity.Submitter{UID: "acct-1", Name: "Amy Accountant"})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	var stored entity.Payment
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionPayments, payment.ID, &stored))
	assert.Equal(t, 300.0, stored.Amount)
	assert.Equal(t, "inv-1", stored.InvoiceID)
	assert.Equal(t, "Amy Accountant", stored.RecordedBy.Name)
	assert.Empty(t, stored.SyncStatus, "sync outcome is the reactor's to write")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dispatched, 1)
	assert.Equal(t, entity.CollectionPayments, dispatched[0].Collection)
	assert.Equal(t, payment.ID, dispatched[0].DocID)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	d := dispatcher.New()
	defer d.Close()
	payments := NewPaymentService(f.store, d, zap.NewNop())

	_, err := payments.Record(f.ctx, CreatePayment{Amount: 0, InvoiceID: "inv-1"}, entity.Submitter{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = payments.Record(f.ctx, CreatePayment{Amount: -5, InvoiceID: "inv-1"}, entity.Submitter{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = payments.Record(f.ctx, CreatePayment{Amount: 10}, entity.Submitter{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRecordPaymentDefaultsDate(t *testing.T) {
	f := newFixture(t)
	d := dispatcher.New()
	defer d.Close()
	payments := NewPaymentService(f.store, d, zap.NewNop())

	payment, err := payments.Record(f.ctx, CreatePayment{Amount: 10, InvoiceID: "inv-1"}, entity.Submitter{})
	require.NoError(t, err)
	assert.False(t, payment.Date.IsZero())
}
