package letter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/incaptta/crm-backend/internal/domain/entity"
)

func TestReferenceNumber(t *testing.T) {
	at := time.Date(2026, 4, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		kind  entity.Kind
		docID string
		want  string
	}{
		{entity.KindTransaction, "abc123def456", "APP-20260410-FIN-ABC123DE"},
		{entity.KindJobCard, "xyz789", "APP-20260410-JOB-XYZ789"},
		{entity.KindJobCardVariation, "0f1e2d3c4b5a", "APP-20260410-VAR-0F1E2D3C"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ReferenceNumber(tt.kind, tt.docID, at))
	}
}

func TestReferenceNumberUsesUTCDate(t *testing.T) {
	// 23:30 on the 10th in UTC-3 is already the 11th in UTC.
	loc := time.FixedZone("UTC-3", -3*60*60)
	at := time.Date(2026, 4, 10, 23, 30, 0, 0, loc)

	got := ReferenceNumber(entity.KindTransaction, "abcdefgh", at)
	assert.Equal(t, "APP-20260411-FIN-ABCDEFGH", got)
}
