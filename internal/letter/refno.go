package letter

import (
	"fmt"
	"strings"
	"time"

	"github.com/incaptta/crm-backend/internal/domain/entity"
)

const shortIDLength = 8

// ReferenceNumber builds the human-readable letter reference:
// APP-<YYYYMMDD>-<TYPE>-<SHORT_ID>. The date component is the generation
// date, not the approval date, so regenerating a missing letter later yields
// a different reference number than the original.
func ReferenceNumber(kind entity.Kind, docID string, at time.Time) string {
	shortID := docID
	if len(shortID) > shortIDLength {
		shortID = shortID[:shortIDLength]
	}
	return fmt.Sprintf("APP-%s-%s-%s",
		at.UTC().Format("20060102"),
		kind.LetterTag(),
		strings.ToUpper(shortID),
	)
}
