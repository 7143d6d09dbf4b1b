package entity

import (
	"fmt"
	"time"

	"github.com/incaptta/crm-backend/internal/domain/workflow"
)

// Kind is the tagged variant distinguishing the three request types that
// share the approval workflow.
type Kind string

const (
	KindTransaction      Kind = "transaction"
	KindJobCard          Kind = "jobCard"
	KindJobCardVariation Kind = "jobCardVariation"
)

// ParseKind maps an external request-type string to a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTransaction, KindJobCard, KindJobCardVariation:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown request kind %q", s)
	}
}

// Collection returns the document-store collection that holds this kind
func (k Kind) Collection() string {
	switch k {
	case KindTransaction:
		return CollectionTransactions
	case KindJobCard:
		return CollectionJobCards
	case KindJobCardVariation:
		return CollectionJobCardVariations
	default:
		return ""
	}
}

// LetterTag returns the short type code used in approval-letter reference numbers
func (k Kind) LetterTag() string {
	switch k {
	case KindTransaction:
		return "FIN"
	case KindJobCard:
		return "JOB"
	case KindJobCardVariation:
		return "VAR"
	default:
		return "REQ"
	}
}

// Document-store collections
const (
	CollectionTransactions      = "transactions"
	CollectionJobCards          = "jobCards"
	CollectionJobCardVariations = "jobCardVariations"
	CollectionPayments          = "payments"
	CollectionUserProfiles      = "userProfiles"
	CollectionFinanceAccounts   = "financeAccounts"
	CollectionInventoryItems    = "inventoryItems"
	CollectionInventoryMoves    = "inventoryMovements"
)

// Submitter identifies who created or submitted a document
type Submitter struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// WorkflowInfo is the persisted workflow block of a request document
type WorkflowInfo struct {
	Stage               workflow.Stage `json:"stage"`
	SubmittedAt         *time.Time     `json:"submittedAt,omitempty"`
	CurrentApproverRole workflow.Role  `json:"currentApproverRole"`
}

// ApprovalLetter references the generated letter artifact. Set at most once
// per successful approval cycle; absence means "not yet generated".
type ApprovalLetter struct {
	RefNo       string    `json:"refNo"`
	StoragePath string    `json:"storagePath"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Material is a line item on a job card or variation
type Material struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitCost  float64 `json:"unitCost"`
	LineTotal float64 `json:"lineTotal"`
}

// VariationTotals breaks down a job-card variation's cost
type VariationTotals struct {
	InventoryTotal float64 `json:"inventoryTotal"`
	ExpensesTotal  float64 `json:"expensesTotal"`
	GrandTotal     float64 `json:"grandTotal"`
}

// Transaction direction for finance transactions
const (
	TxTypeIncome   = "INCOME"
	TxTypeExpense  = "EXPENSE"
	TxTypeTransfer = "TRANSFER"
)

// Request is a document subject to the approval workflow. The three kinds
// share the workflow block and audit trail; kind-specific fields are
// populated only for the matching kind.
type Request struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Status      workflow.Status `json:"status"`
	Workflow    WorkflowInfo    `json:"workflow"`
	SubmittedBy Submitter       `json:"submittedBy"`

	// ApprovalTrail is append-only; insertion order is chronological and
	// significant. Entries are never removed or reordered.
	ApprovalTrail []workflow.TrailEntry `json:"approvalTrail"`

	ApprovalLetter *ApprovalLetter `json:"approvalLetter,omitempty"`
	PDFGenerated   bool            `json:"pdfGenerated"`
	PDFError       string          `json:"pdfError,omitempty"`
	PDFErrorAt     *time.Time      `json:"pdfErrorAt,omitempty"`

	// Finance transaction fields
	Amount          float64    `json:"amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	TxType          string     `json:"type,omitempty"`
	Category        string     `json:"category,omitempty"`
	Description     string     `json:"description,omitempty"`
	SourceAccountID string     `json:"sourceAccountId,omitempty"`
	TargetAccountID string     `json:"targetAccountId,omitempty"`
	ReferenceID     string     `json:"referenceId,omitempty"`
	AppliedAt       *time.Time `json:"appliedAt,omitempty"`

	// Job card fields
	ProjectName         string     `json:"projectName,omitempty"`
	ClientName          string     `json:"clientName,omitempty"`
	Materials           []Material `json:"materials,omitempty"`
	TotalCost           float64    `json:"totalCost,omitempty"`
	IssuedMovementID    string     `json:"issuedMovementId,omitempty"`
	ReturnedMovementIDs []string   `json:"returnedMovementIds,omitempty"`

	// Job card variation fields
	JobCardID       string           `json:"jobCardId,omitempty"`
	JobCardNumber   string           `json:"jobCardNumber,omitempty"`
	VariationNumber int              `json:"variationNumber,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Totals          *VariationTotals `json:"totals,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkflowState extracts the slice of the document the workflow engine operates on
func (r *Request) WorkflowState() workflow.State {
	return workflow.State{
		Status:       r.Status,
		Stage:        r.Workflow.Stage,
		ApproverRole: r.Workflow.CurrentApproverRole,
	}
}

// ApplyTransition writes an engine result back onto the document
func (r *Request) ApplyTransition(next workflow.State, entry workflow.TrailEntry, at time.Time) {
	r.Status = next.Status
	r.Workflow.Stage = next.Stage
	r.Workflow.CurrentApproverRole = next.ApproverRole
	if entry.Action == workflow.ActionSubmit {
		r.Workflow.SubmittedAt = &entry.At
	}
	r.ApprovalTrail = append(r.ApprovalTrail, entry)
	r.UpdatedAt = at
}

// LetterMissing reports whether the request has no usable approval letter
func (r *Request) LetterMissing() bool {
	return r.ApprovalLetter == nil || r.ApprovalLetter.StoragePath == ""
}
