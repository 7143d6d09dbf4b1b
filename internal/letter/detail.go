package letter

import (
	"fmt"

	"github.com/incaptta/crm-backend/internal/domain/entity"
)

// DetailRenderer produces the kind-specific detail block of an approval
// letter. Each request kind supplies its own strategy instead of branching
// on type strings inside the renderer.
type DetailRenderer interface {
	DetailLines(req *entity.Request) []string
}

// DetailRendererFor returns the renderer for a request kind
func DetailRendererFor(kind entity.Kind) DetailRenderer {
	switch kind {
	case entity.KindTransaction:
		return transactionDetails{}
	case entity.KindJobCard:
		return jobCardDetails{}
	case entity.KindJobCardVariation:
		return variationDetails{}
	default:
		return genericDetails{}
	}
}

type transactionDetails struct{}

func (transactionDetails) DetailLines(req *entity.Request) []string {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	lines := []string{
		fmt.Sprintf("Type: %s", req.TxType),
		fmt.Sprintf("Amount: %s %.2f", currency, req.Amount),
	}
	if req.Category != "" {
		lines = append(lines, fmt.Sprintf("Category: %s", req.Category))
	}
	if req.ReferenceID != "" {
		lines = append(lines, fmt.Sprintf("Reference: %s", req.ReferenceID))
	}
	return lines
}

type jobCardDetails struct{}

func (jobCardDetails) DetailLines(req *entity.Request) []string {
	project := req.ProjectName
	if project == "" {
		project = "N/A"
	}
	lines := []string{
		fmt.Sprintf("Project: %s", project),
		fmt.Sprintf("Total Cost: USD %.2f", req.TotalCost),
	}
	if req.ClientName != "" {
		lines = append(lines, fmt.Sprintf("Client: %s", req.ClientName))
	}
	if len(req.Materials) > 0 {
		lines = append(lines, fmt.Sprintf("Materials: %d line item(s)", len(req.Materials)))
	}
	return lines
}

type variationDetails struct{}

func (variationDetails) DetailLines(req *entity.Request) []string {
	lines := []string{
		fmt.Sprintf("Job Card: %s", req.JobCardNumber),
		fmt.Sprintf("Variation No: %d", req.VariationNumber),
	}
	if req.Reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", req.Reason))
	}
	if req.Totals != nil {
		lines = append(lines, fmt.Sprintf("Grand Total: USD %.2f", req.Totals.GrandTotal))
	}
	return lines
}

type genericDetails struct{}

func (genericDetails) DetailLines(req *entity.Request) []string {
	return []string{fmt.Sprintf("Request: %s", req.ID)}
}
