// Package letter renders the fixed-layout approval letter artifact produced
// when a request reaches final approval.
package letter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/incaptta/crm-backend/internal/domain/entity"
)

const (
	marginX     = 50.0
	titleSize   = 24.0
	headingSize = 14.0
	bodySize    = 11.0
	trailSize   = 10.0
	footerSize  = 8.0
)

// Renderer produces approval letter PDFs on an A4 page
type Renderer struct{}

// NewRenderer creates a letter renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render builds the letter for an approved request: title block, reference
// number, kind-specific details, the full approval trail in chronological
// order, the final status line and a generated-on footer.
func (r *Renderer) Render(req *entity.Request, refNo string, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	_, pageHeight := pdf.GetPageSize()

	// Header
	pdf.SetFont("Helvetica", "B", titleSize)
	pdf.SetTextColor(0, 51, 102)
	pdf.Text(marginX, 60, "APPROVAL LETTER")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(77, 77, 77)
	pdf.Text(marginX, 85, refNo)

	pdf.SetDrawColor(179, 179, 179)
	pdf.Line(marginX, 95, 545, 95)

	y := 130.0

	// Request details
	y = r.heading(pdf, y, "Request Details")
	for _, line := range DetailRendererFor(req.Kind).DetailLines(req) {
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(marginX+20, y, line)
		y += 20
	}
	y += 20

	// Approval trail, chronological
	y = r.heading(pdf, y, "Approval Trail")
	for _, e := range req.ApprovalTrail {
		if y > pageHeight-100 {
			break
		}
		pdf.SetFont("Helvetica", "", trailSize)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(marginX+20, y, fmt.Sprintf("%s: %s by %s", e.Stage, e.Action, e.ByName))
		y += 15

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(102, 102, 102)
		pdf.Text(marginX+40, y, fmt.Sprintf("Date: %s", e.At.Local().Format("02 Jan 2006 15:04:05")))
		y += 20
	}
	y += 20

	// Status
	y = r.heading(pdf, y, "Status")
	pdf.SetFont("Helvetica", "B", bodySize)
	pdf.SetTextColor(0, 128, 0)
	pdf.Text(marginX+20, y, fmt.Sprintf("Final Status: %s", req.Status))

	// Footer
	pdf.SetFont("Helvetica", "", footerSize)
	pdf.SetTextColor(128, 128, 128)
	pdf.Text(marginX, pageHeight-50, fmt.Sprintf("Generated on %s", now.Local().Format("02 Jan 2006 15:04:05")))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render approval letter: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) heading(pdf *fpdf.Fpdf, y float64, text string) float64 {
	pdf.SetFont("Helvetica", "B", headingSize)
	pdf.SetTextColor(0, 51, 102)
	pdf.Text(marginX, y, text)
	return y + 25
}
