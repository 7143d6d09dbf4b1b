package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/domain/entity"
)

const registerSheet = "Approval Register"

// ReportService exports approval data as spreadsheets
type ReportService struct {
	requests *RequestService
	logger   *zap.Logger
}

// NewReportService creates a report service
func NewReportService(requests *RequestService, logger *zap.Logger) *ReportService {
	return &ReportService{requests: requests, logger: logger}
}

// ApprovalRegister builds an XLSX register of all requests of a kind with
// their workflow position, last trail action and letter reference
func (s *ReportService) ApprovalRegister(ctx context.Context, kind entity.Kind) ([]byte, error) {
	requests, err := s.requests.List(ctx, kind, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, registerSheet); err != nil {
		return nil, fmt.Errorf("rename register sheet: %w", err)
	}

	headers := []string{"ID", "Status", "Stage", "Submitted By", "Amount", "Last Action", "Last Action By", "Letter Ref"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(registerSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for row, req := range requests {
		values := []interface{}{
			req.ID,
			req.Status.String(),
			req.Workflow.Stage.String(),
			req.SubmittedBy.Name,
			registerAmount(req),
			"",
			"",
			"",
		}
		if n := len(req.ApprovalTrail); n > 0 {
			last := req.ApprovalTrail[n-1]
			values[5] = last.Action.String()
			values[6] = last.ByName
		}
		if req.ApprovalLetter != nil {
			values[7] = req.ApprovalLetter.RefNo
		}

		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(registerSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write register workbook: %w", err)
	}

	s.logger.Info("Approval register exported",
		zap.String("kind", string(kind)),
		zap.Int("rows", len(requests)))
	return buf.Bytes(), nil
}

func registerAmount(req *entity.Request) float64 {
	switch req.Kind {
	case entity.KindTransaction:
		return req.Amount
	case entity.KindJobCard:
		return req.TotalCost
	case entity.KindJobCardVariation:
		if req.Totals != nil {
			return req.Totals.GrandTotal
		}
	}
	return 0
}
