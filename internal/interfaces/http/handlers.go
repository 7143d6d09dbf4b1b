package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/workflow"
	"github.com/incaptta/crm-backend/internal/service"
	"github.com/incaptta/crm-backend/internal/storage"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	orchestrator *service.Orchestrator
	requests     *service.RequestService
	payments     *service.PaymentService
	reports      *service.ReportService
	blobs        storage.BlobStore
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	orchestrator *service.Orchestrator,
	requests *service.RequestService,
	payments *service.PaymentService,
	reports *service.ReportService,
	blobs storage.BlobStore,
	logger Logger,
) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		requests:     requests,
		payments:     payments,
		reports:      reports,
		blobs:        blobs,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ActionRequest carries the optional note of approve/reject calls
type ActionRequest struct {
	Note string `json:"note"`
}

// CreateDraftRequest is the body for creating a request draft
type CreateDraftRequest struct {
	Amount          float64           `json:"amount"`
	Currency        string            `json:"currency"`
	Type            string            `json:"type"`
	Category        string            `json:"category"`
	Description     string            `json:"description"`
	SourceAccountID string            `json:"sourceAccountId"`
	TargetAccountID string            `json:"targetAccountId"`
	ReferenceID     string            `json:"referenceId"`
	ProjectName     string            `json:"projectName"`
	ClientName      string            `json:"clientName"`
	Materials       []entity.Material `json:"materials"`
	TotalCost       float64           `json:"totalCost"`
	JobCardID       string            `json:"jobCardId"`
	JobCardNumber   string            `json:"jobCardNumber"`
	Reason          string            `json:"reason"`
}

// RecordPaymentRequest is the body for recording an invoice payment
type RecordPaymentRequest struct {
	Amount        float64    `json:"amount" binding:"required"`
	Currency      string     `json:"currency"`
	Date          *time.Time `json:"date"`
	InvoiceID     string     `json:"invoiceId" binding:"required"`
	InvoiceNumber string     `json:"invoiceNumber"`
	Method        string     `json:"method"`
	Notes         string     `json:"notes"`
	ClientName    string     `json:"clientName"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateDraft handles POST /api/requests/:kind
func (h *Handlers) CreateDraft(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}

	var body CreateDraftRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(c)
	req := &entity.Request{
		Kind:            kind,
		Amount:          body.Amount,
		Currency:        body.Currency,
		TxType:          body.Type,
		Category:        body.Category,
		Description:     body.Description,
		SourceAccountID: body.SourceAccountID,
		TargetAccountID: body.TargetAccountID,
		ReferenceID:     body.ReferenceID,
		ProjectName:     body.ProjectName,
		ClientName:      body.ClientName,
		Materials:       body.Materials,
		TotalCost:       body.TotalCost,
		JobCardID:       body.JobCardID,
		JobCardNumber:   body.JobCardNumber,
		Reason:          body.Reason,
	}

	created, err := h.requests.CreateDraft(c.Request.Context(), req, entity.Submitter{UID: actor.UID, Name: actor.DisplayName})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListRequests handles GET /api/requests/:kind
func (h *Handlers) ListRequests(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}

	status := workflow.Status(c.Query("status"))
	if status != "" && !status.IsValid() {
		h.fail(c, http.StatusBadRequest, "unknown status filter")
		return
	}

	requests, err := h.requests.List(c.Request.Context(), kind, status)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:kind/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}

	req, err := h.requests.Get(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// SubmitRequest handles POST /api/requests/:kind/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	h.workflowAction(c, func(kind entity.Kind, id, uid, note string) (*entity.Request, error) {
		return h.orchestrator.Submit(c.Request.Context(), kind, id, uid)
	})
}

// ApproveRequest handles POST /api/requests/:kind/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	h.workflowAction(c, func(kind entity.Kind, id, uid, note string) (*entity.Request, error) {
		return h.orchestrator.Approve(c.Request.Context(), kind, id, uid, note)
	})
}

// RejectRequest handles POST /api/requests/:kind/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.workflowAction(c, func(kind entity.Kind, id, uid, note string) (*entity.Request, error) {
		return h.orchestrator.Reject(c.Request.Context(), kind, id, uid, note)
	})
}

func (h *Handlers) workflowAction(c *gin.Context, fn func(kind entity.Kind, id, uid, note string) (*entity.Request, error)) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}

	var body ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	actor := actorFrom(c)
	updated, err := fn(kind, c.Param("id"), actor.UID, body.Note)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// ReturnMaterialsRequest is the body for returning job-card materials to stock
type ReturnMaterialsRequest struct {
	Items []entity.MovementLine `json:"items" binding:"required"`
	Note  string                `json:"note"`
}

// ReturnMaterials handles POST /api/requests/:kind/:id/return
func (h *Handlers) ReturnMaterials(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}
	if kind != entity.KindJobCard {
		h.fail(c, http.StatusBadRequest, "materials can only be returned on job cards")
		return
	}

	var body ReturnMaterialsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(c)
	updated, err := h.orchestrator.ReturnMaterials(c.Request.Context(), c.Param("id"), actor.UID, body.Items, body.Note)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// RegenerateLetter handles POST /api/requests/:kind/:id/letter
func (h *Handlers) RegenerateLetter(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}

	if err := h.orchestrator.RequestLetterRegeneration(c.Request.Context(), kind, c.Param("id")); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// RecordPayment handles POST /api/payments
func (h *Handlers) RecordPayment(c *gin.Context) {
	var body RecordPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.CreatePayment{
		Amount:        body.Amount,
		Currency:      body.Currency,
		InvoiceID:     body.InvoiceID,
		InvoiceNumber: body.InvoiceNumber,
		Method:        body.Method,
		Notes:         body.Notes,
		ClientName:    body.ClientName,
	}
	if body.Date != nil {
		input.Date = *body.Date
	}

	actor := actorFrom(c)
	payment, err := h.payments.Record(c.Request.Context(), input, entity.Submitter{UID: actor.UID, Name: actor.DisplayName})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: payment})
}

// ApprovalRegister handles GET /api/reports/:kind/approvals.xlsx
func (h *Handlers) ApprovalRegister(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}

	content, err := h.reports.ApprovalRegister(c.Request.Context(), kind)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="approvals.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// ServeBlob handles GET /files/*path with a token query parameter
func (h *Handlers) ServeBlob(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	token := c.Query("token")
	if path == "" || token == "" {
		h.fail(c, http.StatusBadRequest, "path and token are required")
		return
	}

	content, err := h.blobs.Open(path, token)
	if err != nil {
		h.fail(c, http.StatusNotFound, "file not found")
		return
	}
	c.Data(http.StatusOK, "application/pdf", content)
}

func (h *Handlers) kindParam(c *gin.Context) (entity.Kind, bool) {
	kind, err := entity.ParseKind(c.Param("kind"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request type")
		return "", false
	}
	return kind, true
}

func (h *Handlers) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg})
}

// serviceError maps service and workflow errors to HTTP status codes
func (h *Handlers) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrPermissionDenied):
		h.fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, workflow.ErrNoteRequired),
		errors.Is(err, service.ErrInvalidArgument):
		h.fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, service.ErrInsufficientStock):
		h.fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		h.fail(c, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("Internal error", "error", err)
		h.fail(c, http.StatusInternalServerError, "internal error")
	}
}
