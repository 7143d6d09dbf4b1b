package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/workflow"
)

// RequestService creates and queries approval requests
type RequestService struct {
	store  *docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewRequestService creates a request service
func NewRequestService(store *docstore.Store, logger *zap.Logger) *RequestService {
	return &RequestService{store: store, logger: logger, now: time.Now}
}

// CreateDraft stores a new request in DRAFT; only the orchestrator mutates
// it afterward. Requests are never deleted (audit retention).
func (s *RequestService) CreateDraft(ctx context.Context, req *entity.Request, creator entity.Submitter) (*entity.Request, error) {
	collection := req.Kind.Collection()
	if collection == "" {
		return nil, fmt.Errorf("%w: unknown request kind %q", ErrInvalidArgument, req.Kind)
	}

	now := s.now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = workflow.StatusDraft
	req.Workflow = entity.WorkflowInfo{
		Stage:               workflow.StageNone,
		CurrentApproverRole: workflow.RoleNone,
	}
	req.SubmittedBy = creator
	req.ApprovalTrail = []workflow.TrailEntry{}
	req.CreatedAt = now
	req.UpdatedAt = now

	if err := s.store.Create(ctx, collection, req.ID, req); err != nil {
		return nil, err
	}

	s.logger.Info("Request draft created",
		zap.String("kind", string(req.Kind)),
		zap.String("id", req.ID))
	return req, nil
}

// Get loads a request by kind and id
func (s *RequestService) Get(ctx context.Context, kind entity.Kind, id string) (*entity.Request, error) {
	collection := kind.Collection()
	if collection == "" {
		return nil, fmt.Errorf("%w: unknown request kind %q", ErrInvalidArgument, kind)
	}

	var req entity.Request
	if err := s.store.Get(ctx, collection, id, &req); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		return nil, err
	}
	return &req, nil
}

// List returns all requests of a kind, optionally filtered by status, in
// creation order
func (s *RequestService) List(ctx context.Context, kind entity.Kind, status workflow.Status) ([]*entity.Request, error) {
	collection := kind.Collection()
	if collection == "" {
		return nil, fmt.Errorf("%w: unknown request kind %q", ErrInvalidArgument, kind)
	}

	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	requests := make([]*entity.Request, 0, len(docs))
	for _, doc := range docs {
		var req entity.Request
		if err := json.Unmarshal(doc, &req); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		if status != "" && req.Status != status {
			continue
		}
		requests = append(requests, &req)
	}
	return requests, nil
}
