// Package service contains the caller-facing operations: the approval
// orchestrator (submit/approve/reject), payment recording, profile lookup
// and report export. Each orchestrator operation is a single atomic
// read-transition-write cycle against the document store; authorization and
// validation failures surface synchronously with no state change.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/dispatcher"
	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/event"
	"github.com/incaptta/crm-backend/internal/domain/workflow"
)

// Orchestrator exposes the workflow operations on approval requests
type Orchestrator struct {
	store      *docstore.Store
	profiles   *ProfileService
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrchestrator creates the approval orchestrator
func NewOrchestrator(store *docstore.Store, profiles *ProfileService, d dispatcher.Dispatcher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		profiles:   profiles,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit moves a DRAFT request into the accountant stage
func (o *Orchestrator) Submit(ctx context.Context, kind entity.Kind, id, actorUID string) (*entity.Request, error) {
	return o.transition(ctx, kind, id, actorUID, workflow.ActionSubmit, "")
}

// Approve advances a request one stage; the manager stage finalizes it
func (o *Orchestrator) Approve(ctx context.Context, kind entity.Kind, id, actorUID, note string) (*entity.Request, error) {
	return o.transition(ctx, kind, id, actorUID, workflow.ActionApprove, note)
}

// Reject terminates a request at the current stage; a reason is required
func (o *Orchestrator) Reject(ctx context.Context, kind entity.Kind, id, actorUID, note string) (*entity.Request, error) {
	return o.transition(ctx, kind, id, actorUID, workflow.ActionReject, note)
}

// transition runs the read-transition-write cycle in one store transaction.
// Kind-specific postings (finance balances, inventory issuance) happen in
// the same transaction as the final approval, so a posting failure aborts
// the approval with no partial state.
func (o *Orchestrator) transition(ctx context.Context, kind entity.Kind, id, actorUID string, action workflow.Action, note string) (*entity.Request, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidArgument)
	}
	collection := kind.Collection()
	if collection == "" {
		return nil, fmt.Errorf("%w: unknown request kind %q", ErrInvalidArgument, kind)
	}

	now := o.now()
	var updated entity.Request

	err := o.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var profile entity.UserProfile
		if err := tx.Get(entity.CollectionUserProfiles, actorUID, &profile); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("%w: user profile %s", ErrNotFound, actorUID)
			}
			return err
		}

		var req entity.Request
		if err := tx.Get(collection, id, &req); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
			}
			return err
		}

		next, entry, err := workflow.Transition(req.WorkflowState(), action, profile.Actor(), note, now)
		if err != nil {
			return err
		}
		req.ApplyTransition(next, entry, now)

		if next.Status == workflow.StatusApprovedFinal {
			if err := o.applyFinalApproval(tx, kind, &req, &profile, now); err != nil {
				return err
			}
		}

		if err := tx.Put(collection, id, &req); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		o.logger.Error("Workflow transition failed",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.String("action", action.String()),
			zap.Error(err))
		return nil, err
	}

	o.logger.Info("Workflow transition applied",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("action", action.String()),
		zap.String("status", updated.Status.String()),
		zap.String("stage", updated.Workflow.Stage.String()))

	o.publish(ctx, kind, &updated, action)
	return &updated, nil
}

// publish emits the explicit transition event consumed by reactors. A
// transition to final approval publishes request.approved with
// justApproved=true; the letter reactor derives nothing from document diffs.
func (o *Orchestrator) publish(ctx context.Context, kind entity.Kind, req *entity.Request, action workflow.Action) {
	var evtType event.Type
	payload := map[string]interface{}{"kind": string(kind)}

	switch {
	case req.Status == workflow.StatusApprovedFinal:
		evtType = event.TypeRequestApproved
		payload["justApproved"] = true
	case req.Status == workflow.StatusRejectedByAccountant || req.Status == workflow.StatusRejectedByManager:
		evtType = event.TypeRequestRejected
	case action == workflow.ActionSubmit:
		evtType = event.TypeRequestSubmitted
	default:
		return
	}

	o.dispatcher.DispatchAsync(ctx, event.New(evtType, kind.Collection(), req.ID, payload))
}

// RequestLetterRegeneration re-dispatches the approval event for a request
// whose letter failed to generate. The reactor's predicate makes this a
// no-op when a letter already exists.
func (o *Orchestrator) RequestLetterRegeneration(ctx context.Context, kind entity.Kind, id string) error {
	collection := kind.Collection()
	if collection == "" {
		return fmt.Errorf("%w: unknown request kind %q", ErrInvalidArgument, kind)
	}

	var req entity.Request
	if err := o.store.Get(ctx, collection, id, &req); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		return err
	}
	if req.Status != workflow.StatusApprovedFinal {
		return fmt.Errorf("%w: letter can only be generated for finally approved requests", ErrInvalidArgument)
	}

	o.dispatcher.DispatchAsync(ctx, event.New(event.TypeRequestApproved, collection, id, map[string]interface{}{
		"kind":         string(kind),
		"justApproved": false,
	}))
	return nil
}

// ReturnMaterials posts unused job-card materials back into stock. Returns
// are manager-only (admin may also act), allowed only against a finally
// approved job card; the RETURN movement and the stock adjustments commit in
// one transaction and the movement is linked on the job card.
func (o *Orchestrator) ReturnMaterials(ctx context.Context, id, actorUID string, lines []entity.MovementLine, note string) (*entity.Request, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: job card id is required", ErrInvalidArgument)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one return line is required", ErrInvalidArgument)
	}
	for _, line := range lines {
		if line.ItemID == "" || line.Qty <= 0 {
			return nil, fmt.Errorf("%w: return lines need an item id and a positive quantity", ErrInvalidArgument)
		}
	}

	now := o.now()
	var updated entity.Request

	err := o.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var profile entity.UserProfile
		if err := tx.Get(entity.CollectionUserProfiles, actorUID, &profile); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("%w: user profile %s", ErrNotFound, actorUID)
			}
			return err
		}
		if profile.Role != workflow.RoleManager && profile.Role != workflow.RoleAdmin {
			return fmt.Errorf("%w: role %s cannot return job card materials", workflow.ErrPermissionDenied, profile.Role)
		}

		var req entity.Request
		if err := tx.Get(entity.CollectionJobCards, id, &req); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("%w: %s %s", ErrNotFound, entity.KindJobCard, id)
			}
			return err
		}
		if req.Status != workflow.StatusApprovedFinal {
			return fmt.Errorf("%w: materials can only be returned on a finally approved job card", workflow.ErrInvalidTransition)
		}

		movement := entity.InventoryMovement{
			ID:        uuid.NewString(),
			Type:      entity.MovementReturn,
			JobCardID: req.ID,
			CreatedBy: entity.Submitter{UID: profile.UID, Name: profile.DisplayName},
			CreatedAt: now,
			Note:      note,
		}

		for _, line := range lines {
			var item entity.InventoryItem
			if err := tx.Get(entity.CollectionInventoryItems, line.ItemID, &item); err != nil {
				if errors.Is(err, docstore.ErrNotFound) {
					return fmt.Errorf("%w: inventory item %s", ErrNotFound, line.ItemID)
				}
				return err
			}
			item.OnHandQty += line.Qty
			item.UpdatedAt = now
			if err := tx.Put(entity.CollectionInventoryItems, item.ID, &item); err != nil {
				return err
			}
			movement.Items = append(movement.Items, line)
		}

		if err := tx.Create(entity.CollectionInventoryMoves, movement.ID, &movement); err != nil {
			return err
		}
		req.ReturnedMovementIDs = append(req.ReturnedMovementIDs, movement.ID)
		req.UpdatedAt = now
		if err := tx.Put(entity.CollectionJobCards, id, &req); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		o.logger.Error("Material return failed",
			zap.String("id", id),
			zap.Error(err))
		return nil, err
	}

	o.logger.Info("Materials returned to stock",
		zap.String("id", id),
		zap.String("movement_id", updated.ReturnedMovementIDs[len(updated.ReturnedMovementIDs)-1]),
		zap.Int("lines", len(lines)))
	return &updated, nil
}

// applyFinalApproval runs the kind-specific postings inside the approval
// transaction.
func (o *Orchestrator) applyFinalApproval(tx *docstore.Tx, kind entity.Kind, req *entity.Request, profile *entity.UserProfile, now time.Time) error {
	switch kind {
	case entity.KindTransaction:
		return o.applyFinancePosting(tx, req, now)
	case entity.KindJobCard:
		return o.applyInventoryIssue(tx, req, profile, now)
	default:
		return nil
	}
}

// applyFinancePosting applies an approved transaction to its account
// balances, once. AppliedAt is the idempotency guard.
func (o *Orchestrator) applyFinancePosting(tx *docstore.Tx, req *entity.Request, now time.Time) error {
	if req.AppliedAt != nil {
		return nil
	}

	adjust := func(accountID string, delta float64) error {
		if accountID == "" {
			return fmt.Errorf("%w: finance account reference missing", ErrInvalidArgument)
		}
		var account entity.FinanceAccount
		if err := tx.Get(entity.CollectionFinanceAccounts, accountID, &account); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("%w: finance account %s", ErrNotFound, accountID)
			}
			return err
		}
		account.Balance += delta
		account.UpdatedAt = now
		return tx.Put(entity.CollectionFinanceAccounts, accountID, &account)
	}

	switch req.TxType {
	case entity.TxTypeIncome:
		if err := adjust(req.TargetAccountID, req.Amount); err != nil {
			return err
		}
	case entity.TxTypeExpense:
		if err := adjust(req.SourceAccountID, -req.Amount); err != nil {
			return err
		}
	case entity.TxTypeTransfer:
		if err := adjust(req.SourceAccountID, -req.Amount); err != nil {
			return err
		}
		if err := adjust(req.TargetAccountID, req.Amount); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidArgument, req.TxType)
	}

	req.AppliedAt = &now
	return nil
}

// applyInventoryIssue deducts job-card materials from stock and records an
// ISSUE movement. IssuedMovementID is the idempotency guard; insufficient
// stock aborts the whole approval.
func (o *Orchestrator) applyInventoryIssue(tx *docstore.Tx, req *entity.Request, profile *entity.UserProfile, now time.Time) error {
	if req.IssuedMovementID != "" || len(req.Materials) == 0 {
		return nil
	}

	type issue struct {
		item entity.InventoryItem
		qty  float64
	}
	var issues []issue

	for _, mat := range req.Materials {
		if mat.ItemID == "" {
			continue
		}
		var item entity.InventoryItem
		if err := tx.Get(entity.CollectionInventoryItems, mat.ItemID, &item); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("%w: inventory item %s (%s)", ErrNotFound, mat.ItemID, mat.Name)
			}
			return err
		}
		if item.OnHandQty < mat.Quantity {
			return fmt.Errorf("%w for %s: available %.2f, required %.2f",
				ErrInsufficientStock, mat.Name, item.OnHandQty, mat.Quantity)
		}
		issues = append(issues, issue{item: item, qty: mat.Quantity})
	}

	if len(issues) == 0 {
		return nil
	}

	movement := entity.InventoryMovement{
		ID:        uuid.NewString(),
		Type:      entity.MovementIssue,
		JobCardID: req.ID,
		CreatedBy: entity.Submitter{UID: profile.UID, Name: profile.DisplayName},
		CreatedAt: now,
		Note:      fmt.Sprintf("Auto-issued on approval: %s", req.ProjectName),
	}

	for _, iss := range issues {
		iss.item.OnHandQty -= iss.qty
		iss.item.UpdatedAt = now
		if err := tx.Put(entity.CollectionInventoryItems, iss.item.ID, &iss.item); err != nil {
			return err
		}
		movement.Items = append(movement.Items, entity.MovementLine{ItemID: iss.item.ID, Qty: iss.qty})
	}

	if err := tx.Create(entity.CollectionInventoryMoves, movement.ID, &movement); err != nil {
		return err
	}
	req.IssuedMovementID = movement.ID
	return nil
}
