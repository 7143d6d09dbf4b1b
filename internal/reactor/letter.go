// Package reactor contains the event-driven components: letter generation on
// final approval and external sync of recorded payments. Reactors are
// dispatched asynchronously; their outcomes are observable only through the
// fields they write back onto the document they concern.
package reactor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/dispatcher"
	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/event"
	"github.com/incaptta/crm-backend/internal/domain/workflow"
	"github.com/incaptta/crm-backend/internal/letter"
	"github.com/incaptta/crm-backend/internal/storage"
)

// LetterReactor generates the approval letter when a request reaches final
// approval. It is idempotent: a re-dispatched event regenerates the letter
// only when it is missing, so a successful write makes further dispatches
// no-ops and no retrigger loop can form.
type LetterReactor struct {
	store      *docstore.Store
	renderer   *letter.Renderer
	blobs      storage.BlobStore
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewLetterReactor creates the letter generation reactor
func NewLetterReactor(store *docstore.Store, renderer *letter.Renderer, blobs storage.BlobStore, d dispatcher.Dispatcher, logger *zap.Logger) *LetterReactor {
	return &LetterReactor{
		store:      store,
		renderer:   renderer,
		blobs:      blobs,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle processes a request.approved event. The payload carries the request
// kind and whether the approval just happened; regeneration nudges dispatch
// the same event with justApproved=false.
func (r *LetterReactor) Handle(ctx context.Context, evt *event.Event) error {
	kind, err := entity.ParseKind(evt.PayloadString("kind"))
	if err != nil {
		return err
	}
	justApproved := evt.PayloadBool("justApproved")

	var req entity.Request
	if err := r.store.Get(ctx, evt.Collection, evt.DocID, &req); err != nil {
		return fmt.Errorf("load request %s/%s: %w", evt.Collection, evt.DocID, err)
	}

	isApproved := req.Status == workflow.StatusApprovedFinal
	if !isApproved || !(justApproved || req.LetterMissing()) {
		r.logger.Debug("Letter generation skipped",
			zap.String("collection", evt.Collection),
			zap.String("id", evt.DocID),
			zap.String("status", req.Status.String()),
			zap.Bool("just_approved", justApproved))
		return nil
	}

	if err := r.generate(ctx, kind, &req); err != nil {
		r.recordFailure(ctx, evt.Collection, evt.DocID, err)
		return err
	}
	return nil
}

func (r *LetterReactor) generate(ctx context.Context, kind entity.Kind, req *entity.Request) error {
	now := r.now()
	refNo := letter.ReferenceNumber(kind, req.ID, now)

	content, err := r.renderer.Render(req, refNo, now)
	if err != nil {
		return err
	}

	// Deterministic path: regeneration overwrites the previous artifact.
	path := fmt.Sprintf("approval_letters/%s/%s.pdf", kind.Collection(), req.ID)
	url, err := r.blobs.Save(path, content)
	if err != nil {
		return fmt.Errorf("store approval letter: %w", err)
	}

	err = r.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var current entity.Request
		if err := tx.Get(kind.Collection(), req.ID, &current); err != nil {
			return err
		}
		current.ApprovalLetter = &entity.ApprovalLetter{
			RefNo:       refNo,
			StoragePath: path,
			URL:         url,
			GeneratedAt: now,
		}
		current.PDFGenerated = true
		current.PDFError = ""
		current.PDFErrorAt = nil
		current.UpdatedAt = now
		return tx.Put(kind.Collection(), req.ID, &current)
	})
	if err != nil {
		return fmt.Errorf("record approval letter: %w", err)
	}

	r.logger.Info("Approval letter generated",
		zap.String("collection", kind.Collection()),
		zap.String("id", req.ID),
		zap.String("ref_no", refNo),
		zap.String("url", url))

	r.dispatcher.DispatchAsync(ctx, event.New(event.TypeLetterGenerated, kind.Collection(), req.ID, map[string]interface{}{
		"refNo": refNo,
		"url":   url,
	}))
	return nil
}

// recordFailure writes the failure onto the request without touching its
// workflow fields; best effort, the original error is what propagates.
func (r *LetterReactor) recordFailure(ctx context.Context, collection, id string, genErr error) {
	now := r.now()
	err := r.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var current entity.Request
		if err := tx.Get(collection, id, &current); err != nil {
			return err
		}
		current.PDFGenerated = false
		current.PDFError = genErr.Error()
		current.PDFErrorAt = &now
		current.UpdatedAt = now
		return tx.Put(collection, id, &current)
	})
	if err != nil {
		r.logger.Error("Failed to record letter generation failure",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
	}
}
