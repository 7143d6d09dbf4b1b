package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/dispatcher"
	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/domain/workflow"
	"github.com/incaptta/crm-backend/pkg/database"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    body       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, id)
);
`

type fixture struct {
	store        *docstore.Store
	orchestrator *Orchestrator
	requests     *RequestService
	ctx          context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	store := docstore.New(db, zap.NewNop())
	d := dispatcher.New()
	t.Cleanup(func() { d.Close() })

	profiles := NewProfileService(store, zap.NewNop())

	f := &fixture{
		store:        store,
		orchestrator: NewOrchestrator(store, profiles, d, zap.NewNop()),
		requests:     NewRequestService(store, zap.NewNop()),
		ctx:          context.Background(),
	}
	f.seedProfiles(t)
	return f
}

func (f *fixture) seedProfiles(t *testing.T) {
	t.Helper()
	profiles := []entity.UserProfile{
		{UID: "user-1", DisplayName: "Sam Submitter", Role: workflow.RoleUser, Active: true},
		{UID: "acct-1", DisplayName: "Amy Accountant", Role: workflow.RoleAccountant, Active: true},
		{UID: "mgr-1", DisplayName: "Max Manager", Role: workflow.RoleManager, Active: true},
		{UID: "admin-1", DisplayName: "Ada Admin", Role: workflow.RoleAdmin, Active: true},
	}
	for _, p := range profiles {
		require.NoError(t, f.store.Create(f.ctx, entity.CollectionUserProfiles, p.UID, &p))
	}
}

func (f *fixture) createDraft(t *testing.T, req *entity.Request) *entity.Request {
	t.Helper()
	created, err := f.requests.CreateDraft(f.ctx, req, entity.Submitter{UID: "user-1", Name: "Sam Submitter"})
	require.NoError(t, err)
	return created
}

// submitToManagerStage moves a draft through submit and accountant approval.
func (f *fixture) submitToManagerStage(t *testing.T, kind entity.Kind, id string) {
	t.Helper()
	_, err := f.orchestrator.Submit(f.ctx, kind, id, "user-1")
	require.NoError(t, err)
	_, err = f.orchestrator.Approve(f.ctx, kind, id, "acct-1", "")
	require.NoError(t, err)
}

func (f *fixture) seedAccount(t *testing.T, id string, balance float64) {
	t.Helper()
	require.NoError(t, f.store.Create(f.ctx, entity.CollectionFinanceAccounts, id, &entity.FinanceAccount{
		ID: id, Name: id, Type: "bank", Balance: balance, Currency: "USD",
	}))
}

func (f *fixture) accountBalance(t *testing.T, id string) float64 {
	t.Helper()
	var account entity.FinanceAccount
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionFinanceAccounts, id, &account))
	return account.Balance
}

func TestTransactionApprovalFlow(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "acct-main", 1000)

	draft := f.createDraft(t, &entity.Request{
		Kind:            entity.KindTransaction,
		Amount:          250,
		Currency:        "USD",
		TxType:          entity.TxTypeIncome,
		TargetAccountID: "acct-main",
	})

	submitted, err := f.orchestrator.Submit(f.ctx, entity.KindTransaction, draft.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, submitted.Status)
	assert.Equal(t, workflow.StageAccountant, submitted.Workflow.Stage)
	assert.NotNil(t, submitted.Workflow.SubmittedAt)

	afterAcct, err := f.orchestrator.Approve(f.ctx, entity.KindTransaction, draft.ID, "acct-1", "verified")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, afterAcct.Status)
	assert.Equal(t, workflow.StageManager, afterAcct.Workflow.Stage)
	assert.Equal(t, 1000.0, f.accountBalance(t, "acct-main"), "no posting before final approval")

	final, err := f.orchestrator.Approve(f.ctx, entity.KindTransaction, draft.ID, "mgr-1", "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApprovedFinal, final.Status)
	assert.Equal(t, workflow.StageDone, final.Workflow.Stage)
	assert.NotNil(t, final.AppliedAt)
	assert.Equal(t, 1250.0, f.accountBalance(t, "acct-main"))

	require.Len(t, final.ApprovalTrail, 3)
	assert.Equal(t, workflow.ActionSubmit, final.ApprovalTrail[0].Action)
	assert.Equal(t, "verified", final.ApprovalTrail[1].Note)
	assert.Equal(t, workflow.StageManager, final.ApprovalTrail[2].Stage)
}

func TestTransferPostsBothAccounts(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "acct-src", 500)
	f.seedAccount(t, "acct-dst", 100)

	draft := f.createDraft(t, &entity.Request{
		Kind:            entity.KindTransaction,
		Amount:          200,
		TxType:          entity.TxTypeTransfer,
		SourceAccountID: "acct-src",
		TargetAccountID: "acct-dst",
	})
	f.submitToManagerStage(t, entity.KindTransaction, draft.ID)

	_, err := f.orchestrator.Approve(f.ctx, entity.KindTransaction, draft.ID, "mgr-1", "")
	require.NoError(t, err)

	assert.Equal(t, 300.0, f.accountBalance(t, "acct-src"))
	assert.Equal(t, 300.0, f.accountBalance(t, "acct-dst"))
}

func TestFinancePostingAppliedOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "acct-main", 1000)

	draft := f.createDraft(t, &entity.Request{
		Kind:            entity.KindTransaction,
		Amount:          100,
		TxType:          entity.TxTypeExpense,
		SourceAccountID: "acct-main",
	})
	f.submitToManagerStage(t, entity.KindTransaction, draft.ID)

	// Simulate an earlier posting already recorded on the document.
	applied := time.Now().Add(-time.Hour)
	var req entity.Request
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionTransactions, draft.ID, &req))
	req.AppliedAt = &applied
	require.NoError(t, f.store.RunTransaction(f.ctx, func(tx *docstore.Tx) error {
		return tx.Put(entity.CollectionTransactions, draft.ID, &req)
	}))

	_, err := f.orchestrator.Approve(f.ctx, entity.KindTransaction, draft.ID, "mgr-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f.accountBalance(t, "acct-main"), "guarded posting must not re-apply")
}

func TestMissingFinanceAccountAbortsApproval(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{
		Kind:            entity.KindTransaction,
		Amount:          100,
		TxType:          entity.TxTypeExpense,
		SourceAccountID: "acct-nope",
	})
	f.submitToManagerStage(t, entity.KindTransaction, draft.ID)

	_, err := f.orchestrator.Approve(f.ctx, entity.KindTransaction, draft.ID, "mgr-1", "")
	assert.ErrorIs(t, err, ErrNotFound)

	// The whole approval rolled back; the request is still awaiting the manager.
	var req entity.Request
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionTransactions, draft.ID, &req))
	assert.Equal(t, workflow.StatusSubmitted, req.Status)
	assert.Equal(t, workflow.StageManager, req.Workflow.Stage)
	assert.Len(t, req.ApprovalTrail, 2)
}

func TestWrongRoleCannotApprove(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindJobCardVariation, JobCardNumber: "JC-001"})
	_, err := f.orchestrator.Submit(f.ctx, entity.KindJobCardVariation, draft.ID, "user-1")
	require.NoError(t, err)

	_, err = f.orchestrator.Approve(f.ctx, entity.KindJobCardVariation, draft.ID, "mgr-1", "")
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)

	var req entity.Request
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionJobCardVariations, draft.ID, &req))
	assert.Equal(t, workflow.StageAccountant, req.Workflow.Stage)
	assert.Len(t, req.ApprovalTrail, 1)
}

func TestAdminCanApproveEitherStage(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindJobCardVariation, JobCardNumber: "JC-002"})
	_, err := f.orchestrator.Submit(f.ctx, entity.KindJobCardVariation, draft.ID, "user-1")
	require.NoError(t, err)

	_, err = f.orchestrator.Approve(f.ctx, entity.KindJobCardVariation, draft.ID, "admin-1", "")
	require.NoError(t, err)
	final, err := f.orchestrator.Approve(f.ctx, entity.KindJobCardVariation, draft.ID, "admin-1", "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApprovedFinal, final.Status)
}

func TestRejectRequiresNote(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindJobCardVariation})
	_, err := f.orchestrator.Submit(f.ctx, entity.KindJobCardVariation, draft.ID, "user-1")
	require.NoError(t, err)

	_, err = f.orchestrator.Reject(f.ctx, entity.KindJobCardVariation, draft.ID, "acct-1", "")
	assert.ErrorIs(t, err, workflow.ErrNoteRequired)
}

func TestRejectByAccountant(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindJobCardVariation})
	_, err := f.orchestrator.Submit(f.ctx, entity.KindJobCardVariation, draft.ID, "user-1")
	require.NoError(t, err)

	rejected, err := f.orchestrator.Reject(f.ctx, entity.KindJobCardVariation, draft.ID, "acct-1", "incomplete costing")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejectedByAccountant, rejected.Status)
	assert.Equal(t, workflow.StageRejected, rejected.Workflow.Stage)
	assert.Equal(t, "incomplete costing", rejected.ApprovalTrail[len(rejected.ApprovalTrail)-1].Note)

	// Terminal; nothing more can happen.
	_, err = f.orchestrator.Approve(f.ctx, entity.KindJobCardVariation, draft.ID, "admin-1", "")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestJobCardApprovalIssuesInventory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(f.ctx, entity.CollectionInventoryItems, "item-1", &entity.InventoryItem{
		ID: "item-1", Name: "Cement", OnHandQty: 50,
	}))

	draft := f.createDraft(t, &entity.Request{
		Kind:        entity.KindJobCard,
		ProjectName: "Warehouse Extension",
		Materials: []entity.Material{
			{ItemID: "item-1", Name: "Cement", Quantity: 20},
		},
	})
	f.submitToManagerStage(t, entity.KindJobCard, draft.ID)

	final, err := f.orchestrator.Approve(f.ctx, entity.KindJobCard, draft.ID, "mgr-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, final.IssuedMovementID)

	var item entity.InventoryItem
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryItems, "item-1", &item))
	assert.Equal(t, 30.0, item.OnHandQty)

	var movement entity.InventoryMovement
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryMoves, final.IssuedMovementID, &movement))
	assert.Equal(t, entity.MovementIssue, movement.Type)
	assert.Equal(t, draft.ID, movement.JobCardID)
	assert.Contains(t, movement.Note, "Warehouse Extension")
	require.Len(t, movement.Items, 1)
	assert.Equal(t, 20.0, movement.Items[0].Qty)
}

func TestInsufficientStockAbortsApproval(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(f.ctx, entity.CollectionInventoryItems, "item-1", &entity.InventoryItem{
		ID: "item-1", Name: "Cement", OnHandQty: 5,
	}))

	draft := f.createDraft(t, &entity.Request{
		Kind:        entity.KindJobCard,
		ProjectName: "Warehouse Extension",
		Materials: []entity.Material{
			{ItemID: "item-1", Name: "Cement", Quantity: 20},
		},
	})
	f.submitToManagerStage(t, entity.KindJobCard, draft.ID)

	_, err := f.orchestrator.Approve(f.ctx, entity.KindJobCard, draft.ID, "mgr-1", "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Approval and issuance rolled back together.
	var req entity.Request
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionJobCards, draft.ID, &req))
	assert.Equal(t, workflow.StatusSubmitted, req.Status)
	assert.Empty(t, req.IssuedMovementID)

	var item entity.InventoryItem
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryItems, "item-1", &item))
	assert.Equal(t, 5.0, item.OnHandQty)
}

// approvedJobCard drives a job card with issued materials all the way to
// final approval and returns it.
func approvedJobCard(t *testing.T, f *fixture) *entity.Request {
	t.Helper()
	require.NoError(t, f.store.Create(f.ctx, entity.CollectionInventoryItems, "item-1", &entity.InventoryItem{
		ID: "item-1", Name: "Cement", OnHandQty: 50,
	}))

	draft := f.createDraft(t, &entity.Request{
		Kind:        entity.KindJobCard,
		ProjectName: "Warehouse Extension",
		Materials: []entity.Material{
			{ItemID: "item-1", Name: "Cement", Quantity: 20},
		},
	})
	f.submitToManagerStage(t, entity.KindJobCard, draft.ID)

	final, err := f.orchestrator.Approve(f.ctx, entity.KindJobCard, draft.ID, "mgr-1", "")
	require.NoError(t, err)
	return final
}

func TestReturnMaterialsRestocksInventory(t *testing.T) {
	f := newFixture(t)
	jobCard := approvedJobCard(t, f)

	updated, err := f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, "mgr-1",
		[]entity.MovementLine{{ItemID: "item-1", Qty: 5}}, "unused bags")
	require.NoError(t, err)
	require.Len(t, updated.ReturnedMovementIDs, 1)

	var item entity.InventoryItem
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryItems, "item-1", &item))
	assert.Equal(t, 35.0, item.OnHandQty, "50 on hand, 20 issued, 5 returned")

	var movement entity.InventoryMovement
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryMoves, updated.ReturnedMovementIDs[0], &movement))
	assert.Equal(t, entity.MovementReturn, movement.Type)
	assert.Equal(t, jobCard.ID, movement.JobCardID)
	assert.Equal(t, "unused bags", movement.Note)
	assert.Equal(t, "Max Manager", movement.CreatedBy.Name)
	require.Len(t, movement.Items, 1)
	assert.Equal(t, 5.0, movement.Items[0].Qty)

	// A second return links a second movement.
	updated, err = f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, "admin-1",
		[]entity.MovementLine{{ItemID: "item-1", Qty: 2}}, "")
	require.NoError(t, err)
	assert.Len(t, updated.ReturnedMovementIDs, 2)
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryItems, "item-1", &item))
	assert.Equal(t, 37.0, item.OnHandQty)
}

func TestReturnMaterialsManagerOnly(t *testing.T) {
	f := newFixture(t)
	jobCard := approvedJobCard(t, f)

	for _, uid := range []string{"user-1", "acct-1"} {
		_, err := f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, uid,
			[]entity.MovementLine{{ItemID: "item-1", Qty: 5}}, "")
		assert.ErrorIs(t, err, workflow.ErrPermissionDenied, "uid %s", uid)
	}

	var item entity.InventoryItem
	require.NoError(t, f.store.Get(f.ctx, entity.CollectionInventoryItems, "item-1", &item))
	assert.Equal(t, 30.0, item.OnHandQty, "denied returns leave stock untouched")
}

func TestReturnMaterialsRequiresFinalApproval(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(f.ctx, entity.CollectionInventoryItems, "item-1", &entity.InventoryItem{
		ID: "item-1", Name: "Cement", OnHandQty: 50,
	}))

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindJobCard, ProjectName: "Warehouse Extension"})
	f.submitToManagerStage(t, entity.KindJobCard, draft.ID)

	_, err := f.orchestrator.ReturnMaterials(f.ctx, draft.ID, "mgr-1",
		[]entity.MovementLine{{ItemID: "item-1", Qty: 5}}, "")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestReturnMaterialsValidation(t *testing.T) {
	f := newFixture(t)
	jobCard := approvedJobCard(t, f)

	_, err := f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, "mgr-1", nil, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, "mgr-1",
		[]entity.MovementLine{{ItemID: "item-1", Qty: 0}}, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, "mgr-1",
		[]entity.MovementLine{{ItemID: "", Qty: 3}}, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.orchestrator.ReturnMaterials(f.ctx, jobCard.ID, "mgr-1",
		[]entity.MovementLine{{ItemID: "item-missing", Qty: 3}}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestLetterRegenerationRequiresFinalApproval(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindJobCardVariation})
	err := f.orchestrator.RequestLetterRegeneration(f.ctx, entity.KindJobCardVariation, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = f.orchestrator.RequestLetterRegeneration(f.ctx, entity.KindJobCardVariation, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionUnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Submit(f.ctx, entity.KindTransaction, "missing", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionUnknownActor(t *testing.T) {
	f := newFixture(t)

	draft := f.createDraft(t, &entity.Request{Kind: entity.KindTransaction, TxType: entity.TxTypeIncome})
	_, err := f.orchestrator.Submit(f.ctx, entity.KindTransaction, draft.ID, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
