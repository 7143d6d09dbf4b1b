package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	submitter  = Actor{UID: "u1", Name: "Sam Submitter", Role: RoleUser}
	accountant = Actor{UID: "a1", Name: "Amy Accountant", Role: RoleAccountant}
	manager    = Actor{UID: "m1", Name: "Max Manager", Role: RoleManager}
	admin      = Actor{UID: "adm1", Name: "Ada Admin", Role: RoleAdmin}
)

func draftState() State {
	return State{Status: StatusDraft, Stage: StageNone, ApproverRole: RoleNone}
}

func accountantState() State {
	return State{Status: StatusSubmitted, Stage: StageAccountant, ApproverRole: RoleAccountant}
}

func managerState() State {
	return State{Status: StatusSubmitted, Stage: StageManager, ApproverRole: RoleManager}
}

func TestSubmitFromDraft(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	next, entry, err := Transition(draftState(), ActionSubmit, submitter, "", at)
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, next.Status)
	assert.Equal(t, StageAccountant, next.Stage)
	assert.Equal(t, RoleAccountant, next.ApproverRole)

	assert.Equal(t, StageAccountant, entry.Stage)
	assert.Equal(t, ActionSubmit, entry.Action)
	assert.Equal(t, "u1", entry.ByUID)
	assert.Equal(t, "Sam Submitter", entry.ByName)
	assert.Equal(t, at, entry.At)
}

func TestSubmitFromNonDraft(t *testing.T) {
	states := []State{
		accountantState(),
		managerState(),
		{Status: StatusApprovedFinal, Stage: StageDone, ApproverRole: RoleNone},
		{Status: StatusRejectedByAccountant, Stage: StageRejected, ApproverRole: RoleNone},
	}

	for _, cur := range states {
		t.Run(cur.Status.String(), func(t *testing.T) {
			next, _, err := Transition(cur, ActionSubmit, submitter, "", time.Now())
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, cur, next)
		})
	}
}

func TestAccountantApproveKeepsStatusInFlight(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	next, entry, err := Transition(accountantState(), ActionApprove, accountant, "looks fine", at)
	require.NoError(t, err)

	// First-stage approval advances the stage without finalizing the status.
	assert.Equal(t, StatusSubmitted, next.Status)
	assert.Equal(t, StageManager, next.Stage)
	assert.Equal(t, RoleManager, next.ApproverRole)

	assert.Equal(t, StageAccountant, entry.Stage)
	assert.Equal(t, ActionApprove, entry.Action)
	assert.Equal(t, "looks fine", entry.Note)
}

func TestManagerApproveFinalizes(t *testing.T) {
	next, entry, err := Transition(managerState(), ActionApprove, manager, "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusApprovedFinal, next.Status)
	assert.Equal(t, StageDone, next.Stage)
	assert.Equal(t, RoleNone, next.ApproverRole)
	assert.Equal(t, StageManager, entry.Stage)
	assert.True(t, next.Status.IsTerminal())
}

func TestRejectRequiresNote(t *testing.T) {
	for _, cur := range []State{accountantState(), managerState()} {
		t.Run(cur.Stage.String(), func(t *testing.T) {
			actor := accountant
			if cur.Stage == StageManager {
				actor = manager
			}
			next, _, err := Transition(cur, ActionReject, actor, "", time.Now())
			assert.ErrorIs(t, err, ErrNoteRequired)
			assert.Equal(t, cur, next)
		})
	}
}

func TestRejectAtAccountantStage(t *testing.T) {
	next, entry, err := Transition(accountantState(), ActionReject, accountant, "missing receipts", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusRejectedByAccountant, next.Status)
	assert.Equal(t, StageRejected, next.Stage)
	assert.Equal(t, RoleNone, next.ApproverRole)
	assert.Equal(t, "missing receipts", entry.Note)
	assert.True(t, next.Status.IsTerminal())
}

func TestRejectAtManagerStage(t *testing.T) {
	next, _, err := Transition(managerState(), ActionReject, manager, "over budget", time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusRejectedByManager, next.Status)
	assert.Equal(t, StageRejected, next.Stage)
}

func TestWrongRoleIsPermissionDenied(t *testing.T) {
	tests := []struct {
		name   string
		cur    State
		actor  Actor
		action Action
	}{
		{"manager approving at accountant stage", accountantState(), manager, ActionApprove},
		{"accountant approving at manager stage", managerState(), accountant, ActionApprove},
		{"plain user approving", accountantState(), submitter, ActionApprove},
		{"plain user rejecting", managerState(), submitter, ActionReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := Transition(tt.cur, tt.action, tt.actor, "note", time.Now())
			assert.ErrorIs(t, err, ErrPermissionDenied)
			assert.Equal(t, tt.cur, next)
		})
	}
}

func TestAdminMayActAtEitherStage(t *testing.T) {
	next, _, err := Transition(accountantState(), ActionApprove, admin, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StageManager, next.Stage)

	next, _, err = Transition(managerState(), ActionReject, admin, "cancelled by admin", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusRejectedByManager, next.Status)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	terminal := []State{
		{Status: StatusApprovedFinal, Stage: StageDone, ApproverRole: RoleNone},
		{Status: StatusRejectedByAccountant, Stage: StageRejected, ApproverRole: RoleNone},
		{Status: StatusRejectedByManager, Stage: StageRejected, ApproverRole: RoleNone},
	}

	for _, cur := range terminal {
		for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject} {
			next, _, err := Transition(cur, action, admin, "note", time.Now())
			assert.ErrorIs(t, err, ErrInvalidTransition,
				"%s from %s should be rejected", action, cur.Status)
			assert.Equal(t, cur, next)
		}
	}
}

func TestApproverRoleOutOfSync(t *testing.T) {
	// Stored approver role disagrees with the stage; this is a data problem,
	// not an authorization failure.
	cur := State{Status: StatusSubmitted, Stage: StageAccountant, ApproverRole: RoleManager}

	_, _, err := Transition(cur, ActionApprove, accountant, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, errors.Is(err, ErrPermissionDenied))
}

func TestUnknownAction(t *testing.T) {
	_, _, err := Transition(accountantState(), Action("ESCALATE"), admin, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFullApprovalSequence(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cur := draftState()
	var trail []TrailEntry

	steps := []struct {
		action Action
		actor  Actor
		note   string
	}{
		{ActionSubmit, submitter, ""},
		{ActionApprove, accountant, ""},
		{ActionApprove, manager, "approved for payment"},
	}

	for i, step := range steps {
		next, entry, err := Transition(cur, step.action, step.actor, step.note, at.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		trail = append(trail, entry)
		cur = next
	}

	assert.Equal(t, StatusApprovedFinal, cur.Status)
	assert.Equal(t, StageDone, cur.Stage)

	// Trail entries are chronological and record the stage acted at.
	require.Len(t, trail, 3)
	assert.Equal(t, StageAccountant, trail[0].Stage)
	assert.Equal(t, StageAccountant, trail[1].Stage)
	assert.Equal(t, StageManager, trail[2].Stage)
	for i := 1; i < len(trail); i++ {
		assert.True(t, trail[i].At.After(trail[i-1].At))
	}
}
