// Package workflow implements the pure transition logic of the two-stage
// approval lifecycle shared by finance transactions, job cards and job-card
// variations. The engine performs no I/O: given the current workflow state,
// an action and the acting user it either returns the next state together
// with the audit-trail entry to append, or an error and no change.
package workflow

import (
	"fmt"
	"time"
)

// State is the workflow-relevant slice of a request document
type State struct {
	Status       Status
	Stage        Stage
	ApproverRole Role
}

// Actor is the user attempting a transition
type Actor struct {
	UID  string
	Name string
	Role Role
}

// TrailEntry is a single append-only audit-trail record.
// Entries are appended in the order transitions are applied and never
// reordered or deduplicated.
type TrailEntry struct {
	Stage  Stage     `json:"stage"`
	Action Action    `json:"action"`
	ByUID  string    `json:"byUid"`
	ByName string    `json:"byName"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// Transition computes the next workflow state for the given action.
// It is deterministic in its inputs and safe to re-apply after a storage
// conflict forces a retry of the surrounding read-transition-write cycle.
func Transition(cur State, action Action, actor Actor, note string, at time.Time) (State, TrailEntry, error) {
	switch action {
	case ActionSubmit:
		return submit(cur, actor, at)
	case ActionApprove:
		return approve(cur, actor, note, at)
	case ActionReject:
		return reject(cur, actor, note, at)
	default:
		return cur, TrailEntry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
}

func submit(cur State, actor Actor, at time.Time) (State, TrailEntry, error) {
	if cur.Status != StatusDraft {
		return cur, TrailEntry{}, fmt.Errorf("%w: cannot submit from status %s", ErrInvalidTransition, cur.Status)
	}

	next := State{
		Status:       StatusSubmitted,
		Stage:        StageAccountant,
		ApproverRole: RoleAccountant,
	}
	entry := TrailEntry{
		Stage:  StageAccountant,
		Action: ActionSubmit,
		ByUID:  actor.UID,
		ByName: actor.Name,
		At:     at,
	}
	return next, entry, nil
}

func approve(cur State, actor Actor, note string, at time.Time) (State, TrailEntry, error) {
	if err := checkActionable(cur, actor); err != nil {
		return cur, TrailEntry{}, err
	}

	entry := TrailEntry{
		Stage:  cur.Stage,
		Action: ActionApprove,
		ByUID:  actor.UID,
		ByName: actor.Name,
		At:     at,
		Note:   note,
	}

	switch cur.Stage {
	case StageAccountant:
		// Status stays in flight; the request moves to the manager stage.
		next := State{
			Status:       cur.Status,
			Stage:        StageManager,
			ApproverRole: RoleManager,
		}
		return next, entry, nil
	case StageManager:
		next := State{
			Status:       StatusApprovedFinal,
			Stage:        StageDone,
			ApproverRole: RoleNone,
		}
		return next, entry, nil
	default:
		return cur, TrailEntry{}, fmt.Errorf("%w: cannot approve at stage %s", ErrInvalidTransition, cur.Stage)
	}
}

func reject(cur State, actor Actor, note string, at time.Time) (State, TrailEntry, error) {
	if note == "" {
		return cur, TrailEntry{}, ErrNoteRequired
	}
	if err := checkActionable(cur, actor); err != nil {
		return cur, TrailEntry{}, err
	}

	var status Status
	switch cur.Stage {
	case StageAccountant:
		status = StatusRejectedByAccountant
	case StageManager:
		status = StatusRejectedByManager
	default:
		return cur, TrailEntry{}, fmt.Errorf("%w: cannot reject at stage %s", ErrInvalidTransition, cur.Stage)
	}

	next := State{
		Status:       status,
		Stage:        StageRejected,
		ApproverRole: RoleNone,
	}
	entry := TrailEntry{
		Stage:  cur.Stage,
		Action: ActionReject,
		ByUID:  actor.UID,
		ByName: actor.Name,
		At:     at,
		Note:   note,
	}
	return next, entry, nil
}

// checkActionable verifies the request is in flight, the stored approver role
// is consistent with the stage, and the actor holds that role. Admins may act
// at either approval stage.
func checkActionable(cur State, actor Actor) error {
	if cur.Status.IsTerminal() {
		return fmt.Errorf("%w: status %s is terminal", ErrInvalidTransition, cur.Status)
	}

	required, ok := approverForStage(cur.Stage)
	if !ok {
		return fmt.Errorf("%w: no approver for stage %s", ErrInvalidTransition, cur.Stage)
	}
	if cur.ApproverRole != required {
		return fmt.Errorf("%w: approver role %s out of sync with stage %s", ErrInvalidTransition, cur.ApproverRole, cur.Stage)
	}
	if actor.Role != required && actor.Role != RoleAdmin {
		return fmt.Errorf("%w: role %s cannot act at stage %s", ErrPermissionDenied, actor.Role, cur.Stage)
	}
	return nil
}
