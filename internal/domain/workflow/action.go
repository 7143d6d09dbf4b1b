package workflow

// Action represents an operation that can cause a workflow transition
type Action string

const (
	ActionSubmit  Action = "SUBMIT"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid returns true if the action is one of the defined workflow actions
func (a Action) IsValid() bool {
	switch a {
	case ActionSubmit, ActionApprove, ActionReject:
		return true
	default:
		return false
	}
}
