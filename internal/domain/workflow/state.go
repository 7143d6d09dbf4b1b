package workflow

// Status represents the lifecycle status of an approval request
type Status string

const (
	StatusDraft                Status = "DRAFT"
	StatusSubmitted            Status = "SUBMITTED"
	StatusApprovedFinal        Status = "APPROVED_FINAL"
	StatusRejectedByAccountant Status = "REJECTED_BY_ACCOUNTANT"
	StatusRejectedByManager    Status = "REJECTED_BY_MANAGER"
)

var validStatuses = map[Status]bool{
	StatusDraft:                true,
	StatusSubmitted:            true,
	StatusApprovedFinal:        true,
	StatusRejectedByAccountant: true,
	StatusRejectedByManager:    true,
}

var terminalStatuses = map[Status]bool{
	StatusApprovedFinal:        true,
	StatusRejectedByAccountant: true,
	StatusRejectedByManager:    true,
}

// IsTerminal returns true if no further transitions are allowed from the status
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a known request status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Stage represents the workflow position of a request and drives who may act next
type Stage string

const (
	StageNone       Stage = ""
	StageAccountant Stage = "ACCOUNTANT"
	StageManager    Stage = "MANAGER"
	StageDone       Stage = "DONE"
	StageRejected   Stage = "REJECTED"
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Role identifies a user role within the workflow
type Role string

const (
	RoleNone       Role = "NONE"
	RoleUser       Role = "USER"
	RoleAccountant Role = "ACCOUNTANT"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// approverForStage maps an in-flight stage to the role authorized to act on it
func approverForStage(stage Stage) (Role, bool) {
	switch stage {
	case StageAccountant:
		return RoleAccountant, true
	case StageManager:
		return RoleManager, true
	default:
		return RoleNone, false
	}
}
