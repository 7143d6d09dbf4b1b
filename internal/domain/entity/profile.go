package entity

import (
	"time"

	"github.com/incaptta/crm-backend/internal/domain/workflow"
)

// UserProfile is the identity document the orchestrator resolves actors from
type UserProfile struct {
	UID         string        `json:"uid"`
	Email       string        `json:"email"`
	DisplayName string        `json:"displayName"`
	Role        workflow.Role `json:"role"`
	Active      bool          `json:"active"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Actor converts the profile into the workflow engine's actor representation
func (p *UserProfile) Actor() workflow.Actor {
	return workflow.Actor{
		UID:  p.UID,
		Name: p.DisplayName,
		Role: p.Role,
	}
}
