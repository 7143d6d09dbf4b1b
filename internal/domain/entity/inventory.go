package entity

import "time"

// Inventory movement types
const (
	MovementIssue  = "ISSUE"
	MovementReturn = "RETURN"
)

// InventoryItem is a stocked catalog item drawn down by approved job cards
type InventoryItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit,omitempty"`
	OnHandQty float64   `json:"onHandQty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MovementLine is one item/quantity pair within a movement
type MovementLine struct {
	ItemID string  `json:"itemId"`
	Qty    float64 `json:"qty"`
}

// InventoryMovement records a stock issue or return tied to a job card
type InventoryMovement struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Items     []MovementLine `json:"items"`
	JobCardID string         `json:"jobCardId"`
	CreatedBy Submitter      `json:"createdBy"`
	CreatedAt time.Time      `json:"createdAt"`
	Note      string         `json:"note,omitempty"`
}
