package entity

import "time"

// FinanceAccount holds a running balance that approved transactions post against
type FinanceAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // bank, ecocash, cash
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updatedAt"`
}
