package model

import "time"

// Notification is an append-only nudge record. Read is the only mutable
// field and is only ever flipped to true.
type Notification struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}
