package domain

import (
	"encoding/json"
	"time"
)

// CreditAccount is the materialized balance for a user.
type CreditAccount struct {
	UserID       string
	TotalCredits int
	UsedCredits  int
	UpdatedAt    time.Time
}

// Available returns the spendable balance.
func (a CreditAccount) Available() int {
	return a.TotalCredits - a.UsedCredits
}

// CreditTransaction is an append-only ledger row. Debits are negative.
type CreditTransaction struct {
	ID           string
	UserID       string
	Amount       int
	ResourceType string
	Metadata     json.RawMessage
	CreatedAt    time.Time
}

// DebitRequest asks the ledger to spend cost credits atomically.
type DebitRequest struct {
	UserID       string
	ResourceType string
	Cost         int
	Metadata     map[string]any
}

// DebitResult reports the outcome of a debit attempt.
type DebitResult struct {
	Granted       bool
	Available     int
	TransactionID string
}
