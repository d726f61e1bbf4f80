package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type useCreditsRequest struct {
	ResourceType string         `json:"resource_type"`
	Cost         int            `json:"cost"`
	Metadata     map[string]any `json:"metadata"`
}

type transactionDTO struct {
	ID           string          `json:"id"`
	Amount       int             `json:"amount"`
	ResourceType string          `json:"resource_type"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (a *App) UseCredits(w http.ResponseWriter, r *http.Request) {
	var req useCreditsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	granted, err := a.Ledger.TryDebit(r.Context(), a.currentUserID(r), req.ResourceType, req.Cost, req.Metadata)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (a *App) CreditBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	acct, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	history, err := a.Ledger.History(r.Context(), userID, 20)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	txs := make([]transactionDTO, 0, len(history))
	for _, tx := range history {
		txs = append(txs, transactionDTO{
			ID:           tx.ID,
			Amount:       tx.Amount,
			ResourceType: tx.ResourceType,
			Metadata:     tx.Metadata,
			CreatedAt:    tx.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"total_credits": acct.TotalCredits,
		"used_credits":  acct.UsedCredits,
		"available":     acct.Available(),
		"transactions":  txs,
	})
}
