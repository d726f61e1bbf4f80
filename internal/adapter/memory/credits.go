package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

// TryDebit checks and spends the balance under the store lock, so concurrent
// debits can never overdraw an account.
func (s *Store) TryDebit(ctx context.Context, req domain.DebitRequest) (domain.DebitResult, error) {
	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		return domain.DebitResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[req.UserID]
	if !ok || acct.Available() < req.Cost {
		return domain.DebitResult{Granted: false, Available: acct.Available()}, nil
	}
	acct.UsedCredits += req.Cost
	acct.UpdatedAt = s.now()
	s.accounts[req.UserID] = acct
	id := s.appendTxLocked(req.UserID, -req.Cost, req.ResourceType, meta)
	return domain.DebitResult{Granted: true, Available: acct.Available(), TransactionID: id}, nil
}

func (s *Store) Grant(ctx context.Context, userID string, amount int, resourceType string, metadata map[string]any) (*domain.CreditAccount, error) {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		acct = domain.CreditAccount{UserID: userID}
	}
	acct.TotalCredits += amount
	acct.UpdatedAt = s.now()
	s.accounts[userID] = acct
	s.appendTxLocked(userID, amount, resourceType, meta)
	return &acct, nil
}

// Refund returns previously debited credits. It reports ErrNotFound when the
// account has not used that many.
func (s *Store) Refund(ctx context.Context, userID string, amount int, resourceType string, metadata map[string]any) (*domain.CreditAccount, error) {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok || acct.UsedCredits < amount {
		return nil, fmt.Errorf("refund for %s: %w", userID, domain.ErrNotFound)
	}
	acct.UsedCredits -= amount
	acct.UpdatedAt = s.now()
	s.accounts[userID] = acct
	s.appendTxLocked(userID, amount, resourceType, meta)
	return &acct, nil
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("credit account %s: %w", userID, domain.ErrNotFound)
	}
	return &acct, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CreditTransaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := 0
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (s *Store) appendTxLocked(userID string, amount int, resourceType string, meta json.RawMessage) string {
	tx := domain.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		ResourceType: resourceType,
		Metadata:     meta,
		CreatedAt:    s.tick(),
	}
	s.transactions = append(s.transactions, tx)
	return tx.ID
}

func encodeMetadata(metadata map[string]any) (json.RawMessage, error) {
	if len(metadata) == 0 {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", domain.ErrValidation, err)
	}
	return raw, nil
}
