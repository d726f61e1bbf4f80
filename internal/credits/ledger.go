// Package credits is the admission gate for paid generation. A debit either
// spends the full cost or nothing.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

// Ledger wraps a CreditRepository with validation and logging.
type Ledger struct {
	repo   domain.CreditRepository
	logger infra.Logger
}

func NewLedger(repo domain.CreditRepository, logger infra.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// TryDebit spends cost credits for userID. It reports false, with no state
// change, when the balance cannot cover the cost.
func (l *Ledger) TryDebit(ctx context.Context, userID, resourceType string, cost int, metadata map[string]any) (bool, error) {
	userID = strings.TrimSpace(userID)
	resourceType = strings.TrimSpace(resourceType)
	if userID == "" || resourceType == "" {
		return false, fmt.Errorf("%w: user and resource type are required", domain.ErrValidation)
	}
	if cost < 0 {
		return false, fmt.Errorf("%w: cost must not be negative", domain.ErrValidation)
	}
	if cost == 0 {
		return true, nil
	}
	res, err := l.repo.TryDebit(ctx, domain.DebitRequest{
		UserID:       userID,
		ResourceType: resourceType,
		Cost:         cost,
		Metadata:     metadata,
	})
	if err != nil {
		return false, err
	}
	l.logger.Info().
		Str("user_id", userID).
		Str("resource_type", resourceType).
		Int("cost", cost).
		Bool("granted", res.Granted).
		Int("available", res.Available).
		Msg("credit debit")
	return res.Granted, nil
}

// Grant adds amount to the user's total, creating the account on first use.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, reason string) (*domain.CreditAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || amount <= 0 {
		return nil, fmt.Errorf("%w: user and a positive amount are required", domain.ErrValidation)
	}
	if reason == "" {
		reason = "grant"
	}
	acct, err := l.repo.Grant(ctx, userID, amount, reason, map[string]any{"reason": reason})
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("user_id", userID).Int("amount", amount).Int("available", acct.Available()).Msg("credits granted")
	return acct, nil
}

// Refund returns credits that were debited for work that never started.
func (l *Ledger) Refund(ctx context.Context, userID, resourceType string, amount int, metadata map[string]any) error {
	if amount <= 0 {
		return nil
	}
	if _, err := l.repo.Refund(ctx, userID, amount, resourceType, metadata); err != nil {
		return err
	}
	l.logger.Info().Str("user_id", userID).Str("resource_type", resourceType).Int("amount", amount).Msg("credits refunded")
	return nil
}

// Balance returns the user's account. Unknown users have an empty account.
func (l *Ledger) Balance(ctx context.Context, userID string) (domain.CreditAccount, error) {
	acct, err := l.repo.GetAccount(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CreditAccount{UserID: userID}, nil
	}
	if err != nil {
		return domain.CreditAccount{}, err
	}
	return *acct, nil
}

func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	return l.repo.ListTransactions(ctx, userID, limit)
}

// Audit checks that the transaction log sums to the account balance.
func (l *Ledger) Audit(ctx context.Context, userID string) error {
	acct, err := l.Balance(ctx, userID)
	if err != nil {
		return err
	}
	sum, err := l.repo.SumTransactions(ctx, userID)
	if err != nil {
		return err
	}
	if sum != acct.Available() {
		return fmt.Errorf("%w: ledger for %s sums to %d but balance is %d", domain.ErrPersistence, userID, sum, acct.Available())
	}
	return nil
}
