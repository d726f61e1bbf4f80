package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

// CreditRepositoryPG implements domain.CreditRepository on PostgreSQL.
type CreditRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCreditRepository creates a credit repository.
func NewCreditRepository(sql infra.SQLExecutor) *CreditRepositoryPG {
	return &CreditRepositoryPG{sql: sql}
}

// TryDebit runs the balance check and the transaction insert as one
// statement. A missing row means the account could not cover the cost.
func (r *CreditRepositoryPG) TryDebit(ctx context.Context, req domain.DebitRequest) (domain.DebitResult, error) {
	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		return domain.DebitResult{}, err
	}
	var res domain.DebitResult
	err = r.sql.QueryRow(ctx, sqlinline.QDebitCredits, req.UserID, req.ResourceType, req.Cost, meta).
		Scan(&res.Available, &res.TransactionID)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.DebitResult{Granted: false}, nil
		}
		return domain.DebitResult{}, wrap("debit credits", err)
	}
	res.Granted = true
	return res, nil
}

func (r *CreditRepositoryPG) Grant(ctx context.Context, userID string, amount int, resourceType string, metadata map[string]any) (*domain.CreditAccount, error) {
	return r.applyCredit(ctx, sqlinline.QGrantCredits, "grant credits", userID, amount, resourceType, metadata)
}

func (r *CreditRepositoryPG) Refund(ctx context.Context, userID string, amount int, resourceType string, metadata map[string]any) (*domain.CreditAccount, error) {
	return r.applyCredit(ctx, sqlinline.QRefundCredits, "refund credits", userID, amount, resourceType, metadata)
}

func (r *CreditRepositoryPG) applyCredit(ctx context.Context, query, op, userID string, amount int, resourceType string, metadata map[string]any) (*domain.CreditAccount, error) {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	var a domain.CreditAccount
	if err := r.sql.QueryRow(ctx, query, userID, amount, resourceType, meta).
		Scan(&a.UserID, &a.TotalCredits, &a.UsedCredits, &a.UpdatedAt); err != nil {
		return nil, wrap(op, err)
	}
	return &a, nil
}

func (r *CreditRepositoryPG) GetAccount(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	var a domain.CreditAccount
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectCreditAccount, userID).
		Scan(&a.UserID, &a.TotalCredits, &a.UsedCredits, &a.UpdatedAt); err != nil {
		return nil, wrap("get credit account", err)
	}
	return &a, nil
}

func (r *CreditRepositoryPG) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectCreditTransactions, userID, limit)
	if err != nil {
		return nil, wrap("list credit transactions", err)
	}
	defer rows.Close()
	var out []domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		var meta []byte
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.ResourceType, &meta, &tx.CreatedAt); err != nil {
			return nil, wrap("list credit transactions", err)
		}
		tx.Metadata = json.RawMessage(meta)
		out = append(out, tx)
	}
	return out, wrap("list credit transactions", rows.Err())
}

func (r *CreditRepositoryPG) SumTransactions(ctx context.Context, userID string) (int, error) {
	var sum int
	if err := r.sql.QueryRow(ctx, sqlinline.QSumCreditTransactions, userID).Scan(&sum); err != nil {
		return 0, wrap("sum credit transactions", err)
	}
	return sum, nil
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", domain.ErrValidation, err)
	}
	if strings.TrimSpace(string(raw)) == "null" {
		return []byte("{}"), nil
	}
	return raw, nil
}

var _ domain.CreditRepository = (*CreditRepositoryPG)(nil)
