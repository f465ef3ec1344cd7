package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

// TransactionRepository talks to the barter-transaction collaborator. The
// unique constraint on pair_key makes Create idempotent: two concurrent
// replies racing to create the same pair's transaction both converge on one
// row, and the loser learns it was not the creator.
type TransactionRepository interface {
	FindBetween(ctx context.Context, a, b string) ([]model.Transaction, error)
	// Create returns the transaction for the pair and whether this call
	// created it. A duplicate insert is a no-op that returns the existing row.
	Create(ctx context.Context, a, b string) (*model.Transaction, bool, error)
}

type transactionRepo struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) FindBetween(ctx context.Context, a, b string) ([]model.Transaction, error) {
	var txns []model.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM barter_transactions
		WHERE pair_key = $1
		ORDER BY created_at ASC
	`, model.PairKey(a, b))
	return txns, err
}

func (r *transactionRepo) Create(ctx context.Context, a, b string) (*model.Transaction, bool, error) {
	pairKey := model.PairKey(a, b)

	var txn model.Transaction
	err := r.db.GetContext(ctx, &txn, `
		INSERT INTO barter_transactions (user_a_id, user_b_id, pair_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (pair_key) DO NOTHING
		RETURNING *
	`, a, b, pairKey)
	if err == nil {
		return &txn, true, nil
	}

	// ON CONFLICT DO NOTHING returns no row on conflict; fetch the winner.
	if _, ferr := HandleNotFound(&txn, err); ferr != nil {
		return nil, false, ferr
	}

	var current model.Transaction
	if err := r.db.GetContext(ctx, &current, `
		SELECT * FROM barter_transactions WHERE pair_key = $1
	`, pairKey); err != nil {
		return nil, false, err
	}
	return &current, false, nil
}
