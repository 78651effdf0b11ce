package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fleepgift/coinledger/internal/repos/accounts"
)

// AddBalance atomically increments the balance, creating the account if it
// does not exist yet, and returns the resulting balance.
func (r *accountsRepo) AddBalance(ctx context.Context, tx *sql.Tx, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, accounts.ErrInvalidAmount
	}

	var balance int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO accounts (user_id, coins)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET coins      = accounts.coins + EXCLUDED.coins,
		    updated_at = now()
		RETURNING coins
	`, userID, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("add balance: %w", err)
	}

	return balance, nil
}
