package accounts

import (
	"context"
	"fmt"

	"github.com/fleepgift/coinledger/internal/repos/accounts"
)

// Upsert creates the account on first sight and refreshes display fields
// afterwards. The balance column is never written here.
func (r *accountsRepo) Upsert(ctx context.Context, p accounts.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET username   = EXCLUDED.username,
		    full_name  = EXCLUDED.full_name,
		    updated_at = now()
	`, p.UserID, p.Username, p.FullName)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	return nil
}
