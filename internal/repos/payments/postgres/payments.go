package payments

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fleepgift/coinledger/internal/infra/pgutils"
	"github.com/fleepgift/coinledger/internal/repos/payments"
)

var _ payments.Payments = (*paymentsRepo)(nil)

type paymentsRepo struct{ db *sql.DB }

func New(db *sql.DB) *paymentsRepo {
	return &paymentsRepo{db: db}
}

func (r *paymentsRepo) Insert(ctx context.Context, tx *sql.Tx, rec payments.Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (charge_id, user_id, stars, coins)
		VALUES ($1, $2, $3, $4)
	`, rec.ChargeID, rec.UserID, rec.Stars, rec.Coins)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return payments.ErrDuplicatePayment
		}

		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}
