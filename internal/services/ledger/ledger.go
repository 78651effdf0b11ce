package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/infra/pgutils"
	"github.com/fleepgift/coinledger/internal/repos/accounts"
	pgaccounts "github.com/fleepgift/coinledger/internal/repos/accounts/postgres"
	"github.com/fleepgift/coinledger/internal/repos/payments"
	pgpayments "github.com/fleepgift/coinledger/internal/repos/payments/postgres"
)

var (
	ErrAlreadyCredited = errors.New("payment already credited")
	ErrInvalidAmount   = errors.New("credit amount must be positive")
)

// Credit is one confirmed purchase to apply to the ledger.
type Credit struct {
	// ChargeID is the payment platform's charge identifier. When set, it
	// guards against crediting the same charge twice.
	ChargeID string
	UserID   int64
	Stars    int64
	Coins    int64
}

type Service struct {
	db       *sql.DB
	accounts accounts.Accounts
	payments payments.Payments
	log      *slog.Logger
}

func New(db *sql.DB, log *slog.Logger) *Service {
	return NewWithRepos(db, pgaccounts.New(db), pgpayments.New(db), log)
}

func NewWithRepos(db *sql.DB, a accounts.Accounts, p payments.Payments, log *slog.Logger) *Service {
	return &Service{
		db:       db,
		accounts: a,
		payments: p,
		log:      logging.Or(log).With("component", "ledger"),
	}
}

// Credit applies c in a single DB transaction:
//
// 1) Record the charge (unique-violation -> ErrAlreadyCredited).
// 2) Atomically add coins, creating the account if needed.
//
// It returns the balance after the credit.
func (s *Service) Credit(ctx context.Context, c Credit) (int64, error) {
	if c.Coins <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := pgutils.WithTxResult(ctx, s.db, func(tx *sql.Tx) (int64, error) {
		if c.ChargeID != "" {
			err := s.payments.Insert(ctx, tx, payments.Record{
				ChargeID: c.ChargeID,
				UserID:   c.UserID,
				Stars:    c.Stars,
				Coins:    c.Coins,
			})
			if err != nil {
				if errors.Is(err, payments.ErrDuplicatePayment) {
					return 0, ErrAlreadyCredited
				}

				return 0, fmt.Errorf("record payment: %w", err)
			}
		}

		bal, err := s.accounts.AddBalance(ctx, tx, c.UserID, c.Coins)
		if err != nil {
			return 0, fmt.Errorf("add balance: %w", err)
		}

		return bal, nil
	})
	if err != nil {
		return 0, fmt.Errorf("credit: %w", err)
	}

	s.log.Info("ledger credited",
		"user_id", c.UserID, "coins", c.Coins, "stars", c.Stars,
		"charge_id", c.ChargeID, "balance", balance)

	return balance, nil
}

// Touch creates or refreshes the account's display fields.
func (s *Service) Touch(ctx context.Context, p accounts.Profile) error {
	err := s.accounts.Upsert(ctx, p)
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}

	return nil
}

// Balance returns the user's balance; unknown users have a balance of zero.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.accounts.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (s *Service) AccountIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.accounts.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("account ids: %w", err)
	}

	return ids, nil
}

func (s *Service) CountAccounts(ctx context.Context) (int64, error) {
	n, err := s.accounts.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}

	return n, nil
}
