package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// Profile holds the display fields refreshed on every interaction.
type Profile struct {
	UserID   int64
	Username string
	FullName string
}

// Accounts is the ledger store. Balances only ever move through AddBalance,
// which is an atomic increment at the storage layer.
type Accounts interface {
	Upsert(ctx context.Context, p Profile) error
	AddBalance(ctx context.Context, tx *sql.Tx, userID int64, amount int64) (int64, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int64, error)
}
