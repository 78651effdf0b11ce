package payments

import (
	"context"
	"database/sql"
	"errors"
)

var ErrDuplicatePayment = errors.New("duplicate payment")

// Record is one confirmed charge, keyed by the payment platform's own
// charge identifier.
type Record struct {
	ChargeID string
	UserID   int64
	Stars    int64
	Coins    int64
}

type Payments interface {
	Insert(ctx context.Context, tx *sql.Tx, rec Record) error
}
