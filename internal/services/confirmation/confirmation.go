// Package confirmation applies paid invoices to the ledger.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/infra/metrics"
	"github.com/fleepgift/coinledger/internal/services/ledger"
	"github.com/fleepgift/coinledger/internal/services/paytoken"
)

// ErrDecode means the payload of a paid invoice could not be read. The money
// has been taken; the charge needs manual reconciliation.
var ErrDecode = errors.New("cannot decode payment payload")

// Ledger is the subset of the ledger service the handler needs.
type Ledger interface {
	Credit(ctx context.Context, c ledger.Credit) (int64, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

// Event is a successful-payment notification from the platform.
type Event struct {
	Payload  string
	ChargeID string
	// PayerID is the platform-asserted payer, used for logging only.
	PayerID int64
	// Stars is the amount the platform reports as charged.
	Stars int64
}

type Receipt struct {
	Stars     int64
	Coins     int64
	UserID    int64
	Balance   int64
	Duplicate bool
}

type Handler struct {
	ledger  Ledger
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(l Ledger, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		ledger:  l,
		metrics: m,
		log:     logging.Or(log).With("component", "confirmation"),
	}
}

// Precheck decides whether a pending checkout may proceed. Only payloads the
// handler will later be able to credit are accepted.
func (h *Handler) Precheck(payload string) error {
	_, err := paytoken.Decode(payload)
	if err != nil {
		h.log.Warn("checkout refused", "payload", payload, "err", err)

		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return nil
}

// Confirm credits the account named in the payment token. A charge that was
// already credited yields a Duplicate receipt and no error.
func (h *Handler) Confirm(ctx context.Context, ev Event) (Receipt, error) {
	tok, err := paytoken.Decode(ev.Payload)
	if err != nil {
		h.metrics.PaymentDecodeFailed()
		h.log.ErrorContext(ctx, "paid invoice with undecodable payload, reconcile manually",
			"payload", ev.Payload, "charge_id", ev.ChargeID, "payer_id", ev.PayerID, "stars", ev.Stars, "err", err)

		return Receipt{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if ev.PayerID != 0 && ev.PayerID != tok.UserID {
		h.log.WarnContext(ctx, "payer differs from token identity",
			"payer_id", ev.PayerID, "user_id", tok.UserID, "charge_id", ev.ChargeID)
	}
	if ev.Stars != 0 && ev.Stars != tok.Stars {
		h.log.WarnContext(ctx, "charged amount differs from token",
			"charged", ev.Stars, "token_stars", tok.Stars, "charge_id", ev.ChargeID)
	}

	rc := Receipt{Stars: tok.Stars, Coins: tok.Coins, UserID: tok.UserID}

	balance, err := h.ledger.Credit(ctx, ledger.Credit{
		ChargeID: ev.ChargeID,
		UserID:   tok.UserID,
		Stars:    tok.Stars,
		Coins:    tok.Coins,
	})
	if errors.Is(err, ledger.ErrAlreadyCredited) {
		h.metrics.PaymentDuplicate()
		h.log.WarnContext(ctx, "duplicate payment confirmation ignored",
			"charge_id", ev.ChargeID, "user_id", tok.UserID)

		rc.Duplicate = true

		rc.Balance, err = h.ledger.Balance(ctx, tok.UserID)
		if err != nil {
			return rc, fmt.Errorf("confirm duplicate: %w", err)
		}

		return rc, nil
	}
	if err != nil {
		h.log.ErrorContext(ctx, "crediting paid invoice failed, reconcile manually",
			"charge_id", ev.ChargeID, "user_id", tok.UserID, "coins", tok.Coins, "err", err)

		return rc, fmt.Errorf("confirm: %w", err)
	}

	h.metrics.PaymentCredited(tok.Coins)

	rc.Balance = balance

	return rc, nil
}
