package confirmation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fleepgift/coinledger/internal/infra/metrics"
	"github.com/fleepgift/coinledger/internal/services/ledger"
)

// memLedger mirrors the ledger's guarantees in memory.
type memLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	charges  map[string]bool
	credits  int
	err      error
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[int64]int64{}, charges: map[string]bool{}}
}

func (l *memLedger) Credit(_ context.Context, c ledger.Credit) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return 0, l.err
	}

	if c.ChargeID != "" {
		if l.charges[c.ChargeID] {
			return 0, ledger.ErrAlreadyCredited
		}
		l.charges[c.ChargeID] = true
	}

	l.credits++
	l.balances[c.UserID] += c.Coins

	return l.balances[c.UserID], nil
}

func (l *memLedger) Balance(_ context.Context, userID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[userID], nil
}

func newHandler(l Ledger, m *metrics.Metrics) *Handler {
	return New(l, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConfirm_CreditsTokenAmount(t *testing.T) {
	t.Parallel()

	l := newMemLedger()
	m := metrics.New()
	h := newHandler(l, m)

	rc, err := h.Confirm(t.Context(), Event{Payload: "stars_100_100_12345", ChargeID: "ch-1", PayerID: 12345, Stars: 100})
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	want := Receipt{Stars: 100, Coins: 100, UserID: 12345, Balance: 100}
	if rc != want {
		t.Fatalf("receipt: want %+v, got %+v", want, rc)
	}
	if got := testutil.ToFloat64(m.CoinsCredited); got != 100 {
		t.Fatalf("coins metric: want 100, got %v", got)
	}
}

func TestConfirm_DuplicateChargeCreditsOnce(t *testing.T) {
	t.Parallel()

	l := newMemLedger()
	m := metrics.New()
	h := newHandler(l, m)

	ev := Event{Payload: "stars_100_100_12345", ChargeID: "ch-dup", PayerID: 12345}

	_, err := h.Confirm(t.Context(), ev)
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	rc, err := h.Confirm(t.Context(), ev)
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if !rc.Duplicate {
		t.Fatalf("second delivery must be flagged duplicate")
	}
	if rc.Balance != 100 {
		t.Fatalf("balance after duplicate: want 100, got %d", rc.Balance)
	}
	if l.credits != 1 {
		t.Fatalf("want exactly one credit, got %d", l.credits)
	}
	if got := testutil.ToFloat64(m.PaymentDuplicates); got != 1 {
		t.Fatalf("duplicate metric: want 1, got %v", got)
	}
}

func TestConfirm_WithoutChargeIDCreditsEachTime(t *testing.T) {
	t.Parallel()

	l := newMemLedger()
	h := newHandler(l, nil)

	ev := Event{Payload: "stars_100_100_12345"}
	for range 2 {
		_, err := h.Confirm(t.Context(), ev)
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
	}

	if got, _ := l.Balance(t.Context(), 12345); got != 200 {
		t.Fatalf("want 200, got %d", got)
	}
}

func TestConfirm_CreditsTokenIdentityNotPayer(t *testing.T) {
	t.Parallel()

	l := newMemLedger()
	h := newHandler(l, nil)

	rc, err := h.Confirm(t.Context(), Event{Payload: "stars_250_300_777", ChargeID: "ch-x", PayerID: 999})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rc.UserID != 777 {
		t.Fatalf("credited user: want 777, got %d", rc.UserID)
	}
	if got, _ := l.Balance(t.Context(), 999); got != 0 {
		t.Fatalf("payer must not be credited, got %d", got)
	}
}

func TestConfirm_DecodeFailureDoesNotCredit(t *testing.T) {
	t.Parallel()

	payloads := []string{"", "garbage", "stars_100_100", "stars_x_100_1", "coins_100_100_1", "stars_100_-5_1"}

	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			t.Parallel()

			l := newMemLedger()
			m := metrics.New()
			h := newHandler(l, m)

			_, err := h.Confirm(t.Context(), Event{Payload: p, ChargeID: "ch"})
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("want ErrDecode, got %v", err)
			}
			if l.credits != 0 {
				t.Fatalf("no credit expected on decode failure")
			}
			if got := testutil.ToFloat64(m.PaymentDecodeFails); got != 1 {
				t.Fatalf("decode metric: want 1, got %v", got)
			}
		})
	}
}

func TestConfirm_StorageFailure(t *testing.T) {
	t.Parallel()

	l := newMemLedger()
	l.err = errors.New("connection reset")
	h := newHandler(l, nil)

	rc, err := h.Confirm(t.Context(), Event{Payload: "stars_50_50_1", ChargeID: "ch"})
	if err == nil || errors.Is(err, ErrDecode) {
		t.Fatalf("want storage error, got %v", err)
	}
	if rc.Coins != 50 {
		t.Fatalf("receipt should still describe the purchase, got %+v", rc)
	}
}

func TestPrecheck(t *testing.T) {
	t.Parallel()

	h := newHandler(newMemLedger(), nil)

	err := h.Precheck("stars_100_120_5")
	if err != nil {
		t.Fatalf("valid payload refused: %v", err)
	}

	err = h.Precheck("stars_100_120")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("want ErrDecode, got %v", err)
	}
}
