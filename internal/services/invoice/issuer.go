// Package invoice turns a package choice into a payable invoice. It is the
// single place where prices, coin amounts and payment tokens are decided.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/infra/metrics"
	"github.com/fleepgift/coinledger/internal/services/initdata"
	"github.com/fleepgift/coinledger/internal/services/paytoken"
	"github.com/fleepgift/coinledger/internal/services/pricing"
)

const (
	Currency   = "XTR"
	PriceLabel = "Telegram Stars"
)

var (
	ErrUnknownPackage = errors.New("unknown package")
	ErrUnauthorized   = errors.New("init data signature check failed")
	ErrInvalidUser    = errors.New("cannot parse user from init data")
	ErrInvalidRequest = errors.New("invalid invoice request")
	ErrGateway        = errors.New("payment gateway failure")
)

// Invoice is what the payment platform needs to render a payment request.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	PriceLabel  string
	Amount      int64
}

// Gateway is the external payment mechanism.
type Gateway interface {
	CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error)
	SendInvoice(ctx context.Context, chatID int64, inv Invoice) error
}

// Quote is the server-side price of a package.
type Quote struct {
	Package pricing.Package
	Coins   int64
	// Promotion is set only when the supplied code was recognised.
	Promotion *pricing.Promotion
	// RejectedCode is the normalised code when one was supplied but unknown.
	RejectedCode string
}

type ChatRequest struct {
	UserID int64  `validate:"gt=0"`
	Stars  int64  `validate:"gt=0"`
	Promo  string `validate:"max=32"`
}

type WebAppRequest struct {
	InitData string
	Stars    int64  `validate:"gt=0"`
	Promo    string `validate:"max=32"`
}

type Issued struct {
	Link   string
	UserID int64
	Coins  int64
	Quote  Quote
}

type Issuer struct {
	gateway  Gateway
	validate *validator.Validate
	botToken string
	maxAge   time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	log      *slog.Logger
}

type Option func(*Issuer)

// WithMaxAge rejects init data older than d. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(i *Issuer) { i.maxAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Issuer) { i.metrics = m }
}

func New(gw Gateway, botToken string, log *slog.Logger, opts ...Option) *Issuer {
	i := &Issuer{
		gateway:  gw,
		validate: validator.New(),
		botToken: botToken,
		now:      time.Now,
		log:      logging.Or(log).With("component", "invoice"),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Quote prices a package. Unknown promo codes are ignored and reported in
// RejectedCode.
func (i *Issuer) Quote(stars int64, promo string) (Quote, error) {
	pkg, ok := pricing.FindPackage(stars)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %d stars", ErrUnknownPackage, stars)
	}

	q := Quote{
		Package: pkg,
		Coins:   pricing.ComputeCredits(pkg.Coins, promo),
	}

	if p, ok := pricing.LookupPromotion(promo); ok {
		q.Promotion = &p
	} else if code := pricing.NormalizeCode(promo); code != "" {
		q.RejectedCode = code
	}

	return q, nil
}

// IssueToChat sends an invoice message to the user's private chat.
func (i *Issuer) IssueToChat(ctx context.Context, req ChatRequest) (Issued, error) {
	err := i.validate.Struct(req)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathBot, "invalid_request")

		return Issued{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	q, err := i.Quote(req.Stars, req.Promo)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathBot, "unknown_package")

		return Issued{}, err
	}

	inv := build(q, req.UserID)

	err = i.gateway.SendInvoice(ctx, req.UserID, inv)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathBot, "gateway")
		i.log.ErrorContext(ctx, "send invoice failed", "user_id", req.UserID, "stars", q.Package.Stars, "err", err)

		return Issued{}, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	i.metrics.InvoiceIssued(metrics.PathBot)
	i.log.InfoContext(ctx, "invoice sent", "user_id", req.UserID, "stars", q.Package.Stars, "coins", q.Coins)

	return Issued{UserID: req.UserID, Coins: q.Coins, Quote: q}, nil
}

// IssueLink verifies the caller's init data and returns an invoice link for
// the user named inside it. The signature is checked before anything else
// about the request.
func (i *Issuer) IssueLink(ctx context.Context, req WebAppRequest) (Issued, error) {
	if !initdata.Verify(req.InitData, i.botToken) {
		i.metrics.InvoiceFailed(metrics.PathWebApp, "unauthorized")
		i.log.WarnContext(ctx, "invalid init data signature")

		return Issued{}, ErrUnauthorized
	}

	data, err := initdata.Parse(req.InitData)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathWebApp, "invalid_user")

		return Issued{}, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}

	if data.Expired(i.now(), i.maxAge) {
		i.metrics.InvoiceFailed(metrics.PathWebApp, "expired")
		i.log.WarnContext(ctx, "stale init data", "user_id", data.User.ID, "auth_date", data.AuthDate)

		return Issued{}, fmt.Errorf("%w: init data expired", ErrUnauthorized)
	}

	err = i.validate.Struct(req)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathWebApp, "invalid_request")

		return Issued{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	q, err := i.Quote(req.Stars, req.Promo)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathWebApp, "unknown_package")

		return Issued{}, err
	}

	inv := build(q, data.User.ID)

	link, err := i.gateway.CreateInvoiceLink(ctx, inv)
	if err != nil {
		i.metrics.InvoiceFailed(metrics.PathWebApp, "gateway")
		i.log.ErrorContext(ctx, "create invoice link failed", "user_id", data.User.ID, "err", err)

		return Issued{}, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	i.metrics.InvoiceIssued(metrics.PathWebApp)
	i.log.InfoContext(ctx, "invoice link created", "user_id", data.User.ID, "stars", q.Package.Stars, "coins", q.Coins)

	return Issued{Link: link, UserID: data.User.ID, Coins: q.Coins, Quote: q}, nil
}

func build(q Quote, userID int64) Invoice {
	return Invoice{
		Title:       Title(q),
		Description: Description(q),
		Payload: paytoken.Encode(paytoken.Token{
			Stars:  q.Package.Stars,
			Coins:  q.Coins,
			UserID: userID,
		}),
		Currency:   Currency,
		PriceLabel: PriceLabel,
		Amount:     q.Package.Stars,
	}
}

func Title(q Quote) string {
	return q.Package.Label + " | " + strconv.FormatInt(q.Package.Stars, 10) + " ⭐"
}

func Description(q Quote) string {
	desc := fmt.Sprintf("%d gold coins", q.Coins)
	if q.Promotion != nil {
		desc += fmt.Sprintf(" (+%d%% with promo %s)", q.Promotion.Percent(), q.Promotion.Code)
	}

	return desc
}
