// Package bot is the chat front end: commands, the payment callbacks and
// the operator's broadcast conversation.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/fleepgift/coinledger/internal/config"
	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/repos/accounts"
	"github.com/fleepgift/coinledger/internal/services/broadcast"
	"github.com/fleepgift/coinledger/internal/services/confirmation"
	"github.com/fleepgift/coinledger/internal/services/invoice"
)

const handlerTimeout = 30 * time.Second

type ChatIssuer interface {
	Quote(stars int64, promo string) (invoice.Quote, error)
	IssueToChat(ctx context.Context, req invoice.ChatRequest) (invoice.Issued, error)
}

type Confirmer interface {
	Precheck(payload string) error
	Confirm(ctx context.Context, ev confirmation.Event) (confirmation.Receipt, error)
}

type Accounts interface {
	Touch(ctx context.Context, p accounts.Profile) error
	Balance(ctx context.Context, userID int64) (int64, error)
	CountAccounts(ctx context.Context) (int64, error)
}

type Broadcaster interface {
	Run(ctx context.Context, msg broadcast.Message) (broadcast.Report, error)
}

// Deps are the services behind the bot's handlers.
type Deps struct {
	Issuer      ChatIssuer
	Confirmer   Confirmer
	Accounts    Accounts
	Flow        *broadcast.Flow
	Broadcaster Broadcaster
}

// Bot wraps the telebot instance and handlers.
type Bot struct {
	tb   *tele.Bot
	cfg  config.BotConfig
	deps Deps
	log  *slog.Logger

	root   context.Context
	cancel context.CancelFunc
}

// NewTelebot creates the Bot API client used by both the bot and the gateway.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*tele.Bot, error) {
	log = logging.Or(log)

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			var userID int64
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			log.Error("telebot error", "user_id", userID, "err", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	return tb, nil
}

// New creates the bot and registers its handlers on tb.
func New(tb *tele.Bot, cfg config.BotConfig, deps Deps, log *slog.Logger) *Bot {
	root, cancel := context.WithCancel(context.Background())

	b := &Bot{
		tb:     tb,
		cfg:    cfg,
		deps:   deps,
		log:    logging.Or(log).With("component", "bot"),
		root:   root,
		cancel: cancel,
	}

	b.registerHandlers()

	return b
}

// Start polls for updates until Stop is called.
func (b *Bot) Start() {
	b.log.Info("starting telegram bot", "mode", "polling", "username", b.tb.Me.Username)
	b.tb.Start()
}

// Stop stops polling and cancels in-flight handler work.
func (b *Bot) Stop() {
	b.cancel()
	b.tb.Stop()
}

func (b *Bot) registerHandlers() {
	users := b.tb.Group()
	users.Use(b.touch)
	users.Handle("/start", b.handleStart)
	users.Handle("/balance", b.handleBalance)
	users.Handle("/topup", b.handleTopup)

	b.tb.Handle("/admin", b.handleAdmin)
	b.tb.Handle("/cancel", b.handleCancel)
	b.tb.Handle(tele.OnText, b.handleText)

	b.tb.Handle(tele.OnCheckout, b.handleCheckout)
	b.tb.Handle(tele.OnPayment, b.handlePayment)
}

func (b *Bot) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.root, handlerTimeout)
}

// touch records the sender before the wrapped handler runs. A failed write
// is logged and never blocks the command.
func (b *Bot) touch(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		u := c.Sender()
		if u != nil {
			ctx, cancel := b.ctx()
			err := b.deps.Accounts.Touch(ctx, accounts.Profile{
				UserID:   u.ID,
				Username: u.Username,
				FullName: fullName(u),
			})
			cancel()

			if err != nil {
				b.log.Warn("touch account failed", "user_id", u.ID, "err", err)
			}
		}

		return next(c)
	}
}

func (b *Bot) playButton(label string) *tele.ReplyMarkup {
	if b.cfg.WebAppURL == "" {
		return nil
	}

	return urlButton(label, b.cfg.WebAppURL)
}

func (b *Bot) reply(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if markup != nil {
		opts.ReplyMarkup = markup
	}

	return c.Send(text, opts)
}

func (b *Bot) handleStart(c tele.Context) error {
	return b.reply(c, welcomeText(), b.playButton("🎮 Play!"))
}

func (b *Bot) handleBalance(c tele.Context) error {
	ctx, cancel := b.ctx()
	defer cancel()

	balance, err := b.deps.Accounts.Balance(ctx, c.Sender().ID)
	if err != nil {
		b.log.Error("balance lookup failed", "user_id", c.Sender().ID, "err", err)

		return c.Send(textGenericError)
	}

	return b.reply(c, balanceText(balance), nil)
}

func (b *Bot) handleTopup(c tele.Context) error {
	stars, promo, ok, err := parseTopupArgs(c.Args())
	if !ok {
		return b.reply(c, catalogText(), nil)
	}
	if err != nil {
		return c.Send(textStarsNotNumber)
	}

	q, err := b.deps.Issuer.Quote(stars, promo)
	if err != nil {
		return c.Send(unknownPackageText(stars))
	}

	if q.RejectedCode != "" {
		_ = c.Send(rejectedPromoText(q.RejectedCode))
		promo = ""
	}

	ctx, cancel := b.ctx()
	defer cancel()

	_, err = b.deps.Issuer.IssueToChat(ctx, invoice.ChatRequest{
		UserID: c.Sender().ID,
		Stars:  stars,
		Promo:  promo,
	})
	switch {
	case errors.Is(err, invoice.ErrUnknownPackage), errors.Is(err, invoice.ErrInvalidRequest):
		return c.Send(unknownPackageText(stars))
	case err != nil:
		return c.Send(textInvoiceFailed)
	}

	return nil
}

func (b *Bot) handleCheckout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}

	err := b.deps.Confirmer.Precheck(q.Payload)
	if err != nil {
		return c.Accept("Invalid request. Please try again.")
	}

	return c.Accept()
}

func (b *Bot) handlePayment(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}

	p := msg.Payment

	var payerID int64
	if c.Sender() != nil {
		payerID = c.Sender().ID
	}

	ctx, cancel := b.ctx()
	defer cancel()

	rc, err := b.deps.Confirmer.Confirm(ctx, confirmation.Event{
		Payload:  p.Payload,
		ChargeID: p.TelegramChargeID,
		PayerID:  payerID,
		Stars:    int64(p.Total),
	})
	switch {
	case errors.Is(err, confirmation.ErrDecode):
		return c.Send(textPaidManual)
	case err != nil:
		return c.Send(textPaidReconcile)
	case rc.Duplicate:
		return b.reply(c, duplicateText(rc), nil)
	}

	return b.reply(c, receiptText(rc), b.playButton("🎮 Open the game"))
}

func (b *Bot) operator(c tele.Context) bool {
	return isOperator(b.cfg.OperatorID, b.cfg.OperatorUsername, c.Sender())
}

func (b *Bot) handleAdmin(c tele.Context) error {
	if !b.operator(c) {
		return c.Send(textAccessDenied)
	}

	ctx, cancel := b.ctx()
	defer cancel()

	total, err := b.deps.Accounts.CountAccounts(ctx)
	if err != nil {
		b.log.Error("count accounts failed", "err", err)

		return c.Send(textGenericError)
	}

	err = b.deps.Flow.Begin(ctx, c.Sender().ID)
	if err != nil {
		b.log.Error("begin broadcast failed", "err", err)

		return c.Send(textGenericError)
	}

	return b.reply(c, adminText(total), nil)
}

func (b *Bot) handleCancel(c tele.Context) error {
	if !b.operator(c) {
		return c.Send(textNothingToCancel)
	}

	ctx, cancel := b.ctx()
	defer cancel()

	had, err := b.deps.Flow.Cancel(ctx, c.Sender().ID)
	if err != nil {
		b.log.Error("cancel broadcast failed", "err", err)

		return c.Send(textGenericError)
	}
	if !had {
		return c.Send(textNothingToCancel)
	}

	return c.Send(textCancelled)
}

// handleText drives the operator's broadcast conversation. Text from anyone
// else, and commands, are ignored.
func (b *Bot) handleText(c tele.Context) error {
	if !b.operator(c) || strings.HasPrefix(c.Text(), "/") {
		return nil
	}

	ctx, cancel := b.ctx()
	defer cancel()

	operatorID := c.Sender().ID

	st, err := b.deps.Flow.Input(ctx, operatorID, c.Text())
	switch {
	case errors.Is(err, broadcast.ErrNoSession):
		return nil
	case errors.Is(err, broadcast.ErrEmptyInput):
		return c.Send(textEmptyInput)
	case err != nil:
		b.log.Error("broadcast input failed", "err", err)

		return c.Send(textGenericError)
	}

	if st == broadcast.StateAwaitingLabel {
		return b.reply(c, textAskLabel, nil)
	}
	if st != broadcast.StateReady {
		return nil
	}

	text, label, err := b.deps.Flow.Take(ctx, operatorID)
	if err != nil {
		if errors.Is(err, broadcast.ErrNoSession) {
			return nil
		}

		b.log.Error("broadcast take failed", "err", err)

		return c.Send(textGenericError)
	}

	total, err := b.deps.Accounts.CountAccounts(ctx)
	if err == nil {
		_ = c.Send(broadcastStartText(total))
	}

	// The run outlives the per-handler timeout; it stops only with the bot.
	rep, err := b.deps.Broadcaster.Run(b.root, broadcast.Message{
		Text:        text,
		ButtonLabel: label,
		URL:         b.cfg.WebAppURL,
	})
	if err != nil {
		b.log.Error("broadcast failed", "err", err)

		return c.Send(textGenericError)
	}

	return b.reply(c, summaryText(rep), nil)
}
