package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"github.com/fleepgift/coinledger/internal/services/broadcast"
	"github.com/fleepgift/coinledger/internal/services/invoice"
)

// Gateway talks to the Bot API on behalf of the invoice issuer and the
// broadcast dispatcher.
type Gateway struct {
	tb *tele.Bot
}

var (
	_ invoice.Gateway  = (*Gateway)(nil)
	_ broadcast.Sender = (*Gateway)(nil)
)

func NewGateway(tb *tele.Bot) *Gateway {
	return &Gateway{tb: tb}
}

func toTele(inv invoice.Invoice) tele.Invoice {
	return tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Prices:      []tele.Price{{Label: inv.PriceLabel, Amount: int(inv.Amount)}},
	}
}

func (g *Gateway) CreateInvoiceLink(ctx context.Context, inv invoice.Invoice) (string, error) {
	err := ctx.Err()
	if err != nil {
		return "", err
	}

	link, err := g.tb.CreateInvoiceLink(toTele(inv))
	if err != nil {
		return "", fmt.Errorf("create invoice link: %w", err)
	}

	return link, nil
}

func (g *Gateway) SendInvoice(ctx context.Context, chatID int64, inv invoice.Invoice) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	ti := toTele(inv)

	_, err = g.tb.Send(tele.ChatID(chatID), &ti)
	if err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}

	return nil
}

// Send delivers a broadcast message with an optional URL button.
func (g *Gateway) Send(ctx context.Context, userID int64, msg broadcast.Message) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	var opts []any
	if msg.ButtonLabel != "" && msg.URL != "" {
		opts = append(opts, urlButton(msg.ButtonLabel, msg.URL))
	}

	_, err = g.tb.Send(tele.ChatID(userID), msg.Text, opts...)
	if err != nil {
		return fmt.Errorf("send to %d: %w", userID, err)
	}

	return nil
}

func urlButton(label, url string) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{{{Text: label, URL: url}}},
	}
}
