package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/fleepgift/coinledger/internal/services/broadcast"
	"github.com/fleepgift/coinledger/internal/services/confirmation"
	"github.com/fleepgift/coinledger/internal/services/pricing"
)

var errStarsNotNumber = errors.New("stars must be a number")

const (
	textAccessDenied    = "⛔ Access denied."
	textCancelled       = "❌ Broadcast cancelled."
	textNothingToCancel = "Nothing to cancel."
	textAskLabel        = "✅ Text saved.\n\nSend the *button label*:"
	textEmptyInput      = "Send some text, or /cancel."
	textStarsNotNumber  = "❌ Give the number of stars as a number. Example: /topup 100"
	textInvoiceFailed   = "⚠️ Could not create the invoice right now. Please try again later."
	textPaidManual      = "✅ Payment received! Please contact support and we will credit your coins manually."
	textPaidReconcile   = "✅ Payment received! Your coins will be credited shortly; support has been notified."
	textGenericError    = "⚠️ Something went wrong. Please try again later."
)

func welcomeText() string {
	return "👋 Welcome to *FLEEP GIFT*!\n\n" +
		"Tap the button below to open the app 🎉\n\n" +
		"💡 Top up coins: /topup\n" +
		"💰 Balance: /balance"
}

func balanceText(balance int64) string {
	return fmt.Sprintf("💰 *Your balance*\n\n🟡 Gold coins: *%d*", balance)
}

func catalogText() string {
	var sb strings.Builder

	sb.WriteString("⭐ *Top up gold coins*\n\n1 Telegram Star = 1 🟡 gold coin\n\n")

	for _, p := range pricing.Catalog() {
		fmt.Fprintf(&sb, "  /topup %d | 🟡 %d coins  %s\n", p.Stars, p.Coins, p.Label)
	}

	sb.WriteString("\n`/topup 100` for 100 stars\n`/topup 250 VESNA26` with a +20% promo code")

	return sb.String()
}

func unknownPackageText(stars int64) string {
	cat := pricing.Catalog()

	valid := make([]string, 0, len(cat))
	for _, p := range cat {
		valid = append(valid, strconv.FormatInt(p.Stars, 10))
	}

	return fmt.Sprintf("❌ No %d-star package.\nAvailable: %s", stars, strings.Join(valid, ", "))
}

func rejectedPromoText(code string) string {
	return fmt.Sprintf("⚠️ Promo code «%s» not found. Continuing without it.", code)
}

func receiptText(rc confirmation.Receipt) string {
	return fmt.Sprintf("✅ *Payment received!*\n\n"+
		"⭐ Paid: *%d stars*\n"+
		"🟡 Credited: *%d coins*\n\n"+
		"💰 Balance: *%d 🟡*", rc.Stars, rc.Coins, rc.Balance)
}

func duplicateText(rc confirmation.Receipt) string {
	return fmt.Sprintf("ℹ️ This payment was already credited.\n\n💰 Balance: *%d 🟡*", rc.Balance)
}

func adminText(accounts int64) string {
	return fmt.Sprintf("🛠 *FLEEP GIFT admin panel*\n\n👥 Users: *%d*\n\nSend the broadcast text:", accounts)
}

func broadcastStartText(total int64) string {
	return fmt.Sprintf("📤 Broadcasting to %d users...", total)
}

func summaryText(rep broadcast.Report) string {
	return fmt.Sprintf("✅ *Done!*\n📬 Delivered: %d\n❌ Failed: %d", rep.Delivered, rep.Failed)
}

// parseTopupArgs reads "/topup <stars> [promo]". ok is false when no
// arguments were given.
func parseTopupArgs(args []string) (stars int64, promo string, ok bool, err error) {
	if len(args) == 0 {
		return 0, "", false, nil
	}

	stars, err = strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return 0, "", true, errStarsNotNumber
	}

	if len(args) > 1 {
		promo = args[1]
	}

	return stars, promo, true, nil
}

// isOperator matches the configured operator by id when set, otherwise by
// username.
func isOperator(operatorID int64, operatorUsername string, u *tele.User) bool {
	if u == nil {
		return false
	}

	if operatorID != 0 {
		return u.ID == operatorID
	}

	want := strings.TrimPrefix(strings.TrimSpace(operatorUsername), "@")
	if want == "" {
		return false
	}

	return strings.EqualFold(u.Username, want)
}

func fullName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
