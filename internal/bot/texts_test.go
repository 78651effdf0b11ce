package bot

import (
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v3"

	"github.com/fleepgift/coinledger/internal/services/broadcast"
	"github.com/fleepgift/coinledger/internal/services/confirmation"
)

func TestParseTopupArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		args      []string
		wantStars int64
		wantPromo string
		wantOK    bool
		wantErr   error
	}{
		{"no args", nil, 0, "", false, nil},
		{"stars only", []string{"100"}, 100, "", true, nil},
		{"stars and promo", []string{"250", "vesna26"}, 250, "vesna26", true, nil},
		{"not a number", []string{"lots"}, 0, "", true, errStarsNotNumber},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stars, promo, ok, err := parseTopupArgs(tc.args)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err: want %v, got %v", tc.wantErr, err)
			}
			if stars != tc.wantStars || promo != tc.wantPromo || ok != tc.wantOK {
				t.Fatalf("got (%d, %q, %v)", stars, promo, ok)
			}
		})
	}
}

func TestIsOperator(t *testing.T) {
	t.Parallel()

	alice := &tele.User{ID: 10, Username: "Alice"}

	cases := []struct {
		name     string
		id       int64
		username string
		user     *tele.User
		want     bool
	}{
		{"username match ignores case and @", 0, "@alice", alice, true},
		{"username mismatch", 0, "bob", alice, false},
		{"id match", 10, "", alice, true},
		{"id takes precedence over username", 11, "alice", alice, false},
		{"nothing configured", 0, "", alice, false},
		{"no sender", 0, "alice", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := isOperator(tc.id, tc.username, tc.user); got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTexts(t *testing.T) {
	t.Parallel()

	if got := receiptText(confirmation.Receipt{Stars: 100, Coins: 120, Balance: 220}); !strings.Contains(got, "*120 coins*") || !strings.Contains(got, "*220 🟡*") {
		t.Fatalf("receipt text: %q", got)
	}

	if got := summaryText(broadcast.Report{Delivered: 2, Failed: 1}); !strings.Contains(got, "Delivered: 2") || !strings.Contains(got, "Failed: 1") {
		t.Fatalf("summary text: %q", got)
	}

	cat := catalogText()
	for _, want := range []string{"/topup 50 ", "/topup 1000 ", "👑 Maximum"} {
		if !strings.Contains(cat, want) {
			t.Fatalf("catalog missing %q:\n%s", want, cat)
		}
	}

	if got := unknownPackageText(77); !strings.HasSuffix(got, "Available: 50, 100, 250, 500, 1000") {
		t.Fatalf("unknown package text: %q", got)
	}

	if got := fullName(&tele.User{FirstName: "Ivan"}); got != "Ivan" {
		t.Fatalf("full name: %q", got)
	}
}
