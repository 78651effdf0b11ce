// Package paytoken encodes the purchase carried through the payment
// platform as an opaque invoice payload: "stars_<stars>_<coins>_<user>".
package paytoken

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	tag       = "stars"
	separator = "_"
	numFields = 4
)

var ErrMalformed = errors.New("malformed payment token")

type Token struct {
	Stars  int64
	Coins  int64
	UserID int64
}

func Encode(t Token) string {
	return strings.Join([]string{
		tag,
		strconv.FormatInt(t.Stars, 10),
		strconv.FormatInt(t.Coins, 10),
		strconv.FormatInt(t.UserID, 10),
	}, separator)
}

// Decode parses a payload produced by Encode. It returns ErrMalformed for
// anything else and never a partial token.
func Decode(s string) (Token, error) {
	fields := strings.Split(s, separator)
	if len(fields) != numFields {
		return Token{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformed, numFields, len(fields))
	}

	if fields[0] != tag {
		return Token{}, fmt.Errorf("%w: unexpected tag %q", ErrMalformed, fields[0])
	}

	var nums [numFields - 1]int64
	for i, f := range fields[1:] {
		n, err := parseField(f)
		if err != nil {
			return Token{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, i+1, err)
		}

		nums[i] = n
	}

	t := Token{Stars: nums[0], Coins: nums[1], UserID: nums[2]}
	if t.Stars <= 0 || t.Coins <= 0 || t.UserID <= 0 {
		return Token{}, fmt.Errorf("%w: amounts and user id must be positive", ErrMalformed)
	}

	return t, nil
}

// parseField accepts plain decimal digits in canonical form only, so "+5",
// " 5" and "05" are rejected rather than normalised.
func parseField(f string) (int64, error) {
	if f == "" {
		return 0, errors.New("empty")
	}

	if len(f) > 1 && f[0] == '0' {
		return 0, errors.New("leading zero")
	}

	for _, r := range f {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}

	return strconv.ParseInt(f, 10, 64)
}
