// Package initdata validates and parses the signed session blob that the
// chat platform hands to embedded mini-apps.
//
// The blob is an ampersand-joined list of key=value pairs with URL-encoded
// values, one of which is "hash". The hash is
//
//	hex(HMAC_SHA256(key = HMAC_SHA256(key = "WebAppData", msg = botToken),
//	                msg = sorted "key=value" lines joined by "\n"))
//
// computed over every pair except "hash", using decoded values.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	hashKey  = "hash"
	userKey  = "user"
	authKey  = "auth_date"
	queryKey = "query_id"

	// domainConstant separates init-data secrets from other uses of the bot token.
	domainConstant = "WebAppData"
)

var (
	ErrMalformed     = errors.New("malformed init data")
	ErrNoUser        = errors.New("init data has no user")
	ErrMalformedUser = errors.New("init data user is malformed")
)

// User is the subset of the platform's user object we rely on.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// FullName joins first and last name the way the platform displays them.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Data struct {
	User     User
	AuthDate time.Time
	QueryID  string
}

// Expired reports whether the blob is older than maxAge. A non-positive
// maxAge disables the check; a blob without auth_date is then never expired.
func (d Data) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}

	if d.AuthDate.IsZero() {
		return true
	}

	return now.Sub(d.AuthDate) > maxAge
}

// Verify reports whether initData carries a valid signature for botToken.
// It never returns an error: anything unparseable is simply not valid.
func Verify(initData, botToken string) bool {
	pairs, hash, err := split(initData)
	if err != nil || hash == "" {
		return false
	}

	got, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	want := sign(checkString(pairs), botToken)

	return hmac.Equal(want, got)
}

// Parse extracts the user and metadata. It does not check the signature;
// callers must Verify first.
func Parse(initData string) (Data, error) {
	pairs, _, err := split(initData)
	if err != nil {
		return Data{}, err
	}

	var d Data

	rawUser, ok := pairs[userKey]
	if !ok || rawUser == "" {
		return Data{}, ErrNoUser
	}

	err = json.Unmarshal([]byte(rawUser), &d.User)
	if err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrMalformedUser, err)
	}
	if d.User.ID == 0 {
		return Data{}, fmt.Errorf("%w: missing id", ErrMalformedUser)
	}

	if raw, ok := pairs[authKey]; ok && raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: auth_date: %v", ErrMalformed, err)
		}

		d.AuthDate = time.Unix(sec, 0).UTC()
	}

	d.QueryID = pairs[queryKey]

	return d, nil
}

// Sign builds a signed init-data blob from values. It exists for tests and
// local tooling that need to impersonate the platform.
func Sign(values map[string]string, botToken string) string {
	pairs := make(map[string]string, len(values))
	for k, v := range values {
		if k == hashKey {
			continue
		}
		pairs[k] = v
	}

	mac := sign(checkString(pairs), botToken)

	keys := sortedKeys(pairs)
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(pairs[k]))
	}
	parts = append(parts, hashKey+"="+hex.EncodeToString(mac))

	return strings.Join(parts, "&")
}

// split decodes the pairs and pulls out the hash. Duplicate keys, empty
// keys and pairs without "=" are malformed.
func split(initData string) (map[string]string, string, error) {
	if initData == "" {
		return nil, "", ErrMalformed
	}

	parts := strings.Split(initData, "&")
	pairs := make(map[string]string, len(parts))

	var (
		hash    string
		hasHash bool
	)

	for _, part := range parts {
		k, v, found := strings.Cut(part, "=")
		if !found || k == "" {
			return nil, "", ErrMalformed
		}

		dv, err := url.QueryUnescape(v)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		if k == hashKey {
			if hasHash {
				return nil, "", ErrMalformed
			}

			hash, hasHash = dv, true

			continue
		}

		if _, dup := pairs[k]; dup {
			return nil, "", ErrMalformed
		}

		pairs[k] = dv
	}

	return pairs, hash, nil
}

func checkString(pairs map[string]string) string {
	keys := sortedKeys(pairs)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+pairs[k])
	}

	return strings.Join(lines, "\n")
}

func sign(check, botToken string) []byte {
	secret := hmacSHA256([]byte(domainConstant), []byte(botToken))

	return hmacSHA256(secret, []byte(check))
}

func hmacSHA256(key, msg []byte) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write(msg)

	return m.Sum(nil)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
