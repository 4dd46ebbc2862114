// Package authcookie issues and checks the auth-token cookie that gates the
// employer and employee areas.
package authcookie

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CookieName is the cookie that carries the connected account.
const CookieName = "auth-token"

var (
	ErrMissingCookie    = errors.New("missing auth cookie")
	ErrMalformedCookie  = errors.New("malformed auth cookie")
	ErrExpiredCookie    = errors.New("expired auth cookie")
	ErrInvalidSignature = errors.New("invalid auth cookie signature")
)

// GatedPrefixes are the paths that require a valid cookie.
var GatedPrefixes = []string{"/employer", "/employee"}

// Issuer writes and verifies the cookie. With an empty Secret the cookie holds
// the bare account; otherwise it is account.unix.mac.
type Issuer struct {
	Secret  string
	MaxAge  time.Duration
	MaxSkew time.Duration
	Secure  bool
	Now     func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue sets the cookie for account.
func (i *Issuer) Issue(w http.ResponseWriter, account string) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    i.encode(common.HexToAddress(account).Hex()),
		Path:     "/",
		HttpOnly: true,
		Secure:   i.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if i.MaxAge > 0 {
		cookie.MaxAge = int(i.MaxAge / time.Second)
	}
	http.SetCookie(w, cookie)
}

// Clear expires the cookie.
func (i *Issuer) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (i *Issuer) encode(account string) string {
	if i.Secret == "" {
		return account
	}
	ts := strconv.FormatInt(i.now().Unix(), 10)
	return account + "." + ts + "." + computeMAC(i.Secret, account, ts)
}

// Verify returns the account carried by the request's cookie.
func (i *Issuer) Verify(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", ErrMissingCookie
	}
	if i.Secret == "" {
		if !common.IsHexAddress(c.Value) {
			return "", ErrMalformedCookie
		}
		return common.HexToAddress(c.Value).Hex(), nil
	}

	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 || !common.IsHexAddress(parts[0]) {
		return "", ErrMalformedCookie
	}
	account, tsRaw, mac := parts[0], parts[1], parts[2]
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return "", ErrMalformedCookie
	}

	expected := computeMAC(i.Secret, account, tsRaw)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(mac))) {
		return "", ErrInvalidSignature
	}

	issued := time.Unix(ts, 0)
	now := i.now()
	if i.MaxSkew > 0 && issued.Sub(now) > i.MaxSkew {
		return "", ErrExpiredCookie
	}
	if i.MaxAge > 0 && now.Sub(issued) > i.MaxAge {
		return "", ErrExpiredCookie
	}
	return common.HexToAddress(account).Hex(), nil
}

func computeMAC(secret, account, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(account))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Gated reports whether path falls under a gated area.
func Gated(path string) bool {
	for _, prefix := range GatedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Gate redirects requests for gated paths without a valid cookie to "/". On
// success the account is stored in the request context.
func (i *Issuer) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Gated(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		account, err := i.Verify(r)
		if err != nil {
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

type ctxKey struct{}

func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, ctxKey{}, account)
}

// AccountFrom returns the account Gate verified for this request.
func AccountFrom(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(ctxKey{}).(string)
	return account, ok && account != ""
}
