package authcookie

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const account = "0x60c977735cfBF44Cf5B33bD02a8B637765E7AbbB"

func issuedCookie(t *testing.T, i *Issuer) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	i.Issue(rec, account)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestGate_AllowsSignedCookie(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	i := &Issuer{Secret: "secret", MaxAge: time.Hour, MaxSkew: time.Minute, Now: func() time.Time { return now }}
	cookie := issuedCookie(t, i)
	if !strings.HasPrefix(cookie.Value, account+".1700000000.") {
		t.Fatalf("unexpected cookie value %q", cookie.Value)
	}

	req := httptest.NewRequest(http.MethodGet, "/employer/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	var seen string
	i.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen != account {
		t.Fatalf("expected account %s in context, got %q", account, seen)
	}
}

func TestGate_RedirectsWithoutCookie(t *testing.T) {
	i := &Issuer{}
	for _, path := range []string{"/employer", "/employer/payroll", "/employee/savings"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		i.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		})).ServeHTTP(rec, req)

		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("%s: expected 307, got %d", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/" {
			t.Fatalf("%s: expected redirect to /, got %q", path, loc)
		}
	}
}

func TestGate_PassesUngatedPaths(t *testing.T) {
	i := &Issuer{Secret: "secret"}
	for _, path := range []string{"/", "/api/v1/session", "/employers-guide"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		called := false
		i.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).ServeHTTP(rec, req)
		if !called {
			t.Fatalf("%s: handler was not called", path)
		}
	}
}

func TestVerify_Failures(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	i := &Issuer{Secret: "secret", MaxAge: time.Hour, MaxSkew: time.Minute, Now: func() time.Time { return now }}
	valid := issuedCookie(t, i).Value
	parts := strings.Split(valid, ".")

	cases := map[string]struct {
		value string
		want  error
	}{
		"tampered account": {strings.Replace(valid, "0x60c9", "0x70c9", 1), ErrInvalidSignature},
		"tampered time":    {parts[0] + ".1700000001." + parts[2], ErrInvalidSignature},
		"bare account":     {account, ErrMalformedCookie},
		"garbage":          {"a.b.c", ErrMalformedCookie},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/employee", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tc.value})
		if _, err := i.Verify(req); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}

	now = now.Add(2 * time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/employee", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: valid})
	if _, err := i.Verify(req); err != ErrExpiredCookie {
		t.Fatalf("expected expired cookie, got %v", err)
	}
}

func TestVerify_UnsignedCookie(t *testing.T) {
	i := &Issuer{}
	cookie := issuedCookie(t, i)
	if cookie.Value != account {
		t.Fatalf("expected bare account, got %q", cookie.Value)
	}

	req := httptest.NewRequest(http.MethodGet, "/employee", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: strings.ToLower(account)})
	got, err := i.Verify(req)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != account {
		t.Fatalf("expected checksummed account, got %s", got)
	}
}

func TestClear_ExpiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	(&Issuer{}).Clear(rec)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Name != CookieName {
		t.Fatalf("expected an expired %s cookie, got %+v", CookieName, cookies)
	}
}
