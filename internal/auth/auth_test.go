package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

const testSecret = "test-secret-with-enough-entropy"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueParseRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)
	user := domain.User{ID: 42, Username: "alice", Role: domain.RoleAdmin}

	token, exp, err := iss.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := time.Until(exp); d <= 59*time.Minute || d > time.Hour {
		t.Fatalf("expiry %s away, want about one hour", d)
	}

	p, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := domain.Principal{UserID: 42, Username: "alice", Role: domain.RoleAdmin}
	if p != want {
		t.Fatalf("principal = %+v, want %+v", p, want)
	}
}

func TestParseRejects(t *testing.T) {
	iss := newTestIssuer(t)
	user := domain.User{ID: 7, Username: "bob", Role: domain.RoleUser}
	good, _, err := iss.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewIssuer("another-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	forged, _, _ := other.Issue(user)

	expired := newTestIssuer(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, _ := expired.Issue(user)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "7", "name": "bob", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "7", "name": "bob", "role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7", "name": "bob", "role": "root", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign bad role: %v", err)
	}

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"tampered":     good + "x",
		"wrong secret": forged,
		"expired":      stale,
		"alg none":     none,
		"other hmac":   hs512,
		"unknown role": badRole,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := iss.Parse(token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Parse() error = %v, want ErrInvalidToken", err)
			}
			if p != domain.Anonymous {
				t.Fatalf("Parse() principal = %+v, want anonymous", p)
			}
		})
	}
}

func TestNewIssuerValidates(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewIssuer("s", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestGuard(t *testing.T) {
	iss := newTestIssuer(t)
	guard := NewGuard(iss, nil, nil)

	userToken, _, _ := iss.Issue(domain.User{ID: 1, Username: "alice", Role: domain.RoleUser})
	adminToken, _, _ := iss.Issue(domain.User{ID: 2, Username: "admin", Role: domain.RoleAdmin})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", FromContext(r.Context()).Username)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		wrap       func(http.Handler) http.Handler
		setup      func(*http.Request)
		wantStatus int
		wantUser   string
	}{
		{"open anonymous", nil, func(*http.Request) {}, http.StatusNoContent, ""},
		{"open cookie", nil, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: userToken})
		}, http.StatusNoContent, "alice"},
		{"open bearer", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "bearer "+userToken)
		}, http.StatusNoContent, "alice"},
		{"open invalid token stays anonymous", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer junk")
		}, http.StatusNoContent, ""},
		{"login anonymous", guard.RequireLogin, func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"login user", guard.RequireLogin, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+userToken)
		}, http.StatusNoContent, "alice"},
		{"admin anonymous", guard.RequireAdmin, func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"admin as user", guard.RequireAdmin, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+userToken)
		}, http.StatusForbidden, ""},
		{"admin as admin", guard.RequireAdmin, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: adminToken})
		}, http.StatusNoContent, "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h http.Handler = ok
			if tt.wrap != nil {
				h = tt.wrap(h)
			}
			h = guard.Middleware(h)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("X-User"); got != tt.wantUser {
				t.Fatalf("user = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	exp := time.Now().Add(time.Hour)
	SetSessionCookie(rec, "tok", exp, true)
	ClearSessionCookie(rec, true)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	if c := cookies[0]; c.Name != CookieName || c.Value != "tok" || !c.HttpOnly || !c.Secure {
		t.Fatalf("session cookie = %+v", c)
	}
	if c := cookies[1]; c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("cleared cookie = %+v", c)
	}
}
