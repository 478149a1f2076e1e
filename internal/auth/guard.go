package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// CookieName is the session cookie set on login.
const CookieName = "session"

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request principal, or Anonymous when none is set.
func FromContext(ctx context.Context) domain.Principal {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	if !ok {
		return domain.Anonymous
	}
	return p
}

// DeniedFunc writes the response for a request rejected by a guard. err is
// domain.ErrInvalidCredentials for anonymous callers and domain.ErrForbidden
// for callers lacking the admin role.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, err error)

// Guard attaches principals to requests and gates routes on them.
type Guard struct {
	issuer *Issuer
	logger *zap.Logger
	denied DeniedFunc
}

// NewGuard constructs a Guard. A nil denied falls back to plain-text errors.
func NewGuard(issuer *Issuer, logger *zap.Logger, denied DeniedFunc) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if denied == nil {
		denied = func(w http.ResponseWriter, _ *http.Request, err error) {
			status := http.StatusUnauthorized
			if errors.Is(err, domain.ErrForbidden) {
				status = http.StatusForbidden
			}
			http.Error(w, err.Error(), status)
		}
	}
	return &Guard{issuer: issuer, logger: logger.Named("auth"), denied: denied}
}

func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware resolves the session token of every request. Missing or invalid
// tokens leave the request anonymous.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := domain.Anonymous
		if token := tokenFrom(r); token != "" {
			parsed, err := g.issuer.Parse(token)
			if err != nil {
				g.logger.Debug("rejected session token", zap.String("path", r.URL.Path), zap.Error(err))
			} else {
				p = parsed
			}
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireLogin rejects anonymous requests.
func (g *Guard) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).LoggedIn() {
			g.denied(w, r, domain.ErrInvalidCredentials)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests and requests by non-admins.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := FromContext(r.Context())
		switch {
		case !p.LoggedIn():
			g.denied(w, r, domain.ErrInvalidCredentials)
		case !p.IsAdmin():
			g.denied(w, r, domain.ErrForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// SetSessionCookie stores token in the session cookie until expires.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
