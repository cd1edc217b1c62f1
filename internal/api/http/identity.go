package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/rbac"
	"github.com/mind-engage/engineering-lms/internal/session"
)

const sessionCookie = "lms_session"

// Accounts is the part of the backend that handles credentials and tokens.
type Accounts interface {
	SignUp(ctx context.Context, email, password, fullName string) (*backend.Session, error)
	SignIn(ctx context.Context, email, password string) (*backend.Session, error)
	Refresh(ctx context.Context, token string) (*backend.Session, error)
	Authenticate(ctx context.Context, token string) (*backend.Session, error)
}

// Viewer is the agent behind a request.
type Viewer struct {
	SessionID string
	Store     *session.Store
}

func (v *Viewer) User() *lms.User {
	if v == nil || v.Store == nil {
		return nil
	}
	return v.Store.User()
}

type ctxKey struct{}

func withViewer(ctx context.Context, v *Viewer) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// ViewerFrom returns nil for anonymous requests.
func ViewerFrom(ctx context.Context) *Viewer {
	v, _ := ctx.Value(ctxKey{}).(*Viewer)
	return v
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Identify resolves the bearer token or session cookie to a live session Store.
// Any failure leaves the request anonymous.
func Identify(accounts Accounts, sessions *session.Manager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := requestToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			sess, err := accounts.Authenticate(ctx, tok)
			if err != nil {
				log.Debug("token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			st, err := sessions.Get(ctx, sess.ID)
			if err != nil {
				log.Warn("session store unavailable", "session_id", sess.ID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			v := &Viewer{SessionID: sess.ID, Store: st}
			ctx = withViewer(ctx, v)
			if u := st.User(); u != nil {
				ctx = rbac.WithRole(ctx, u.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a signed-in identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFrom(r.Context()).User() == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setSessionCookie(w http.ResponseWriter, s *backend.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
