package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/backend/sqlbackend"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type sessionResponse struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Redirect    string    `json:"redirect"`
}

func issued(w http.ResponseWriter, status int, s *backend.Session, secure bool) {
	setSessionCookie(w, s, secure)
	writeJSON(w, status, sessionResponse{
		SessionID:   s.ID,
		UserID:      s.UserID,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
		Redirect:    AppPrefix + "/dashboard",
	})
}

func authError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, sqlbackend.ErrInvalidCredentials), errors.Is(err, backend.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, sqlbackend.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, sqlbackend.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
	default:
		log.Error("auth request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "authentication failed")
	}
}

func RegisterHandler(accounts Accounts, log *logger.Logger, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FullName) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "email and full_name required")
			return
		}
		s, err := accounts.SignUp(r.Context(), req.Email, req.Password, req.FullName)
		if err != nil {
			authError(w, log, err)
			return
		}
		issued(w, http.StatusCreated, s, secure)
	}
}

func LoginHandler(accounts Accounts, log *logger.Logger, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		s, err := accounts.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			authError(w, log, err)
			return
		}
		issued(w, http.StatusOK, s, secure)
	}
}

func RefreshHandler(accounts Accounts, log *logger.Logger, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := requestToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		s, err := accounts.Refresh(r.Context(), tok)
		if err != nil {
			authError(w, log, err)
			return
		}
		issued(w, http.StatusOK, s, secure)
	}
}

// LogoutHandler asks the backend to end the session. The viewer's identity is
// cleared when the resulting SIGNED_OUT push arrives.
func LogoutHandler(log *logger.Logger, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := ViewerFrom(r.Context())
		if v == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no session")
			return
		}
		if err := v.Store.SignOut(r.Context()); err != nil {
			authError(w, log, err)
			return
		}
		clearSessionCookie(w, secure)
		writeJSON(w, http.StatusOK, map[string]string{"redirect": AppPrefix + "/login"})
	}
}
