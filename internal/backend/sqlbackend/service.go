// Package sqlbackend implements the hosted backend on database/sql: row queries over
// the LMS tables, email/password accounts and revocable JWT sessions.
package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/backend/authbus"
	"github.com/mind-engage/engineering-lms/internal/eventlog"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const minPasswordLen = 6

type Options struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	db     *sql.DB
	bus    authbus.Bus
	events *eventlog.Repo
	tokens *Tokens
	log    *logger.Logger

	ttl  time.Duration
	cost int
	now  func() time.Time
}

func New(db *sql.DB, bus authbus.Bus, log *logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	return &Service{
		db:     db,
		bus:    bus,
		events: eventlog.NewRepo(db, ""),
		tokens: NewTokens(opts.Secret, opts.Now),
		log:    log.With("component", "SQLBackend"),
		ttl:    opts.SessionTTL,
		cost:   opts.BcryptCost,
		now:    opts.Now,
	}
}

// SignUp creates a student account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*backend.Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email required")
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email=$1`, email).Scan(&exists)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	userID := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, full_name, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		userID, email, string(hash), string(lms.RoleStudent), strings.TrimSpace(fullName), s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.startSession(ctx, userID)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	var userID, hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, normalizeEmail(email)).
		Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, userID)
}

// Authenticate resolves an access token to its live session.
func (s *Service) Authenticate(ctx context.Context, token string) (*backend.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnauthorized, err)
	}
	sess, err := s.lookupSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, backend.ErrUnauthorized
	}
	sess.AccessToken = token
	return sess, nil
}

// Refresh extends a live session and returns a new access token for it.
func (s *Service) Refresh(ctx context.Context, token string) (*backend.Session, error) {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	exp := s.now().Add(s.ttl)
	if _, err := s.db.ExecContext(ctx, `UPDATE auth_sessions SET expires_at=$1 WHERE id=$2`, exp.Unix(), sess.ID); err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(sess.ID, sess.UserID, exp)
	if err != nil {
		return nil, err
	}
	out := &backend.Session{ID: sess.ID, UserID: sess.UserID, AccessToken: tok, ExpiresAt: exp.UTC()}
	s.notify(ctx, authbus.Message{Event: backend.EventTokenRefreshed, SessionID: sess.ID, UserID: sess.UserID, Session: public(out)})
	return out, nil
}

// SignOut revokes a session. Revoking twice is not an error.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM auth_sessions WHERE id=$1`, sessionID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at=$1 WHERE id=$2 AND revoked_at IS NULL`, s.now().Unix(), sessionID); err != nil {
		return err
	}
	s.notify(ctx, authbus.Message{Event: backend.EventSignedOut, SessionID: sessionID, UserID: userID})
	return nil
}

// NotifyUserUpdated pushes USER_UPDATED to every live session of userID.
func (s *Service) NotifyUserUpdated(ctx context.Context, userID string) {
	s.notify(ctx, authbus.Message{Event: backend.EventUserUpdated, UserID: userID})
}

// Client returns the agent view bound to one session.
func (s *Service) Client(sessionID string) backend.Client {
	return &agent{svc: s, sessionID: sessionID}
}

func (s *Service) startSession(ctx context.Context, userID string) (*backend.Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	sid := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES ($1,$2,$3,$4)`,
		sid, userID, now.Unix(), exp.Unix()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	tok, err := s.tokens.Issue(sid, userID, exp)
	if err != nil {
		return nil, err
	}
	sess := &backend.Session{ID: sid, UserID: userID, AccessToken: tok, ExpiresAt: exp.UTC()}
	s.notify(ctx, authbus.Message{Event: backend.EventSignedIn, SessionID: sid, UserID: userID, Session: public(sess)})
	return sess, nil
}

// lookupSession returns nil, nil for revoked, expired or unknown sessions.
func (s *Service) lookupSession(ctx context.Context, sessionID string) (*backend.Session, error) {
	var (
		userID  string
		expires int64
		revoked sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, revoked_at FROM auth_sessions WHERE id=$1`, sessionID).
		Scan(&userID, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if revoked.Valid || s.now().Unix() >= expires {
		return nil, nil
	}
	return &backend.Session{ID: sessionID, UserID: userID, ExpiresAt: time.Unix(expires, 0).UTC()}, nil
}

func (s *Service) notify(ctx context.Context, m authbus.Message) {
	if err := s.events.Append(ctx, string(m.Event), firstNonEmpty(m.SessionID, m.UserID), map[string]string{
		"session_id": m.SessionID,
		"user_id":    m.UserID,
	}); err != nil {
		s.log.Warn("event log append failed", "event", m.Event, "error", err)
	}
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, m); err != nil {
		s.log.Error("auth push failed", "event", m.Event, "error", err)
	}
}

// public strips the access token before a session crosses the bus.
func public(sess *backend.Session) *backend.Session {
	cp := *sess
	cp.AccessToken = ""
	return &cp
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
