// Package backend describes the hosted database/auth service the portal talks to.
// The portal only ever reads rows and reacts to auth pushes; everything else
// belongs to the service behind Client.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("backend: row not found")
	ErrUnknownTable = errors.New("backend: unknown table")
	ErrUnauthorized = errors.New("backend: no valid session")
)

type Table string

const (
	TableUsers           Table = "users"
	TableCourses         Table = "courses"
	TableModules         Table = "modules"
	TableMCQQuestions    Table = "mcq_questions"
	TableCodingExercises Table = "coding_exercises"
	TableUserProgress    Table = "user_progress"
)

// Session is the backend-issued proof of authentication.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthChangeFunc receives every auth push for the subscribed session.
// session is nil when the event leaves the agent signed out.
type AuthChangeFunc func(ctx context.Context, event AuthEvent, session *Session)

// Subscription is released with Unsubscribe; calling it twice is harmless.
type Subscription interface {
	Unsubscribe()
}

// Client is the per-agent view of the backend.
type Client interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn AuthChangeFunc) (Subscription, error)
	SignOut(ctx context.Context) error
	// QueryTable returns a JSON array of matching rows.
	QueryTable(ctx context.Context, q Query) ([]byte, error)
	// QueryOne returns a single JSON object or ErrNotFound.
	QueryOne(ctx context.Context, q Query) ([]byte, error)
}

// Select runs q and decodes the rows into T.
func Select[T any](ctx context.Context, c Client, q Query) ([]T, error) {
	raw, err := c.QueryTable(ctx, q)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("backend: decode %s: %w", q.Table, err)
	}
	return out, nil
}

// SelectOne runs q as a single-row lookup and decodes it into T.
func SelectOne[T any](ctx context.Context, c Client, q Query) (T, error) {
	var out T
	raw, err := c.QueryOne(ctx, q)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("backend: decode %s: %w", q.Table, err)
	}
	return out, nil
}
