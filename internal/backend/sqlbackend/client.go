package sqlbackend

import (
	"context"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/backend/authbus"
)

// agent is one signed-in user agent's handle on the backend.
type agent struct {
	svc       *Service
	sessionID string
}

func (a *agent) GetSession(ctx context.Context) (*backend.Session, error) {
	return a.svc.lookupSession(ctx, a.sessionID)
}

func (a *agent) OnAuthStateChange(fn backend.AuthChangeFunc) (backend.Subscription, error) {
	if a.svc.bus == nil {
		return noopSubscription{}, nil
	}
	key := authbus.Key{SessionID: a.sessionID}
	// also follow user-wide pushes (role changes) while the session is live
	if sess, err := a.svc.lookupSession(context.Background(), a.sessionID); err == nil && sess != nil {
		key.UserID = sess.UserID
	}
	return a.svc.bus.Subscribe(key, func(ctx context.Context, m authbus.Message) {
		if m.Event == backend.EventSignedOut {
			fn(ctx, m.Event, nil)
			return
		}
		sess, err := a.GetSession(ctx)
		if err != nil {
			a.svc.log.Warn("session lookup after auth push failed", "event", m.Event, "error", err)
			sess = nil
		}
		fn(ctx, m.Event, sess)
	}), nil
}

func (a *agent) SignOut(ctx context.Context) error {
	return a.svc.SignOut(ctx, a.sessionID)
}

func (a *agent) QueryTable(ctx context.Context, q backend.Query) ([]byte, error) {
	return a.svc.queryTable(ctx, q)
}

func (a *agent) QueryOne(ctx context.Context, q backend.Query) ([]byte, error) {
	return a.svc.queryOne(ctx, q)
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
