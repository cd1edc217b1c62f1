// Package session holds the signed-in identity of one user agent and keeps it in
// step with backend auth pushes.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

var ErrClosed = errors.New("session: store closed")

// Store is the identity cell for one agent. The identity is replaced only by
// Initialize and by backend pushes; observers see every replacement through Watch.
type Store struct {
	client backend.Client
	log    *logger.Logger

	mu       sync.RWMutex
	user     *lms.User
	ready    bool
	closed   bool
	gen      uint64 // bumped by every push
	sub      backend.Subscription
	watchers map[int]chan *lms.User
	nextID   int
}

func NewStore(c backend.Client, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		client:   c,
		log:      log.With("component", "SessionStore"),
		watchers: map[int]chan *lms.User{},
	}
}

// initTries bounds how often Initialize re-reads after losing a race with a push.
const initTries = 3

// Initialize subscribes to auth pushes and loads the current identity.
// Lookup failures leave the identity absent; only a failed subscription is an error.
// A push that lands while the lookup runs wins over the lookup's result.
func (s *Store) Initialize(ctx context.Context) error {
	sub, err := s.client.OnAuthStateChange(s.onAuthChange)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	s.sub = sub
	s.mu.Unlock()

	for try := 0; try < initTries; try++ {
		g := s.generation()
		sess, err := s.client.GetSession(ctx)
		if err != nil {
			s.log.Warn("session lookup failed", "error", err)
			sess = nil
		}
		if s.setAt(g, s.resolve(ctx, sess)) || s.Ready() {
			return nil
		}
		s.log.Debug("auth push during initialize, reloading", "attempt", try+1)
	}
	return nil
}

func (s *Store) onAuthChange(ctx context.Context, ev backend.AuthEvent, sess *backend.Session) {
	s.mu.Lock()
	s.gen++
	g := s.gen
	s.mu.Unlock()
	s.log.Debug("auth change", "event", ev, "present", sess != nil)
	s.setAt(g, s.resolve(ctx, sess))
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Store) resolve(ctx context.Context, sess *backend.Session) *lms.User {
	if sess == nil {
		return nil
	}
	u, err := backend.SelectOne[lms.User](ctx, s.client, backend.From(backend.TableUsers).Eq("id", sess.UserID))
	if err != nil {
		s.log.Warn("user lookup failed", "user_id", sess.UserID, "error", err)
		return nil
	}
	return &u
}

// SignOut asks the backend to end the session. The identity is cleared when the
// SIGNED_OUT push arrives, not here.
func (s *Store) SignOut(ctx context.Context) error {
	return s.client.SignOut(ctx)
}

// User returns a copy of the current identity, nil when absent.
func (s *Store) User() *lms.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Ready reports whether Initialize has stored a first value.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) Client() backend.Client { return s.client }

// Watch returns a channel that receives every identity replacement (nil for absent)
// and a cancel func. A slow reader skips intermediate values but always gets the latest.
func (s *Store) Watch() (<-chan *lms.User, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan *lms.User, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(c)
			}
		})
	}
}

// Close releases the backend subscription and closes every watcher.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// setAt stores u unless a push newer than generation g has arrived.
func (s *Store) setAt(g uint64, u *lms.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != g {
		return false
	}
	s.user = u
	s.ready = true
	for _, ch := range s.watchers {
		var v *lms.User
		if u != nil {
			cp := *u
			v = &cp
		}
		// keep only the newest value in the buffer
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
	return true
}
