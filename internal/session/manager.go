package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

// initTimeout bounds one shared Store initialization.
const initTimeout = 10 * time.Second

// Opener returns the backend view bound to one session id.
type Opener func(sessionID string) backend.Client

type entry struct {
	store    *Store
	lastSeen time.Time
}

// Manager keeps one live Store per backend session. Stores are dropped when
// their identity turns absent or when they sit idle longer than the idle TTL.
type Manager struct {
	open Opener
	log  *logger.Logger
	idle time.Duration
	now  func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	stores map[string]*entry
}

func NewManager(open Opener, log *logger.Logger, idle time.Duration) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Manager{
		open:   open,
		log:    log.With("component", "SessionManager"),
		idle:   idle,
		now:    time.Now,
		stores: map[string]*entry{},
	}
}

// Get returns the initialized Store for sessionID, creating it on first use.
// The returned Store may hold an absent identity (revoked or expired session).
func (m *Manager) Get(ctx context.Context, sessionID string) (*Store, error) {
	m.mu.Lock()
	if e, ok := m.stores[sessionID]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.store, nil
	}
	m.mu.Unlock()

	// The first caller's request must not decide the outcome for everyone waiting.
	ch := m.group.DoChan(sessionID, func() (interface{}, error) {
		m.mu.Lock()
		if e, ok := m.stores[sessionID]; ok {
			m.mu.Unlock()
			return e.store, nil
		}
		m.mu.Unlock()

		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
		defer cancel()
		st := NewStore(m.open(sessionID), m.log.With("session_id", sessionID))
		if err := st.Initialize(ictx); err != nil {
			st.Close()
			return nil, err
		}
		if st.User() == nil {
			// nothing to keep in sync for a dead session
			st.Close()
			return st, nil
		}
		m.mu.Lock()
		m.stores[sessionID] = &entry{store: st, lastSeen: m.now()}
		m.mu.Unlock()
		go m.evictWhenAbsent(sessionID, st)
		return st, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	}
}

func (m *Manager) evictWhenAbsent(sessionID string, st *Store) {
	ch, cancel := st.Watch()
	defer cancel()
	if st.User() == nil {
		m.evict(sessionID, st)
		return
	}
	for u := range ch {
		if u == nil {
			m.log.Debug("session ended", "session_id", sessionID)
			m.evict(sessionID, st)
			return
		}
	}
}

// Evict closes and forgets the Store for sessionID, if any.
func (m *Manager) Evict(sessionID string) {
	m.evict(sessionID, nil)
}

func (m *Manager) evict(sessionID string, only *Store) {
	m.mu.Lock()
	e, ok := m.stores[sessionID]
	if !ok || (only != nil && e.store != only) {
		m.mu.Unlock()
		return
	}
	delete(m.stores, sessionID)
	m.mu.Unlock()
	e.store.Close()
}

// Sweep evicts idle Stores and returns how many were dropped.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)
	var stale []*Store
	m.mu.Lock()
	for id, e := range m.stores {
		if e.lastSeen.Before(cutoff) {
			delete(m.stores, id)
			stale = append(stale, e.store)
		}
	}
	m.mu.Unlock()
	for _, st := range stale {
		st.Close()
	}
	return len(stale)
}

// Run sweeps until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.idle / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.log.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// Close drops every Store.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.stores
	m.stores = map[string]*entry{}
	m.mu.Unlock()
	for _, e := range all {
		e.store.Close()
	}
}
