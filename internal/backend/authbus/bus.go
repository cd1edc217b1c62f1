// Package authbus carries auth-state pushes from the backend to subscribed agents.
package authbus

import (
	"context"
	"sync"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

// Message is one auth push. A message with a SessionID reaches that session only;
// a message with only a UserID reaches every session of that user.
type Message struct {
	Event     backend.AuthEvent `json:"event"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Session   *backend.Session  `json:"session,omitempty"`
}

// Key identifies what a subscriber listens to.
type Key struct {
	SessionID string
	UserID    string
}

func (k Key) matches(m Message) bool {
	if m.SessionID != "" {
		return m.SessionID == k.SessionID
	}
	return m.UserID != "" && m.UserID == k.UserID
}

type Handler func(ctx context.Context, m Message)

type Bus interface {
	Publish(ctx context.Context, m Message) error
	Subscribe(key Key, fn Handler) backend.Subscription
	Close() error
}

const subscriberBuffer = 16

type subscriber struct {
	key  Key
	fn   Handler
	ch   chan Message
	done chan struct{}
	once sync.Once
	d    *dispatcher
	id   uint64
}

func (s *subscriber) Unsubscribe() {
	s.once.Do(func() {
		s.d.remove(s.id)
		close(s.done)
	})
}

func (s *subscriber) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case m := <-s.ch:
			s.fn(ctx, m)
		}
	}
}

// dispatcher fans messages out to local subscribers, preserving per-subscriber order.
type dispatcher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func newDispatcher(log *logger.Logger) *dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{subs: map[uint64]*subscriber{}, log: log, ctx: ctx, cancel: cancel}
}

func (d *dispatcher) add(key Key, fn Handler) *subscriber {
	d.mu.Lock()
	d.nextID++
	s := &subscriber{
		key:  key,
		fn:   fn,
		ch:   make(chan Message, subscriberBuffer),
		done: make(chan struct{}),
		d:    d,
		id:   d.nextID,
	}
	d.subs[s.id] = s
	d.mu.Unlock()
	go s.run(d.ctx)
	return s
}

func (d *dispatcher) remove(id uint64) {
	d.mu.Lock()
	delete(d.subs, id)
	d.mu.Unlock()
}

func (d *dispatcher) dispatch(m Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.subs {
		if !s.key.matches(m) {
			continue
		}
		select {
		case s.ch <- m:
		default:
			d.log.Warn("dropping auth event; subscriber buffer full", "event", m.Event, "session_id", s.key.SessionID)
		}
	}
}

func (d *dispatcher) close() {
	d.cancel()
	d.mu.Lock()
	subs := d.subs
	d.subs = map[uint64]*subscriber{}
	d.mu.Unlock()
	for _, s := range subs {
		s.once.Do(func() { close(s.done) })
	}
}

// Memory is an in-process Bus for single-instance deployments and tests.
type Memory struct {
	d *dispatcher
}

func NewMemory(log *logger.Logger) *Memory {
	return &Memory{d: newDispatcher(log)}
}

func (b *Memory) Publish(_ context.Context, m Message) error {
	b.d.dispatch(m)
	return nil
}

func (b *Memory) Subscribe(key Key, fn Handler) backend.Subscription {
	return b.d.add(key, fn)
}

func (b *Memory) Close() error {
	b.d.close()
	return nil
}
