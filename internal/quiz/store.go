package quiz

import (
	"context"
	"sync"
	"time"
)

// Key scopes interaction state to one agent session on one module.
type Key struct {
	SessionID string
	ModuleID  string
}

// StateStore keeps ModuleState between requests. Answers and code are written
// per field so concurrent requests on one page do not overwrite each other.
type StateStore interface {
	// Load returns a fresh state when nothing is stored.
	Load(ctx context.Context, k Key) (*ModuleState, error)
	PutAnswer(ctx context.Context, k Key, a Answer) error
	PutCode(ctx context.Context, k Key, exerciseID, code string) error
	// Reset drops everything stored under k.
	Reset(ctx context.Context, k Key) error
}

type memEntry struct {
	state   *ModuleState
	expires time.Time
}

// Memory is a process-local StateStore with a sliding TTL.
type Memory struct {
	mu  sync.Mutex
	m   map[Key]*memEntry
	ttl time.Duration
	now func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Memory{m: map[Key]*memEntry{}, ttl: ttl, now: time.Now}
}

func (s *Memory) Load(_ context.Context, k Key) (*ModuleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(k)
	out := NewModuleState()
	if e == nil {
		return out, nil
	}
	for id, a := range e.state.Board.Answers {
		out.Board.Answers[id] = a
	}
	for id, c := range e.state.Code {
		out.Code[id] = c
	}
	return out, nil
}

func (s *Memory) PutAnswer(_ context.Context, k Key, a Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.touch(k)
	e.state.Board.Answers[a.QuestionID] = a
	return nil
}

func (s *Memory) PutCode(_ context.Context, k Key, exerciseID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(k).state.Edit(exerciseID, code)
	return nil
}

func (s *Memory) Reset(_ context.Context, k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, k)
	return nil
}

// Sweep drops expired entries.
func (s *Memory) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.m {
		if !now.Before(e.expires) {
			delete(s.m, k)
		}
	}
}

func (s *Memory) live(k Key) *memEntry {
	e, ok := s.m[k]
	if !ok {
		return nil
	}
	if !s.now().Before(e.expires) {
		delete(s.m, k)
		return nil
	}
	return e
}

func (s *Memory) touch(k Key) *memEntry {
	e := s.live(k)
	if e == nil {
		e = &memEntry{state: NewModuleState()}
		s.m[k] = e
	}
	e.expires = s.now().Add(s.ttl)
	return e
}
