// Package backendtest provides an in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
)

// Fake keeps rows per table and delivers auth pushes synchronously through Push.
// SignOut only records the call; tests push SIGNED_OUT themselves.
type Fake struct {
	mu      sync.Mutex
	rows    map[backend.Table][]map[string]any
	errs    map[backend.Table]error
	session *backend.Session
	subs    map[int]backend.AuthChangeFunc
	nextSub int

	SessionErr   error
	SignOutErr   error
	SignOutCalls int
	Queries      []backend.Query
}

func New() *Fake {
	return &Fake{
		rows: map[backend.Table][]map[string]any{},
		errs: map[backend.Table]error{},
		subs: map[int]backend.AuthChangeFunc{},
	}
}

// Put stores rows; each value is round-tripped through JSON like the real backend.
func (f *Fake) Put(table backend.Table, rows ...any) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			panic(fmt.Sprintf("backendtest: marshal %T: %v", r, err))
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			panic(fmt.Sprintf("backendtest: %T is not an object: %v", r, err))
		}
		f.rows[table] = append(f.rows[table], m)
	}
	return f
}

// Fail makes every query on table return err; nil clears it.
func (f *Fake) Fail(table backend.Table, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, table)
	} else {
		f.errs[table] = err
	}
	return f
}

func (f *Fake) SetSession(s *backend.Session) {
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
}

// Push sets the current session and invokes every subscriber in order.
func (f *Fake) Push(ctx context.Context, ev backend.AuthEvent, s *backend.Session) {
	f.mu.Lock()
	f.session = s
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]backend.AuthChangeFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.subs[id])
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ctx, ev, s)
	}
}

func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Fake) GetSession(context.Context) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	if f.session == nil {
		return nil, nil
	}
	cp := *f.session
	return &cp, nil
}

func (f *Fake) OnAuthStateChange(fn backend.AuthChangeFunc) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return &subscription{f: f, id: id}, nil
}

func (f *Fake) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOutCalls++
	return f.SignOutErr
}

func (f *Fake) QueryTable(_ context.Context, q backend.Query) ([]byte, error) {
	rows, err := f.match(q)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rows)
}

func (f *Fake) QueryOne(_ context.Context, q backend.Query) ([]byte, error) {
	rows, err := f.match(q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, q)
	}
	return json.Marshal(rows[0])
}

func (f *Fake) match(q backend.Query) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, q)
	if err := f.errs[q.Table]; err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for _, r := range f.rows[q.Table] {
		ok := true
		for _, flt := range q.Filters {
			if fmt.Sprint(r[flt.Column]) != fmt.Sprint(flt.Value) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	if q.Order != nil {
		col, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][col], out[j][col])
			if asc {
				return c < 0
			}
			return c > 0
		})
	}
	return out, nil
}

func compare(a, b any) int {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if ta, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return ta.Compare(tb)
		}
	}
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

type subscription struct {
	f    *Fake
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.f.mu.Lock()
		delete(s.f.subs, s.id)
		s.f.mu.Unlock()
	})
}
