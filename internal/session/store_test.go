package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/backend/backendtest"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/session"
)

var ada = lms.User{ID: "u1", Role: lms.RoleAdmin, FullName: "Ada"}

func recv(t *testing.T, ch <-chan *lms.User) *lms.User {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("no identity update")
	}
	return nil
}

func TestInitialize_PresentSession(t *testing.T) {
	f := backendtest.New().Put(backend.TableUsers, ada)
	f.SetSession(&backend.Session{ID: "s1", UserID: "u1"})

	st := session.NewStore(f, nil)
	defer st.Close()
	if st.Ready() {
		t.Fatalf("store must not be ready before Initialize")
	}
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	u := st.User()
	if !st.Ready() || u == nil || u.FullName != "Ada" || u.Role != lms.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", u)
	}
	if f.Subscribers() != 1 {
		t.Fatalf("expected one auth subscription, got %d", f.Subscribers())
	}
}

func TestInitialize_AbsentOnMissingOrFailingRow(t *testing.T) {
	cases := map[string]func(*backendtest.Fake){
		"no session":  func(f *backendtest.Fake) {},
		"missing row": func(f *backendtest.Fake) { f.SetSession(&backend.Session{ID: "s1", UserID: "ghost"}) },
		"session err": func(f *backendtest.Fake) { f.SessionErr = errors.New("boom") },
		"row query err": func(f *backendtest.Fake) {
			f.Put(backend.TableUsers, ada).Fail(backend.TableUsers, errors.New("db down"))
			f.SetSession(&backend.Session{ID: "s1", UserID: "u1"})
		},
	}
	for name, prep := range cases {
		f := backendtest.New()
		prep(f)
		st := session.NewStore(f, nil)
		if err := st.Initialize(context.Background()); err != nil {
			t.Fatalf("%s: initialize: %v", name, err)
		}
		if st.User() != nil || !st.Ready() {
			t.Errorf("%s: expected ready with absent identity, got %+v", name, st.User())
		}
		st.Close()
	}
}

// parkedLookup holds the first users query until released.
type parkedLookup struct {
	*backendtest.Fake
	parked  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *parkedLookup) QueryOne(ctx context.Context, q backend.Query) ([]byte, error) {
	if q.Table == backend.TableUsers {
		first := false
		p.once.Do(func() { first = true })
		if first {
			close(p.parked)
			<-p.release
		}
	}
	return p.Fake.QueryOne(ctx, q)
}

func TestInitialize_PushDuringLookupWins(t *testing.T) {
	ctx := context.Background()
	f := backendtest.New().Put(backend.TableUsers, ada)
	f.SetSession(&backend.Session{ID: "s1", UserID: "u1"})
	c := &parkedLookup{Fake: f, parked: make(chan struct{}), release: make(chan struct{})}

	st := session.NewStore(c, nil)
	defer st.Close()
	done := make(chan error, 1)
	go func() { done <- st.Initialize(ctx) }()

	<-c.parked
	f.Push(ctx, backend.EventSignedOut, nil)
	close(c.release)
	if err := <-done; err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if u := st.User(); u != nil {
		t.Fatalf("stale identity survived SIGNED_OUT during initialize: %+v", u)
	}
	if !st.Ready() {
		t.Fatalf("store should be ready")
	}
}

func TestAuthPushes_ReplaceIdentity(t *testing.T) {
	ctx := context.Background()
	f := backendtest.New().Put(backend.TableUsers, ada)
	st := session.NewStore(f, nil)
	defer st.Close()
	if err := st.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	ch, cancel := st.Watch()
	defer cancel()

	f.Push(ctx, backend.EventSignedIn, &backend.Session{ID: "s1", UserID: "u1"})
	if u := recv(t, ch); u == nil || u.ID != "u1" {
		t.Fatalf("expected u1 after SIGNED_IN, got %+v", u)
	}

	// SignOut does not clear locally; the push does.
	if err := st.SignOut(ctx); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if f.SignOutCalls != 1 {
		t.Fatalf("expected backend sign-out call")
	}
	if st.User() == nil {
		t.Fatalf("identity cleared before SIGNED_OUT push")
	}
	f.Push(ctx, backend.EventSignedOut, nil)
	if u := recv(t, ch); u != nil {
		t.Fatalf("expected absent after SIGNED_OUT, got %+v", u)
	}
	if st.User() != nil {
		t.Fatalf("identity should be absent")
	}
}

func TestWatch_LatestWins(t *testing.T) {
	ctx := context.Background()
	bob := lms.User{ID: "u2", Role: lms.RoleStudent, FullName: "Bob"}
	f := backendtest.New().Put(backend.TableUsers, ada, bob)
	st := session.NewStore(f, nil)
	defer st.Close()
	if err := st.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	ch, cancel := st.Watch()
	defer cancel()

	f.Push(ctx, backend.EventSignedIn, &backend.Session{ID: "s1", UserID: "u1"})
	f.Push(ctx, backend.EventUserUpdated, &backend.Session{ID: "s1", UserID: "u2"})
	if u := recv(t, ch); u == nil || u.ID != "u2" {
		t.Fatalf("slow watcher should see latest identity, got %+v", u)
	}
}

func TestClose_Unsubscribes(t *testing.T) {
	f := backendtest.New()
	st := session.NewStore(f, nil)
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	ch, _ := st.Watch()
	st.Close()
	st.Close()
	if f.Subscribers() != 0 {
		t.Fatalf("subscription leaked")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("watch channel should be closed")
	}
	if err := st.Initialize(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
