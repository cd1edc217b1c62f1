package pages_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/backend/backendtest"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/pages"
	"github.com/mind-engage/engineering-lms/internal/quiz"
)

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func courses() []any {
	return []any{
		lms.Course{ID: "c1", Title: "Intro to Circuits", Description: "Ohm's law", CreatedAt: at(100)},
		lms.Course{ID: "c2", Title: "Thermodynamics", Description: "Heat and ENTROPY", CreatedAt: at(300)},
		lms.Course{ID: "c3", Title: "Go Concurrency", Description: "channels", CreatedAt: at(200)},
	}
}

func TestFilterCourses(t *testing.T) {
	cs := []lms.Course{
		{ID: "a", Title: "Intro to Circuits", Description: "Ohm's law"},
		{ID: "b", Title: "Thermodynamics", Description: "Heat and ENTROPY"},
	}
	cases := map[string][]string{
		"":        {"a", "b"},
		"circuit": {"a"},
		"CIRCUIT": {"a"},
		"entropy": {"b"},
		"o":       {"a", "b"},
		"quantum": {},
	}
	for term, want := range cases {
		got := pages.FilterCourses(cs, term)
		if len(got) != len(want) {
			t.Errorf("%q: got %d courses, want %d", term, len(got), len(want))
			continue
		}
		for i := range want {
			if got[i].ID != want[i] {
				t.Errorf("%q: got %s at %d, want %s", term, got[i].ID, i, want[i])
			}
		}
	}
}

func TestCourses_NewestFirstAndPlaceholder(t *testing.T) {
	ctx := context.Background()
	l := pages.NewLoader(backendtest.New().Put(backend.TableCourses, courses()...), nil)

	st := l.Courses(ctx, "")
	if st.Status != pages.StatusLoaded {
		t.Fatalf("status %s", st.Status)
	}
	got := st.Data.Courses
	if len(got) != 3 || got[0].ID != "c2" || got[1].ID != "c3" || got[2].ID != "c1" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if st.Data.Placeholder != "" {
		t.Fatalf("unexpected placeholder")
	}
	if got[0].Path != "/courses/c2" {
		t.Fatalf("bad path %q", got[0].Path)
	}

	st = l.Courses(ctx, "nothing matches")
	if len(st.Data.Courses) != 0 || st.Data.Placeholder != pages.NoCoursesFound {
		t.Fatalf("expected placeholder, got %+v", st.Data)
	}
}

func TestCourses_EmptySource(t *testing.T) {
	l := pages.NewLoader(backendtest.New(), nil)
	for _, q := range []string{"", "anything"} {
		st := l.Courses(context.Background(), q)
		if st.Status != pages.StatusLoaded || len(st.Data.Courses) != 0 || st.Data.Placeholder != pages.NoCoursesFound {
			t.Fatalf("q=%q: %+v", q, st)
		}
		if st.Data.Courses == nil {
			t.Fatalf("courses should encode as an empty list")
		}
	}
}

func TestFailedState(t *testing.T) {
	boom := errors.New("backend unavailable")
	f := backendtest.New().Put(backend.TableCourses, courses()...).Fail(backend.TableModules, boom)
	l := pages.NewLoader(f, nil)

	st := l.CourseDetails(context.Background(), "c1")
	if st.Status != pages.StatusFailed || !st.Retry || st.Data != nil {
		t.Fatalf("expected failed with retry, got %+v", st)
	}
	if !errors.Is(st.Err(), boom) {
		t.Fatalf("underlying error lost: %v", st.Err())
	}

	f.Fail(backend.TableModules, nil)
	if st := l.CourseDetails(context.Background(), "c1"); st.Status != pages.StatusLoaded {
		t.Fatalf("retry should load, got %+v", st)
	}
	if st := l.CourseDetails(context.Background(), "nope"); !errors.Is(st.Err(), backend.ErrNotFound) {
		t.Fatalf("missing course should fail with ErrNotFound, got %+v", st)
	}
}

func TestMissingParameterStaysLoading(t *testing.T) {
	f := backendtest.New()
	l := pages.NewLoader(f, nil)
	ctx := context.Background()
	if st := l.CourseDetails(ctx, ""); st.Status != pages.StatusLoading {
		t.Fatalf("course: %s", st.Status)
	}
	if st := l.ModuleView(ctx, "", nil); st.Status != pages.StatusLoading {
		t.Fatalf("module: %s", st.Status)
	}
	if st := l.Dashboard(ctx, nil); st.Status != pages.StatusLoading {
		t.Fatalf("dashboard: %s", st.Status)
	}
	if len(f.Queries) != 0 {
		t.Fatalf("no query expected, got %v", f.Queries)
	}
}

func TestCourseDetails_ModuleOrder(t *testing.T) {
	f := backendtest.New().Put(backend.TableCourses, courses()...).Put(backend.TableModules,
		lms.Module{ID: "m-c", CourseID: "c1", Title: "Third", OrderIndex: 2},
		lms.Module{ID: "m-a", CourseID: "c1", Title: "First", OrderIndex: 0},
		lms.Module{ID: "m-x", CourseID: "c2", Title: "Elsewhere", OrderIndex: 0},
		lms.Module{ID: "m-b", CourseID: "c1", Title: "Second", OrderIndex: 1},
	)
	st := pages.NewLoader(f, nil).CourseDetails(context.Background(), "c1")
	if st.Status != pages.StatusLoaded {
		t.Fatalf("status %s: %s", st.Status, st.Error)
	}
	mods := st.Data.Modules
	want := []struct{ id, label string }{{"m-a", "Module 1"}, {"m-b", "Module 2"}, {"m-c", "Module 3"}}
	if len(mods) != len(want) {
		t.Fatalf("got %d modules", len(mods))
	}
	for i, w := range want {
		if mods[i].ID != w.id || mods[i].Label != w.label || mods[i].Path != "/modules/"+w.id {
			t.Fatalf("module %d = %+v, want %+v", i, mods[i], w)
		}
	}
	if st.Data.Course.Title != "Intro to Circuits" {
		t.Fatalf("course not loaded: %+v", st.Data.Course)
	}
}

func TestDashboard(t *testing.T) {
	u := &lms.User{ID: "u1", FullName: "Ada", Role: lms.RoleStudent}
	f := backendtest.New().Put(backend.TableCourses, courses()...).Put(backend.TableUserProgress,
		lms.UserProgress{ID: "p1", UserID: "u1", ModuleID: "m1", Completed: true},
		lms.UserProgress{ID: "p2", UserID: "u1", ModuleID: "m2"},
		lms.UserProgress{ID: "p3", UserID: "u1", ModuleID: "m3"},
		lms.UserProgress{ID: "p4", UserID: "other", ModuleID: "m1", Completed: true},
	)
	st := pages.NewLoader(f, nil).Dashboard(context.Background(), u)
	if st.Status != pages.StatusLoaded {
		t.Fatalf("status %s: %s", st.Status, st.Error)
	}
	d := st.Data
	if d.Welcome != "Welcome, Ada!" || d.EnrolledCourses != 3 || d.CompletedModules != 1 || d.InProgress != 2 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	if d.RecentCourses[0].ID != "c2" {
		t.Fatalf("recent courses not newest first: %+v", d.RecentCourses)
	}
}

func TestDashboard_RecentCoursesCapped(t *testing.T) {
	f := backendtest.New()
	for i := 0; i < 9; i++ {
		f.Put(backend.TableCourses, lms.Course{ID: string(rune('a' + i)), CreatedAt: at(int64(i))})
	}
	st := pages.NewLoader(f, nil).Dashboard(context.Background(), &lms.User{ID: "u1"})
	if st.Data.EnrolledCourses != 9 || len(st.Data.RecentCourses) != 6 || st.Data.RecentCourses[0].ID != "i" {
		t.Fatalf("unexpected dashboard: %+v", st.Data)
	}
}

func TestAdminDashboard_Totals(t *testing.T) {
	f := backendtest.New().Put(backend.TableCourses, courses()...).Put(backend.TableUsers,
		lms.User{ID: "u1", Role: lms.RoleStudent, CreatedAt: at(1)},
		lms.User{ID: "u2", Role: lms.RoleStudent, CreatedAt: at(2)},
		lms.User{ID: "u3", Role: lms.RoleInstructor, CreatedAt: at(3)},
		lms.User{ID: "u4", Role: lms.RoleAdmin, CreatedAt: at(4)},
		lms.User{ID: "u5", Role: lms.RoleStudent, CreatedAt: at(5)},
		lms.User{ID: "u6", Role: lms.RoleStudent, CreatedAt: at(6)},
	)
	st := pages.NewLoader(f, nil).AdminDashboard(context.Background())
	if st.Status != pages.StatusLoaded {
		t.Fatalf("status %s: %s", st.Status, st.Error)
	}
	s := st.Data.Stats
	if s.TotalStudents != 4 || s.TotalInstructors != 1 || s.TotalCourses != 3 || s.ActiveUsers != 6 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.TotalStudents+s.TotalInstructors > s.ActiveUsers {
		t.Fatalf("students + instructors exceed users")
	}
	if len(st.Data.RecentUsers) != 5 || st.Data.RecentUsers[0].ID != "u6" {
		t.Fatalf("recent users: %+v", st.Data.RecentUsers)
	}
}

func TestModuleView(t *testing.T) {
	f := backendtest.New().
		Put(backend.TableModules, lms.Module{ID: "m1", CourseID: "c1", Title: "Arithmetic"}).
		Put(backend.TableMCQQuestions, lms.MCQQuestion{
			ID: "q1", ModuleID: "m1", Question: "1+2?", Options: []string{"2", "3", "4"},
			CorrectAnswer: 1, Explanation: "One plus two is three.",
		}).
		Put(backend.TableCodingExercises,
			lms.CodingExercise{ID: "e1", ModuleID: "m1", Title: "Sum", InitialCode: "def add(a, b):", Language: "python"},
			lms.CodingExercise{ID: "e2", ModuleID: "m1", Title: "Product", InitialCode: "def mul(a, b):", Language: "python"},
		)
	l := pages.NewLoader(f, nil)
	ctx := context.Background()

	st := l.ModuleView(ctx, "m1", nil)
	if st.Status != pages.StatusLoaded {
		t.Fatalf("status %s: %s", st.Status, st.Error)
	}
	v := st.Data
	if v.Module.Title != "Arithmetic" || len(v.Questions) != 1 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Questions[0].Answer.Status != quiz.Unanswered {
		t.Fatalf("questions start unanswered")
	}
	if v.Exercise == nil || v.Exercise.ID != "e1" || v.Exercise.Buffer.Code != "def add(a, b):" {
		t.Fatalf("first exercise should be current with initial code: %+v", v.Exercise)
	}

	state := quiz.NewModuleState()
	state.Board.Select(lms.MCQQuestion{ID: "q1", CorrectAnswer: 1, Explanation: "One plus two is three."}, 0)
	state.Edit("e1", "def add(a, b): return a + b")
	v = l.ModuleView(ctx, "m1", state).Data
	if a := v.Questions[0].Answer; a.Status != quiz.Incorrect || a.Explanation != "One plus two is three." {
		t.Fatalf("answer not overlaid: %+v", a)
	}
	if v.Exercise.Buffer.Code != "def add(a, b): return a + b" {
		t.Fatalf("buffer not overlaid: %+v", v.Exercise.Buffer)
	}
}

func TestNav(t *testing.T) {
	if n := pages.NavFor(nil, "/login"); len(n.Links) != 0 || n.SignOut != "" {
		t.Fatalf("signed-out nav should have no links: %+v", n)
	}
	n := pages.NavFor(&lms.User{FullName: "Sam", Role: lms.RoleStudent}, "/courses")
	if len(n.Links) != 2 || !n.Links[1].Active || n.Links[0].Active {
		t.Fatalf("student nav: %+v", n)
	}
	n = pages.NavFor(&lms.User{FullName: "Root", Role: lms.RoleAdmin}, "/admin")
	if len(n.Links) != 3 || n.Links[2].Path != "/admin" || !n.Links[2].Active {
		t.Fatalf("admin nav: %+v", n)
	}
}
