package pages

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/quiz"
)

const (
	recentCourses   = 6
	recentUsers     = 5
	NoCoursesFound  = "No courses found"
	noCoursesHint   = "Try adjusting your search terms"
	welcomeTemplate = "Welcome, %s!"
)

type CourseCard struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

func cardsOf(cs []lms.Course, limit int) []CourseCard {
	if limit > 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	out := make([]CourseCard, 0, len(cs))
	for _, c := range cs {
		out = append(out, CourseCard{ID: c.ID, Title: c.Title, Description: c.Description, Path: "/courses/" + c.ID})
	}
	return out
}

type DashboardView struct {
	Welcome          string       `json:"welcome"`
	EnrolledCourses  int          `json:"enrolled_courses"`
	CompletedModules int          `json:"completed_modules"`
	InProgress       int          `json:"in_progress"`
	RecentCourses    []CourseCard `json:"recent_courses"`
}

type CoursesView struct {
	Query       string       `json:"query"`
	Courses     []CourseCard `json:"courses"`
	Placeholder string       `json:"placeholder,omitempty"`
	Hint        string       `json:"hint,omitempty"`
}

type ModuleItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

type CourseDetailsView struct {
	Course  lms.Course   `json:"course"`
	Modules []ModuleItem `json:"modules"`
}

// QuestionView hides the correct index; the answer reveals what the learner may see.
type QuestionView struct {
	ID       string      `json:"id"`
	Question string      `json:"question"`
	Options  []string    `json:"options"`
	Answer   quiz.Answer `json:"answer"`
}

type ExerciseView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Buffer      quiz.Buffer `json:"buffer"`
}

type ModuleView struct {
	Module    lms.Module     `json:"module"`
	Questions []QuestionView `json:"questions"`
	Exercise  *ExerciseView  `json:"exercise,omitempty"`
}

type AdminStats struct {
	TotalStudents    int `json:"total_students"`
	TotalInstructors int `json:"total_instructors"`
	TotalCourses     int `json:"total_courses"`
	ActiveUsers      int `json:"active_users"`
}

type AdminView struct {
	Stats         AdminStats   `json:"stats"`
	RecentUsers   []lms.User   `json:"recent_users"`
	RecentCourses []CourseCard `json:"recent_courses"`
}

// Loader reads page data through one agent's backend client.
type Loader struct {
	c   backend.Client
	log *logger.Logger
}

func NewLoader(c backend.Client, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{c: c, log: log.With("component", "Pages")}
}

func (l *Loader) fail(page string, err error) {
	l.log.Warn("page fetch failed", "page", page, "error", err)
}

func (l *Loader) Dashboard(ctx context.Context, u *lms.User) State[DashboardView] {
	if u == nil {
		return Loading[DashboardView]()
	}
	var (
		courses  []lms.Course
		progress []lms.UserProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = backend.Select[lms.Course](gctx, l.c, backend.From(backend.TableCourses).OrderBy("created_at", false))
		return err
	})
	g.Go(func() (err error) {
		progress, err = backend.Select[lms.UserProgress](gctx, l.c, backend.From(backend.TableUserProgress).Eq("user_id", u.ID))
		return err
	})
	if err := g.Wait(); err != nil {
		l.fail("dashboard", err)
		return Failed[DashboardView](err)
	}
	v := DashboardView{
		Welcome:         fmt.Sprintf(welcomeTemplate, u.FullName),
		EnrolledCourses: len(courses),
		RecentCourses:   cardsOf(courses, recentCourses),
	}
	for _, p := range progress {
		if p.Completed {
			v.CompletedModules++
		} else {
			v.InProgress++
		}
	}
	return Loaded(v)
}

func (l *Loader) Courses(ctx context.Context, query string) State[CoursesView] {
	courses, err := backend.Select[lms.Course](ctx, l.c, backend.From(backend.TableCourses).OrderBy("created_at", false))
	if err != nil {
		l.fail("courses", err)
		return Failed[CoursesView](err)
	}
	v := CoursesView{Query: query, Courses: cardsOf(FilterCourses(courses, query), 0)}
	if len(v.Courses) == 0 {
		v.Placeholder = NoCoursesFound
		v.Hint = noCoursesHint
	}
	return Loaded(v)
}

// FilterCourses keeps courses whose title or description contains term, ignoring case.
// An empty term keeps everything.
func FilterCourses(courses []lms.Course, term string) []lms.Course {
	term = strings.ToLower(term)
	out := make([]lms.Course, 0, len(courses))
	for _, c := range courses {
		if strings.Contains(strings.ToLower(c.Title), term) || strings.Contains(strings.ToLower(c.Description), term) {
			out = append(out, c)
		}
	}
	return out
}

func (l *Loader) CourseDetails(ctx context.Context, courseID string) State[CourseDetailsView] {
	if courseID == "" {
		return Loading[CourseDetailsView]()
	}
	var (
		course  lms.Course
		modules []lms.Module
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		course, err = backend.SelectOne[lms.Course](gctx, l.c, backend.From(backend.TableCourses).Eq("id", courseID))
		return err
	})
	g.Go(func() (err error) {
		modules, err = backend.Select[lms.Module](gctx, l.c,
			backend.From(backend.TableModules).Eq("course_id", courseID).OrderBy("order_index", true))
		return err
	})
	if err := g.Wait(); err != nil {
		l.fail("course_details", err)
		return Failed[CourseDetailsView](err)
	}
	v := CourseDetailsView{Course: course, Modules: make([]ModuleItem, 0, len(modules))}
	for _, m := range modules {
		v.Modules = append(v.Modules, ModuleItem{
			ID:    m.ID,
			Title: m.Title,
			Label: fmt.Sprintf("Module %d", m.Number()),
			Path:  "/modules/" + m.ID,
		})
	}
	return Loaded(v)
}

// ModuleView loads a module with its questions and first coding exercise,
// overlaying the agent's interaction state st (nil for a fresh page).
func (l *Loader) ModuleView(ctx context.Context, moduleID string, st *quiz.ModuleState) State[ModuleView] {
	if moduleID == "" {
		return Loading[ModuleView]()
	}
	if st == nil {
		st = quiz.NewModuleState()
	}
	var (
		module    lms.Module
		questions []lms.MCQQuestion
		exercises []lms.CodingExercise
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		module, err = backend.SelectOne[lms.Module](gctx, l.c, backend.From(backend.TableModules).Eq("id", moduleID))
		return err
	})
	g.Go(func() (err error) {
		questions, err = backend.Select[lms.MCQQuestion](gctx, l.c, backend.From(backend.TableMCQQuestions).Eq("module_id", moduleID))
		return err
	})
	g.Go(func() (err error) {
		exercises, err = backend.Select[lms.CodingExercise](gctx, l.c, backend.From(backend.TableCodingExercises).Eq("module_id", moduleID))
		return err
	})
	if err := g.Wait(); err != nil {
		l.fail("module_view", err)
		return Failed[ModuleView](err)
	}
	v := ModuleView{Module: module, Questions: make([]QuestionView, 0, len(questions))}
	for _, q := range questions {
		v.Questions = append(v.Questions, QuestionView{
			ID:       q.ID,
			Question: q.Question,
			Options:  q.Options,
			Answer:   st.Board.Get(q.ID),
		})
	}
	if len(exercises) > 0 {
		ex := exercises[0]
		v.Exercise = &ExerciseView{
			ID:          ex.ID,
			Title:       ex.Title,
			Description: ex.Description,
			Buffer:      st.BufferFor(ex),
		}
	}
	return Loaded(v)
}

func (l *Loader) AdminDashboard(ctx context.Context) State[AdminView] {
	var (
		users   []lms.User
		courses []lms.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = backend.Select[lms.User](gctx, l.c, backend.From(backend.TableUsers).OrderBy("created_at", false))
		return err
	})
	g.Go(func() (err error) {
		courses, err = backend.Select[lms.Course](gctx, l.c, backend.From(backend.TableCourses).OrderBy("created_at", false))
		return err
	})
	if err := g.Wait(); err != nil {
		l.fail("admin", err)
		return Failed[AdminView](err)
	}
	v := AdminView{
		Stats:         Totals(users, courses),
		RecentUsers:   users,
		RecentCourses: cardsOf(courses, recentCourses),
	}
	if len(v.RecentUsers) > recentUsers {
		v.RecentUsers = v.RecentUsers[:recentUsers]
	}
	return Loaded(v)
}

// Totals derives the admin counters from the fetched lists. Active users is every user.
func Totals(users []lms.User, courses []lms.Course) AdminStats {
	s := AdminStats{TotalCourses: len(courses), ActiveUsers: len(users)}
	for _, u := range users {
		switch u.Role {
		case lms.RoleStudent:
			s.TotalStudents++
		case lms.RoleInstructor:
			s.TotalInstructors++
		}
	}
	return s
}
