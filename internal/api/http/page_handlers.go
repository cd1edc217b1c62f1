package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/engineering-lms/internal/guard"
	"github.com/mind-engage/engineering-lms/internal/pages"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/quiz"
)

// AppPrefix is where the guarded page routes are mounted.
const AppPrefix = "/app"

type formView struct {
	Action    string     `json:"action"`
	Fields    []string   `json:"fields"`
	Alternate pages.Link `json:"alternate"`
}

type pageResponse struct {
	Page   guard.Page        `json:"page"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
	Nav    pages.Nav         `json:"nav"`
	Form   *formView         `json:"form,omitempty"`
	State  any               `json:"state,omitempty"`
}

type redirectResponse struct {
	From     string `json:"from"`
	Redirect string `json:"redirect"`
}

// PageHandler routes every GET under AppPrefix through the guard and renders
// the chosen page's view model.
func PageHandler(g *guard.Guard, qs *quiz.Service, log *logger.Logger, registration bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := ViewerFrom(r.Context())
		user := v.User()
		path := strings.TrimPrefix(r.URL.Path, AppPrefix)

		d := g.Decide(path, guard.IdentityOf(user))
		if d.IsRedirect() {
			to := AppPrefix + d.Redirect
			w.Header().Set("Location", to)
			writeJSON(w, http.StatusSeeOther, redirectResponse{From: AppPrefix + d.Path, Redirect: to})
			return
		}

		resp := pageResponse{
			Page:   d.Page,
			Path:   AppPrefix + d.Path,
			Params: d.Params,
			Nav:    pages.NavFor(user, d.Path),
		}
		ctx := r.Context()
		var loader *pages.Loader
		if user != nil {
			loader = pages.NewLoader(v.Store.Client(), log)
		}

		switch d.Page {
		case guard.PageNotFound:
			writeError(w, http.StatusNotFound, "not_found", "no page at "+d.Path)
			return
		case guard.PageLogin:
			resp.Form = &formView{
				Action: "/auth/login",
				Fields: []string{"email", "password"},
			}
			if registration {
				resp.Form.Alternate = pages.Link{Label: "Create an account", Path: AppPrefix + "/register"}
			}
		case guard.PageRegister:
			if !registration {
				writeError(w, http.StatusNotFound, "not_found", "registration is disabled")
				return
			}
			resp.Form = &formView{
				Action:    "/auth/register",
				Fields:    []string{"full_name", "email", "password"},
				Alternate: pages.Link{Label: "Sign in", Path: AppPrefix + "/login"},
			}
		case guard.PageDashboard:
			resp.State = loader.Dashboard(ctx, user)
		case guard.PageCourses:
			resp.State = loader.Courses(ctx, r.URL.Query().Get("q"))
		case guard.PageCourseDetails:
			resp.State = loader.CourseDetails(ctx, d.Params["courseId"])
		case guard.PageModuleView:
			moduleID := d.Params["moduleId"]
			// a module load starts every question and buffer over
			st, err := qs.Begin(ctx, quiz.Key{SessionID: v.SessionID, ModuleID: moduleID})
			if err != nil {
				log.Warn("quiz state reset failed", "module_id", moduleID, "error", err)
				st = nil
			}
			resp.State = loader.ModuleView(ctx, moduleID, st)
		case guard.PageAdmin:
			resp.State = loader.AdminDashboard(ctx)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
