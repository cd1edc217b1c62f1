// Package http exposes the portal over HTTP: auth endpoints, guarded page view
// models, module interactions and the identity event stream.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mind-engage/engineering-lms/internal/guard"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/quiz"
	"github.com/mind-engage/engineering-lms/internal/rbac"
	"github.com/mind-engage/engineering-lms/internal/session"
)

type Deps struct {
	Accounts Accounts
	Sessions *session.Manager
	Guard    *guard.Guard
	Quiz     *quiz.Service
	Users    UserImporter
	Log      *logger.Logger
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error

	RegistrationEnabled bool
	SecureCookies       bool
	// RequestTimeout bounds every route except the event stream.
	RequestTimeout time.Duration
	Heartbeat      time.Duration
}

// Mount registers every portal route on r.
func Mount(r chi.Router, d Deps) {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	if d.Guard == nil {
		d.Guard = guard.New(nil)
	}
	if d.Quiz == nil {
		d.Quiz = quiz.NewService(nil)
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	log = log.With("component", "HTTP")

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	identify := Identify(d.Accounts, d.Sessions, log)

	r.With(identify).Get(AppPrefix+"/events", EventsHandler(log, d.Heartbeat))

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(d.RequestTimeout), identify)

		if d.RegistrationEnabled {
			pr.Post("/auth/register", RegisterHandler(d.Accounts, log, d.SecureCookies))
		}
		pr.Post("/auth/login", LoginHandler(d.Accounts, log, d.SecureCookies))
		pr.Post("/auth/refresh", RefreshHandler(d.Accounts, log, d.SecureCookies))
		pr.Post("/auth/logout", LogoutHandler(log, d.SecureCookies))

		pr.Group(func(mr chi.Router) {
			mr.Use(RequireUser)
			mr.With(rbac.Require(rbac.PermQuizAnswer)).
				Post(AppPrefix+"/modules/{moduleId}/questions/{questionId}/answer", AnswerHandler(d.Quiz, log))
			mr.With(rbac.Require(rbac.PermExercise)).
				Put(AppPrefix+"/modules/{moduleId}/exercises/{exerciseId}/code", CodeHandler(d.Quiz, log))
			mr.With(rbac.Require(rbac.PermExercise)).
				Post(AppPrefix+"/modules/{moduleId}/exercises/{exerciseId}/submit", SubmitHandler(d.Quiz, log))
			if d.Users != nil {
				mr.With(rbac.Require(rbac.PermUsersImport)).
					Post("/admin/users/import", ImportUsersHandler(d.Users, log))
			}
		})

		render := PageHandler(d.Guard, d.Quiz, log, d.RegistrationEnabled)
		pr.Get(AppPrefix, render)
		pr.Get(AppPrefix+"/*", render)
	})
}
