package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/quiz"
)

type answerReq struct {
	Choice *int `json:"choice"`
}

type codeReq struct {
	Code *string `json:"code"`
}

func quizKey(r *http.Request) quiz.Key {
	return quiz.Key{SessionID: ViewerFrom(r.Context()).SessionID, ModuleID: chi.URLParam(r, "moduleId")}
}

func quizError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, quiz.ErrInvalidChoice):
		writeError(w, http.StatusBadRequest, "invalid_choice", err.Error())
	default:
		log.Error("quiz request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "request failed")
	}
}

func AnswerHandler(qs *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerReq
		if err := decodeJSON(w, r, &req); err != nil || req.Choice == nil {
			writeError(w, http.StatusBadRequest, "bad_request", `expected {"choice": n}`)
			return
		}
		v := ViewerFrom(r.Context())
		a, err := qs.Answer(r.Context(), v.Store.Client(), quizKey(r), chi.URLParam(r, "questionId"), *req.Choice)
		if err != nil {
			quizError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func CodeHandler(qs *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeReq
		if err := decodeJSON(w, r, &req); err != nil || req.Code == nil {
			writeError(w, http.StatusBadRequest, "bad_request", `expected {"code": "..."}`)
			return
		}
		v := ViewerFrom(r.Context())
		b, err := qs.Edit(r.Context(), v.Store.Client(), quizKey(r), chi.URLParam(r, "exerciseId"), *req.Code)
		if err != nil {
			quizError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func SubmitHandler(qs *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := ViewerFrom(r.Context())
		sub, err := qs.Submit(r.Context(), v.Store.Client(), quizKey(r), chi.URLParam(r, "exerciseId"))
		if err != nil {
			quizError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
