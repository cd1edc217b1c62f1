package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/seed"
)

type UserImporter interface {
	ImportUsersCSV(ctx context.Context, r io.Reader) (seed.Result, error)
	UpsertUsers(ctx context.Context, rows []seed.UserRow) (seed.Result, error)
}

// ImportUsersHandler accepts a multipart file= (CSV), a text/csv body or a JSON array.
func ImportUsersHandler(im UserImporter, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			res seed.Result
			err error
		)
		ct := r.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(ct, "multipart/form-data"):
			f, _, ferr := r.FormFile("file")
			if ferr != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "file required")
				return
			}
			defer f.Close()
			res, err = im.ImportUsersCSV(r.Context(), f)
		case strings.HasPrefix(ct, "text/csv"):
			res, err = im.ImportUsersCSV(r.Context(), r.Body)
		default:
			var rows []seed.UserRow
			if derr := json.NewDecoder(r.Body).Decode(&rows); derr != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "expected JSON array, CSV body or multipart file")
				return
			}
			res, err = im.UpsertUsers(r.Context(), rows)
		}
		if err != nil {
			log.Warn("user import rejected", "error", err)
			writeError(w, http.StatusBadRequest, "import_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
