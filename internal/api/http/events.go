package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/pages"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

const eventIdentity = "identity"

type identityEvent struct {
	Present  bool      `json:"present"`
	User     *lms.User `json:"user,omitempty"`
	Nav      pages.Nav `json:"nav"`
	Redirect string    `json:"redirect,omitempty"`
}

func identityOf(u *lms.User) identityEvent {
	ev := identityEvent{Present: u != nil, User: u, Nav: pages.NavFor(u, "")}
	if u == nil {
		ev.Redirect = AppPrefix + "/login"
	}
	return ev
}

// EventsHandler streams the viewer's identity as server-sent events: the current
// value first, then every replacement. The stream ends once the identity is absent.
func EventsHandler(log *logger.Logger, heartbeat time.Duration) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		v := ViewerFrom(r.Context())
		if v == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no session")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		updates, cancel := v.Store.Watch()
		defer cancel()

		clientID := uuid.New()
		log := log.With("client_id", clientID, "session_id", v.SessionID)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		send := func(u *lms.User) bool {
			raw, err := json.Marshal(identityOf(u))
			if err != nil {
				log.Warn("marshal identity event", "error", err)
				return false
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventIdentity, raw); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}
		if !send(v.User()) {
			return
		}

		tick := time.NewTicker(heartbeat)
		defer tick.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Debug("event stream closed by client")
				return
			case <-tick.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case u, ok := <-updates:
				if !ok {
					return
				}
				if !send(u) || u == nil {
					return
				}
			}
		}
	}
}
