package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

type Repo struct {
	db     *sql.DB
	siteID string
}

func NewRepo(db *sql.DB, siteID string) *Repo {
	if siteID == "" {
		siteID = "local"
	}
	return &Repo{db: db, siteID: siteID}
}

// Append records typ for key with data marshalled as JSON.
func (r *Repo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), time.Now().Unix())
	return err
}

// ListByKey returns the newest events for key first.
func (r *Repo) ListByKey(ctx context.Context, key string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at
		   FROM event_log WHERE key=$1 ORDER BY seq DESC LIMIT $2`, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
