package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mind-engage/engineering-lms/internal/db"
)

func openMem(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dsn := fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", time.Now().UnixNano())
	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestOpen_CreatesSchema(t *testing.T) {
	h := openMem(t)
	for _, table := range []string{"users", "courses", "modules", "mcq_questions", "coding_exercises", "user_progress", "auth_sessions", "event_log"} {
		var name string
		err := h.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	h := openMem(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, h, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO courses (id,title,created_at) VALUES ('c1','Go',1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var n int
	if err := h.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}

	if err := db.WithTx(ctx, h, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO courses (id,title,created_at) VALUES ('c1','Go',1)`)
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := h.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("expected 1 committed row, got %d (%v)", n, err)
	}
}

func TestParseDriver(t *testing.T) {
	cases := map[string]db.Driver{"": db.DriverSQLite, "sqlite3": db.DriverSQLite, "pgx": db.DriverPostgres, "Postgres": db.DriverPostgres}
	for in, want := range cases {
		got, err := db.ParseDriver(in)
		if err != nil || got != want {
			t.Fatalf("ParseDriver(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := db.ParseDriver("mysql"); err == nil {
		t.Fatalf("expected error for mysql")
	}
}
