package seed_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/engineering-lms/internal/db"
	"github.com/mind-engage/engineering-lms/internal/seed"
)

type recorder struct{ ids []string }

func (r *recorder) NotifyUserUpdated(_ context.Context, id string) { r.ids = append(r.ids, id) }

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, fmt.Sprintf("file:seed_%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

const usersCSV = `id,email,full_name,role,password
u1,Ada@Example.com,Ada Lovelace,ADMIN,secret1
u2,bob@example.com,Bob,student,secret2
`

func TestParseUsersCSV(t *testing.T) {
	rows, err := seed.ParseUsersCSV(strings.NewReader(usersCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 || rows[0].Role != "admin" || rows[0].FullName != "Ada Lovelace" || rows[1].Password != "secret2" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if _, err := seed.ParseUsersCSV(strings.NewReader("id,full_name\nu1,x\n")); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestUpsertUsers(t *testing.T) {
	h := openDB(t)
	rec := &recorder{}
	im := seed.NewImporter(h, rec, nil).WithBcryptCost(bcrypt.MinCost)
	ctx := context.Background()

	res, err := im.ImportUsersCSV(ctx, strings.NewReader(usersCSV))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 0 || len(rec.ids) != 0 {
		t.Fatalf("unexpected result %+v, notified %v", res, rec.ids)
	}

	// role change without password keeps the old hash
	res, err = im.UpsertUsers(ctx, []seed.UserRow{{ID: "u2", Email: "bob@example.com", FullName: "Bob B", Role: "instructor"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Updated != 1 || len(rec.ids) != 1 || rec.ids[0] != "u2" {
		t.Fatalf("expected u2 updated and announced, got %+v %v", res, rec.ids)
	}
	var role, hash, email string
	if err := h.QueryRow(`SELECT role, password_hash FROM users WHERE id='u2'`).Scan(&role, &hash); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if role != "instructor" || bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret2")) != nil {
		t.Fatalf("role %q or password not preserved", role)
	}
	if err := h.QueryRow(`SELECT email FROM users WHERE id='u1'`).Scan(&email); err != nil || email != "ada@example.com" {
		t.Fatalf("email not normalized: %q %v", email, err)
	}

	bad := [][]seed.UserRow{
		{{ID: "u3", Email: "c@example.com", Role: "student"}},                       // no password
		{{ID: "u3", Email: "c@example.com", Role: "teacher", Password: "secret3"}},  // bad role
		{{ID: "u9", Email: "bob@example.com", Role: "student", Password: "x12345"}}, // email taken
	}
	for i, rows := range bad {
		if _, err := im.UpsertUsers(ctx, rows); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
	var n int
	_ = h.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	if n != 2 {
		t.Fatalf("failed imports must roll back, have %d users", n)
	}
}

const contentYAML = `
courses:
  - id: c1
    title: Go Systems
    description: Concurrency in Go
    instructor_id: u1
    modules:
      - title: Basics
        questions:
          - id: q1
            question: "1+2?"
            options: ["2", "3", "4"]
            correct_answer: 1
            explanation: One plus two is three.
        exercises:
          - title: Sum
            initial_code: "func add(a, b int) int {}"
            language: go
            test_cases:
              - input: "1 2"
                expected_output: "3"
      - title: Channels
`

func TestApplyContent_Idempotent(t *testing.T) {
	h := openDB(t)
	im := seed.NewImporter(h, nil, nil)
	ctx := context.Background()

	c, err := seed.LoadContent(strings.NewReader(contentYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := im.ApplyContent(ctx, c)
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if res.Courses != 1 || res.Modules != 2 || res.Questions != 1 || res.Exercises != 1 {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	var modules, exercises int
	_ = h.QueryRow(`SELECT COUNT(*) FROM modules WHERE course_id='c1'`).Scan(&modules)
	_ = h.QueryRow(`SELECT COUNT(*) FROM coding_exercises`).Scan(&exercises)
	if modules != 2 || exercises != 1 {
		t.Fatalf("reseeding duplicated rows: modules=%d exercises=%d", modules, exercises)
	}
	var title string
	if err := h.QueryRow(`SELECT title FROM modules WHERE course_id='c1' AND order_index=1`).Scan(&title); err != nil || title != "Channels" {
		t.Fatalf("order_index not taken from file order: %q %v", title, err)
	}
	var tcs string
	_ = h.QueryRow(`SELECT test_cases FROM coding_exercises`).Scan(&tcs)
	if tcs != `[{"input":"1 2","expected_output":"3"}]` {
		t.Fatalf("unexpected test cases json %s", tcs)
	}
}

func TestLoadContent_RejectsUnknownKeys(t *testing.T) {
	if _, err := seed.LoadContent(strings.NewReader("courses:\n  - titel: typo\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
