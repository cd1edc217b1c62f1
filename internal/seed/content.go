package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/engineering-lms/internal/db"
)

// Content is the YAML document loaded by `lmsctl seed`.
type Content struct {
	Users   []UserRow   `yaml:"users"`
	Courses []CourseDoc `yaml:"courses"`
}

type CourseDoc struct {
	ID           string      `yaml:"id"`
	Title        string      `yaml:"title"`
	Description  string      `yaml:"description"`
	InstructorID string      `yaml:"instructor_id"`
	Modules      []ModuleDoc `yaml:"modules"`
}

// ModuleDoc order in the file is its order_index.
type ModuleDoc struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	Questions []QuestionDoc `yaml:"questions"`
	Exercises []ExerciseDoc `yaml:"exercises"`
}

type QuestionDoc struct {
	ID            string   `yaml:"id"`
	Question      string   `yaml:"question"`
	Options       []string `yaml:"options"`
	CorrectAnswer int      `yaml:"correct_answer"`
	Explanation   string   `yaml:"explanation"`
}

type ExerciseDoc struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	InitialCode string        `yaml:"initial_code"`
	Language    string        `yaml:"language"`
	TestCases   []TestCaseDoc `yaml:"test_cases"`
}

type TestCaseDoc struct {
	Input          string `yaml:"input" json:"input"`
	ExpectedOutput string `yaml:"expected_output" json:"expected_output"`
}

type ContentResult struct {
	Users     Result `json:"users"`
	Courses   int    `json:"courses"`
	Modules   int    `json:"modules"`
	Questions int    `json:"questions"`
	Exercises int    `json:"exercises"`
}

// LoadContent decodes a content file, rejecting unknown keys.
func LoadContent(r io.Reader) (*Content, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Content
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("content: %w", err)
	}
	return &c, nil
}

// stableID derives an id from its parent and title so reseeding updates in place.
func stableID(id, kind, parent, title string) string {
	if id != "" {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(kind+"/"+parent+"/"+title)).String()
}

// ApplyContent upserts users and then every course tree in one transaction.
func (im *Importer) ApplyContent(ctx context.Context, c *Content) (ContentResult, error) {
	var out ContentResult
	if len(c.Users) > 0 {
		res, err := im.UpsertUsers(ctx, c.Users)
		if err != nil {
			return out, fmt.Errorf("users: %w", err)
		}
		out.Users = res
	}
	now := im.now().Unix()
	err := db.WithTx(ctx, im.db, func(tx *sql.Tx) error {
		for _, cd := range c.Courses {
			if cd.Title == "" {
				return errors.New("course title required")
			}
			cid := stableID(cd.ID, "course", "", cd.Title)
			if _, err := tx.ExecContext(ctx, `
INSERT INTO courses (id, title, description, instructor_id, created_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET title=excluded.title, description=excluded.description, instructor_id=excluded.instructor_id`,
				cid, cd.Title, cd.Description, cd.InstructorID, now); err != nil {
				return fmt.Errorf("course %q: %w", cd.Title, err)
			}
			out.Courses++
			for i, md := range cd.Modules {
				mid := stableID(md.ID, "module", cid, md.Title)
				if _, err := tx.ExecContext(ctx, `
INSERT INTO modules (id, course_id, title, order_index, created_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET course_id=excluded.course_id, title=excluded.title, order_index=excluded.order_index`,
					mid, cid, md.Title, i, now); err != nil {
					return fmt.Errorf("module %q: %w", md.Title, err)
				}
				out.Modules++
				if err := upsertQuestions(ctx, tx, mid, md.Questions, now); err != nil {
					return err
				}
				out.Questions += len(md.Questions)
				if err := upsertExercises(ctx, tx, mid, md.Exercises, now); err != nil {
					return err
				}
				out.Exercises += len(md.Exercises)
			}
		}
		return nil
	})
	if err != nil {
		return out, err
	}
	im.log.Info("content applied", "courses", out.Courses, "modules", out.Modules,
		"questions", out.Questions, "exercises", out.Exercises)
	return out, nil
}

func upsertQuestions(ctx context.Context, tx *sql.Tx, moduleID string, qs []QuestionDoc, now int64) error {
	for _, q := range qs {
		if q.Question == "" || len(q.Options) == 0 {
			return fmt.Errorf("module %s: question text and options required", moduleID)
		}
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO mcq_questions (id, module_id, question, options, correct_answer, explanation, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET module_id=excluded.module_id, question=excluded.question, options=excluded.options,
  correct_answer=excluded.correct_answer, explanation=excluded.explanation`,
			stableID(q.ID, "question", moduleID, q.Question), moduleID, q.Question, string(opts),
			q.CorrectAnswer, q.Explanation, now); err != nil {
			return fmt.Errorf("question %q: %w", q.Question, err)
		}
	}
	return nil
}

func upsertExercises(ctx context.Context, tx *sql.Tx, moduleID string, exs []ExerciseDoc, now int64) error {
	for _, e := range exs {
		if e.Title == "" {
			return fmt.Errorf("module %s: exercise title required", moduleID)
		}
		lang := e.Language
		if lang == "" {
			lang = "javascript"
		}
		tcs := e.TestCases
		if tcs == nil {
			tcs = []TestCaseDoc{}
		}
		raw, err := json.Marshal(tcs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO coding_exercises (id, module_id, title, description, initial_code, test_cases, language, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET module_id=excluded.module_id, title=excluded.title, description=excluded.description,
  initial_code=excluded.initial_code, test_cases=excluded.test_cases, language=excluded.language`,
			stableID(e.ID, "exercise", moduleID, e.Title), moduleID, e.Title, e.Description, e.InitialCode,
			string(raw), lang, now); err != nil {
			return fmt.Errorf("exercise %q: %w", e.Title, err)
		}
	}
	return nil
}
