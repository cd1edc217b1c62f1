package sqlbackend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/engineering-lms/internal/backend"
)

type colKind int

const (
	kindText colKind = iota
	kindInt
	kindBool
	kindJSON // TEXT column holding a JSON document
	kindTime // unix seconds
)

type column struct {
	name string
	kind colKind
}

type tableSpec struct {
	cols []column
}

func (t tableSpec) has(name string) bool {
	for _, c := range t.cols {
		if c.name == name {
			return true
		}
	}
	return false
}

// Only these columns are exposed; credentials on users never leave the backend.
var tables = map[backend.Table]tableSpec{
	backend.TableUsers: {cols: []column{
		{"id", kindText}, {"role", kindText}, {"full_name", kindText}, {"created_at", kindTime},
	}},
	backend.TableCourses: {cols: []column{
		{"id", kindText}, {"title", kindText}, {"description", kindText},
		{"instructor_id", kindText}, {"created_at", kindTime},
	}},
	backend.TableModules: {cols: []column{
		{"id", kindText}, {"course_id", kindText}, {"title", kindText},
		{"order_index", kindInt}, {"created_at", kindTime},
	}},
	backend.TableMCQQuestions: {cols: []column{
		{"id", kindText}, {"module_id", kindText}, {"question", kindText},
		{"options", kindJSON}, {"correct_answer", kindInt}, {"explanation", kindText},
		{"created_at", kindTime},
	}},
	backend.TableCodingExercises: {cols: []column{
		{"id", kindText}, {"module_id", kindText}, {"title", kindText},
		{"description", kindText}, {"initial_code", kindText}, {"test_cases", kindJSON},
		{"language", kindText}, {"created_at", kindTime},
	}},
	backend.TableUserProgress: {cols: []column{
		{"id", kindText}, {"user_id", kindText}, {"module_id", kindText},
		{"mcq_scores", kindJSON}, {"coding_submissions", kindJSON},
		{"completed", kindBool}, {"created_at", kindTime}, {"updated_at", kindTime},
	}},
}

func buildSelect(q backend.Query, limit int) (tableSpec, string, []any, error) {
	spec, ok := tables[q.Table]
	if !ok {
		return tableSpec{}, "", nil, fmt.Errorf("%w: %q", backend.ErrUnknownTable, q.Table)
	}
	names := make([]string, len(spec.cols))
	for i, c := range spec.cols {
		names[i] = c.name
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(names, ","))
	b.WriteString(" FROM ")
	b.WriteString(string(q.Table))

	args := make([]any, 0, len(q.Filters)+1)
	for i, f := range q.Filters {
		if !spec.has(f.Column) {
			return tableSpec{}, "", nil, fmt.Errorf("backend: unknown column %s.%s", q.Table, f.Column)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		b.WriteString(f.Column + "=$" + strconv.Itoa(len(args)))
	}
	if q.Order != nil {
		if !spec.has(q.Order.Column) {
			return tableSpec{}, "", nil, fmt.Errorf("backend: unknown column %s.%s", q.Table, q.Order.Column)
		}
		dir := "DESC"
		if q.Order.Ascending {
			dir = "ASC"
		}
		b.WriteString(" ORDER BY " + q.Order.Column + " " + dir)
	}
	if limit > 0 {
		args = append(args, limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return spec, b.String(), args, nil
}

func (s *Service) selectRows(ctx context.Context, q backend.Query, limit int) ([]map[string]any, error) {
	spec, stmt, args, err := buildSelect(q, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("backend: query %s: %w", q.Table, err)
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		row, err := scanRow(rows, spec)
		if err != nil {
			return nil, fmt.Errorf("backend: scan %s: %w", q.Table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("backend: query %s: %w", q.Table, err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows, spec tableSpec) (map[string]any, error) {
	dest := make([]any, len(spec.cols))
	for i, c := range spec.cols {
		switch c.kind {
		case kindText, kindJSON:
			dest[i] = new(sql.NullString)
		case kindInt, kindTime:
			dest[i] = new(sql.NullInt64)
		case kindBool:
			dest[i] = new(sql.NullBool)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(spec.cols))
	for i, c := range spec.cols {
		switch c.kind {
		case kindText:
			row[c.name] = dest[i].(*sql.NullString).String
		case kindInt:
			row[c.name] = dest[i].(*sql.NullInt64).Int64
		case kindBool:
			row[c.name] = dest[i].(*sql.NullBool).Bool
		case kindTime:
			v := dest[i].(*sql.NullInt64)
			if v.Valid {
				row[c.name] = time.Unix(v.Int64, 0).UTC()
			} else {
				row[c.name] = nil
			}
		case kindJSON:
			v := dest[i].(*sql.NullString)
			if v.Valid && json.Valid([]byte(v.String)) {
				row[c.name] = json.RawMessage(v.String)
			} else {
				row[c.name] = nil
			}
		}
	}
	return row, nil
}

func (s *Service) queryTable(ctx context.Context, q backend.Query) ([]byte, error) {
	rows, err := s.selectRows(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rows)
}

func (s *Service) queryOne(ctx context.Context, q backend.Query) ([]byte, error) {
	rows, err := s.selectRows(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, q)
	}
	return json.Marshal(rows[0])
}
