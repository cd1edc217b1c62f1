// Package seed loads users and course content into the backend database.
package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/engineering-lms/internal/db"
	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

type UserRow struct {
	ID       string `yaml:"id" json:"id"`
	Email    string `yaml:"email" json:"email"`
	FullName string `yaml:"full_name" json:"full_name"`
	Role     string `yaml:"role" json:"role"`
	Password string `yaml:"password" json:"password,omitempty"`
}

type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Notifier is told about users whose row changed so live sessions re-read them.
type Notifier interface {
	NotifyUserUpdated(ctx context.Context, userID string)
}

type Importer struct {
	db     *sql.DB
	notify Notifier
	log    *logger.Logger
	cost   int
	now    func() time.Time
}

func NewImporter(h *sql.DB, notify Notifier, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{db: h, notify: notify, log: log.With("component", "Seed"), cost: 12, now: time.Now}
}

// WithBcryptCost is for tests and bulk loads where hashing time matters.
func (im *Importer) WithBcryptCost(cost int) *Importer {
	im.cost = cost
	return im
}

// ParseUsersCSV reads id,email,role with optional full_name and password columns.
func ParseUsersCSV(r io.Reader) ([]UserRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "email", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []UserRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, UserRow{
			ID:       col(rec, "id"),
			Email:    col(rec, "email"),
			FullName: col(rec, "full_name"),
			Role:     strings.ToLower(col(rec, "role")),
			Password: col(rec, "password"),
		})
	}
	return rows, nil
}

func (im *Importer) ImportUsersCSV(ctx context.Context, r io.Reader) (Result, error) {
	rows, err := ParseUsersCSV(r)
	if err != nil {
		return Result{}, fmt.Errorf("bad csv: %w", err)
	}
	return im.UpsertUsers(ctx, rows)
}

// UpsertUsers inserts or updates users in one transaction. New users need a password;
// existing users keep their hash when none is given. Updated users are announced
// after commit.
func (im *Importer) UpsertUsers(ctx context.Context, rows []UserRow) (Result, error) {
	var (
		res     Result
		changed []string
	)
	now := im.now().Unix()
	err := db.WithTx(ctx, im.db, func(tx *sql.Tx) error {
		for _, r := range rows {
			r.Email = strings.ToLower(strings.TrimSpace(r.Email))
			if r.ID == "" || r.Email == "" {
				return errors.New("id and email required")
			}
			if r.Role == "" {
				r.Role = string(lms.RoleStudent)
			}
			if !lms.Role(r.Role).Valid() {
				return errors.New("invalid role: " + r.Role)
			}
			var phash string
			if r.Password != "" {
				b, err := bcrypt.GenerateFromPassword([]byte(r.Password), im.cost)
				if err != nil {
					return err
				}
				phash = string(b)
			}

			var existing string
			err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id=$1 OR email=$2`, r.ID, r.Email).Scan(&existing)
			switch {
			case err == nil:
				if existing != r.ID {
					return fmt.Errorf("email %s belongs to user %s", r.Email, existing)
				}
				if phash != "" {
					_, err = tx.ExecContext(ctx, `UPDATE users SET email=$1, role=$2, full_name=$3, password_hash=$4 WHERE id=$5`,
						r.Email, r.Role, r.FullName, phash, r.ID)
				} else {
					_, err = tx.ExecContext(ctx, `UPDATE users SET email=$1, role=$2, full_name=$3 WHERE id=$4`,
						r.Email, r.Role, r.FullName, r.ID)
				}
				if err != nil {
					return err
				}
				res.Updated++
				changed = append(changed, r.ID)
			case errors.Is(err, sql.ErrNoRows):
				if phash == "" {
					return errors.New("password required for new user: " + r.Email)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO users (id, email, password_hash, role, full_name, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
					r.ID, r.Email, phash, r.Role, r.FullName, now); err != nil {
					return err
				}
				res.Inserted++
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if im.notify != nil {
		for _, id := range changed {
			im.notify.NotifyUserUpdated(ctx, id)
		}
	}
	im.log.Info("users upserted", "inserted", res.Inserted, "updated", res.Updated)
	return res, nil
}
