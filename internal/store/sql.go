package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// SQLStore is an implementation of UserStore over database/sql.  The same
// queries serve SQLite and PostgreSQL; only placeholders and schema differ.
// Creation order is the seq column; skills are stored as a JSON array.
type SQLStore struct {
	db     *sql.DB
	now    func() time.Time
	rebind func(string) string
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]user.User, error) {
	const q = `SELECT id, first_name, last_name, email, skills, registration_date FROM users ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, s.rebind(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []user.User{}
	for rows.Next() {
		u, err := rowToUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns (nil, nil) when the id is unknown.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	const q = `SELECT id, first_name, last_name, email, skills, registration_date FROM users WHERE id = ?`

	u, err := rowToUser(s.db.QueryRowContext(ctx, s.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, draft user.Draft) (user.User, error) {
	u := newRecord(draft, s.now())
	row, err := userToRow(u)
	if err != nil {
		return user.User{}, err
	}

	const q = `INSERT INTO users (id, first_name, last_name, email, skills, registration_date) VALUES (?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, s.rebind(q), row.ID, row.FirstName, row.LastName, row.Email, row.Skills, row.RegistrationDate)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return user.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	const sel = `SELECT id, first_name, last_name, email, skills, registration_date FROM users WHERE id = ?`

	stored, err := rowToUser(tx.QueryRowContext(ctx, s.rebind(sel), u.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}

	updated := mergeUpdate(stored, u)
	row, err := userToRow(updated)
	if err != nil {
		return user.User{}, err
	}

	const upd = `UPDATE users SET first_name = ?, last_name = ?, email = ?, skills = ?, registration_date = ? WHERE id = ?`

	if _, err := tx.ExecContext(ctx, s.rebind(upd), row.FirstName, row.LastName, row.Email, row.Skills, row.RegistrationDate, row.ID); err != nil {
		return user.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) (user.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return user.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	const sel = `SELECT id, first_name, last_name, email, skills, registration_date FROM users WHERE id = ?`

	removed, err := rowToUser(tx.QueryRowContext(ctx, s.rebind(sel), id))
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id); err != nil {
		return user.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return user.User{}, err
	}
	return removed, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

type userRow struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	Skills           string
	RegistrationDate string
}

func rowToUser(row scannable) (user.User, error) {
	var r userRow

	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Email, &r.Skills, &r.RegistrationDate)
	if err != nil {
		return user.User{}, err
	}

	u := user.User{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
	}
	if err := json.Unmarshal([]byte(r.Skills), &u.Skills); err != nil {
		return user.User{}, fmt.Errorf("decode skills of %s: %w", r.ID, err)
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
	u.RegistrationDate, err = time.Parse(time.RFC3339Nano, r.RegistrationDate)
	if err != nil {
		return user.User{}, fmt.Errorf("decode registration date of %s: %w", r.ID, err)
	}
	return u, nil
}

func userToRow(u user.User) (userRow, error) {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return userRow{}, err
	}

	return userRow{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		Skills:           string(data),
		RegistrationDate: u.RegistrationDate.Format(time.RFC3339Nano),
	}, nil
}

// questionMarks leaves ? placeholders alone (SQLite).
func questionMarks(q string) string { return q }

// dollarPlaceholders rewrites ? placeholders to $1, $2, ... (PostgreSQL).
func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
