package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"flchat/internal/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
	ErrPhoneTaken = errors.New("phone already registered")
)

var columns = []string{
	"id", "email", "phone", "first_name", "last_name",
	"is_active", "is_admin", "password_hash", "created_at",
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	query, args, err := db.PSQL.Insert("users").
		Columns("email", "phone", "first_name", "last_name", "is_active", "is_admin", "password_hash").
		Values(u.Email, u.Phone, u.FirstName, u.LastName, u.IsActive, u.IsAdmin, u.PasswordHash).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *Repository) GetUserByID(ctx context.Context, id int) (*User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *Repository) getOne(ctx context.Context, where sq.Eq) (*User, error) {
	query, args, err := db.PSQL.Select(columns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	u := &User{}
	if err := r.db.GetContext(ctx, u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	query, args, err := db.PSQL.Select(columns...).From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser writes the given column values and returns the updated row.
func (r *Repository) UpdateUser(ctx context.Context, id int, fields map[string]interface{}) (*User, error) {
	if len(fields) == 0 {
		return r.GetUserByID(ctx, id)
	}
	query, args, err := db.PSQL.Update("users").
		SetMap(fields).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	u := &User{}
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translate(err)
	}
	return u, nil
}

// DeleteUser removes the user; participants, messages, contacts and
// created conversations go with it through ON DELETE CASCADE.
func (r *Repository) DeleteUser(ctx context.Context, id int) error {
	query, args, err := db.PSQL.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case db.IsUniqueViolation(err, "users_email_key"):
		return ErrEmailTaken
	case db.IsUniqueViolation(err, "users_phone_key"):
		return ErrPhoneTaken
	default:
		return fmt.Errorf("users: %w", err)
	}
}
