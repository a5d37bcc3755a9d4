package contact

import (
	"context"

	"flchat/internal/user"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) IsContact(ctx context.Context, adderID, addedID int) (bool, error) {
	var ok bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contacts WHERE adder_id = $1 AND added_id = $2)`,
		adderID, addedID).Scan(&ok)
	return ok, err
}

// AddContact inserts the adder -> added edge; an existing edge is left as is.
func (r *Repository) AddContact(ctx context.Context, adderID, addedID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (adder_id, added_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		adderID, addedID)
	return err
}

// Contacts lists the users adderID has added.
func (r *Repository) Contacts(ctx context.Context, adderID int) ([]user.User, error) {
	query := `
		SELECT u.id, u.email, u.phone, u.first_name, u.last_name, u.is_active, u.is_admin, u.created_at
		FROM contacts c
		JOIN users u ON u.id = c.added_id
		WHERE c.adder_id = $1
		ORDER BY u.email
	`
	users := []user.User{}
	if err := r.db.SelectContext(ctx, &users, query, adderID); err != nil {
		return nil, err
	}
	return users, nil
}
