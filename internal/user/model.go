package user

import "time"

type User struct {
	ID           int       `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     *string   `db:"last_name" json:"lastName,omitempty"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	IsAdmin      bool      `db:"is_admin" json:"isAdmin"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type RegisterRequest struct {
	Email           string  `json:"email"`
	Phone           *string `json:"phone"`
	FirstName       string  `json:"firstName"`
	LastName        *string `json:"lastName"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateRequest changes only the fields that are set. Email selects
// another user to update and requires admin.
type UpdateRequest struct {
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Password  *string `json:"password"`
}
