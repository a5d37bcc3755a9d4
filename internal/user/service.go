package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flchat/internal/apperr"
	"flchat/internal/auth"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int, fields map[string]interface{}) (*User, error)
	DeleteUser(ctx context.Context, id int) error
}

var errInvalidCredentials = apperr.Authentication("invalid credentials")

type Service struct {
	repo       Store
	tokens     *auth.Tokens
	minEntropy float64
	hashCost   int
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(repo Store, tokens *auth.Tokens, minEntropy float64, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		tokens:     tokens,
		minEntropy: minEntropy,
		hashCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("invalid email")
	}
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		return nil, apperr.Validation("first name is required")
	}
	if req.Password != req.PasswordConfirm {
		return nil, apperr.Validation("password does not match")
	}
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("user already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u := &User{
		Email:        email,
		Phone:        blankToNil(req.Phone),
		FirstName:    firstName,
		LastName:     blankToNil(req.LastName),
		IsActive:     true,
		PasswordHash: string(hash),
	}
	if _, err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*auth.TokenPair, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperr.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !u.IsActive {
		return nil, apperr.Authentication("account is disabled")
	}

	pair, err := s.tokens.IssuePair(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return pair, nil
}

// Refresh issues a new access token for the refresh token's owner.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	id, err := s.tokens.ParseRefresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	u, err := s.Authenticate(ctx, id)
	if err != nil {
		return "", err
	}
	access, err := s.tokens.IssueAccess(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return "", apperr.Internal(err)
	}
	return access, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// Authenticate loads the active user behind a validated token identity.
func (s *Service) Authenticate(ctx context.Context, id auth.Identity) (*User, error) {
	u, err := s.repo.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Authentication("user no longer exists")
		}
		return nil, apperr.Internal(err)
	}
	if !u.IsActive {
		return nil, apperr.Authentication("account is disabled")
	}
	return u, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// target resolves whom actor is acting on: themself, or the user behind
// email when actor is an admin.
func (s *Service) target(ctx context.Context, actor *User, email string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || email == actor.Email {
		return actor, nil
	}
	if !actor.IsAdmin {
		return nil, apperr.Permission("insufficient permission")
	}
	return s.GetByEmail(ctx, email)
}

func (s *Service) Update(ctx context.Context, actor *User, req *UpdateRequest) (*User, error) {
	u, err := s.target(ctx, actor, req.Email)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Phone != nil {
		fields["phone"] = blankToNil(req.Phone)
	}
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			return nil, apperr.Validation("first name cannot be empty")
		}
		fields["first_name"] = name
	}
	if req.LastName != nil {
		fields["last_name"] = blankToNil(req.LastName)
	}
	if req.Password != nil {
		if err := s.checkPassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.hashCost)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		fields["password_hash"] = string(hash)
	}

	updated, err := s.repo.UpdateUser(ctx, u.ID, fields)
	if err != nil {
		return nil, storeError(err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor *User, email string) (*User, error) {
	u, err := s.target(ctx, actor, email)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteUser(ctx, u.ID); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

func (s *Service) checkPassword(password string) error {
	if err := passwordvalidator.Validate(password, s.minEntropy); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return apperr.Validation("user already exists")
	case errors.Is(err, ErrPhoneTaken):
		return apperr.Validation("phone number already in use")
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("user does not exist")
	default:
		return apperr.Internal(fmt.Errorf("user store: %w", err))
	}
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
