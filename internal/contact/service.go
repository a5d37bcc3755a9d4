package contact

import (
	"context"
	"errors"
	"strings"

	"flchat/internal/apperr"
	"flchat/internal/user"
)

type Store interface {
	IsContact(ctx context.Context, adderID, addedID int) (bool, error)
	AddContact(ctx context.Context, adderID, addedID int) error
	Contacts(ctx context.Context, adderID int) ([]user.User, error)
}

type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type Service struct {
	store Store
	users UserFinder
}

func NewService(store Store, users UserFinder) *Service {
	return &Service{store: store, users: users}
}

// AddContact records that adder knows the user behind email and returns
// adder's contact list. Contacts are one-way.
func (s *Service) AddContact(ctx context.Context, adder *user.User, email string) ([]user.User, error) {
	added, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.Internal(err)
	}
	if added.ID == adder.ID {
		return nil, apperr.Validation("cannot add yourself as a contact")
	}

	exists, err := s.IsContact(ctx, adder, added)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.store.AddContact(ctx, adder.ID, added.ID); err != nil {
			return nil, apperr.Internal(err)
		}
	}
	return s.Contacts(ctx, adder)
}

func (s *Service) IsContact(ctx context.Context, a, b *user.User) (bool, error) {
	ok, err := s.store.IsContact(ctx, a.ID, b.ID)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return ok, nil
}

func (s *Service) Contacts(ctx context.Context, u *user.User) ([]user.User, error) {
	users, err := s.store.Contacts(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}
