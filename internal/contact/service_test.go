package contact

import (
	"context"
	"errors"
	"sort"
	"testing"

	"flchat/internal/apperr"
	"flchat/internal/user"
)

type edge struct{ from, to int }

type memStore struct {
	users   map[int]user.User
	edges   map[edge]bool
	inserts int
	fail    error
}

func (m *memStore) IsContact(_ context.Context, a, b int) (bool, error) {
	if m.fail != nil {
		return false, m.fail
	}
	return m.edges[edge{a, b}], nil
}

func (m *memStore) AddContact(_ context.Context, a, b int) error {
	m.inserts++
	m.edges[edge{a, b}] = true
	return nil
}

func (m *memStore) Contacts(_ context.Context, a int) ([]user.User, error) {
	out := []user.User{}
	for e := range m.edges {
		if e.from == a {
			out = append(out, m.users[e.to])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memUsers map[string]*user.User

func (u memUsers) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	if found, ok := u[email]; ok {
		return found, nil
	}
	return nil, user.ErrNotFound
}

var (
	alice = &user.User{ID: 1, Email: "alice@x.com", FirstName: "alice"}
	bob   = &user.User{ID: 2, Email: "bob@x.com", FirstName: "bob"}
	carol = &user.User{ID: 3, Email: "carol@x.com", FirstName: "carol"}
)

func newTestService() (*Service, *memStore) {
	store := &memStore{
		users: map[int]user.User{1: *alice, 2: *bob, 3: *carol},
		edges: map[edge]bool{},
	}
	return NewService(store, memUsers{
		"alice@x.com": alice, "bob@x.com": bob, "carol@x.com": carol,
	}), store
}

func TestAddContactIsAsymmetric(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	contacts, err := s.AddContact(ctx, alice, "Bob@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].ID != bob.ID {
		t.Fatalf("contacts = %+v", contacts)
	}

	if ok, _ := s.IsContact(ctx, alice, bob); !ok {
		t.Error("isContact(alice, bob) = false")
	}
	if ok, _ := s.IsContact(ctx, bob, alice); ok {
		t.Error("isContact(bob, alice) = true, contacts must be one-way")
	}
	if theirs, _ := s.Contacts(ctx, bob); len(theirs) != 0 {
		t.Errorf("bob's contacts = %+v", theirs)
	}
}

func TestAddContactTwiceIsNoop(t *testing.T) {
	s, store := newTestService()
	ctx := context.Background()

	s.AddContact(ctx, alice, "bob@x.com")
	contacts, err := s.AddContact(ctx, alice, "bob@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if store.inserts != 1 {
		t.Fatalf("inserts = %d, want 1", store.inserts)
	}
	if len(contacts) != 1 {
		t.Fatalf("contacts = %d, want 1", len(contacts))
	}

	contacts, _ = s.AddContact(ctx, alice, "carol@x.com")
	if len(contacts) != 2 || contacts[0].ID != bob.ID || contacts[1].ID != carol.ID {
		t.Fatalf("contacts = %+v", contacts)
	}
}

func TestAddContactErrors(t *testing.T) {
	s, store := newTestService()
	ctx := context.Background()

	if _, err := s.AddContact(ctx, alice, "ghost@x.com"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown email: err = %v", err)
	}
	if _, err := s.AddContact(ctx, alice, "alice@x.com"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("self: err = %v", err)
	}

	store.fail = errors.New("db gone")
	if _, err := s.AddContact(ctx, alice, "bob@x.com"); !apperr.Is(err, apperr.KindInternal) {
		t.Errorf("store failure: err = %v", err)
	}
}
