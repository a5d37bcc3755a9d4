package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"flchat/internal/apperr"
	"flchat/internal/user"
)

// Store is the persistence the chat rules run on; *Repository implements it.
type Store interface {
	FindPersonal(ctx context.Context, a, b int) (*Conversation, error)
	GetConversation(ctx context.Context, id int) (*Conversation, error)
	GetConversationByTitle(ctx context.Context, title string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	ListForUser(ctx context.Context, userID int, kind Kind) ([]Conversation, error)
	CreateConversation(ctx context.Context, c *Conversation, participantIDs []int) (*Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	Participants(ctx context.Context, conversationID int) ([]user.User, error)
	CreateMessage(ctx context.Context, m *Message) (*Message, error)
	Messages(ctx context.Context, conversationID int) ([]Message, error)
}

// UserFinder resolves message destinations and invitees by email.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type Service struct {
	store Store
	users UserFinder
	now   func() time.Time
}

func NewService(store Store, users UserFinder) *Service {
	return &Service{
		store: store,
		users: users,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("conversation does not exist")
	}
	return apperr.Internal(err)
}

func (s *Service) findUser(ctx context.Context, email string) (*user.User, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// StartPersonalChat returns the personal chat between initiator and
// target, creating it on first use. Repeated calls, concurrent ones
// included, yield the same conversation.
func (s *Service) StartPersonalChat(ctx context.Context, initiator, target *user.User) (*Conversation, error) {
	if initiator.ID == target.ID {
		return nil, apperr.Validation("cannot start a personal chat with yourself")
	}

	c, err := s.store.FindPersonal(ctx, initiator.ID, target.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	key := pairKey(initiator.ID, target.ID)
	c = &Conversation{
		Kind:      KindPersonal,
		Title:     fmt.Sprintf("%s-%s to %s", personalPrefix, initiator.FirstName, target.FirstName),
		CreatorID: initiator.ID,
		PairKey:   &key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.store.CreateConversation(ctx, c, []int{initiator.ID, target.ID})
	if errors.Is(err, ErrPairExists) {
		c, err = s.store.FindPersonal(ctx, initiator.ID, target.ID)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("load concurrently created chat: %w", err))
		}
		return c, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return created, nil
}

// CreateGroupChat creates a multi-person chat owned by initiator.
func (s *Service) CreateGroupChat(ctx context.Context, initiator *user.User, name string, targets []*user.User) (*Conversation, error) {
	title := fmt.Sprintf("%s-%s", groupPrefix, initiator.FirstName)
	if name = strings.TrimSpace(name); name != "" {
		title += " " + name
	}

	ids := []int{initiator.ID}
	seen := map[int]bool{initiator.ID: true}
	for _, t := range targets {
		if !seen[t.ID] {
			seen[t.ID] = true
			ids = append(ids, t.ID)
		}
	}

	now := s.now()
	c, err := s.store.CreateConversation(ctx, &Conversation{
		Kind:      KindGroup,
		Title:     title,
		CreatorID: initiator.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return c, nil
}

// JoinOrGetConversation loads an existing conversation by id.
func (s *Service) JoinOrGetConversation(ctx context.Context, id int) (*Conversation, error) {
	// ids are int4 in the database; anything outside that range cannot exist
	if id <= 0 || id > math.MaxInt32 {
		return nil, apperr.NotFound("conversation does not exist")
	}
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}

// StartMultipersonChat returns conversation id when id is non-zero and
// creates a new group chat otherwise.
func (s *Service) StartMultipersonChat(ctx context.Context, initiator *user.User, id int, name string, targets []*user.User) (*Conversation, error) {
	if id != 0 {
		return s.JoinOrGetConversation(ctx, id)
	}
	return s.CreateGroupChat(ctx, initiator, name, targets)
}

// AddUserToConversation adds u to c. Adding an existing participant is
// a no-op that reports false.
func (s *Service) AddUserToConversation(ctx context.Context, c *Conversation, u *user.User) (bool, error) {
	added, err := s.store.AddParticipant(ctx, c.ID, u.ID)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return added, nil
}

// AddUserToGroup lets a conversation's creator add the user behind email.
// Personal chats are never widened: a fresh group chat holding actor and
// the user is created instead, in one transaction.
func (s *Service) AddUserToGroup(ctx context.Context, actor *user.User, conversationID int, email string) (*Conversation, error) {
	c, err := s.JoinOrGetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != actor.ID {
		return nil, apperr.Permission("you are not the creator")
	}
	u, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if c.Kind == KindPersonal {
		return s.CreateGroupChat(ctx, actor, "", []*user.User{u})
	}
	if _, err := s.AddUserToConversation(ctx, c, u); err != nil {
		return nil, err
	}
	return c, nil
}

// SendMessage posts body to c on behalf of sender.
func (s *Service) SendMessage(ctx context.Context, sender *user.User, c *Conversation, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperr.Validation("message cannot be empty")
	}
	ok, err := s.store.IsParticipant(ctx, c.ID, sender.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.Permission("you are not a participant of this conversation")
	}

	m, err := s.store.CreateMessage(ctx, &Message{
		ConversationID: c.ID,
		SenderID:       sender.ID,
		SenderName:     sender.FirstName,
		Body:           body,
		SentAt:         s.now(),
	})
	if err != nil {
		return nil, notFoundOr(err)
	}
	c.UpdatedAt = m.SentAt
	return m, nil
}

// SendToDestination routes a message by destination: an email address
// goes to the personal chat with that user, a number to that conversation.
func (s *Service) SendToDestination(ctx context.Context, sender *user.User, destination, body string) (*Conversation, *Message, error) {
	destination = strings.TrimSpace(destination)

	var c *Conversation
	switch {
	case strings.Contains(destination, "@"):
		target, err := s.findUser(ctx, destination)
		if err != nil {
			return nil, nil, err
		}
		if c, err = s.StartPersonalChat(ctx, sender, target); err != nil {
			return nil, nil, err
		}
	case isNumeric(destination):
		id, err := strconv.ParseInt(destination, 10, 32)
		if errors.Is(err, strconv.ErrRange) {
			return nil, nil, apperr.NotFound("conversation does not exist")
		}
		if err != nil {
			return nil, nil, apperr.Validation("invalid conversation id")
		}
		if c, err = s.JoinOrGetConversation(ctx, int(id)); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, apperr.Validation("destination must be an email address or a conversation id")
	}

	m, err := s.SendMessage(ctx, sender, c, body)
	if err != nil {
		return nil, nil, err
	}
	return c, m, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// canView reports whether viewer may read conversation id.
func (s *Service) canView(ctx context.Context, viewer *user.User, id int) error {
	if _, err := s.JoinOrGetConversation(ctx, id); err != nil {
		return err
	}
	if viewer.IsAdmin {
		return nil
	}
	ok, err := s.store.IsParticipant(ctx, id, viewer.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Permission("you are not a participant of this conversation")
	}
	return nil
}

func (s *Service) Messages(ctx context.Context, viewer *user.User, conversationID int) ([]Message, error) {
	if err := s.canView(ctx, viewer, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return msgs, nil
}

func (s *Service) Participants(ctx context.Context, viewer *user.User, conversationID int) ([]user.User, error) {
	if err := s.canView(ctx, viewer, conversationID); err != nil {
		return nil, err
	}
	users, err := s.store.Participants(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// ConversationsFor lists u's conversations; an empty kind means all.
func (s *Service) ConversationsFor(ctx context.Context, u *user.User, kind Kind) ([]Conversation, error) {
	convs, err := s.store.ListForUser(ctx, u.ID, kind)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return convs, nil
}

func (s *Service) All(ctx context.Context) ([]Conversation, error) {
	convs, err := s.store.ListConversations(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return convs, nil
}

func (s *Service) ByTitle(ctx context.Context, title string) (*Conversation, error) {
	c, err := s.store.GetConversationByTitle(ctx, title)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}
