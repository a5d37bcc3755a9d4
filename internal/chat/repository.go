package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flchat/internal/db"
	"flchat/internal/user"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("conversation not found")
	// ErrPairExists means a concurrent caller created the personal chat first.
	ErrPairExists = errors.New("personal chat already exists")
)

var conversationColumns = []string{
	"c.id", "c.kind", "c.title", "c.creator_id", "c.pair_key", "c.created_at", "c.updated_at",
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) *Repository {
	return &Repository{db: conn}
}

func selectConversations() sq.SelectBuilder {
	return db.PSQL.Select(conversationColumns...).From("conversations c")
}

func (r *Repository) getConversation(ctx context.Context, b sq.SelectBuilder) (*Conversation, error) {
	query, args, err := b.Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	c := &Conversation{}
	if err := r.db.GetContext(ctx, c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) listConversations(ctx context.Context, b sq.SelectBuilder) ([]Conversation, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	convs := []Conversation{}
	if err := r.db.SelectContext(ctx, &convs, query, args...); err != nil {
		return nil, err
	}
	return convs, nil
}

// FindPersonal returns the personal chat both users participate in.
func (r *Repository) FindPersonal(ctx context.Context, a, b int) (*Conversation, error) {
	return r.getConversation(ctx, selectConversations().
		Join("participants p1 ON p1.conversation_id = c.id AND p1.user_id = ?", a).
		Join("participants p2 ON p2.conversation_id = c.id AND p2.user_id = ?", b).
		Where(sq.Eq{"c.kind": KindPersonal}).
		OrderBy("c.id"))
}

func (r *Repository) GetConversation(ctx context.Context, id int) (*Conversation, error) {
	return r.getConversation(ctx, selectConversations().Where(sq.Eq{"c.id": id}))
}

func (r *Repository) GetConversationByTitle(ctx context.Context, title string) (*Conversation, error) {
	return r.getConversation(ctx, selectConversations().Where(sq.Eq{"c.title": title}).OrderBy("c.id"))
}

func (r *Repository) ListConversations(ctx context.Context) ([]Conversation, error) {
	return r.listConversations(ctx, selectConversations().OrderBy("c.id"))
}

// ListForUser returns the conversations userID participates in, most
// recently active first. An empty kind matches both kinds.
func (r *Repository) ListForUser(ctx context.Context, userID int, kind Kind) ([]Conversation, error) {
	b := selectConversations().
		Join("participants p ON p.conversation_id = c.id").
		Where(sq.Eq{"p.user_id": userID})
	if kind != "" {
		b = b.Where(sq.Eq{"c.kind": kind})
	}
	return r.listConversations(ctx, b.OrderBy("c.updated_at DESC", "c.id DESC"))
}

// CreateConversation inserts c and its initial participants atomically.
// For personal chats a conflicting pair key yields ErrPairExists.
func (r *Repository) CreateConversation(ctx context.Context, c *Conversation, participantIDs []int) (*Conversation, error) {
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		insert := db.PSQL.Insert("conversations").
			Columns("kind", "title", "creator_id", "pair_key", "created_at", "updated_at").
			Values(c.Kind, c.Title, c.CreatorID, c.PairKey, c.CreatedAt, c.UpdatedAt)
		if c.PairKey != nil {
			insert = insert.Suffix("ON CONFLICT (pair_key) DO NOTHING RETURNING id")
		} else {
			insert = insert.Suffix("RETURNING id")
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&c.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPairExists
			}
			return fmt.Errorf("insert conversation: %w", err)
		}

		members := db.PSQL.Insert("participants").Columns("conversation_id", "user_id")
		for _, id := range participantIDs {
			members = members.Values(c.ID, id)
		}
		query, args, err = members.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddParticipant reports whether userID was newly added.
func (r *Repository) AddParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		conversationID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repository) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var ok bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *Repository) Participants(ctx context.Context, conversationID int) ([]user.User, error) {
	query := `
		SELECT u.id, u.email, u.phone, u.first_name, u.last_name, u.is_active, u.is_admin, u.created_at
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY p.joined_at, u.id
	`
	users := []user.User{}
	if err := r.db.SelectContext(ctx, &users, query, conversationID); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateMessage stores m and bumps the conversation's updated_at to
// m.SentAt in the same transaction.
func (r *Repository) CreateMessage(ctx context.Context, m *Message) (*Message, error) {
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO messages (conversation_id, sender_id, body, sent_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			m.ConversationID, m.SenderID, m.Body, m.SentAt).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = $1 WHERE id = $2`, m.SentAt, m.ConversationID)
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) Messages(ctx context.Context, conversationID int) ([]Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, u.first_name AS sender_name, m.body, m.sent_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.sent_at, m.id
	`
	messages := []Message{}
	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, err
	}
	return messages, nil
}
