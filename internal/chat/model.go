package chat

import (
	"fmt"
	"time"
)

// Kind tells personal (two-party) chats from group chats.
type Kind string

const (
	KindPersonal Kind = "personal"
	KindGroup    Kind = "group"
)

const (
	personalPrefix = "pc"
	groupPrefix    = "mpc"
)

type Conversation struct {
	ID        int       `db:"id" json:"id"`
	Kind      Kind      `db:"kind" json:"kind"`
	Title     string    `db:"title" json:"title"`
	CreatorID int       `db:"creator_id" json:"creatorId"`
	PairKey   *string   `db:"pair_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversationId"`
	SenderID       int       `db:"sender_id" json:"senderId"`
	SenderName     string    `db:"sender_name" json:"senderName"` // Fetched via JOIN
	Body           string    `db:"body" json:"body"`
	SentAt         time.Time `db:"sent_at" json:"sentAt"`
}

// pairKey identifies the unordered pair of a personal chat.
func pairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
