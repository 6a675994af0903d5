package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListActive(ctx context.Context, offset, limit int) ([]*User, error)
	TouchLastSeen(ctx context.Context, id int64) error
}

// ConversationRepository defines persistence operations for conversations.
// All pair arguments are unordered; implementations canonicalize them.
type ConversationRepository interface {
	// FindOrCreate returns the single conversation for the pair, creating
	// it if absent. Concurrent calls for the same pair yield one row.
	FindOrCreate(ctx context.Context, userA, userB int64) (*Conversation, error)
	// GetByPair returns the conversation for the pair, or nil when none exists.
	GetByPair(ctx context.Context, userA, userB int64) (*Conversation, error)
	// ListForUser returns the user's conversations, most recently updated first.
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Append inserts the message and bumps the conversation's updated_at
	// in the same transaction.
	Append(ctx context.Context, m *Message) error
	// ListForConversation returns up to limit messages in chronological
	// append order.
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	// LatestForConversation returns the newest message, or nil when the
	// conversation is empty.
	LatestForConversation(ctx context.Context, conversationID int64) (*Message, error)
	// MarkSeenByAuthor flags every unseen message by the author as seen
	// and reports how many rows changed. The flag never reverts.
	MarkSeenByAuthor(ctx context.Context, conversationID, authorID int64) (int64, error)
	// CountUnseenFrom counts unseen messages authored by the given user.
	CountUnseenFrom(ctx context.Context, conversationID, authorID int64) (int, error)
}
