// Package conversation manages owner-scoped chat threads and their ordered
// message history.
package conversation

import "context"

// DefaultName is the placeholder a conversation carries until its first
// exchange completes.
const DefaultName = "New Conversation"

// Listing and naming bounds.
const (
	MaxListPageSize = 50
	NamePrefixLen   = 50
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation is an ordered thread of messages bound to one configuration.
type Conversation struct {
	ID        int64
	OwnerID   string
	ConfigID  int64
	Name      string
	Active    bool
	CreatedAt int64
	UpdatedAt int64
}

// Message is immutable once created and ordered by (CreatedAt, ID) ascending.
type Message struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	TokensUsed     *int
	CreatedAt      int64
}

// Summary is a conversation enriched with listing metadata.
type Summary struct {
	Conversation
	MessageCount int64
	Preview      string
}

// Repository is the persistence boundary for conversation rows.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByID(ctx context.Context, id int64, ownerID string) (*Conversation, error)
	// FindAll returns conversations ordered by updated_at descending.
	FindAll(ctx context.Context, ownerID string, activeOnly bool, limit int) ([]*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	// Delete removes the conversation row and all of its messages in one
	// transaction.
	Delete(ctx context.Context, id int64, ownerID string) error
}

// MessageRepository is the persistence boundary for messages. Messages are
// scoped through their conversation; callers verify ownership first.
type MessageRepository interface {
	Insert(ctx context.Context, msg *Message) error
	// FindByConversation returns messages in chronological order; a
	// non-positive limit returns all of them.
	FindByConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	// FindRecent returns up to limit most recent messages, reordered
	// chronologically.
	FindRecent(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	DeleteByConversation(ctx context.Context, conversationID int64) error
	CountByConversation(ctx context.Context, conversationID int64) (int64, error)
}
