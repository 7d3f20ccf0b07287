package dbschema

import (
	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(&Message{})
}

// Message is the persisted form of a single chat message.
type Message struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ConversationID int64  `gorm:"not null;index:idx_messages_conversation"`
	Role           string `gorm:"type:varchar(16);not null"`
	Content        string `gorm:"type:text;not null"`
	TokensUsed     *int
	CreatedAt      int64 `gorm:"not null;index:idx_messages_created"`
}

// TableName overrides the default naming.
func (Message) TableName() string { return "localllm_messages" }

// EtoD converts the schema model to its domain representation.
func (m *Message) EtoD() *conversation.Message {
	if m == nil {
		return nil
	}
	return &conversation.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		TokensUsed:     m.TokensUsed,
		CreatedAt:      m.CreatedAt,
	}
}

// NewSchemaMessage converts a domain message to its schema form.
func NewSchemaMessage(msg *conversation.Message) *Message {
	if msg == nil {
		return nil
	}
	return &Message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		CreatedAt:      msg.CreatedAt,
	}
}
