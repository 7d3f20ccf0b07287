package dbschema

import (
	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(&Conversation{})
}

// Conversation is the persisted form of a chat thread.
type Conversation struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	OwnerID   string `gorm:"type:varchar(128);not null;index:idx_conversations_owner"`
	ConfigID  int64  `gorm:"not null;index:idx_conversations_config"`
	Name      string `gorm:"type:varchar(256);not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt int64  `gorm:"not null"`
	UpdatedAt int64  `gorm:"not null;index:idx_conversations_updated"`
}

// TableName overrides the default naming.
func (Conversation) TableName() string { return "localllm_conversations" }

// EtoD converts the schema model to its domain representation.
func (c *Conversation) EtoD() *conversation.Conversation {
	if c == nil {
		return nil
	}
	return &conversation.Conversation{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		ConfigID:  c.ConfigID,
		Name:      c.Name,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewSchemaConversation converts a domain conversation to its schema form.
func NewSchemaConversation(conv *conversation.Conversation) *Conversation {
	if conv == nil {
		return nil
	}
	return &Conversation{
		ID:        conv.ID,
		OwnerID:   conv.OwnerID,
		ConfigID:  conv.ConfigID,
		Name:      conv.Name,
		Active:    conv.Active,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}
