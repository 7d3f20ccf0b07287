package dbschema

import (
	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(&LLMConfig{})
}

// LLMConfig is the persisted form of an endpoint configuration.
type LLMConfig struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	OwnerID            string `gorm:"type:varchar(128);not null;index:idx_configs_owner"`
	Name               string `gorm:"type:varchar(128);not null"`
	APIURL             string `gorm:"type:varchar(512);not null"`
	APITokenEncrypted  string `gorm:"type:text"`
	ModelName          string `gorm:"type:varchar(128);not null"`
	Temperature        float64
	MaxTokens          int
	SystemPrompt       string `gorm:"type:text"`
	MaxHistoryMessages int
	RequestTimeoutMS   int
	IsDefault          bool  `gorm:"not null;default:false;index:idx_configs_owner_default"`
	Active             bool  `gorm:"not null;default:true"`
	CreatedAt          int64 `gorm:"not null"`
	UpdatedAt          int64 `gorm:"not null"`
}

// TableName overrides the default naming.
func (LLMConfig) TableName() string { return "localllm_configs" }

// EtoD converts the schema model to its domain representation.
func (c *LLMConfig) EtoD() *llmconfig.Config {
	if c == nil {
		return nil
	}
	return &llmconfig.Config{
		ID:                 c.ID,
		OwnerID:            c.OwnerID,
		Name:               c.Name,
		APIURL:             c.APIURL,
		APITokenEncrypted:  c.APITokenEncrypted,
		ModelName:          c.ModelName,
		Temperature:        c.Temperature,
		MaxTokens:          c.MaxTokens,
		SystemPrompt:       c.SystemPrompt,
		MaxHistoryMessages: c.MaxHistoryMessages,
		RequestTimeoutMS:   c.RequestTimeoutMS,
		IsDefault:          c.IsDefault,
		Active:             c.Active,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// NewSchemaLLMConfig converts a domain config to its schema representation.
func NewSchemaLLMConfig(cfg *llmconfig.Config) *LLMConfig {
	if cfg == nil {
		return nil
	}
	return &LLMConfig{
		ID:                 cfg.ID,
		OwnerID:            cfg.OwnerID,
		Name:               cfg.Name,
		APIURL:             cfg.APIURL,
		APITokenEncrypted:  cfg.APITokenEncrypted,
		ModelName:          cfg.ModelName,
		Temperature:        cfg.Temperature,
		MaxTokens:          cfg.MaxTokens,
		SystemPrompt:       cfg.SystemPrompt,
		MaxHistoryMessages: cfg.MaxHistoryMessages,
		RequestTimeoutMS:   cfg.RequestTimeoutMS,
		IsDefault:          cfg.IsDefault,
		Active:             cfg.Active,
		CreatedAt:          cfg.CreatedAt,
		UpdatedAt:          cfg.UpdatedAt,
	}
}
