// Package llmconfig holds the owner-scoped connection profiles describing
// how to reach an OpenAI-compatible chat-completion endpoint.
package llmconfig

import "context"

// DefaultSystemPrompt is applied when a configuration is created without one.
const DefaultSystemPrompt = "You are a helpful AI assistant. Help users with their tasks, answer questions, and provide insights. Keep responses clear, concise, and professional."

// Validation bounds.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 128
	MaxMaxTokens   = 32768
)

// Config is a named, owner-scoped profile for a remote LLM endpoint.
// APITokenEncrypted holds vault ciphertext and is never serialized outward.
type Config struct {
	ID                 int64
	OwnerID            string
	Name               string
	APIURL             string
	APITokenEncrypted  string
	ModelName          string
	Temperature        float64
	MaxTokens          int
	SystemPrompt       string
	MaxHistoryMessages int
	RequestTimeoutMS   int
	IsDefault          bool
	Active             bool
	CreatedAt          int64
	UpdatedAt          int64
}

// Defaults applied when a caller omits optional creation fields.
const (
	DefaultTemperature        = 0.7
	DefaultMaxTokens          = 2048
	DefaultMaxHistoryMessages = 50
	DefaultRequestTimeoutMS   = 120000
)

// CreateInput carries the fields a caller supplies when creating a Config.
// APIToken is plaintext and is encrypted before it reaches the repository.
// Nil Temperature/MaxTokens take the defaults; an explicit zero temperature
// is kept as zero.
type CreateInput struct {
	Name               string
	APIURL             string
	APIToken           string
	ModelName          string
	Temperature        *float64
	MaxTokens          *int
	SystemPrompt       string
	MaxHistoryMessages int
	RequestTimeoutMS   int
	IsDefault          bool
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Name               *string
	APIURL             *string
	APIToken           *string
	ModelName          *string
	Temperature        *float64
	MaxTokens          *int
	SystemPrompt       *string
	MaxHistoryMessages *int
	RequestTimeoutMS   *int
	Active             *bool
}

// Repository is the persistence boundary for configurations. Every read and
// mutation that takes an owner ID must filter by (id, owner); this is a
// security invariant, not an optimization.
type Repository interface {
	// Create inserts the config. When clearDefaults is set, all other
	// default flags for the owner are cleared in the same transaction.
	Create(ctx context.Context, cfg *Config, clearDefaults bool) error
	Update(ctx context.Context, cfg *Config) error
	// Delete removes the config and deactivates its conversations in one
	// transaction.
	Delete(ctx context.Context, id int64, ownerID string) error
	// SetDefault clears the owner's default flags and marks the given
	// config, transactionally.
	SetDefault(ctx context.Context, id int64, ownerID string) error
	FindByID(ctx context.Context, id int64, ownerID string) (*Config, error)
	FindAll(ctx context.Context, ownerID string, activeOnly bool) ([]*Config, error)
	// FindDefault returns (nil, nil) when the owner has no default.
	FindDefault(ctx context.Context, ownerID string) (*Config, error)
	// FindOldestActive returns (nil, nil) when the owner has no active config.
	FindOldestActive(ctx context.Context, ownerID string) (*Config, error)
}
