package llmconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/vault"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// Service handles business logic for configurations.
type Service struct {
	repo  Repository
	vault *vault.Vault
}

// NewService creates a new configuration service.
func NewService(repo Repository, v *vault.Vault) *Service {
	return &Service{repo: repo, vault: v}
}

// Create validates the input, encrypts the credential and persists a new
// configuration for the owner.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*Config, error) {
	temperature := DefaultTemperature
	if input.Temperature != nil {
		temperature = *input.Temperature
	}
	maxTokens := DefaultMaxTokens
	if input.MaxTokens != nil {
		maxTokens = *input.MaxTokens
	}
	if err := validateBounds(ctx, temperature, maxTokens); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "Name is required", nil)
	}
	if strings.TrimSpace(input.APIURL) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "API URL is required", nil)
	}
	if strings.TrimSpace(input.ModelName) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "Model name is required", nil)
	}

	encryptedToken := ""
	if input.APIToken != "" {
		var err error
		encryptedToken, err = s.vault.Encrypt(input.APIToken)
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "failed to encrypt API token", err)
		}
	}

	systemPrompt := input.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	maxHistory := input.MaxHistoryMessages
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistoryMessages
	}
	timeout := input.RequestTimeoutMS
	if timeout <= 0 {
		timeout = DefaultRequestTimeoutMS
	}

	now := time.Now().Unix()
	cfg := &Config{
		OwnerID:            ownerID,
		Name:               input.Name,
		APIURL:             input.APIURL,
		APITokenEncrypted:  encryptedToken,
		ModelName:          input.ModelName,
		Temperature:        temperature,
		MaxTokens:          maxTokens,
		SystemPrompt:       systemPrompt,
		MaxHistoryMessages: maxHistory,
		RequestTimeoutMS:   timeout,
		IsDefault:          input.IsDefault,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, cfg, input.IsDefault); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create configuration")
	}

	log := logger.GetLogger()
	log.Info().
		Int64("config_id", cfg.ID).
		Str("owner_id", ownerID).
		Msg("created new LLM config")

	return cfg, nil
}

// Update applies a partial update. Absent fields are left untouched; a new
// plaintext token is re-encrypted before storage.
func (s *Service) Update(ctx context.Context, id int64, ownerID string, patch Patch) (*Config, error) {
	cfg, err := s.repo.FindByID(ctx, id, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "configuration not found")
	}

	if patch.Name != nil {
		cfg.Name = *patch.Name
	}
	if patch.APIURL != nil {
		cfg.APIURL = *patch.APIURL
	}
	if patch.APIToken != nil {
		encryptedToken, err := s.vault.Encrypt(*patch.APIToken)
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "failed to encrypt API token", err)
		}
		cfg.APITokenEncrypted = encryptedToken
	}
	if patch.ModelName != nil {
		cfg.ModelName = *patch.ModelName
	}
	if patch.Temperature != nil {
		cfg.Temperature = *patch.Temperature
	}
	if patch.MaxTokens != nil {
		cfg.MaxTokens = *patch.MaxTokens
	}
	if err := validateBounds(ctx, cfg.Temperature, cfg.MaxTokens); err != nil {
		return nil, err
	}
	if patch.SystemPrompt != nil {
		cfg.SystemPrompt = *patch.SystemPrompt
	}
	if patch.MaxHistoryMessages != nil {
		cfg.MaxHistoryMessages = *patch.MaxHistoryMessages
	}
	if patch.RequestTimeoutMS != nil {
		cfg.RequestTimeoutMS = *patch.RequestTimeoutMS
	}
	if patch.Active != nil {
		cfg.Active = *patch.Active
	}

	cfg.UpdatedAt = time.Now().Unix()
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update configuration")
	}

	return cfg, nil
}

// Get returns the owner's configuration by id.
func (s *Service) Get(ctx context.Context, id int64, ownerID string) (*Config, error) {
	cfg, err := s.repo.FindByID(ctx, id, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "configuration not found")
	}
	return cfg, nil
}

// List returns the owner's configurations, default first then by name.
func (s *Service) List(ctx context.Context, ownerID string, activeOnly bool) ([]*Config, error) {
	configs, err := s.repo.FindAll(ctx, ownerID, activeOnly)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list configurations")
	}
	return configs, nil
}

// Delete removes the configuration. Its conversations are deactivated by
// the repository in the same transaction.
func (s *Service) Delete(ctx context.Context, id int64, ownerID string) error {
	if _, err := s.repo.FindByID(ctx, id, ownerID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "configuration not found")
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete configuration")
	}

	log := logger.GetLogger()
	log.Info().
		Int64("config_id", id).
		Str("owner_id", ownerID).
		Msg("deleted LLM config")
	return nil
}

// SetDefault makes the given configuration the owner's single default.
func (s *Service) SetDefault(ctx context.Context, id int64, ownerID string) (*Config, error) {
	if _, err := s.repo.FindByID(ctx, id, ownerID); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "configuration not found")
	}
	if err := s.repo.SetDefault(ctx, id, ownerID); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to set default configuration")
	}
	return s.Get(ctx, id, ownerID)
}

// ResolveForNewConversation picks the configuration a new conversation binds
// to: the explicit one when given, else the owner's default, else the oldest
// active one. Returns (nil, nil) when the owner has none at all.
func (s *Service) ResolveForNewConversation(ctx context.Context, ownerID string, explicitConfigID *int64) (*Config, error) {
	if explicitConfigID != nil {
		cfg, err := s.repo.FindByID(ctx, *explicitConfigID, ownerID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "configuration not found")
		}
		return cfg, nil
	}

	cfg, err := s.repo.FindDefault(ctx, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve default configuration")
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg, err = s.repo.FindOldestActive(ctx, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve active configuration")
	}
	return cfg, nil
}

// DecryptToken resolves the stored credential for an outbound call. A config
// without a stored credential, or one whose ciphertext can no longer be
// decrypted, falls back to "ollama": local LLM servers commonly require no
// real credential.
func (s *Service) DecryptToken(cfg *Config) string {
	if cfg.APITokenEncrypted == "" {
		return "ollama"
	}

	token, err := s.vault.Decrypt(cfg.APITokenEncrypted)
	if err != nil {
		log := logger.GetLogger()
		log.Warn().
			Int64("config_id", cfg.ID).
			Msg("failed to decrypt API token, using default")
		return "ollama"
	}
	return token
}

func validateBounds(ctx context.Context, temperature float64, maxTokens int) error {
	if temperature < MinTemperature || temperature > MaxTemperature {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("Temperature must be between %g and %g", MinTemperature, MaxTemperature), nil)
	}
	if maxTokens < MinMaxTokens || maxTokens > MaxMaxTokens {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("Max tokens must be between %d and %d", MinMaxTokens, MaxMaxTokens), nil)
	}
	return nil
}
