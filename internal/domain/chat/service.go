// Package chat orchestrates a full message turn: admission, conversation
// resolution, persistence, the outbound completion call, and autonaming.
package chat

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/llmclient"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/metrics"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// MaxMessageLength bounds user-submitted content.
const MaxMessageLength = 10000

// Admitter gates outbound LLM calls per owner.
type Admitter interface {
	TryAdmit(ctx context.Context, ownerID string) (bool, error)
	Remaining(ctx context.Context, ownerID string) (int, error)
}

// Completer issues the outbound chat-completion call.
type Completer interface {
	Chat(ctx context.Context, cfg *llmconfig.Config, apiToken string, messages []openai.ChatCompletionMessage) (string, error)
	TestConnection(ctx context.Context, cfg *llmconfig.Config, apiToken string) error
}

// SendMessageInput is one inbound chat turn.
type SendMessageInput struct {
	ConversationID *int64
	ConfigID       *int64
	Message        string
}

// SendMessageResult carries both persisted turns.
type SendMessageResult struct {
	ConversationID   int64
	UserMessage      *conversation.Message
	AssistantMessage *conversation.Message
}

// Service ties the stores, the admission controller and the completion
// client together.
type Service struct {
	limiter       Admitter
	configs       *llmconfig.Service
	conversations *conversation.Service
	client        Completer
}

// NewService creates a chat service.
func NewService(limiter Admitter, configs *llmconfig.Service, conversations *conversation.Service, client Completer) *Service {
	return &Service{
		limiter:       limiter,
		configs:       configs,
		conversations: conversations,
		client:        client,
	}
}

// Remaining reports how many chat requests the owner may still issue within
// the current window.
func (s *Service) Remaining(ctx context.Context, ownerID string) (int, error) {
	return s.limiter.Remaining(ctx, ownerID)
}

// SendMessage runs one chat turn, terminal on the first error. The user
// message stays persisted when the upstream call fails: the conversation is
// left valid, just without an assistant reply.
func (s *Service) SendMessage(ctx context.Context, ownerID string, input SendMessageInput) (*SendMessageResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "Message cannot be empty", nil)
	}
	if len(message) > MaxMessageLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "Message too long. Maximum 10000 characters allowed", nil)
	}

	admitted, err := s.limiter.TryAdmit(ctx, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "rate limit check failed")
	}
	if !admitted {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeRateLimited, "Too many requests. Please wait a moment and try again", nil)
	}

	conv, err := s.resolveConversation(ctx, ownerID, input)
	if err != nil {
		return nil, err
	}

	userMessage, err := s.conversations.Append(ctx, conv.ID, conversation.RoleUser, message, llmclient.EstimateTokens(message))
	if err != nil {
		return nil, err
	}
	metrics.RecordEstimatedTokens(conversation.RoleUser, llmclient.EstimateTokens(message))

	// Resolve through the conversation's binding, not the creation hint, so
	// already-bound conversations keep their configuration.
	cfg, err := s.configs.Get(ctx, conv.ConfigID, ownerID)
	if err != nil {
		return nil, err
	}

	history, err := s.conversations.RecentHistory(ctx, conv.ID, cfg.MaxHistoryMessages)
	if err != nil {
		return nil, err
	}
	outbound := llmclient.PrepareMessages(cfg, history)

	apiToken := s.configs.DecryptToken(cfg)

	responseContent, err := s.client.Chat(ctx, cfg, apiToken, outbound)
	if err != nil {
		metrics.RecordUpstreamError()
		log := logger.GetLogger()
		log.Error().
			Int64("conversation_id", conv.ID).
			Err(err).
			Msg("LLM API error")
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "LLM call failed")
	}

	assistantMessage, err := s.conversations.Append(ctx, conv.ID, conversation.RoleAssistant, responseContent, llmclient.EstimateTokens(responseContent))
	if err != nil {
		return nil, err
	}
	metrics.RecordEstimatedTokens(conversation.RoleAssistant, llmclient.EstimateTokens(responseContent))

	if err := s.conversations.MaybeAutoname(ctx, conv, message); err != nil {
		return nil, err
	}
	if err := s.conversations.Touch(ctx, conv); err != nil {
		return nil, err
	}

	metrics.RecordChatTurn(cfg.ModelName)
	log := logger.GetLogger()
	log.Info().
		Int64("conversation_id", conv.ID).
		Msg("successfully processed message")

	return &SendMessageResult{
		ConversationID:   conv.ID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	}, nil
}

// TestConnection probes the configuration's endpoint with a single "Hello"
// message, reusing the completion client's error taxonomy.
func (s *Service) TestConnection(ctx context.Context, ownerID string, configID int64) error {
	cfg, err := s.configs.Get(ctx, configID, ownerID)
	if err != nil {
		return err
	}
	apiToken := s.configs.DecryptToken(cfg)
	if err := s.client.TestConnection(ctx, cfg, apiToken); err != nil {
		metrics.RecordUpstreamError()
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "connection test failed")
	}
	return nil
}

// resolveConversation loads an existing conversation or lazily creates one
// bound to a resolved configuration.
func (s *Service) resolveConversation(ctx context.Context, ownerID string, input SendMessageInput) (*conversation.Conversation, error) {
	if input.ConversationID != nil {
		conv, err := s.conversations.Get(ctx, *input.ConversationID, ownerID)
		if err != nil {
			return nil, err
		}
		return conv, nil
	}

	cfg, err := s.configs.ResolveForNewConversation(ctx, ownerID, input.ConfigID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"No LLM configuration found. Please configure an LLM first.", nil)
	}

	conv, err := s.conversations.Create(ctx, ownerID, cfg.ID)
	if err != nil {
		return nil, err
	}
	metrics.RecordConversationCreated()
	return conv, nil
}
