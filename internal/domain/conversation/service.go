package conversation

import (
	"context"
	"time"

	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// Service handles business logic for conversations and their messages.
type Service struct {
	repo     Repository
	messages MessageRepository
}

// NewService creates a new conversation service.
func NewService(repo Repository, messages MessageRepository) *Service {
	return &Service{repo: repo, messages: messages}
}

// Create starts a new conversation bound to the given configuration.
func (s *Service) Create(ctx context.Context, ownerID string, configID int64) (*Conversation, error) {
	now := time.Now().Unix()
	conv := &Conversation{
		OwnerID:   ownerID,
		ConfigID:  configID,
		Name:      DefaultName,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}

	log := logger.GetLogger()
	log.Info().
		Int64("conversation_id", conv.ID).
		Str("owner_id", ownerID).
		Msg("created new conversation")
	return conv, nil
}

// Get returns the owner's conversation by id.
func (s *Service) Get(ctx context.Context, id int64, ownerID string) (*Conversation, error) {
	conv, err := s.repo.FindByID(ctx, id, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	return conv, nil
}

// List returns the owner's conversations, most recently updated first, each
// enriched with its message count and a preview of the first user message.
func (s *Service) List(ctx context.Context, ownerID string, activeOnly bool) ([]*Summary, error) {
	conversations, err := s.repo.FindAll(ctx, ownerID, activeOnly, MaxListPageSize)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}

	summaries := make([]*Summary, 0, len(conversations))
	for _, conv := range conversations {
		count, err := s.messages.CountByConversation(ctx, conv.ID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
		}

		preview := ""
		first, err := s.messages.FindByConversation(ctx, conv.ID, 1)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load first message")
		}
		if len(first) > 0 && first[0].Role == RoleUser {
			preview = truncateWithEllipsis(first[0].Content, NamePrefixLen)
		}

		summaries = append(summaries, &Summary{
			Conversation: *conv,
			MessageCount: count,
			Preview:      preview,
		})
	}
	return summaries, nil
}

// MessageCount returns the number of messages in the conversation.
func (s *Service) MessageCount(ctx context.Context, conversationID int64) (int64, error) {
	count, err := s.messages.CountByConversation(ctx, conversationID)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
	}
	return count, nil
}

// Messages returns the full ordered history after verifying ownership.
func (s *Service) Messages(ctx context.Context, conversationID int64, ownerID string) ([]*Message, error) {
	if _, err := s.Get(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.FindByConversation(ctx, conversationID, 0)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load messages")
	}
	return msgs, nil
}

// Append persists a new message with its estimated token count.
func (s *Service) Append(ctx context.Context, conversationID int64, role, content string, tokensUsed int) (*Message, error) {
	msg := &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokensUsed:     &tokensUsed,
		CreatedAt:      time.Now().Unix(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist message")
	}
	return msg, nil
}

// RecentHistory returns up to limit most recent messages in chronological
// order; it bounds the context window sent to the remote model.
func (s *Service) RecentHistory(ctx context.Context, conversationID int64, limit int) ([]*Message, error) {
	msgs, err := s.messages.FindRecent(ctx, conversationID, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load recent messages")
	}
	return msgs, nil
}

// MaybeAutoname renames the conversation to a prefix of the first user
// message, exactly when the first exchange completes (message count 2) and
// the name is still the placeholder. Idempotent afterwards.
func (s *Service) MaybeAutoname(ctx context.Context, conv *Conversation, firstUserMessage string) error {
	count, err := s.messages.CountByConversation(ctx, conv.ID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
	}
	if count != 2 || conv.Name != DefaultName {
		return nil
	}

	conv.Name = truncateWithEllipsis(firstUserMessage, NamePrefixLen)
	return nil
}

// Rename sets a caller-provided name and bumps updatedAt.
func (s *Service) Rename(ctx context.Context, id int64, ownerID, name string) (*Conversation, error) {
	conv, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	conv.Name = name
	conv.UpdatedAt = time.Now().Unix()
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}
	return conv, nil
}

// Touch bumps updatedAt and persists any pending field changes; called after
// every completed turn.
func (s *Service) Touch(ctx context.Context, conv *Conversation) error {
	conv.UpdatedAt = time.Now().Unix()
	if err := s.repo.Update(ctx, conv); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}
	return nil
}

// Clear deletes all messages but keeps the conversation row. Idempotent.
func (s *Service) Clear(ctx context.Context, id int64, ownerID string) error {
	if _, err := s.Get(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.messages.DeleteByConversation(ctx, id); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to clear messages")
	}

	log := logger.GetLogger()
	log.Info().
		Int64("conversation_id", id).
		Str("owner_id", ownerID).
		Msg("cleared messages")
	return nil
}

// Delete removes the conversation and all of its messages.
func (s *Service) Delete(ctx context.Context, id int64, ownerID string) error {
	if _, err := s.Get(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}

	log := logger.GetLogger()
	log.Info().
		Int64("conversation_id", id).
		Str("owner_id", ownerID).
		Msg("deleted conversation")
	return nil
}

// truncateWithEllipsis cuts at a byte offset, so a multi-byte character
// straddling the limit may be split.
func truncateWithEllipsis(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
