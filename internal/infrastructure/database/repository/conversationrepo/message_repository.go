package conversationrepo

import (
	"context"

	"gorm.io/gorm"

	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

type MessageGormRepository struct {
	db *gorm.DB
}

var _ conversation.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *gorm.DB) conversation.MessageRepository {
	return &MessageGormRepository{db}
}

// Insert implements conversation.MessageRepository.
func (repo *MessageGormRepository) Insert(ctx context.Context, msg *conversation.Message) error {
	model := dbschema.NewSchemaMessage(msg)
	if err := repo.db.WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to insert message")
	}
	msg.ID = model.ID
	return nil
}

// FindByConversation implements conversation.MessageRepository. Chronological
// order; a non-positive limit returns the full history.
func (repo *MessageGormRepository) FindByConversation(ctx context.Context, conversationID int64, limit int) ([]*conversation.Message, error) {
	query := repo.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []dbschema.Message
	if err := query.Find(&models).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load messages")
	}
	return toDomainMessages(models), nil
}

// FindRecent implements conversation.MessageRepository. Fetches the newest
// rows descending, then reverses so callers get chronological order.
func (repo *MessageGormRepository) FindRecent(ctx context.Context, conversationID int64, limit int) ([]*conversation.Message, error) {
	query := repo.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []dbschema.Message
	if err := query.Find(&models).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load recent messages")
	}

	result := toDomainMessages(models)
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// DeleteByConversation implements conversation.MessageRepository. Deleting
// zero rows is not an error.
func (repo *MessageGormRepository) DeleteByConversation(ctx context.Context, conversationID int64) error {
	if err := repo.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&dbschema.Message{}).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to delete messages")
	}
	return nil
}

// CountByConversation implements conversation.MessageRepository.
func (repo *MessageGormRepository) CountByConversation(ctx context.Context, conversationID int64) (int64, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to count messages")
	}
	return count, nil
}

func toDomainMessages(models []dbschema.Message) []*conversation.Message {
	result := make([]*conversation.Message, 0, len(models))
	for i := range models {
		result = append(result, models[i].EtoD())
	}
	return result
}
