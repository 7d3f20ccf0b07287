// Package conversationrepo persists conversations and messages via gorm.
package conversationrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

type ConversationGormRepository struct {
	db *gorm.DB
}

var _ conversation.Repository = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *gorm.DB) conversation.Repository {
	return &ConversationGormRepository{db}
}

// Create implements conversation.Repository.
func (repo *ConversationGormRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create conversation")
	}
	conv.ID = model.ID
	return nil
}

// FindByID implements conversation.Repository.
func (repo *ConversationGormRepository) FindByID(ctx context.Context, id int64, ownerID string) (*conversation.Conversation, error) {
	var model dbschema.Conversation
	err := repo.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "conversation not found", err)
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find conversation")
	}
	return model.EtoD(), nil
}

// FindAll implements conversation.Repository. Most recently updated first.
func (repo *ConversationGormRepository) FindAll(ctx context.Context, ownerID string, activeOnly bool, limit int) ([]*conversation.Conversation, error) {
	query := repo.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []dbschema.Conversation
	if err := query.Order("updated_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list conversations")
	}

	result := make([]*conversation.Conversation, 0, len(models))
	for i := range models {
		result = append(result, models[i].EtoD())
	}
	return result, nil
}

// Update implements conversation.Repository.
func (repo *ConversationGormRepository) Update(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", conv.ID, conv.OwnerID).
		Save(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to update conversation")
	}
	return nil
}

// Delete implements conversation.Repository. Removes the row and all of its
// messages in one transaction.
func (repo *ConversationGormRepository) Delete(ctx context.Context, id int64, ownerID string) error {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", id, ownerID).
			Delete(&dbschema.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("conversation_id = ?", id).
			Delete(&dbschema.Message{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "conversation not found", err)
		}
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to delete conversation")
	}
	return nil
}
