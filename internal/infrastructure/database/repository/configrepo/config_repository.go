// Package configrepo persists LLM endpoint configurations via gorm.
package configrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

type ConfigGormRepository struct {
	db *gorm.DB
}

var _ llmconfig.Repository = (*ConfigGormRepository)(nil)

func NewConfigGormRepository(db *gorm.DB) llmconfig.Repository {
	return &ConfigGormRepository{db}
}

// Create implements llmconfig.Repository. Clearing the owner's existing
// default flags and inserting the new row happen in one transaction.
func (repo *ConfigGormRepository) Create(ctx context.Context, cfg *llmconfig.Config, clearDefaults bool) error {
	model := dbschema.NewSchemaLLMConfig(cfg)
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clearDefaults {
			if err := tx.Model(&dbschema.LLMConfig{}).
				Where("owner_id = ?", cfg.OwnerID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(model).Error
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create configuration")
	}
	cfg.ID = model.ID
	return nil
}

// Update implements llmconfig.Repository.
func (repo *ConfigGormRepository) Update(ctx context.Context, cfg *llmconfig.Config) error {
	model := dbschema.NewSchemaLLMConfig(cfg)
	if err := repo.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", cfg.ID, cfg.OwnerID).
		Save(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to update configuration")
	}
	return nil
}

// Delete implements llmconfig.Repository. The row is removed and every
// conversation bound to it is deactivated in the same transaction, so a
// concurrent chat turn never sees a live conversation with a dead config.
func (repo *ConfigGormRepository) Delete(ctx context.Context, id int64, ownerID string) error {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", id, ownerID).
			Delete(&dbschema.LLMConfig{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&dbschema.Conversation{}).
			Where("config_id = ? AND owner_id = ?", id, ownerID).
			Update("active", false).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "configuration not found", err)
		}
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to delete configuration")
	}
	return nil
}

// SetDefault implements llmconfig.Repository. Clearing old flags and setting
// the new one share a transaction so at most one default survives.
func (repo *ConfigGormRepository) SetDefault(ctx context.Context, id int64, ownerID string) error {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model dbschema.LLMConfig
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).
			First(&model).Error; err != nil {
			return err
		}
		if err := tx.Model(&dbschema.LLMConfig{}).
			Where("owner_id = ?", ownerID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&dbschema.LLMConfig{}).
			Where("id = ?", id).
			Update("is_default", true).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "configuration not found", err)
		}
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to set default configuration")
	}
	return nil
}

// FindByID implements llmconfig.Repository.
func (repo *ConfigGormRepository) FindByID(ctx context.Context, id int64, ownerID string) (*llmconfig.Config, error) {
	var model dbschema.LLMConfig
	err := repo.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "configuration not found", err)
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find configuration")
	}
	return model.EtoD(), nil
}

// FindAll implements llmconfig.Repository. Defaults sort first, then by name.
func (repo *ConfigGormRepository) FindAll(ctx context.Context, ownerID string, activeOnly bool) ([]*llmconfig.Config, error) {
	query := repo.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var models []dbschema.LLMConfig
	if err := query.Order("is_default DESC, name ASC").Find(&models).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list configurations")
	}

	result := make([]*llmconfig.Config, 0, len(models))
	for i := range models {
		result = append(result, models[i].EtoD())
	}
	return result, nil
}

// FindDefault implements llmconfig.Repository. A missing default is not an
// error; callers fall back to the oldest active config.
func (repo *ConfigGormRepository) FindDefault(ctx context.Context, ownerID string) (*llmconfig.Config, error) {
	var model dbschema.LLMConfig
	err := repo.db.WithContext(ctx).
		Where("owner_id = ? AND is_default = ? AND active = ?", ownerID, true, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find default configuration")
	}
	return model.EtoD(), nil
}

// FindOldestActive implements llmconfig.Repository.
func (repo *ConfigGormRepository) FindOldestActive(ctx context.Context, ownerID string) (*llmconfig.Config, error) {
	var model dbschema.LLMConfig
	err := repo.db.WithContext(ctx).
		Where("owner_id = ? AND active = ?", ownerID, true).
		Order("created_at ASC, id ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find active configuration")
	}
	return model.EtoD(), nil
}
