package repository

import (
	"context"

	"gorm.io/gorm"

	"mindcare/backend/internal/models"
)

type PromptRepository interface {
	CRUD[models.SystemPrompt]
	// Active returns the active prompt or ErrNotFound.
	Active(ctx context.Context) (*models.SystemPrompt, error)
	// Activate makes id the only active prompt.
	Activate(ctx context.Context, id uint) (*models.SystemPrompt, error)
}

type GormPromptRepository struct{ *gormCRUD[models.SystemPrompt] }

func NewGormPromptRepository(db *gorm.DB) *GormPromptRepository {
	return &GormPromptRepository{newGormCRUD[models.SystemPrompt](db)}
}

func (r *GormPromptRepository) Active(ctx context.Context) (*models.SystemPrompt, error) {
	var p models.SystemPrompt
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("updated_at DESC").First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *GormPromptRepository) Activate(ctx context.Context, id uint) (*models.SystemPrompt, error) {
	var p models.SystemPrompt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SystemPrompt{}).Where("id <> ? AND is_active = ?", id, true).Update("is_active", false).Error; err != nil {
			return err
		}
		p.IsActive = true
		return tx.Model(&p).Update("is_active", true).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}
