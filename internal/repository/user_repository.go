package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mindcare/backend/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	MarkEmailVerified(ctx context.Context, email string, at time.Time) error
	UpdatePassword(ctx context.Context, email, hash string) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) Save(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

func (r *GormUserRepository) MarkEmailVerified(ctx context.Context, email string, at time.Time) error {
	return r.updateByEmail(ctx, email, "email_verified", at)
}

// UpdatePassword stores an already hashed password.
func (r *GormUserRepository) UpdatePassword(ctx context.Context, email, hash string) error {
	return r.updateByEmail(ctx, email, "password", hash)
}

func (r *GormUserRepository) updateByEmail(ctx context.Context, email, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Update(column, value)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
