package repository

import (
	"context"

	"gorm.io/gorm"

	"mindcare/backend/internal/models"
)

// TokenRepository stores the one-time tokens mailed to users.
// Issuing a token replaces any earlier token of the same kind for that email,
// and taking a token removes it.
type TokenRepository interface {
	IssueVerification(ctx context.Context, token *models.VerificationToken) error
	TakeVerification(ctx context.Context, token string) (*models.VerificationToken, error)
	IssuePasswordReset(ctx context.Context, token *models.PasswordResetToken) error
	TakePasswordReset(ctx context.Context, token string) (*models.PasswordResetToken, error)
}

type GormTokenRepository struct {
	db *gorm.DB
}

func NewGormTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

func (r *GormTokenRepository) IssueVerification(ctx context.Context, token *models.VerificationToken) error {
	return issue(r.db.WithContext(ctx), token, token.Email)
}

func (r *GormTokenRepository) TakeVerification(ctx context.Context, token string) (*models.VerificationToken, error) {
	var t models.VerificationToken
	if err := take(r.db.WithContext(ctx), &t, token); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTokenRepository) IssuePasswordReset(ctx context.Context, token *models.PasswordResetToken) error {
	return issue(r.db.WithContext(ctx), token, token.Email)
}

func (r *GormTokenRepository) TakePasswordReset(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	if err := take(r.db.WithContext(ctx), &t, token); err != nil {
		return nil, err
	}
	return &t, nil
}

func issue(db *gorm.DB, token interface{}, email string) error {
	return translate(db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Delete(token).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	}))
}

func take(db *gorm.DB, dest interface{}, token string) error {
	return translate(db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token = ?", token).First(dest).Error; err != nil {
			return err
		}
		return tx.Delete(dest).Error
	}))
}
