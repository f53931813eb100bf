package models

import "time"

// VerificationToken proves ownership of an email address
type VerificationToken struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Email     string    `gorm:"index;not null" json:"email"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the token can no longer be used at now
func (t *VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PasswordResetToken authorises a single password change
type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Email     string    `gorm:"index;not null" json:"email"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the token can no longer be used at now
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// VerifyEmailRequest consumes a verification token
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest consumes a reset token and sets a new password
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}
