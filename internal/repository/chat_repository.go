package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mindcare/backend/internal/models"
)

// ChatRepository stores sessions and their messages. Session lookups are
// always scoped to the owning user; a session owned by someone else is
// reported as ErrNotFound.
type ChatRepository interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	ListSessions(ctx context.Context, userID uint) ([]models.ChatSession, error)
	GetSession(ctx context.Context, userID uint, id string) (*models.ChatSession, error)
	GetSessionWithMessages(ctx context.Context, userID uint, id string) (*models.ChatSession, error)
	RenameSession(ctx context.Context, userID uint, id, title string) (*models.ChatSession, error)
	DeleteSession(ctx context.Context, userID uint, id string) error
	// AddMessage stores msg and bumps the session's updatedAt. A non-empty
	// title is applied only when the session has none yet.
	AddMessage(ctx context.Context, msg *models.Message, title string) error
}

// MessageStats is the read side used by analytics.
type MessageStats interface {
	UserMessageTexts(ctx context.Context, from, to time.Time) ([]string, error)
	Overview(ctx context.Context, from, to time.Time) (*ChatOverview, error)
}

// ChatOverview aggregates chat activity inside a window.
type ChatOverview struct {
	TotalSessions int64
	TotalMessages int64
	UserMessages  int64
	ActiveUsers   int64
	MessageTimes  []time.Time
}

type GormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

func (r *GormChatRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	return translate(r.db.WithContext(ctx).Create(session).Error)
}

func (r *GormChatRepository) ListSessions(ctx context.Context, userID uint) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&sessions).Error
	return sessions, translate(err)
}

func (r *GormChatRepository) GetSession(ctx context.Context, userID uint, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *GormChatRepository) GetSessionWithMessages(ctx context.Context, userID uint, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	if session.Messages == nil {
		session.Messages = []models.Message{}
	}
	return &session, nil
}

func (r *GormChatRepository) RenameSession(ctx context.Context, userID uint, id, title string) (*models.ChatSession, error) {
	session, err := r.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(session).Update("title", title).Error; err != nil {
		return nil, translate(err)
	}
	return session, nil
}

// DeleteSession removes the session and its messages in one transaction.
func (r *GormChatRepository) DeleteSession(ctx context.Context, userID uint, id string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.ChatSession
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&session).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	}))
}

func (r *GormChatRepository) AddMessage(ctx context.Context, msg *models.Message, title string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		now := msg.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		if err := tx.Model(&models.ChatSession{}).Where("id = ?", msg.SessionID).
			Update("updated_at", now).Error; err != nil {
			return err
		}
		if title == "" {
			return nil
		}
		return tx.Model(&models.ChatSession{}).
			Where("id = ? AND (title IS NULL OR title = '')", msg.SessionID).
			Update("title", title).Error
	}))
}

// UserMessageTexts returns the content of user-authored messages created in [from, to), oldest first.
func (r *GormChatRepository) UserMessageTexts(ctx context.Context, from, to time.Time) ([]string, error) {
	var texts []string
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("is_from_user = ? AND created_at >= ? AND created_at < ?", true, from, to).
		Order("created_at ASC").
		Pluck("content", &texts).Error
	if err != nil {
		return nil, translate(err)
	}
	return texts, nil
}

func (r *GormChatRepository) Overview(ctx context.Context, from, to time.Time) (*ChatOverview, error) {
	db := r.db.WithContext(ctx)
	var o ChatOverview

	if err := db.Model(&models.ChatSession{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&o.TotalSessions).Error; err != nil {
		return nil, translate(err)
	}

	inWindow := db.Model(&models.Message{}).Where("messages.created_at >= ? AND messages.created_at < ?", from, to)

	if err := inWindow.Session(&gorm.Session{}).Count(&o.TotalMessages).Error; err != nil {
		return nil, translate(err)
	}
	if err := inWindow.Session(&gorm.Session{}).Where("is_from_user = ?", true).Count(&o.UserMessages).Error; err != nil {
		return nil, translate(err)
	}
	if err := inWindow.Session(&gorm.Session{}).
		Joins("JOIN chat_sessions ON chat_sessions.id = messages.session_id").
		Where("messages.is_from_user = ?", true).
		Distinct("chat_sessions.user_id").
		Count(&o.ActiveUsers).Error; err != nil {
		return nil, translate(err)
	}
	if err := inWindow.Session(&gorm.Session{}).Order("messages.created_at ASC").
		Pluck("messages.created_at", &o.MessageTimes).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}
