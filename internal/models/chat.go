package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatSession is one conversation between a user and the assistant
type ChatSession struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"size:120" json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
	Messages  []Message `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

// BeforeCreate assigns a random id
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Message is a single chat turn. Messages are never updated after creation.
type Message struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID  string    `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsFromUser bool      `gorm:"index" json:"isFromUser"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns a random id
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// CreateSessionRequest starts a new chat session
type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=120"`
}

// RenameSessionRequest changes the title of a session
type RenameSessionRequest struct {
	Title string `json:"title" binding:"required,max=120"`
}

// SendMessageRequest posts a user message to a session
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatExchange is the result of sending a message: the stored user turn and the assistant reply
type ChatExchange struct {
	UserMessage      Message `json:"userMessage"`
	AssistantMessage Message `json:"assistantMessage"`
}
