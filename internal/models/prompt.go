package models

import "time"

// SystemPrompt is an admin-managed instruction sent ahead of every user message.
// At most one prompt is active at a time.
type SystemPrompt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsActive  bool      `gorm:"index;default:false" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SystemPromptRequest creates or replaces a system prompt
type SystemPromptRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Content string `json:"content" binding:"required"`
}
