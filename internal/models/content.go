package models

import "time"

// Event is a community event shown on the public events page
type Event struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Location        string     `gorm:"size:200" json:"location"`
	StartsAt        time.Time  `gorm:"index;not null" json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	RegistrationURL string     `json:"registrationUrl,omitempty"`
	IsPublished     bool       `gorm:"index" json:"isPublished"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// EventRequest creates or replaces an event
type EventRequest struct {
	Title           string     `json:"title" binding:"required,max=200"`
	Description     string     `json:"description"`
	Location        string     `json:"location" binding:"max=200"`
	StartsAt        time.Time  `json:"startsAt" binding:"required"`
	EndsAt          *time.Time `json:"endsAt"`
	ImageURL        string     `json:"imageUrl" binding:"omitempty,url"`
	RegistrationURL string     `json:"registrationUrl" binding:"omitempty,url"`
	IsPublished     bool       `json:"isPublished"`
}

// Resource is an article, hotline or tool in the resource library
type Resource struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:50;index" json:"category"`
	URL         string    `gorm:"not null" json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	IsPublished bool      `gorm:"index" json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ResourceRequest creates or replaces a resource
type ResourceRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
	Category    string `json:"category" binding:"required,max=50"`
	URL         string `json:"url" binding:"required,url"`
	ImageURL    string `json:"imageUrl" binding:"omitempty,url"`
	IsPublished bool   `json:"isPublished"`
}

// Banner is a hero slide on the landing page, displayed by ascending Order
type Banner struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Subtitle  string    `gorm:"size:300" json:"subtitle,omitempty"`
	ImageURL  string    `gorm:"not null" json:"imageUrl"`
	LinkURL   string    `json:"linkUrl,omitempty"`
	Order     int       `gorm:"column:sort_order;index" json:"order"`
	IsActive  bool      `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BannerRequest creates or replaces a banner. Order is managed separately.
type BannerRequest struct {
	Title    string `json:"title" binding:"required,max=200"`
	Subtitle string `json:"subtitle" binding:"max=300"`
	ImageURL string `json:"imageUrl" binding:"required,url"`
	LinkURL  string `json:"linkUrl" binding:"omitempty,url"`
	IsActive *bool  `json:"isActive"`
}

// ReorderBannersRequest lists every banner id in the desired display order
type ReorderBannersRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// RecommendationCard is a dashboard shortcut suggested to signed-in users
type RecommendationCard struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"size:500" json:"description"`
	Href        string    `gorm:"not null" json:"href"`
	Icon        string    `gorm:"size:50" json:"icon,omitempty"`
	Order       int       `gorm:"column:sort_order;index" json:"order"`
	IsActive    bool      `gorm:"default:true" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RecommendationCardRequest creates or replaces a recommendation card
type RecommendationCardRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=500"`
	Href        string `json:"href" binding:"required"`
	Icon        string `json:"icon" binding:"max=50"`
	Order       int    `json:"order"`
	IsActive    *bool  `json:"isActive"`
}
