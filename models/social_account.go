package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SocialAccount is a connected platform account the user can publish through
type SocialAccount struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_platform_account" json:"user_id"`
	Platform        SocialPlatform `gorm:"size:50;not null;uniqueIndex:idx_user_platform_account" json:"platform"`
	PlatformUserID  string         `gorm:"size:255;not null;uniqueIndex:idx_user_platform_account" json:"platform_user_id"`
	Username        string         `gorm:"size:255" json:"username"`
	AccessToken     string         `gorm:"type:text" json:"-"`
	RefreshToken    string         `gorm:"type:text" json:"-"`
	TokenExpiresAt  *time.Time     `json:"token_expires_at,omitempty"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	PostsCount      int            `gorm:"default:0" json:"posts_count"`
	LastUsedAt      *time.Time     `json:"last_used_at,omitempty"`
	LastValidatedAt *time.Time     `json:"last_validated_at,omitempty"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User  User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Posts []Post `gorm:"foreignKey:SocialAccountID" json:"posts,omitempty"`
}

func (a *SocialAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// TokenExpired reports whether the stored access token has passed its expiry
func (a *SocialAccount) TokenExpired() bool {
	if a.TokenExpiresAt == nil {
		return false
	}
	return a.TokenExpiresAt.Before(time.Now())
}
