package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus tracks a post through its publishing lifecycle
type PostStatus string

const (
	PostStatusDraft      PostStatus = "draft"
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

// AllPostStatuses lists every status a post can hold
var AllPostStatuses = []PostStatus{
	PostStatusDraft,
	PostStatusScheduled,
	PostStatusPublishing,
	PostStatusPublished,
	PostStatusFailed,
	PostStatusCancelled,
}

// MediaURLs is stored as a JSON array column
type MediaURLs []string

// Post is a piece of content targeting one social account, either kept as a
// draft or scheduled for publication
type Post struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"type:uuid;not null;index" json:"user_id"`
	SocialAccountID string         `gorm:"type:uuid;not null;index" json:"social_account_id"`
	Title           string         `gorm:"size:255" json:"title,omitempty"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	MediaURLs       MediaURLs      `gorm:"serializer:json" json:"media_urls,omitempty"`
	ScheduledAt     *time.Time     `gorm:"index" json:"scheduled_at,omitempty"`
	Status          PostStatus     `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Attempts        int            `gorm:"default:0" json:"attempts"`
	NextAttemptAt   *time.Time     `json:"next_attempt_at,omitempty"`
	PlatformPostID  string         `gorm:"size:255" json:"platform_post_id,omitempty"`
	PublishedURL    string         `gorm:"size:500" json:"published_url,omitempty"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message,omitempty"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User          User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SocialAccount SocialAccount `gorm:"foreignKey:SocialAccountID" json:"social_account,omitempty"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// IsScheduled reports whether the post is waiting on a future publish time
func (p *Post) IsScheduled() bool {
	return p.Status == PostStatusScheduled && p.ScheduledAt != nil
}

// IsDue reports whether a scheduled post is ready to publish. A retry sets
// NextAttemptAt past the original schedule; both gates must have elapsed.
func (p *Post) IsDue(now time.Time) bool {
	if !p.IsScheduled() {
		return false
	}
	if p.ScheduledAt.After(now) {
		return false
	}
	if p.NextAttemptAt != nil && p.NextAttemptAt.After(now) {
		return false
	}
	return true
}

// ValidateForPlatform checks the post against its target platform's rules and
// returns the list of violations (empty when publishable)
func (p *Post) ValidateForPlatform(platform SocialPlatform) []string {
	var errs []string

	if !platform.IsValid() {
		return []string{fmt.Sprintf("unsupported platform: %s", platform)}
	}

	caps := platform.Capabilities()
	content := strings.TrimSpace(p.Content)

	if content == "" {
		errs = append(errs, "content is empty")
	}
	// Limits are defined in characters, not bytes
	if utf8.RuneCountInString(p.Content) > caps.MaxContentLen {
		errs = append(errs, fmt.Sprintf("content exceeds %s limit of %d characters", caps.DisplayName, caps.MaxContentLen))
	}
	if caps.RequiresMedia && len(p.MediaURLs) == 0 {
		errs = append(errs, fmt.Sprintf("%s requires at least one media attachment", caps.DisplayName))
	}

	return errs
}
