package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextpost/backend/models"
	"gorm.io/gorm"
)

// Post operations

func (r *GORMRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		slog.Error("Failed to create post", "error", err)
		return err
	}
	slog.Info("Post created", "post_id", post.ID, "user_id", post.UserID, "status", post.Status)
	return nil
}

func (r *GORMRepository) GetPostByID(ctx context.Context, postID, userID string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", postID, userID).
		Preload("SocialAccount").
		First(&post).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get post", "error", err, "post_id", postID, "user_id", userID)
		return nil, err
	}
	return &post, nil
}

// GetPost fetches a post by ID without an ownership check, for scheduler use
func (r *GORMRepository) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ?", postID).Preload("SocialAccount").First(&post).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get post", "error", err, "post_id", postID)
		return nil, err
	}
	return &post, nil
}

// GetPosts lists a user's posts, newest first, optionally filtered by status
func (r *GORMRepository) GetPosts(ctx context.Context, userID string, status models.PostStatus) ([]models.Post, error) {
	var posts []models.Post
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Preload("SocialAccount").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&posts).Error; err != nil {
		slog.Error("Failed to get posts", "error", err, "user_id", userID, "status", status)
		return nil, err
	}
	return posts, nil
}

// GetPostsByAccount lists a user's posts bound to one social account
func (r *GORMRepository) GetPostsByAccount(ctx context.Context, userID, accountID string) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND social_account_id = ?", userID, accountID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		slog.Error("Failed to get posts by account", "error", err, "user_id", userID, "account_id", accountID)
		return nil, err
	}
	return posts, nil
}

func (r *GORMRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		slog.Error("Failed to update post", "error", err, "post_id", post.ID)
		return err
	}
	slog.Info("Post updated", "post_id", post.ID, "status", post.Status)
	return nil
}

func (r *GORMRepository) DeletePost(ctx context.Context, postID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", postID).Delete(&models.Post{}).Error; err != nil {
		slog.Error("Failed to delete post", "error", err, "post_id", postID)
		return err
	}
	slog.Info("Post deleted", "post_id", postID)
	return nil
}

// ClaimDuePosts atomically moves due scheduled posts to publishing and returns
// them with their accounts preloaded. The conditional update keeps concurrent
// dispatchers from claiming the same post twice.
func (r *GORMRepository) ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	var due []models.Post
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.PostStatusScheduled, now).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("scheduled_at").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		slog.Error("Failed to query due posts", "error", err)
		return nil, err
	}

	claimed := make([]models.Post, 0, len(due))
	for _, post := range due {
		result := r.db.WithContext(ctx).Model(&models.Post{}).
			Where("id = ? AND status = ?", post.ID, models.PostStatusScheduled).
			Update("status", models.PostStatusPublishing)
		if result.Error != nil {
			slog.Error("Failed to claim post", "error", result.Error, "post_id", post.ID)
			continue
		}
		if result.RowsAffected == 0 {
			// Another dispatcher got there first
			continue
		}
		full, err := r.GetPost(ctx, post.ID)
		if err != nil || full == nil {
			continue
		}
		claimed = append(claimed, *full)
	}
	return claimed, nil
}

// GetScheduledPosts returns scheduled posts with accounts, newest first. An
// empty userID returns the global set for the scheduler sweep.
func (r *GORMRepository) GetScheduledPosts(ctx context.Context, userID string) ([]models.Post, error) {
	var posts []models.Post
	query := r.db.WithContext(ctx).Where("status = ?", models.PostStatusScheduled).Preload("SocialAccount")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Order("scheduled_at").Find(&posts).Error; err != nil {
		slog.Error("Failed to get scheduled posts", "error", err, "user_id", userID)
		return nil, err
	}
	return posts, nil
}

// PurgeFailedPosts soft-deletes failed posts that have not changed since the
// cutoff and returns how many were removed
func (r *GORMRepository) PurgeFailedPosts(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.PostStatusFailed, cutoff).
		Delete(&models.Post{})
	if result.Error != nil {
		slog.Error("Failed to purge failed posts", "error", result.Error)
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("Purged failed posts", "count", result.RowsAffected, "cutoff", cutoff)
	}
	return result.RowsAffected, nil
}

// PostStats aggregates a user's posts by status and platform
type PostStats struct {
	Total      int64                           `json:"total"`
	ByStatus   map[models.PostStatus]int64     `json:"by_status"`
	ByPlatform map[models.SocialPlatform]int64 `json:"by_platform"`
}

func (r *GORMRepository) GetPostStats(ctx context.Context, userID string) (*PostStats, error) {
	stats := &PostStats{
		ByStatus:   make(map[models.PostStatus]int64),
		ByPlatform: make(map[models.SocialPlatform]int64),
	}

	var posts []models.Post
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Preload("SocialAccount").Find(&posts).Error; err != nil {
		slog.Error("Failed to get posts for stats", "error", err, "user_id", userID)
		return nil, err
	}

	for _, post := range posts {
		stats.Total++
		stats.ByStatus[post.Status]++
		if post.SocialAccount.Platform != "" {
			stats.ByPlatform[post.SocialAccount.Platform]++
		}
	}

	// Every status appears in the report, present or not
	for _, status := range models.AllPostStatuses {
		if _, ok := stats.ByStatus[status]; !ok {
			stats.ByStatus[status] = 0
		}
	}

	return stats, nil
}
