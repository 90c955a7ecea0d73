package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextpost/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying handle for health checks
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.SocialAccount{},
		&models.Post{},
	)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return err
	}
	slog.Info("User updated", "user_id", user.ID)
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Social account operations
func (r *GORMRepository) CreateSocialAccount(ctx context.Context, account *models.SocialAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		slog.Error("Failed to create social account", "error", err)
		return err
	}
	slog.Info("Social account created", "account_id", account.ID, "platform", account.Platform, "username", account.Username)
	return nil
}

func (r *GORMRepository) GetSocialAccounts(ctx context.Context, userID string) ([]models.SocialAccount, error) {
	var accounts []models.SocialAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("platform, created_at DESC").Find(&accounts).Error
	if err != nil {
		slog.Error("Failed to get social accounts", "error", err, "user_id", userID)
		return nil, err
	}
	return accounts, nil
}

func (r *GORMRepository) GetSocialAccountByID(ctx context.Context, accountID, userID string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get social account", "error", err, "account_id", accountID, "user_id", userID)
		return nil, err
	}
	return &account, nil
}

func (r *GORMRepository) UpdateSocialAccount(ctx context.Context, account *models.SocialAccount) error {
	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		slog.Error("Failed to update social account", "error", err, "account_id", account.ID)
		return err
	}
	slog.Info("Social account updated", "account_id", account.ID)
	return nil
}

func (r *GORMRepository) DeleteSocialAccount(ctx context.Context, accountID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", accountID).Delete(&models.SocialAccount{}).Error; err != nil {
		slog.Error("Failed to delete social account", "error", err, "account_id", accountID)
		return err
	}
	slog.Info("Social account deleted", "account_id", accountID)
	return nil
}

// UpsertSocialAccount creates the account or refreshes tokens and profile data
// for an existing (user, platform, platform_user_id) connection. Returns true
// when a new record was created.
func (r *GORMRepository) UpsertSocialAccount(ctx context.Context, account *models.SocialAccount) (bool, error) {
	var existing models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND platform_user_id = ?", account.UserID, account.Platform, account.PlatformUserID).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := r.CreateSocialAccount(ctx, account); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		slog.Error("Failed to look up social account for upsert", "error", err, "user_id", account.UserID, "platform", account.Platform)
		return false, err
	}

	existing.Username = account.Username
	existing.AccessToken = account.AccessToken
	existing.RefreshToken = account.RefreshToken
	existing.TokenExpiresAt = account.TokenExpiresAt
	existing.LastValidatedAt = account.LastValidatedAt
	existing.IsActive = true
	existing.ErrorMessage = ""
	if err := r.UpdateSocialAccount(ctx, &existing); err != nil {
		return false, err
	}
	*account = existing
	return false, nil
}

// IncrementAccountUsage bumps posts_count and stamps last_used_at after a
// successful publication
func (r *GORMRepository) IncrementAccountUsage(ctx context.Context, accountID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"posts_count":  gorm.Expr("posts_count + 1"),
			"last_used_at": now,
		}).Error
	if err != nil {
		slog.Error("Failed to increment account usage", "error", err, "account_id", accountID)
		return err
	}
	return nil
}

// PlatformAccountStats aggregates account and post counts for one platform
type PlatformAccountStats struct {
	DisplayName    string `json:"display_name"`
	TotalAccounts  int64  `json:"total_accounts"`
	ActiveAccounts int64  `json:"active_accounts"`
	TotalPosts     int64  `json:"total_posts"`
}

func (r *GORMRepository) GetPlatformStats(ctx context.Context, userID string) (map[models.SocialPlatform]PlatformAccountStats, error) {
	var accounts []models.SocialAccount
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		slog.Error("Failed to get accounts for platform stats", "error", err, "user_id", userID)
		return nil, err
	}

	stats := make(map[models.SocialPlatform]PlatformAccountStats)
	for _, account := range accounts {
		s := stats[account.Platform]
		s.DisplayName = account.Platform.DisplayName()
		s.TotalAccounts++
		if account.IsActive {
			s.ActiveAccounts++
		}
		s.TotalPosts += int64(account.PostsCount)
		stats[account.Platform] = s
	}
	return stats, nil
}
