package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nextpost/backend/models"
)

// setupTestRepo opens a per-test in-memory database. The named DSN keeps the
// connection pool pointed at one shared database instead of one per connection.
func setupTestRepo(t *testing.T) *GORMRepository {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo := NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return repo
}

func createTestUser(t *testing.T, repo *GORMRepository, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    email,
		Password: "hashed-password",
		FullName: "Test User",
		Role:     "user",
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	require.NotEmpty(t, user.ID)
	return user
}

func createTestAccount(t *testing.T, repo *GORMRepository, userID string, platform models.SocialPlatform) *models.SocialAccount {
	t.Helper()

	expiresAt := time.Now().Add(24 * time.Hour)
	account := &models.SocialAccount{
		UserID:         userID,
		Platform:       platform,
		PlatformUserID: "pf-" + string(platform),
		Username:       "Test Account",
		AccessToken:    "token",
		TokenExpiresAt: &expiresAt,
		IsActive:       true,
	}
	require.NoError(t, repo.CreateSocialAccount(context.Background(), account))
	return account
}

func TestUserLookup(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "alice@example.com")

	found, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	byID, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice@example.com", byID.Email)

	missing, err := repo.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRefreshTokenExpiry(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "bob@example.com")

	valid := &models.RefreshToken{
		UserID:    user.ID,
		Token:     "valid-token-hash",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	expired := &models.RefreshToken{
		UserID:    user.ID,
		Token:     "expired-token-hash",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.CreateRefreshToken(ctx, valid))
	require.NoError(t, repo.CreateRefreshToken(ctx, expired))

	found, err := repo.GetRefreshToken(ctx, "valid-token-hash")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.UserID)

	gone, err := repo.GetRefreshToken(ctx, "expired-token-hash")
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, repo.DeleteAllUserTokens(ctx, user.ID))
	found, err = repo.GetRefreshToken(ctx, "valid-token-hash")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUpsertSocialAccount(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "carol@example.com")

	account := &models.SocialAccount{
		UserID:         user.ID,
		Platform:       models.PlatformFacebookPage,
		PlatformUserID: "page-1",
		Username:       "My Page",
		AccessToken:    "first-token",
		IsActive:       true,
	}
	created, err := repo.UpsertSocialAccount(ctx, account)
	require.NoError(t, err)
	assert.True(t, created)

	// Reconnecting the same page refreshes the token instead of duplicating
	again := &models.SocialAccount{
		UserID:         user.ID,
		Platform:       models.PlatformFacebookPage,
		PlatformUserID: "page-1",
		Username:       "My Renamed Page",
		AccessToken:    "second-token",
	}
	created, err = repo.UpsertSocialAccount(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, account.ID, again.ID)
	assert.Equal(t, "second-token", again.AccessToken)
	assert.Equal(t, "My Renamed Page", again.Username)
	assert.True(t, again.IsActive)

	accounts, err := repo.GetSocialAccounts(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestIncrementAccountUsage(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "dave@example.com")
	account := createTestAccount(t, repo, user.ID, models.PlatformFacebookPage)

	require.NoError(t, repo.IncrementAccountUsage(ctx, account.ID))
	require.NoError(t, repo.IncrementAccountUsage(ctx, account.ID))

	found, err := repo.GetSocialAccountByID(ctx, account.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.PostsCount)
	assert.NotNil(t, found.LastUsedAt)
}

func TestAccountOwnershipScoping(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	owner := createTestUser(t, repo, "owner@example.com")
	intruder := createTestUser(t, repo, "intruder@example.com")
	account := createTestAccount(t, repo, owner.ID, models.PlatformInstagramFeed)

	found, err := repo.GetSocialAccountByID(ctx, account.ID, intruder.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetPlatformStats(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "erin@example.com")

	fb := createTestAccount(t, repo, user.ID, models.PlatformFacebookPage)
	require.NoError(t, repo.IncrementAccountUsage(ctx, fb.ID))
	ig := createTestAccount(t, repo, user.ID, models.PlatformInstagramFeed)
	ig.IsActive = false
	require.NoError(t, repo.UpdateSocialAccount(ctx, ig))

	stats, err := repo.GetPlatformStats(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, int64(1), stats[models.PlatformFacebookPage].TotalAccounts)
	assert.Equal(t, int64(1), stats[models.PlatformFacebookPage].ActiveAccounts)
	assert.Equal(t, int64(1), stats[models.PlatformFacebookPage].TotalPosts)
	assert.Equal(t, int64(0), stats[models.PlatformInstagramFeed].ActiveAccounts)
}
