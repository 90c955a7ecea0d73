package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.GORMRepository
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the database with demo data (idempotent)
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	// Hash default password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Create demo users (no admin users for security)
	users := []models.User{
		{
			Email:    "test@example.com",
			Password: string(hashedPassword),
			FullName: "Test User",
			Role:     "user",
		},
		{
			Email:    "demo@example.com",
			Password: string(hashedPassword),
			FullName: "Demo User",
			Role:     "user",
		},
	}

	for _, user := range users {
		if err := s.seedUser(ctx, user); err != nil {
			slog.Error("Failed to seed user", "email", user.Email, "error", err)
		}
	}

	demoUser, err := s.repo.GetUserByEmail(ctx, "demo@example.com")
	if err != nil {
		return fmt.Errorf("failed to get demo user: %w", err)
	}
	if demoUser == nil {
		return fmt.Errorf("demo user not found")
	}

	// A connected page with a long-lived demo token, so the dashboard has
	// something to show without going through the real OAuth dialog
	expiresAt := time.Now().Add(60 * 24 * time.Hour)
	account := models.SocialAccount{
		UserID:         demoUser.ID,
		Platform:       models.PlatformFacebookPage,
		PlatformUserID: "1000000000000001",
		Username:       "NextPost Demo Page",
		AccessToken:    "demo-page-token",
		TokenExpiresAt: &expiresAt,
		IsActive:       true,
	}
	created, err := s.repo.UpsertSocialAccount(ctx, &account)
	if err != nil {
		return fmt.Errorf("failed to seed social account: %w", err)
	}
	if created {
		slog.Info("Created demo social account", "platform", account.Platform, "username", account.Username)
	}

	if err := s.seedPosts(ctx, demoUser.ID, account.ID); err != nil {
		slog.Error("Failed to seed posts", "error", err)
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

// seedUser seeds a single user (idempotent)
func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}

	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	slog.Info("Created user", "email", user.Email)
	return nil
}

// seedPosts creates one post per lifecycle stage for the demo account
func (s *DatabaseSeeder) seedPosts(ctx context.Context, userID, accountID string) error {
	existing, err := s.repo.GetPostsByAccount(ctx, userID, accountID)
	if err != nil {
		return fmt.Errorf("error checking posts: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("Demo posts already exist, skipping", "count", len(existing))
		return nil
	}

	scheduledAt := time.Now().Add(24 * time.Hour)
	publishedAt := time.Now().Add(-48 * time.Hour)
	posts := []models.Post{
		{
			UserID:          userID,
			SocialAccountID: accountID,
			Title:           "Welcome post",
			Content:         "Welcome to NextPost! This draft is waiting for a schedule.",
			Status:          models.PostStatusDraft,
		},
		{
			UserID:          userID,
			SocialAccountID: accountID,
			Title:           "Tomorrow's announcement",
			Content:         "Big news dropping tomorrow. Stay tuned!",
			ScheduledAt:     &scheduledAt,
			Status:          models.PostStatusScheduled,
		},
		{
			UserID:          userID,
			SocialAccountID: accountID,
			Title:           "Launch recap",
			Content:         "Thanks to everyone who joined our launch stream last week.",
			ScheduledAt:     &publishedAt,
			Status:          models.PostStatusPublished,
			PlatformPostID:  "1000000000000001_2001",
			PublishedURL:    "https://facebook.com/1000000000000001_2001",
			PublishedAt:     &publishedAt,
		},
	}

	for i := range posts {
		if err := s.repo.CreatePost(ctx, &posts[i]); err != nil {
			return fmt.Errorf("failed to create post %q: %w", posts[i].Title, err)
		}
		slog.Info("Created demo post", "title", posts[i].Title, "status", posts[i].Status)
	}
	return nil
}
