package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextpost/backend/integrations"
	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
)

// GraphAPI is the slice of the Facebook client the publisher needs
type GraphAPI interface {
	PublishPagePost(ctx context.Context, accessToken, pageID, message string, mediaURLs []string) (*integrations.PublishResult, error)
	PublishInstagram(ctx context.Context, accessToken, igAccountID, caption string, mediaURLs []string, story bool) (*integrations.PublishResult, error)
	ValidateToken(ctx context.Context, accessToken string) (*integrations.TokenInfo, error)
}

// PublicationError reports why a post could not be published
type PublicationError struct {
	Platform models.SocialPlatform
	Message  string
}

func (e *PublicationError) Error() string {
	if e.Platform != "" {
		return fmt.Sprintf("publication failed on %s: %s", e.Platform, e.Message)
	}
	return "publication failed: " + e.Message
}

type publishFunc func(ctx context.Context, post *models.Post, account *models.SocialAccount) (*integrations.PublishResult, error)

// Publisher dispatches posts to their target platform
type Publisher struct {
	facebook   GraphAPI
	byPlatform map[models.SocialPlatform]publishFunc
}

func NewPublisher(facebook GraphAPI) *Publisher {
	p := &Publisher{facebook: facebook}
	p.byPlatform = map[models.SocialPlatform]publishFunc{
		models.PlatformFacebookPage:   p.publishFacebookPage,
		models.PlatformInstagramFeed:  p.publishInstagramFeed,
		models.PlatformInstagramStory: p.publishInstagramStory,
	}
	return p
}

// ValidateForPublication checks that a post is publishable on its account.
// Returns the list of problems, empty when the post is good to go.
func (p *Publisher) ValidateForPublication(post *models.Post, account *models.SocialAccount) []string {
	if account == nil {
		return []string{"no social account associated"}
	}

	var errs []string
	if !account.IsActive {
		errs = append(errs, "social account is not active")
	}
	if account.AccessToken == "" {
		errs = append(errs, "social account has no access token")
	}
	if account.TokenExpired() {
		errs = append(errs, "social account token has expired")
	}
	errs = append(errs, post.ValidateForPlatform(account.Platform)...)
	return errs
}

// Publish sends the post to its platform. The post must carry its
// SocialAccount. Validation failures and unsupported platforms return a
// *PublicationError; transport errors pass through as Graph errors.
func (p *Publisher) Publish(ctx context.Context, post *models.Post) (*integrations.PublishResult, error) {
	account := &post.SocialAccount

	if errs := p.ValidateForPublication(post, account); len(errs) > 0 {
		return nil, &PublicationError{Platform: account.Platform, Message: strings.Join(errs, ", ")}
	}

	publish, ok := p.byPlatform[account.Platform]
	if !ok {
		return nil, &PublicationError{Platform: account.Platform, Message: "publishing is not supported for this platform"}
	}

	slog.Info("Publishing post", "post_id", post.ID, "platform", account.Platform, "account_id", account.ID)
	result, err := publish(ctx, post, account)
	if err != nil {
		slog.Error("Publish failed", "post_id", post.ID, "platform", account.Platform, "error", err)
		return nil, err
	}

	slog.Info("Post published", "post_id", post.ID, "platform", account.Platform, "platform_post_id", result.PlatformPostID)
	return result, nil
}

func (p *Publisher) publishFacebookPage(ctx context.Context, post *models.Post, account *models.SocialAccount) (*integrations.PublishResult, error) {
	return p.facebook.PublishPagePost(ctx, account.AccessToken, account.PlatformUserID, post.Content, post.MediaURLs)
}

func (p *Publisher) publishInstagramFeed(ctx context.Context, post *models.Post, account *models.SocialAccount) (*integrations.PublishResult, error) {
	return p.facebook.PublishInstagram(ctx, account.AccessToken, account.PlatformUserID, post.Content, post.MediaURLs, false)
}

func (p *Publisher) publishInstagramStory(ctx context.Context, post *models.Post, account *models.SocialAccount) (*integrations.PublishResult, error) {
	return p.facebook.PublishInstagram(ctx, account.AccessToken, account.PlatformUserID, post.Content, post.MediaURLs, true)
}

// TestAccountConnection validates the stored token against the platform API
// and stamps the result on the account
func (p *Publisher) TestAccountConnection(ctx context.Context, repo *repository.GORMRepository, account *models.SocialAccount) (*integrations.TokenInfo, error) {
	switch account.Platform {
	case models.PlatformFacebookPage, models.PlatformInstagramFeed, models.PlatformInstagramStory:
		info, err := p.facebook.ValidateToken(ctx, account.AccessToken)
		now := time.Now()
		if err != nil {
			account.ErrorMessage = err.Error()
			_ = repo.UpdateSocialAccount(ctx, account)
			return nil, err
		}
		account.LastValidatedAt = &now
		account.ErrorMessage = ""
		if err := repo.UpdateSocialAccount(ctx, account); err != nil {
			return nil, err
		}
		return info, nil
	default:
		return nil, &PublicationError{Platform: account.Platform, Message: "connection test is not supported for this platform"}
	}
}
