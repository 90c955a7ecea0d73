package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nextpost/backend/integrations"
	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
)

// OAuthEndpoints drives the Facebook connect flow. The connect endpoint hands
// the browser an authorization URL; the callback lands here after the user
// grants access and always finishes with a redirect back to the frontend.
type OAuthEndpoints struct {
	repo        *repository.GORMRepository
	facebook    *integrations.FacebookClient
	redirectURL string
	frontendURL string
}

func NewOAuthEndpoints(repo *repository.GORMRepository, facebook *integrations.FacebookClient, config *Config) *OAuthEndpoints {
	return &OAuthEndpoints{
		repo:        repo,
		facebook:    facebook,
		redirectURL: config.Facebook.RedirectURL,
		frontendURL: strings.TrimRight(config.Frontend.URL, "/"),
	}
}

// RegisterConnectRoutes mounts the authenticated half of the flow
func (e *OAuthEndpoints) RegisterConnectRoutes(r chi.Router) {
	r.Get("/auth/facebook/connect", e.ConnectHandler)
}

// RegisterCallbackRoutes mounts the callback, which cannot carry a bearer
// token because the platform redirects the bare browser here
func (e *OAuthEndpoints) RegisterCallbackRoutes(r chi.Router) {
	r.Get("/auth/facebook/callback", e.CallbackHandler)
}

func (e *OAuthEndpoints) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	platform := models.SocialPlatform(r.URL.Query().Get("platform"))
	if platform == "" {
		platform = models.PlatformFacebookPage
	}
	switch platform {
	case models.PlatformFacebookPage, models.PlatformInstagramFeed, models.PlatformInstagramStory:
	default:
		http.Error(w, "Platform does not support OAuth connection: "+string(platform), http.StatusBadRequest)
		return
	}

	state := user.ID + ":" + string(platform)
	authURL := e.facebook.AuthURL(e.redirectURL, state)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"auth_url": authURL,
		"platform": platform,
	})

	slog.Info("OAuth flow started", "user_id", user.ID, "platform", platform)
}

func (e *OAuthEndpoints) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		slog.Warn("OAuth flow denied by user", "error", errCode, "reason", query.Get("error_reason"))
		e.redirectError(w, r, "access_denied")
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		e.redirectError(w, r, "missing_parameters")
		return
	}

	userID, platform, ok := parseOAuthState(state)
	if !ok {
		e.redirectError(w, r, "invalid_state")
		return
	}

	user, err := e.repo.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		slog.Warn("OAuth callback for unknown user", "user_id", userID, "error", err)
		e.redirectError(w, r, "invalid_state")
		return
	}

	token, err := e.facebook.ExchangeCode(r.Context(), code, e.redirectURL)
	if err != nil {
		slog.Error("OAuth code exchange failed", "error", err, "user_id", userID)
		e.redirectError(w, r, "token_exchange_failed")
		return
	}

	connected, err := e.connectAccounts(r.Context(), user.ID, platform, token)
	if err != nil {
		slog.Error("Failed to connect social accounts", "error", err, "user_id", userID, "platform", platform)
		e.redirectError(w, r, "connection_failed")
		return
	}
	if connected == 0 {
		e.redirectError(w, r, "no_accounts_found")
		return
	}

	slog.Info("Social accounts connected", "user_id", userID, "platform", platform, "count", connected)
	http.Redirect(w, r, e.frontendURL+"/dashboard/social-accounts?success=connected", http.StatusFound)
}

// connectAccounts upserts every publishable identity the granted token can
// reach and reports how many were stored
func (e *OAuthEndpoints) connectAccounts(ctx context.Context, userID string, platform models.SocialPlatform, token *integrations.Token) (int, error) {
	connected := 0

	switch platform {
	case models.PlatformFacebookPage:
		pages, err := e.facebook.UserPages(ctx, token.AccessToken)
		if err != nil {
			return 0, err
		}
		for _, page := range pages {
			expiresAt := token.ExpiresAt
			account := models.SocialAccount{
				UserID:         userID,
				Platform:       models.PlatformFacebookPage,
				PlatformUserID: page.ID,
				Username:       page.Name,
				AccessToken:    page.AccessToken,
				TokenExpiresAt: &expiresAt,
				IsActive:       true,
			}
			if _, err := e.repo.UpsertSocialAccount(ctx, &account); err != nil {
				return connected, err
			}
			connected++
		}

	case models.PlatformInstagramFeed, models.PlatformInstagramStory:
		igAccounts, err := e.facebook.InstagramBusinessAccounts(ctx, token.AccessToken)
		if err != nil {
			return 0, err
		}
		for _, ig := range igAccounts {
			expiresAt := token.ExpiresAt
			account := models.SocialAccount{
				UserID:         userID,
				Platform:       platform,
				PlatformUserID: ig.ID,
				Username:       ig.Username,
				AccessToken:    ig.AccessToken,
				TokenExpiresAt: &expiresAt,
				IsActive:       true,
			}
			if _, err := e.repo.UpsertSocialAccount(ctx, &account); err != nil {
				return connected, err
			}
			connected++
		}
	}

	return connected, nil
}

func (e *OAuthEndpoints) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	target := e.frontendURL + "/dashboard/social-accounts?error=" + url.QueryEscape(reason)
	http.Redirect(w, r, target, http.StatusFound)
}

func parseOAuthState(state string) (userID string, platform models.SocialPlatform, ok bool) {
	parts := strings.SplitN(state, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	platform = models.SocialPlatform(parts[1])
	if !platform.IsValid() {
		return "", "", false
	}
	return parts[0], platform, true
}
