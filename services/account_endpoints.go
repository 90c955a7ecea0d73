package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
)

type AccountEndpoints struct {
	repo      *repository.GORMRepository
	publisher *Publisher
}

func NewAccountEndpoints(repo *repository.GORMRepository, publisher *Publisher) *AccountEndpoints {
	return &AccountEndpoints{
		repo:      repo,
		publisher: publisher,
	}
}

func (e *AccountEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/social-accounts", func(r chi.Router) {
		r.Get("/", e.GetAccountsHandler)
		r.Get("/capabilities", e.CapabilitiesHandler)
		r.Get("/platform-stats", e.PlatformStatsHandler)
		r.Get("/{id}", e.GetAccountHandler)
		r.Get("/{id}/capabilities", e.AccountCapabilitiesHandler)
		r.Delete("/{id}", e.DeleteAccountHandler)
		r.Post("/{id}/toggle-active", e.ToggleActiveHandler)
		r.Post("/{id}/disconnect", e.DisconnectHandler)
		r.Post("/{id}/test", e.TestConnectionHandler)
		r.Get("/{id}/posts", e.AccountPostsHandler)
	})
}

func (e *AccountEndpoints) GetAccountsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	accounts, err := e.repo.GetSocialAccounts(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get social accounts", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get social accounts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (e *AccountEndpoints) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account": account,
	})
}

func (e *AccountEndpoints) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	if err := e.repo.DeleteSocialAccount(r.Context(), account.ID); err != nil {
		http.Error(w, "Failed to delete social account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Social account removed",
	})

	slog.Info("Social account removed", "account_id", account.ID, "user_id", user.ID, "platform", account.Platform)
}

func (e *AccountEndpoints) ToggleActiveHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	account.IsActive = !account.IsActive
	if err := e.repo.UpdateSocialAccount(r.Context(), account); err != nil {
		http.Error(w, "Failed to update social account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account":   account,
		"is_active": account.IsActive,
	})

	slog.Info("Social account toggled", "account_id", account.ID, "user_id", user.ID, "is_active", account.IsActive)
}

// DisconnectHandler drops the stored credentials but keeps the account row so
// published posts stay attributable
func (e *AccountEndpoints) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	account.AccessToken = ""
	account.RefreshToken = ""
	account.TokenExpiresAt = nil
	account.IsActive = false
	if err := e.repo.UpdateSocialAccount(r.Context(), account); err != nil {
		http.Error(w, "Failed to disconnect social account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Social account disconnected",
		"account": account,
	})

	slog.Info("Social account disconnected", "account_id", account.ID, "user_id", user.ID, "platform", account.Platform)
}

func (e *AccountEndpoints) TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	info, err := e.publisher.TestAccountConnection(r.Context(), e.repo, account)
	if err != nil {
		slog.Warn("Account connection test failed", "account_id", account.ID, "platform", account.Platform, "error", err)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"is_connected": false,
			"error":        err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"is_connected": true,
		"token_info":   info,
	})

	slog.Info("Account connection verified", "account_id", account.ID, "user_id", user.ID, "platform", account.Platform)
}

func (e *AccountEndpoints) AccountCapabilitiesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"platform":     account.Platform,
		"capabilities": account.Platform.Capabilities(),
	})
}

func (e *AccountEndpoints) CapabilitiesHandler(w http.ResponseWriter, r *http.Request) {
	capabilities := make(map[models.SocialPlatform]models.PlatformCapabilities, len(models.AllPlatforms))
	for _, platform := range models.AllPlatforms {
		capabilities[platform] = platform.Capabilities()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"platforms": capabilities,
	})
}

func (e *AccountEndpoints) PlatformStatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	stats, err := e.repo.GetPlatformStats(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to get platform stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"platforms": stats,
	})
}

func (e *AccountEndpoints) AccountPostsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	account := e.loadAccount(w, r, user.ID)
	if account == nil {
		return
	}

	posts, err := e.repo.GetPostsByAccount(r.Context(), user.ID, account.ID)
	if err != nil {
		http.Error(w, "Failed to get account posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account": account,
		"posts":   posts,
		"count":   len(posts),
	})
}

func (e *AccountEndpoints) loadAccount(w http.ResponseWriter, r *http.Request, userID string) *models.SocialAccount {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return nil
	}

	account, err := e.repo.GetSocialAccountByID(r.Context(), accountID, userID)
	if err != nil {
		slog.Error("Failed to get social account", "error", err, "account_id", accountID, "user_id", userID)
		http.Error(w, "Failed to get social account", http.StatusInternalServerError)
		return nil
	}
	if account == nil {
		http.Error(w, "Social account not found", http.StatusNotFound)
		return nil
	}
	return account
}
