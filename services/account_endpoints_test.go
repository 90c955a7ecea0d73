package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextpost/backend/integrations"
	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
)

type accountAPI struct {
	repo    *repository.GORMRepository
	graph   *fakeGraph
	router  chi.Router
	user    *models.User
	account *models.SocialAccount
}

func setupAccountAPI(t *testing.T) *accountAPI {
	t.Helper()
	ctx := context.Background()

	repo := newTestRepo(t)
	graph := &fakeGraph{tokenInfo: &integrations.TokenInfo{ID: "page-1", Name: "My Page"}}
	endpoints := NewAccountEndpoints(repo, NewPublisher(graph))

	user := &models.User{Email: "accounts@example.com", Password: "x"}
	require.NoError(t, repo.CreateUser(ctx, user))

	expiresAt := time.Now().Add(24 * time.Hour)
	account := &models.SocialAccount{
		UserID:         user.ID,
		Platform:       models.PlatformFacebookPage,
		PlatformUserID: "page-1",
		Username:       "My Page",
		AccessToken:    "token",
		TokenExpiresAt: &expiresAt,
		IsActive:       true,
	}
	require.NoError(t, repo.CreateSocialAccount(ctx, account))

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), "user", user)))
		})
	})
	endpoints.RegisterRoutes(router)

	return &accountAPI{repo: repo, graph: graph, router: router, user: user, account: account}
}

func (api *accountAPI) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func (api *accountAPI) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
	return rec
}

func TestAccountList(t *testing.T) {
	api := setupAccountAPI(t)

	rec := api.get(t, "/social-accounts")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	accounts := body["accounts"].([]interface{})
	account := accounts[0].(map[string]interface{})
	assert.Equal(t, "My Page", account["username"])
	// Credentials never leave the server
	assert.NotContains(t, account, "access_token")
	assert.NotContains(t, account, "AccessToken")
}

func TestToggleActive(t *testing.T) {
	api := setupAccountAPI(t)
	ctx := context.Background()

	rec := api.post(t, "/social-accounts/"+api.account.ID+"/toggle-active")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["is_active"])

	stored, err := api.repo.GetSocialAccountByID(ctx, api.account.ID, api.user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	rec = api.post(t, "/social-accounts/"+api.account.ID+"/toggle-active")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["is_active"])
}

func TestDisconnect(t *testing.T) {
	api := setupAccountAPI(t)
	ctx := context.Background()

	rec := api.post(t, "/social-accounts/"+api.account.ID+"/disconnect")
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := api.repo.GetSocialAccountByID(ctx, api.account.ID, api.user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.AccessToken)
	assert.Nil(t, stored.TokenExpiresAt)
	assert.False(t, stored.IsActive)
}

func TestDeleteAccount(t *testing.T) {
	api := setupAccountAPI(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/social-accounts/"+api.account.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := api.repo.GetSocialAccountByID(ctx, api.account.ID, api.user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestTestConnectionEndpoint(t *testing.T) {
	api := setupAccountAPI(t)

	rec := api.post(t, "/social-accounts/"+api.account.ID+"/test")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["is_connected"])
	info := body["token_info"].(map[string]interface{})
	assert.Equal(t, "My Page", info["name"])
}

func TestCapabilitiesEndpoint(t *testing.T) {
	api := setupAccountAPI(t)

	rec := api.get(t, "/social-accounts/capabilities")
	require.Equal(t, http.StatusOK, rec.Code)

	platforms := decodeBody(t, rec)["platforms"].(map[string]interface{})
	require.Len(t, platforms, len(models.AllPlatforms))

	ig := platforms["instagram_feed"].(map[string]interface{})
	assert.Equal(t, float64(2200), ig["max_content_length"])
	assert.Equal(t, true, ig["requires_media"])
}

func TestAccountCapabilitiesEndpoint(t *testing.T) {
	api := setupAccountAPI(t)

	rec := api.get(t, "/social-accounts/"+api.account.ID+"/capabilities")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "facebook_page", body["platform"])
	caps := body["capabilities"].(map[string]interface{})
	assert.Equal(t, float64(63206), caps["max_content_length"])
}

func TestPlatformStatsEndpoint(t *testing.T) {
	api := setupAccountAPI(t)
	require.NoError(t, api.repo.IncrementAccountUsage(context.Background(), api.account.ID))

	rec := api.get(t, "/social-accounts/platform-stats")
	require.Equal(t, http.StatusOK, rec.Code)

	platforms := decodeBody(t, rec)["platforms"].(map[string]interface{})
	fb := platforms["facebook_page"].(map[string]interface{})
	assert.Equal(t, float64(1), fb["total_accounts"])
	assert.Equal(t, float64(1), fb["total_posts"])
}

func TestAccountPostsEndpoint(t *testing.T) {
	api := setupAccountAPI(t)
	ctx := context.Background()

	require.NoError(t, api.repo.CreatePost(ctx, &models.Post{
		UserID: api.user.ID, SocialAccountID: api.account.ID,
		Content: "Bound to this account", Status: models.PostStatusDraft,
	}))

	rec := api.get(t, "/social-accounts/"+api.account.ID+"/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = api.get(t, "/social-accounts/aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee/posts")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
