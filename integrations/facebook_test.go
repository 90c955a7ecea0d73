package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *FacebookClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewFacebookClient("app-id", "app-secret")
	client.SetBaseURL(server.URL)
	return client
}

func TestAuthURL(t *testing.T) {
	client := NewFacebookClient("app-id", "app-secret")
	raw := client.AuthURL("https://example.com/callback", "user-1:facebook_page")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", parsed.Host)
	assert.True(t, strings.HasSuffix(parsed.Path, "/dialog/oauth"))

	q := parsed.Query()
	assert.Equal(t, "app-id", q.Get("client_id"))
	assert.Equal(t, "https://example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "user-1:facebook_page", q.Get("state"))
	for _, scope := range []string{"pages_manage_posts", "instagram_content_publish", "pages_show_list"} {
		assert.Contains(t, q.Get("scope"), scope)
	}
}

func TestExchangeCode(t *testing.T) {
	var exchanges []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		q := r.URL.Query()

		if q.Get("grant_type") == "fb_exchange_token" {
			exchanges = append(exchanges, "extend:"+q.Get("fb_exchange_token"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "long-lived-token",
				"expires_in":   5184000,
			})
			return
		}

		exchanges = append(exchanges, "code:"+q.Get("code"))
		assert.Equal(t, "app-id", q.Get("client_id"))
		assert.Equal(t, "app-secret", q.Get("client_secret"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "short-lived-token",
			"expires_in":   3600,
		})
	}))

	token, err := client.ExchangeCode(context.Background(), "auth-code", "https://example.com/callback")
	require.NoError(t, err)
	assert.Equal(t, "long-lived-token", token.AccessToken)
	assert.True(t, token.ExpiresAt.After(time.Now().Add(59*24*time.Hour)))
	assert.Equal(t, []string{"code:auth-code", "extend:short-lived-token"}, exchanges)
}

func TestUserPagesFiltersByTask(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/accounts", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"id":           "page-1",
					"name":         "Publishable Page",
					"access_token": "page-token-1",
					"category":     "Business",
					"tasks":        []string{"MANAGE", "CREATE_CONTENT", "ANALYZE"},
					"instagram_business_account": map[string]string{
						"id": "ig-1",
					},
				},
				{
					"id":           "page-2",
					"name":         "Analyst Only Page",
					"access_token": "page-token-2",
					"tasks":        []string{"ANALYZE"},
				},
			},
		})
	}))

	pages, err := client.UserPages(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "page-1", pages[0].ID)
	assert.Equal(t, "page-token-1", pages[0].AccessToken)
	assert.Equal(t, "ig-1", pages[0].InstagramID)

	igAccounts, err := client.InstagramBusinessAccounts(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, igAccounts, 1)
	assert.Equal(t, "ig-1", igAccounts[0].ID)
	assert.Equal(t, "Publishable Page", igAccounts[0].Username)
	assert.Equal(t, "page-1", igAccounts[0].PageID)
}

func TestPublishPagePost(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/page-1/feed", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Hello world", r.PostForm.Get("message"))
		assert.Equal(t, "page-token", r.PostForm.Get("access_token"))
		assert.Equal(t, "https://example.com/pic.jpg", r.PostForm.Get("link"))

		json.NewEncoder(w).Encode(map[string]string{"id": "page-1_99"})
	}))

	result, err := client.PublishPagePost(context.Background(), "page-token", "page-1", "Hello world",
		[]string{"https://example.com/pic.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "page-1_99", result.PlatformPostID)
	assert.Equal(t, "https://facebook.com/page-1_99", result.PublishedURL)
}

func TestPublishInstagramTwoStep(t *testing.T) {
	var steps []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/ig-1/media":
			steps = append(steps, "container")
			assert.Equal(t, "A caption", r.PostForm.Get("caption"))
			assert.Equal(t, "https://example.com/pic.jpg", r.PostForm.Get("image_url"))
			assert.Empty(t, r.PostForm.Get("media_type"))
			json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
		case "/ig-1/media_publish":
			steps = append(steps, "publish")
			assert.Equal(t, "container-1", r.PostForm.Get("creation_id"))
			json.NewEncoder(w).Encode(map[string]string{"id": "ig-post-1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	result, err := client.PublishInstagram(context.Background(), "token", "ig-1", "A caption",
		[]string{"https://example.com/pic.jpg"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"container", "publish"}, steps)
	assert.Equal(t, "ig-post-1", result.PlatformPostID)
	assert.Equal(t, "https://instagram.com/p/ig-post-1/", result.PublishedURL)
}

func TestPublishInstagramStorySetsMediaType(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/ig-1/media":
			assert.Equal(t, "STORIES", r.PostForm.Get("media_type"))
			json.NewEncoder(w).Encode(map[string]string{"id": "container-2"})
		case "/ig-1/media_publish":
			json.NewEncoder(w).Encode(map[string]string{"id": "story-1"})
		}
	}))

	_, err := client.PublishInstagram(context.Background(), "token", "ig-1", "Story",
		[]string{"https://example.com/pic.jpg"}, true)
	require.NoError(t, err)
}

func TestPublishInstagramRequiresMedia(t *testing.T) {
	client := NewFacebookClient("app-id", "app-secret")
	_, err := client.PublishInstagram(context.Background(), "token", "ig-1", "No media", nil, false)
	require.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "name": "Jordan"})
	}))

	info, err := client.ValidateToken(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.ID)
	assert.Equal(t, "Jordan", info.Name)
}

func TestGraphErrorParsing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message":       "Invalid OAuth access token",
				"code":          190,
				"error_subcode": 463,
			},
		})
	}))

	_, err := client.ValidateToken(context.Background(), "expired-token")
	require.Error(t, err)

	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 190, gerr.Code)
	assert.Equal(t, 463, gerr.Subcode)
	assert.Equal(t, "Invalid OAuth access token", gerr.Message)
}

func TestGraphErrorNonJSONBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("gateway timeout"))
	}))

	_, err := client.ValidateToken(context.Background(), "token")
	require.Error(t, err)

	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusInternalServerError, gerr.Code)
	assert.Contains(t, gerr.Message, "gateway timeout")
}
