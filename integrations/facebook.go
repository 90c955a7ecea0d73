package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	graphVersion    = "v18.0"
	defaultGraphURL = "https://graph.facebook.com/" + graphVersion
	defaultOAuthURL = "https://www.facebook.com/" + graphVersion + "/dialog/oauth"

	// Long-lived tokens last about 60 days when Facebook omits expires_in
	defaultTokenLifetime = 60 * 24 * time.Hour
)

// oauthScopes are the permissions needed to list pages and publish to
// Facebook Pages and Instagram business accounts
var oauthScopes = []string{
	"pages_manage_posts",
	"pages_read_engagement",
	"instagram_basic",
	"instagram_content_publish",
	"pages_show_list",
}

// GraphError is a structured Facebook Graph API error
type GraphError struct {
	Message string
	Code    int
	Subcode int
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("facebook graph API error %d: %s", e.Code, e.Message)
}

// Token is the result of an OAuth code exchange
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Page is a Facebook page the user can publish to
type Page struct {
	ID          string
	Name        string
	AccessToken string
	Category    string
	InstagramID string // Linked Instagram business account, if any
}

// InstagramAccount is an Instagram business account reachable through a page
type InstagramAccount struct {
	ID          string
	Username    string
	AccessToken string
	PageID      string
}

// PublishResult identifies a post created on the platform
type PublishResult struct {
	PlatformPostID string
	PublishedURL   string
}

// TokenInfo describes the identity behind an access token
type TokenInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// FacebookClient talks to the Facebook Graph API for OAuth and publishing
type FacebookClient struct {
	appID     string
	appSecret string
	baseURL   string
	oauthURL  string
	client    *http.Client
}

func NewFacebookClient(appID, appSecret string) *FacebookClient {
	return &FacebookClient{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   defaultGraphURL,
		oauthURL:  defaultOAuthURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL points the client at a different Graph endpoint, for tests
func (f *FacebookClient) SetBaseURL(baseURL string) {
	f.baseURL = baseURL
}

// AuthURL builds the Facebook OAuth dialog URL
func (f *FacebookClient) AuthURL(redirectURI, state string) string {
	params := url.Values{}
	params.Set("client_id", f.appID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", strings.Join(oauthScopes, ","))
	params.Set("response_type", "code")
	if state != "" {
		params.Set("state", state)
	}
	return f.oauthURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code for a long-lived access token
func (f *FacebookClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	params := url.Values{}
	params.Set("client_id", f.appID)
	params.Set("client_secret", f.appSecret)
	params.Set("redirect_uri", redirectURI)
	params.Set("code", code)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := f.get(ctx, "/oauth/access_token", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return f.longLivedToken(ctx, resp.AccessToken)
}

// longLivedToken converts a short-lived token into a ~60 day one
func (f *FacebookClient) longLivedToken(ctx context.Context, shortToken string) (*Token, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", f.appID)
	params.Set("client_secret", f.appSecret)
	params.Set("fb_exchange_token", shortToken)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := f.get(ctx, "/oauth/access_token", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to extend token: %w", err)
	}

	lifetime := defaultTokenLifetime
	if resp.ExpiresIn > 0 {
		lifetime = time.Duration(resp.ExpiresIn) * time.Second
	}
	return &Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Add(lifetime),
	}, nil
}

// UserPages lists the pages the token holder can publish to, with any linked
// Instagram business account
func (f *FacebookClient) UserPages(ctx context.Context, accessToken string) ([]Page, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("fields", "id,name,access_token,category,tasks,instagram_business_account")

	var resp struct {
		Data []struct {
			ID                string   `json:"id"`
			Name              string   `json:"name"`
			AccessToken       string   `json:"access_token"`
			Category          string   `json:"category"`
			Tasks             []string `json:"tasks"`
			InstagramBusiness *struct {
				ID string `json:"id"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	if err := f.get(ctx, "/me/accounts", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	var pages []Page
	for _, pd := range resp.Data {
		// Only pages the user can manage and post to
		if !containsTask(pd.Tasks, "MANAGE") || !containsTask(pd.Tasks, "CREATE_CONTENT") {
			continue
		}
		page := Page{
			ID:          pd.ID,
			Name:        pd.Name,
			AccessToken: pd.AccessToken,
			Category:    pd.Category,
		}
		if pd.InstagramBusiness != nil {
			page.InstagramID = pd.InstagramBusiness.ID
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// InstagramBusinessAccounts lists Instagram business accounts linked to the
// token holder's pages
func (f *FacebookClient) InstagramBusinessAccounts(ctx context.Context, accessToken string) ([]InstagramAccount, error) {
	pages, err := f.UserPages(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var accounts []InstagramAccount
	for _, page := range pages {
		if page.InstagramID == "" {
			continue
		}
		accounts = append(accounts, InstagramAccount{
			ID:          page.InstagramID,
			Username:    page.Name, // Name of the linked Facebook page
			AccessToken: page.AccessToken,
			PageID:      page.ID,
		})
	}
	return accounts, nil
}

// PublishPagePost publishes a message to a Facebook page feed. The first
// media URL, if any, is attached as a link preview.
func (f *FacebookClient) PublishPagePost(ctx context.Context, accessToken, pageID, message string, mediaURLs []string) (*PublishResult, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", accessToken)
	if len(mediaURLs) > 0 {
		form.Set("link", mediaURLs[0])
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := f.post(ctx, "/"+pageID+"/feed", form, &resp); err != nil {
		return nil, fmt.Errorf("failed to publish page post: %w", err)
	}

	slog.Info("Published Facebook page post", "page_id", pageID, "platform_post_id", resp.ID)
	return &PublishResult{
		PlatformPostID: resp.ID,
		PublishedURL:   "https://facebook.com/" + resp.ID,
	}, nil
}

// PublishInstagram publishes to an Instagram feed or story in two steps:
// create a media container, then publish it
func (f *FacebookClient) PublishInstagram(ctx context.Context, accessToken, igAccountID, caption string, mediaURLs []string, story bool) (*PublishResult, error) {
	if len(mediaURLs) == 0 {
		return nil, fmt.Errorf("instagram requires at least one media URL")
	}

	containerID, err := f.createMediaContainer(ctx, accessToken, igAccountID, caption, mediaURLs[0], story)
	if err != nil {
		return nil, err
	}
	return f.publishMediaContainer(ctx, accessToken, igAccountID, containerID)
}

func (f *FacebookClient) createMediaContainer(ctx context.Context, accessToken, igAccountID, caption, imageURL string, story bool) (string, error) {
	form := url.Values{}
	form.Set("image_url", imageURL)
	form.Set("caption", caption)
	form.Set("access_token", accessToken)
	if story {
		form.Set("media_type", "STORIES")
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := f.post(ctx, "/"+igAccountID+"/media", form, &resp); err != nil {
		return "", fmt.Errorf("failed to create media container: %w", err)
	}
	return resp.ID, nil
}

func (f *FacebookClient) publishMediaContainer(ctx context.Context, accessToken, igAccountID, containerID string) (*PublishResult, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", accessToken)

	var resp struct {
		ID string `json:"id"`
	}
	if err := f.post(ctx, "/"+igAccountID+"/media_publish", form, &resp); err != nil {
		return nil, fmt.Errorf("failed to publish media container: %w", err)
	}

	slog.Info("Published Instagram post", "ig_account_id", igAccountID, "platform_post_id", resp.ID)
	return &PublishResult{
		PlatformPostID: resp.ID,
		PublishedURL:   "https://instagram.com/p/" + resp.ID + "/",
	}, nil
}

// ValidateToken checks an access token against /me
func (f *FacebookClient) ValidateToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("fields", "id,name,email")

	var info TokenInfo
	if err := f.get(ctx, "/me", params, &info); err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	return &info, nil
}

func (f *FacebookClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return f.do(req, out)
}

func (f *FacebookClient) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req, out)
}

func (f *FacebookClient) do(req *http.Request, out interface{}) error {
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
				Subcode int    `json:"error_subcode"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
			return &GraphError{Message: string(body), Code: resp.StatusCode}
		}
		slog.Error("Facebook API error", "code", errResp.Error.Code, "message", errResp.Error.Message)
		return &GraphError{
			Message: errResp.Error.Message,
			Code:    errResp.Error.Code,
			Subcode: errResp.Error.Subcode,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid API response: %w", err)
	}
	return nil
}

func containsTask(tasks []string, task string) bool {
	for _, t := range tasks {
		if t == task {
			return true
		}
	}
	return false
}
