package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateForPlatform(t *testing.T) {
	tests := []struct {
		name     string
		post     Post
		platform SocialPlatform
		wantErrs int
	}{
		{
			name:     "valid facebook post",
			post:     Post{Content: "Hello world"},
			platform: PlatformFacebookPage,
			wantErrs: 0,
		},
		{
			name:     "empty content",
			post:     Post{Content: "   "},
			platform: PlatformFacebookPage,
			wantErrs: 1,
		},
		{
			name:     "tweet over the character limit",
			post:     Post{Content: strings.Repeat("a", 281)},
			platform: PlatformTwitter,
			wantErrs: 1,
		},
		{
			name:     "tweet at the character limit",
			post:     Post{Content: strings.Repeat("a", 280)},
			platform: PlatformTwitter,
			wantErrs: 0,
		},
		{
			name:     "multibyte tweet at the character limit",
			post:     Post{Content: strings.Repeat("é", 280)},
			platform: PlatformTwitter,
			wantErrs: 0,
		},
		{
			name:     "multibyte tweet over the character limit",
			post:     Post{Content: strings.Repeat("é", 281)},
			platform: PlatformTwitter,
			wantErrs: 1,
		},
		{
			name:     "instagram without media",
			post:     Post{Content: "A caption"},
			platform: PlatformInstagramFeed,
			wantErrs: 1,
		},
		{
			name:     "instagram with media",
			post:     Post{Content: "A caption", MediaURLs: MediaURLs{"https://example.com/pic.jpg"}},
			platform: PlatformInstagramFeed,
			wantErrs: 0,
		},
		{
			name:     "story caption and media",
			post:     Post{Content: "Story time", MediaURLs: MediaURLs{"https://example.com/pic.jpg"}},
			platform: PlatformInstagramStory,
			wantErrs: 0,
		},
		{
			name:     "empty instagram post collects both violations",
			post:     Post{Content: ""},
			platform: PlatformInstagramFeed,
			wantErrs: 2,
		},
		{
			name:     "unknown platform",
			post:     Post{Content: "Hello"},
			platform: SocialPlatform("myspace"),
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.post.ValidateForPlatform(tt.platform)
			assert.Len(t, errs, tt.wantErrs, "violations: %v", errs)
		})
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	draft := Post{Status: PostStatusDraft, ScheduledAt: &past}
	assert.False(t, draft.IsDue(now), "drafts are never due")

	unscheduled := Post{Status: PostStatusScheduled}
	assert.False(t, unscheduled.IsDue(now), "no scheduled time means not due")

	upcoming := Post{Status: PostStatusScheduled, ScheduledAt: &future}
	assert.False(t, upcoming.IsDue(now))

	due := Post{Status: PostStatusScheduled, ScheduledAt: &past}
	assert.True(t, due.IsDue(now))

	retryLater := Post{Status: PostStatusScheduled, ScheduledAt: &past, NextAttemptAt: &future}
	assert.False(t, retryLater.IsDue(now), "backoff gate holds the post back")

	retryReady := Post{Status: PostStatusScheduled, ScheduledAt: &past, NextAttemptAt: &past}
	assert.True(t, retryReady.IsDue(now))
}

func TestPlatformCapabilities(t *testing.T) {
	assert.True(t, PlatformFacebookPage.IsValid())
	assert.False(t, SocialPlatform("tiktok").IsValid())

	assert.Equal(t, "Facebook Page", PlatformFacebookPage.DisplayName())
	assert.Equal(t, "myspace", SocialPlatform("myspace").DisplayName())

	ig := PlatformInstagramFeed.Capabilities()
	assert.Equal(t, 2200, ig.MaxContentLen)
	assert.True(t, ig.RequiresMedia)

	tw := PlatformTwitter.Capabilities()
	assert.Equal(t, 280, tw.MaxContentLen)
	assert.False(t, tw.RequiresMedia)
}

func TestTokenExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	assert.False(t, (&SocialAccount{}).TokenExpired(), "no expiry means the token never expires")
	assert.False(t, (&SocialAccount{TokenExpiresAt: &future}).TokenExpired())
	assert.True(t, (&SocialAccount{TokenExpiresAt: &past}).TokenExpired())
}
