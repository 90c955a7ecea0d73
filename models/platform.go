package models

// SocialPlatform identifies a publishing target
type SocialPlatform string

const (
	PlatformFacebookPage   SocialPlatform = "facebook_page"
	PlatformInstagramFeed  SocialPlatform = "instagram_feed"
	PlatformInstagramStory SocialPlatform = "instagram_story"
	PlatformTwitter        SocialPlatform = "twitter"
	PlatformLinkedIn       SocialPlatform = "linkedin"
)

// AllPlatforms lists every platform the API accepts
var AllPlatforms = []SocialPlatform{
	PlatformFacebookPage,
	PlatformInstagramFeed,
	PlatformInstagramStory,
	PlatformTwitter,
	PlatformLinkedIn,
}

// PlatformCapabilities describes what a platform accepts
type PlatformCapabilities struct {
	DisplayName   string `json:"display_name"`
	MaxContentLen int    `json:"max_content_length"`
	RequiresMedia bool   `json:"requires_media"`
	SupportsVideo bool   `json:"supports_video"`
	SupportsLink  bool   `json:"supports_link"`
}

// platformCapabilities carries per-platform publishing rules. Content limits
// follow the platform APIs: Facebook 63,206 chars, Twitter 280, Instagram
// captions 2,200. Instagram requires at least one media attachment.
var platformCapabilities = map[SocialPlatform]PlatformCapabilities{
	PlatformFacebookPage: {
		DisplayName:   "Facebook Page",
		MaxContentLen: 63206,
		RequiresMedia: false,
		SupportsVideo: true,
		SupportsLink:  true,
	},
	PlatformInstagramFeed: {
		DisplayName:   "Instagram Feed",
		MaxContentLen: 2200,
		RequiresMedia: true,
		SupportsVideo: true,
		SupportsLink:  false,
	},
	PlatformInstagramStory: {
		DisplayName:   "Instagram Story",
		MaxContentLen: 2200,
		RequiresMedia: true,
		SupportsVideo: true,
		SupportsLink:  false,
	},
	PlatformTwitter: {
		DisplayName:   "Twitter",
		MaxContentLen: 280,
		RequiresMedia: false,
		SupportsVideo: true,
		SupportsLink:  true,
	},
	PlatformLinkedIn: {
		DisplayName:   "LinkedIn",
		MaxContentLen: 3000,
		RequiresMedia: false,
		SupportsVideo: true,
		SupportsLink:  true,
	},
}

// IsValid reports whether p names a supported platform
func (p SocialPlatform) IsValid() bool {
	_, ok := platformCapabilities[p]
	return ok
}

// DisplayName returns the human-readable platform name
func (p SocialPlatform) DisplayName() string {
	if caps, ok := platformCapabilities[p]; ok {
		return caps.DisplayName
	}
	return string(p)
}

// Capabilities returns the publishing rules for the platform
func (p SocialPlatform) Capabilities() PlatformCapabilities {
	return platformCapabilities[p]
}
