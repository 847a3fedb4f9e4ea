package models

import "time"

// User is the identity that owns Accounts, Profiles and ApiKeys. The core
// never destroys a User; it is created on first sign-in by a collaborator
// out of this pipeline's scope.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile is a user-curated sub-view. (user_id, slug) is unique.
type Profile struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Account is a connected external identity on one Platform, owned by a
// Profile. (profile_id, platform, platform_user_id) is unique.
type Account struct {
	ID              string     `json:"id"`
	ProfileID       string     `json:"profile_id"`
	Platform        Platform   `json:"platform"`
	PlatformUserID  string     `json:"platform_user_id"`
	PlatformHandle  string     `json:"platform_handle"`
	EncAccessToken  []byte     `json:"-"`
	EncRefreshToken []byte     `json:"-"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
	Active          bool       `json:"active"`
	LastFetchedAt   *time.Time `json:"last_fetched_at,omitempty"`
}

// FilterType and FilterKey enumerate ProfileFilter's two small domains.
type FilterType string

const (
	FilterInclude FilterType = "include"
	FilterExclude FilterType = "exclude"
)

type FilterKey string

const (
	FilterKeyRepo          FilterKey = "repo"
	FilterKeySubreddit     FilterKey = "subreddit"
	FilterKeyKeyword       FilterKey = "keyword"
	FilterKeyAccountHandle FilterKey = "account-handle"
)

// ProfileFilter is an include/exclude predicate bound to a profile and an
// account, applied at timeline-read time only.
type ProfileFilter struct {
	ID        string     `json:"id"`
	ProfileID string     `json:"profile_id"`
	AccountID string     `json:"account_id"`
	Type      FilterType `json:"filter_type"`
	Key       FilterKey  `json:"filter_key"`
	Value     string     `json:"filter_value"`
}

// APIKey is a hashed bearer token for inbound requests; the plaintext never
// persists.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"`
	Name       string     `json:"name"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
