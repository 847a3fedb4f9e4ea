package oauthflow

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/httpclient"
)

// TokenResponse is the platform token endpoint's raw JSON reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

var validTokenTypes = map[string]bool{"Bearer": true, "bearer": true, "MAC": true}

// Validate enforces the token-response shape rules: a non-empty
// access_token and a recognized token_type (defaulting to Bearer).
func (t TokenResponse) Validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return apperr.New(apperr.KindValidation, "token response missing access_token")
	}
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	if !validTokenTypes[tokenType] {
		return apperr.New(apperr.KindValidation, "unrecognized token_type "+tokenType)
	}
	return nil
}

// ExpiresAt computes the absolute expiry: now + expires_in when
// expires_in > 0; zero/missing yields no tracked expiry.
func (t TokenResponse) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// IdentityResponse is the subset of an identity endpoint's reply the
// lifecycle needs to key an Account.
type IdentityResponse struct {
	PlatformUserID string `json:"id"`
	Handle         string `json:"handle"`
}

// ExchangeCode calls the platform's token endpoint with the
// authorization_code grant. Token endpoints take
// application/x-www-form-urlencoded bodies, not JSON.
func ExchangeCode(ctx context.Context, client *httpclient.Client, tokenPath, code, clientID, clientSecret, redirectURI string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("redirect_uri", redirectURI)

	resp, err := client.PostForm(ctx, tokenPath, form)
	if err != nil {
		return TokenResponse{}, apperr.Wrap(apperr.KindNetworkError, "token exchange request", err)
	}
	body, err := httpclient.ReadAll(resp)
	if err != nil {
		return TokenResponse{}, apperr.Wrap(apperr.KindNetworkError, "read token response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenResponse{}, apperr.New(apperr.KindAPIError, "token endpoint returned "+resp.Status).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(body)})
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return TokenResponse{}, apperr.Wrap(apperr.KindParseError, "decode token response", err)
	}
	if err := tok.Validate(); err != nil {
		return TokenResponse{}, err
	}
	return tok, nil
}

// FetchIdentity calls the platform's identity endpoint using the fresh
// access token.
func FetchIdentity(ctx context.Context, client *httpclient.Client, identityPath, accessToken string) (IdentityResponse, error) {
	resp, err := client.GetJSON(ctx, identityPath, accessToken, nil)
	if err != nil {
		return IdentityResponse{}, apperr.Wrap(apperr.KindNetworkError, "identity request", err)
	}
	body, err := httpclient.ReadAll(resp)
	if err != nil {
		return IdentityResponse{}, apperr.Wrap(apperr.KindNetworkError, "read identity response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return IdentityResponse{}, apperr.New(apperr.KindAPIError, "identity endpoint returned "+resp.Status).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var identity IdentityResponse
	if err := json.Unmarshal(body, &identity); err != nil {
		return IdentityResponse{}, apperr.Wrap(apperr.KindParseError, "decode identity response", err)
	}
	return identity, nil
}
