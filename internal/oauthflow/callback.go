package oauthflow

import (
	"context"
	"time"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/credential"
	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
)

// AccountStore is the persistence boundary the callback needs to upsert an
// Account: look up by (platform, platform_user_id), and insert-or-update.
type AccountStore interface {
	FindByPlatformUserID(ctx context.Context, platform models.Platform, platformUserID string) (models.Account, bool, error)
	UpsertAccount(ctx context.Context, account models.Account) (models.Account, error)
}

// PlatformEndpoints is the fixed per-platform token/identity endpoint
// pair the callback dials.
type PlatformEndpoints struct {
	TokenPath    string
	IdentityPath string
}

// CallbackParams carries everything the inbound OAuth callback handler
// collects from the request before invoking HandleCallback.
type CallbackParams struct {
	Platform       models.Platform
	ProfileID      string
	Code           string
	EncodedState   string
	RequiredExtras []string
	ClientID       string
	ClientSecret   string
	RedirectURI    string
}

// HandleCallback runs the full callback sequence: decode state, exchange
// the code, fetch identity, and upsert the Account. Every failure surfaces
// as one of the named error codes (token_failed, user_failed, save_failed,
// invalid_state, ...).
func HandleCallback(ctx context.Context, client *httpclient.Client, endpoints PlatformEndpoints, accounts AccountStore, key credential.Key, params CallbackParams) (models.Account, error) {
	if _, err := Decode(params.EncodedState, params.RequiredExtras); err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindValidation, "invalid_state", err)
	}

	tok, err := ExchangeCode(ctx, client, endpoints.TokenPath, params.Code, params.ClientID, params.ClientSecret, params.RedirectURI)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindAPIError, "token_failed", err)
	}

	identity, err := FetchIdentity(ctx, client, endpoints.IdentityPath, tok.AccessToken)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindAPIError, "user_failed", err)
	}

	encAccess, err := credential.EncryptBytes(tok.AccessToken, key)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindEncryptionError, "save_failed", err)
	}
	var encRefresh []byte
	if tok.RefreshToken != "" {
		encRefresh, err = credential.EncryptBytes(tok.RefreshToken, key)
		if err != nil {
			return models.Account{}, apperr.Wrap(apperr.KindEncryptionError, "save_failed", err)
		}
	}

	existing, found, err := accounts.FindByPlatformUserID(ctx, params.Platform, identity.PlatformUserID)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindStoreError, "save_failed", err)
	}

	account := models.Account{
		ProfileID:       params.ProfileID,
		Platform:        params.Platform,
		PlatformUserID:  identity.PlatformUserID,
		PlatformHandle:  identity.Handle,
		EncAccessToken:  encAccess,
		EncRefreshToken: encRefresh,
		TokenExpiresAt:  tok.ExpiresAt(time.Now().UTC()),
		Active:          true,
	}
	if found {
		account.ID = existing.ID
		account.ProfileID = existing.ProfileID
	}

	saved, err := accounts.UpsertAccount(ctx, account)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindStoreError, "save_failed", err)
	}
	return saved, nil
}
