package oauthflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/credential"
	"github.com/pulsetrail/aggregator/internal/httpclient"
	"github.com/pulsetrail/aggregator/internal/models"
)

func TestStateRoundTrip(t *testing.T) {
	s := NewState("u1", map[string]string{"return_to": "/dashboard"})
	encoded, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(encoded, []string{"return_to"})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.UserID != "u1" {
		t.Fatalf("expected user_id u1, got %q", decoded.UserID)
	}
	if decoded.Extras["return_to"] != "/dashboard" {
		t.Fatalf("expected extras to round-trip, got %+v", decoded.Extras)
	}
	if decoded.Nonce == "" {
		t.Fatal("expected a non-empty nonce")
	}
}

func TestDecodeMissingUserID(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"nonce": "n1"})
	encoded := base64.URLEncoding.EncodeToString(raw)
	_, err := Decode(encoded, nil)
	if apperr.KindOf(err) != apperr.KindValidation || err.Error() != "validation: missing_user_id" {
		t.Fatalf("expected missing_user_id, got %v", err)
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	_, err := Decode("not-valid-base64!!!", nil)
	if apperr.KindOf(err) != apperr.KindValidation || err.Error() != "validation: invalid_base64" {
		t.Fatalf("expected invalid_base64, got %v", err)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("not json"))
	_, err := Decode(encoded, nil)
	if apperr.KindOf(err) != apperr.KindValidation || err.Error() != "validation: invalid_json" {
		t.Fatalf("expected invalid_json, got %v", err)
	}
}

func TestDecodeMissingRequiredExtra(t *testing.T) {
	s := NewState("u1", nil)
	encoded, _ := Encode(s)
	_, err := Decode(encoded, []string{"return_to"})
	if apperr.KindOf(err) != apperr.KindValidation || err.Error() != "validation: missing_return_to" {
		t.Fatalf("expected missing_return_to, got %v", err)
	}
}

type fakeAccountStore struct {
	byPlatformUser map[string]models.Account
	saved          []models.Account
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{byPlatformUser: make(map[string]models.Account)}
}

func (f *fakeAccountStore) FindByPlatformUserID(ctx context.Context, platform models.Platform, platformUserID string) (models.Account, bool, error) {
	acct, ok := f.byPlatformUser[string(platform)+":"+platformUserID]
	return acct, ok, nil
}

func (f *fakeAccountStore) UpsertAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if account.ID == "" {
		account.ID = "new-account-id"
	}
	f.byPlatformUser[string(account.Platform)+":"+account.PlatformUserID] = account
	f.saved = append(f.saved, account)
	return account, nil
}

// TestHandleCallbackHappyPath checks the full callback sequence: a valid
// state, code and client credentials resolve to an active Account whose
// tokens decrypt to the exchanged values.
func TestHandleCallbackHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-xyz", RefreshToken: "refresh-xyz", TokenType: "Bearer", ExpiresIn: 3600})
		case "/identity":
			json.NewEncoder(w).Encode(IdentityResponse{PlatformUserID: "gh-user-1", Handle: "alice"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := httpclient.New(5*time.Second, server.URL)
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	accounts := newFakeAccountStore()

	state := NewState("u1", nil)
	encoded, err := Encode(state)
	if err != nil {
		t.Fatal(err)
	}

	account, err := HandleCallback(context.Background(), client, PlatformEndpoints{TokenPath: "/token", IdentityPath: "/identity"}, accounts, key, CallbackParams{
		Platform:     models.PlatformCodeHost,
		ProfileID:    "profile1",
		Code:         "c1",
		EncodedState: encoded,
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example/callback",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !account.Active {
		t.Fatal("expected account to be active")
	}
	if account.PlatformUserID != "gh-user-1" {
		t.Fatalf("unexpected platform_user_id: %s", account.PlatformUserID)
	}

	plaintext, err := credential.DecryptBytes(account.EncAccessToken, key)
	if err != nil {
		t.Fatal(err)
	}
	if plaintext != "access-xyz" {
		t.Fatalf("expected decrypted access token to round-trip, got %q", plaintext)
	}
}

func TestHandleCallbackInvalidStateShortCircuits(t *testing.T) {
	client := httpclient.New(5*time.Second, "http://unused.invalid")
	key := credential.DeriveKey("test-key-material-at-least-32-bytes")
	accounts := newFakeAccountStore()

	_, err := HandleCallback(context.Background(), client, PlatformEndpoints{}, accounts, key, CallbackParams{
		Platform:     models.PlatformCodeHost,
		EncodedState: "not-valid-base64!!!",
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for malformed state, got %v", err)
	}
	if len(accounts.saved) != 0 {
		t.Fatal("expected no account to be saved when state decoding fails")
	}
}
