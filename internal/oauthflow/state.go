// Package oauthflow implements the OAuth token lifecycle: state
// encode/decode, code-for-token exchange, identity lookup, and the
// Account upsert that follows a successful callback.
package oauthflow

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/pulsetrail/aggregator/internal/apperr"
)

// State is the object encoded into the OAuth `state` query parameter:
// `{user_id, nonce, ...extras}`.
type State struct {
	UserID string            `json:"user_id"`
	Nonce  string            `json:"nonce"`
	Extras map[string]string `json:"extras,omitempty"`
}

// NewState builds a State with a fresh UUIDv4 nonce.
func NewState(userID string, extras map[string]string) State {
	return State{UserID: userID, Nonce: uuid.NewString(), Extras: extras}
}

// Encode produces the base64url-encoded JSON the OAuth `state` parameter
// carries.
func Encode(s State) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "marshal oauth state", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode and enforces the required-key rules:
// malformed base64 -> invalid_base64, malformed JSON -> invalid_json,
// empty user_id -> missing_user_id, any declared requiredExtra absent ->
// missing_{key}.
func Decode(encoded string, requiredExtras []string) (State, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return State{}, apperr.Wrap(apperr.KindValidation, "invalid_base64", err)
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, apperr.Wrap(apperr.KindValidation, "invalid_json", err)
	}

	if s.UserID == "" {
		return State{}, apperr.New(apperr.KindValidation, "missing_user_id")
	}

	for _, key := range requiredExtras {
		if s.Extras[key] == "" {
			return State{}, apperr.New(apperr.KindValidation, "missing_"+key)
		}
	}

	return s, nil
}
