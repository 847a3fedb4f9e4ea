package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/pulsetrail/aggregator/internal/apperr"
)

// APIKeyLookup resolves the user-id owning an API key by its sha256 hash.
// repository.LookupUserIDByKeyHash satisfies this directly.
type APIKeyLookup func(ctx context.Context, keyHash string) (string, error)

// Authenticator resolves the caller's user-id from inbound credentials.
// Two credential forms exist: an X-API-Key header backed by the api_keys
// table, and a Bearer JWT whose subject claim is the user-id. An API key
// wins when both are presented, since keys are the credential this
// service issues itself.
type Authenticator struct {
	keys      APIKeyLookup
	jwtSecret []byte
}

func NewAuthenticator(jwtSecret string, keys APIKeyLookup) *Authenticator {
	return &Authenticator{keys: keys, jwtSecret: []byte(jwtSecret)}
}

// Authenticate returns the authenticated user-id for r, or an error when
// no presented credential resolves to one.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return a.userForAPIKey(r.Context(), key)
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return a.userForBearer(header)
	}
	return "", apperr.New(apperr.KindValidation, "no credentials presented")
}

func (a *Authenticator) userForAPIKey(ctx context.Context, key string) (string, error) {
	if a.keys == nil {
		return "", apperr.New(apperr.KindValidation, "api key auth not configured")
	}
	sum := sha256.Sum256([]byte(key))
	userID, err := a.keys(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return "", apperr.Wrap(apperr.KindForbidden, "unknown api key", err)
	}
	if userID == "" {
		return "", apperr.New(apperr.KindForbidden, "unknown api key")
	}
	return userID, nil
}

func (a *Authenticator) userForBearer(header string) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", apperr.New(apperr.KindValidation, "bearer auth not configured")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.KindValidation, "unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperr.Wrap(apperr.KindForbidden, "invalid bearer token", err)
	}
	if claims.Subject == "" {
		return "", apperr.New(apperr.KindValidation, "bearer token has no subject")
	}
	return claims.Subject, nil
}

type authedUserKey struct{}

// Require rejects unauthenticated requests and stores the resolved user-id
// on the request context for the handlers behind it. It does not check
// ownership of the path's {user_id}; that's requireOwnUser's job, run
// per-handler after routing.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := a.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authedUserKey{}, userID)))
	})
}

// AuthedUserID returns the user-id Require stored on ctx, or "" outside an
// authenticated request.
func AuthedUserID(ctx context.Context) string {
	id, _ := ctx.Value(authedUserKey{}).(string)
	return id
}
