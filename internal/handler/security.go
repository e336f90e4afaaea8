package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/marketbay/storefront/internal/domain/auth"
)

// Security authenticates admin requests via HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate validates an API key by computing its HMAC-SHA256, looking it
// up in the repository, and performing a constant-time comparison to prevent
// timing attacks.
func (s *Security) Authenticate(ctx context.Context, key string) error {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return errors.New("unauthorized")
	}

	// Constant-time comparison guards against timing side-channels even
	// though the lookup already succeeded: the stored hash could differ from
	// what we computed if the repository returns a stale row.
	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return errors.New("unauthorized")
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return errors.New("unauthorized")
	}

	return nil
}

// requireAPIKey wraps next so it only runs for requests carrying a valid
// api_key header.
func (h *Handler) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "api key required")
			return
		}
		if err := h.security.Authenticate(r.Context(), key); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}
