package providers

import (
	"context"
	"crypto/subtle"
	"fmt"
)

var _ AuthProvider = &APIKeyAuthProvider{}

// APIKeyAuthProvider accepts a fixed set of shared keys. Each key maps to the
// uid reported in the claims.
type APIKeyAuthProvider struct {
	keys map[string]string
}

// NewAPIKeyAuthProvider creates a provider accepting the given keys. The uid
// of a key is the key's name in the map.
func NewAPIKeyAuthProvider(keys map[string]string) *APIKeyAuthProvider {
	copied := make(map[string]string, len(keys))
	for uid, key := range keys {
		copied[uid] = key
	}
	return &APIKeyAuthProvider{keys: copied}
}

func (p *APIKeyAuthProvider) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("api key is missing")
	}
	for uid, key := range p.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			return &TokenClaims{UID: uid}, nil
		}
	}
	return nil, fmt.Errorf("api key is invalid")
}

var _ AuthProvider = &NoAuthProvider{}

// NoAuthProvider accepts every caller. Used for local development.
type NoAuthProvider struct{}

func (p *NoAuthProvider) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	return &TokenClaims{UID: "anonymous"}, nil
}
