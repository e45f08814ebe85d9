package providers

import "context"

// AuthProvider verifies the credential a caller presents in the API_KEY
// header or the subscribe hello frame.
type AuthProvider interface {
	VerifyToken(ctx context.Context, token string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID string `json:"uid"`
}
