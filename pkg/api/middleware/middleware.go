package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	authproviders "github.com/cbodonnell/tsuro/pkg/auth/providers"
	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/log"
)

type ContextKey int

const (
	// UserContextKey is the key used to store the verified claims in the request context
	UserContextKey ContextKey = iota
)

// NewCORSMiddleware answers preflight requests before they reach authentication
func NewCORSMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", fmt.Sprintf("Authorization, Content-Type, %s, %s", blobstore.HeaderAPIKey, blobstore.HeaderSessionID))
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func NewAuthMiddleware(authProvider authproviders.AuthProvider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := parseToken(r)
			if err != nil {
				log.Debug("failed to parse api key: %v", err)
				http.Error(w, "failed to parse api key", http.StatusUnauthorized)
				return
			}

			claims, err := authProvider.VerifyToken(r.Context(), token)
			if err != nil {
				log.Debug("failed to verify api key: %v", err)
				http.Error(w, "failed to verify api key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claims returns the claims stored by the auth middleware
func Claims(r *http.Request) (*authproviders.TokenClaims, bool) {
	claims, ok := r.Context().Value(UserContextKey).(*authproviders.TokenClaims)
	return claims, ok
}

// SessionID returns the notification session the request was made from, if any
func SessionID(r *http.Request) string {
	return r.Header.Get(blobstore.HeaderSessionID)
}

// parseToken reads the API_KEY header, falling back to a bearer token
func parseToken(r *http.Request) (string, error) {
	if key := r.Header.Get(blobstore.HeaderAPIKey); key != "" {
		return key, nil
	}
	return parseBearerToken(r)
}

// parseBearerToken parses the bearer token from the Authorization header.
// A missing header yields an empty token for the provider to judge.
func parseBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	return parts[1], nil
}
