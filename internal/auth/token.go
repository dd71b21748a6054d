// Package auth extracts identity claims from the platform-issued auth token.
//
// The agent never verifies token signatures: the token is minted and checked
// by the platform server, and the agent only needs the identity fields to
// derive room membership and notification filtering. Expiry is still checked
// locally so we can refuse to open a channel with a token the server will
// reject anyway.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no auth token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims are the platform JWT claims the agent cares about.
type Claims struct {
	UserID          string `json:"user_id"`
	PoliceStationID string `json:"police_station_id"`
	City            string `json:"city"`
	Role            string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken decodes the claims from a platform token without verifying the
// signature. Returns ErrExpiredToken if the token is already past its expiry.
func ParseToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}

	if claims.UserID == "" {
		// Fall back to the registered subject; older tokens used it.
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
