package model

import "github.com/golang-jwt/jwt/v5"

// OwnerClaims is the JWT payload for survey owners.
type OwnerClaims struct {
	OwnerID string `json:"ownerId"`
	jwt.RegisteredClaims
}

// ResumeClaims is the signed payload handed out when a session is paused.
// Presenting it reactivates the session within the TTL.
type ResumeClaims struct {
	SessionToken string `json:"sessionToken"`
	jwt.RegisteredClaims
}

// LoginResponse is returned from owner login.
type LoginResponse struct {
	Token   string `json:"token"`
	OwnerID string `json:"ownerId"`
}
