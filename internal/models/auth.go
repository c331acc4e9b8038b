package models

import "github.com/golang-jwt/jwt/v5"

// ActorClaims is the tenant/actor context resolved upstream and carried in
// the access token.
type ActorClaims struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	SchoolID       string `json:"school_id"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the resolved acting identity passed into services.
type Actor struct {
	UserID         string
	OrganizationID string
	SchoolID       string
}
