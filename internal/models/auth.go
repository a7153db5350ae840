package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the token payload issued by the login endpoint.
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}
