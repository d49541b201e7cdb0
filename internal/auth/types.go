package auth

import "github.com/golang-jwt/jwt/v5"

// Claims represents the JWT claims of an origin token.
type Claims struct {
	jwt.RegisteredClaims
}
