package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims carried by a session token.
// Subject is the lowercase wallet address, ID the revocation handle.
type SessionClaims struct {
	jwt.RegisteredClaims
}
