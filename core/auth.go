package core

import "time"

// Nonce is a single-use login challenge issued to a wallet address
type Nonce struct {
	Address   string    // Normalized (lowercase) wallet address
	Value     string    // Random hex value the wallet signs
	IssuedAt  time.Time // When the nonce was created
	ExpiresAt time.Time // When the store drops it
}

// Session represents an authenticated wallet session
type Session struct {
	ID        string    // Token ID (jti), used for revocation
	Address   string    // Normalized wallet address
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session token stops verifying
}

// Principal is the authenticated identity attached to a request
type Principal struct {
	Address   string
	TokenID   string
	ExpiresAt time.Time
}

// PrincipalFromSession builds the request identity from a verified session
func PrincipalFromSession(s *Session) *Principal {
	return &Principal{
		Address:   s.Address,
		TokenID:   s.ID,
		ExpiresAt: s.ExpiresAt,
	}
}
