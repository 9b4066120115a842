package ports

import "github.com/layer-3/vaultauth/core"

// Verification failure reasons reported by SessionIssuer.Verify
const (
	ReasonExpired          = "expired"
	ReasonMalformed        = "malformed"
	ReasonInvalidSignature = "invalid-signature"
)

// VerifyResult is the outcome of validating a session token
type VerifyResult struct {
	Valid   bool
	Address string
	Session *core.Session
	Error   string
}

// SessionIssuer mints and validates bearer session tokens
type SessionIssuer interface {
	Issue(address string) (string, *core.Session, error)
	// Verify never returns an error; failures are reported in the result
	Verify(token string) VerifyResult
}

// Err converts a failed result into the matching core error
func (r VerifyResult) Err() error {
	if r.Valid {
		return nil
	}
	switch r.Error {
	case ReasonExpired:
		return core.ErrTokenExpired
	case ReasonInvalidSignature:
		return core.ErrTokenSignatureInvalid
	default:
		return core.ErrTokenMalformed
	}
}
