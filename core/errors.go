package core

import "errors"

var (
	ErrNoNonceIssued = errors.New("invalid or expired nonce")
	ErrNonceMismatch = errors.New("nonce mismatch")
	// ErrNonceExpired aliases ErrNoNonceIssued: the store drops expired keys,
	// so an expired nonce cannot be told apart from one that was never issued.
	ErrNonceExpired = ErrNoNonceIssued

	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrSignatureInvalid = errors.New("invalid signature")

	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenRevoked          = errors.New("token has been revoked")

	ErrMissingAuthorizationHeader = errors.New("missing authorization header")
	ErrStoreOperationFailed       = errors.New("store operation failed")
)
