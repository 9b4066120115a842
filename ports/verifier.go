package ports

// SignatureVerifier checks that a wallet signed a message
type SignatureVerifier interface {
	Verify(address, message, signature string) bool
}
