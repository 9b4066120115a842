package verifier

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/vaultauth/ports"
)

// Scheme selects how the login message is hashed before signing
type Scheme string

const (
	// SchemePersonal is EIP-191 personal_sign, what wallets use for signMessage
	SchemePersonal Scheme = "personal"
	// SchemeEIP712 wraps the login message in typed data, see Domain
	SchemeEIP712 Scheme = "eip712"
)

// ParseScheme validates a configured scheme name
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemePersonal, "":
		return SchemePersonal, nil
	case SchemeEIP712:
		return SchemeEIP712, nil
	default:
		return "", fmt.Errorf("unknown signature scheme %q", s)
	}
}

// EthVerifier recovers the signer of an Ethereum wallet signature
type EthVerifier struct {
	hash func(address, message string) ([]byte, error)
}

// NewPersonalSignVerifier verifies EIP-191 personal_sign signatures
func NewPersonalSignVerifier() *EthVerifier {
	return &EthVerifier{
		hash: func(_, message string) ([]byte, error) {
			return accounts.TextHash([]byte(message)), nil
		},
	}
}

// NewEIP712Verifier verifies eth_signTypedData_v4 signatures under domain
func NewEIP712Verifier(domain Domain) *EthVerifier {
	return &EthVerifier{hash: domain.Hash}
}

// New returns the verifier for scheme
func New(scheme Scheme, domain Domain) ports.SignatureVerifier {
	if scheme == SchemeEIP712 {
		return NewEIP712Verifier(domain)
	}
	return NewPersonalSignVerifier()
}

// Verify reports whether signature over message was produced by address.
// Any malformed input yields false.
func (v *EthVerifier) Verify(address, message, signature string) bool {
	if !common.IsHexAddress(address) {
		return false
	}

	sig, err := decodeSignature(signature)
	if err != nil {
		return false
	}

	hash, err := v.hash(address, message)
	if err != nil {
		return false
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false
	}

	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(address)
}

// decodeSignature parses a 65 byte [R || S || V] signature and normalizes
// V to the 0/1 recovery id go-ethereum expects.
func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return nil, fmt.Errorf("invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}

	return sig, nil
}
