package verifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const loginPrimaryType = "Login"

// Domain is the EIP-712 domain the login typed data is bound to.
// ChainID and VerifyingContract are left out of the domain when zero.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// TypedData builds the typed data a wallet signs for address and message
func (d Domain) TypedData(address, message string) apitypes.TypedData {
	domainType := []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
	}
	domain := apitypes.TypedDataDomain{
		Name:    d.Name,
		Version: d.Version,
	}

	if d.ChainID != 0 {
		domainType = append(domainType, apitypes.Type{Name: "chainId", Type: "uint256"})
		domain.ChainId = math.NewHexOrDecimal256(d.ChainID)
	}
	if d.VerifyingContract != "" {
		domainType = append(domainType, apitypes.Type{Name: "verifyingContract", Type: "address"})
		domain.VerifyingContract = d.VerifyingContract
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			loginPrimaryType: {
				{Name: "wallet", Type: "address"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: loginPrimaryType,
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"wallet":  address,
			"message": message,
		},
	}
}

// Hash returns the EIP-712 digest for address and message
func (d Domain) Hash(address, message string) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(d.TypedData(address, message))
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}
