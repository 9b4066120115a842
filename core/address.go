package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress lowercases and trims a wallet address.
// It does not validate; use ParseAddress for untrusted input.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ParseAddress validates a hex wallet address and returns its normalized form
func ParseAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%q: %w", address, ErrInvalidAddress)
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		address = "0x" + address
	}
	return NormalizeAddress(address), nil
}
