package core

import "fmt"

// LoginStatement is the human readable line shown by the wallet when signing
const LoginStatement = "Sign in to the Vault. This request will not trigger a blockchain transaction or cost any gas."

// LoginMessage renders the text a wallet signs to log in.
// The server rebuilds it from the stored nonce, so only the address and nonce vary.
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("%s\n\nAddress: %s\nNonce: %s", LoginStatement, NormalizeAddress(address), nonce)
}
