// Package signature provides support for constructing and signing the
// wallet ownership challenge.
package signature

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Challenge constructs the human readable text a wallet is asked to sign to
// prove ownership of the specified address.
func Challenge(address common.Address, now time.Time) string {
	return fmt.Sprintf("Sign this message to link wallet %s at %s", address.Hex(), now.UTC().Format(time.RFC3339))
}

// Hash produces the prefixed hash that personal_sign applies before signing,
// so signatures interoperate with wallet providers.
func Hash(msg string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}

// Sign produces a hex encoded signature over the specified message using the
// specified private key.
func Sign(msg string, privateKey *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(Hash(msg), privateKey)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAddress extracts the address of the key that signed the specified
// message. Signatures produced by wallet providers carry a recovery id
// offset by 27 which is normalized here.
func RecoverAddress(msg string, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}

	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(Hash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
