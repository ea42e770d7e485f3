package signature_test

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletchat/wchat/chat/foundation/signature"
)

func TestSignRecover(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)

	address := crypto.PubkeyToAddress(pk.PublicKey)
	msg := signature.Challenge(address, time.Now())

	assert.Contains(t, msg, address.Hex())

	sig, err := signature.Sign(msg, pk)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))

	got, err := signature.RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, address, got)
}

func TestRecoverNormalizesV(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)

	address := crypto.PubkeyToAddress(pk.PublicKey)
	msg := "wallet providers offset the recovery id"

	sig, err := crypto.Sign(signature.Hash(msg), pk)
	require.NoError(t, err)

	// personal_sign style signature with V in {27,28}.
	sig[64] += 27
	sigHex := "0x" + hex.EncodeToString(sig)

	got, err := signature.RecoverAddress(msg, sigHex)
	require.NoError(t, err)
	assert.Equal(t, address, got)
}

func TestRecoverRejectsBadInput(t *testing.T) {
	_, err := signature.RecoverAddress("msg", "0xzz")
	assert.Error(t, err)

	_, err = signature.RecoverAddress("msg", "0x1234")
	assert.Error(t, err)
}
