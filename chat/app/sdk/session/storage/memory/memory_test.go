package memory_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletchat/wchat/chat/app/sdk/session"
	"github.com/walletchat/wchat/chat/app/sdk/session/storage/memory"
)

func TestRoundTrip(t *testing.T) {
	storage := memory.New()

	_, err := storage.Retrieve()
	require.ErrorIs(t, err, session.ErrNoRecord)

	rec := session.AuthRecord{
		WalletAddress: common.HexToAddress("0x" + strings.Repeat("a", 40)),
		Signature:     "0xsig",
		Challenge:     "challenge",
		CreatedAt:     time.Now(),
		User:          &session.UserRef{Username: "bill"},
		Token:         "tkn-123",
	}

	require.NoError(t, storage.Save(rec))

	got, err := storage.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDeleteIdempotent(t *testing.T) {
	storage := memory.New()

	require.NoError(t, storage.Save(session.AuthRecord{
		WalletAddress: common.HexToAddress("0x" + strings.Repeat("a", 40)),
	}))

	require.NoError(t, storage.Delete())
	require.NoError(t, storage.Delete())

	_, err := storage.Retrieve()
	assert.ErrorIs(t, err, session.ErrNoRecord)
}
