package balance_test

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletchat/wchat/chat/app/sdk/balance"
)

var (
	holder   = common.HexToAddress("0x" + strings.Repeat("a", 40))
	contract = common.HexToAddress("0x" + strings.Repeat("b", 40))
)

type fakeReader struct {
	nativeWei *big.Int
	nativeErr error
	tokenBal  *big.Int
	decimals  int64
	callErr   error
}

func (r *fakeReader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return r.nativeWei, r.nativeErr
}

func (r *fakeReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if r.callErr != nil {
		return nil, r.callErr
	}

	switch {
	case len(msg.Data) == 4:
		return common.LeftPadBytes(big.NewInt(r.decimals).Bytes(), 32), nil
	default:
		return common.LeftPadBytes(r.tokenBal.Bytes(), 32), nil
	}
}

// =============================================================================

func TestFetch(t *testing.T) {
	reader := &fakeReader{
		nativeWei: big.NewInt(1500000000000000000),
		tokenBal:  big.NewInt(2500000),
		decimals:  6,
	}

	tokens := []balance.Token{{Symbol: "USDC", Contract: contract}}
	fetcher := balance.New(reader, "ETH", tokens, nil)

	set := fetcher.Fetch(context.Background(), holder)

	require.Len(t, set, 2)
	assert.Equal(t, "1.5", set["ETH"])
	assert.Equal(t, "2.5", set["USDC"])
}

func TestFetchIsolatedFailures(t *testing.T) {
	reader := &fakeReader{
		nativeErr: fmt.Errorf("rpc down"),
		tokenBal:  big.NewInt(2500000),
		decimals:  6,
	}

	tokens := []balance.Token{{Symbol: "USDC", Contract: contract}}
	fetcher := balance.New(reader, "ETH", tokens, nil)

	set := fetcher.Fetch(context.Background(), holder)

	require.Len(t, set, 2)
	assert.Equal(t, balance.ErrorMarker, set["ETH"])
	assert.Equal(t, "2.5", set["USDC"])
}

func TestFetchAllTokensFail(t *testing.T) {
	reader := &fakeReader{
		nativeWei: big.NewInt(0),
		callErr:   fmt.Errorf("execution reverted"),
	}

	tokens := []balance.Token{
		{Symbol: "USDC", Contract: contract},
		{Symbol: "DAI", Contract: contract},
	}
	fetcher := balance.New(reader, "ETH", tokens, nil)

	set := fetcher.Fetch(context.Background(), holder)

	require.Len(t, set, 3)
	assert.Equal(t, "0", set["ETH"])
	assert.Equal(t, balance.ErrorMarker, set["USDC"])
	assert.Equal(t, balance.ErrorMarker, set["DAI"])
}

func TestFetchEnsureChainFailureNonFatal(t *testing.T) {
	reader := &fakeReader{nativeWei: big.NewInt(1000000000000000000)}

	ensure := func(ctx context.Context) error {
		return fmt.Errorf("switch rejected")
	}

	fetcher := balance.New(reader, "ETH", nil, ensure)

	set := fetcher.Fetch(context.Background(), holder)
	assert.Equal(t, "1", set["ETH"])
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"0", 18, "0"},
		{"1000000000000000000", 18, "1"},
		{"1500000000000000000", 18, "1.5"},
		{"1000000000000000", 18, "0.001"},
		{"2500000", 6, "2.5"},
		{"123", 0, "123"},
		{"1", 6, "0.000001"},
	}

	for _, tt := range tests {
		amount, ok := new(big.Int).SetString(tt.amount, 10)
		require.True(t, ok)
		assert.Equal(t, tt.want, balance.FormatUnits(amount, tt.decimals), "amount %s dec %d", tt.amount, tt.decimals)
	}
}
