package wallet_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletchat/wchat/chat/app/sdk/errs"
	"github.com/walletchat/wchat/chat/app/sdk/wallet"
)

var testChain = wallet.ChainDescriptor{
	ChainID:      "0xaa36a7",
	Name:         "Sepolia",
	RPCURLs:      []string{"https://rpc.sepolia.org"},
	NativeSymbol: "ETH",
	Decimals:     18,
}

type fakeProvider struct {
	accounts    []common.Address
	accountsErr error
	chainID     string
	knownChains map[string]bool
	switchCalls int
	addCalls    int
	signErr     error
	signedMsg   string
	events      chan wallet.Event
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:    []common.Address{common.HexToAddress("0x" + strings.Repeat("a", 40))},
		chainID:     "0x1",
		knownChains: map[string]bool{"0x1": true, "0xaa36a7": true},
		events:      make(chan wallet.Event, 4),
	}
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return p.accounts, p.accountsErr
}

func (p *fakeProvider) ChainID(ctx context.Context) (string, error) {
	return p.chainID, nil
}

func (p *fakeProvider) SwitchChain(ctx context.Context, chainID string) error {
	p.switchCalls++
	if !p.knownChains[chainID] {
		return errs.Newf(errs.UnknownChain, "chain not registered with wallet")
	}
	p.chainID = chainID
	return nil
}

func (p *fakeProvider) AddChain(ctx context.Context, chain wallet.ChainDescriptor) error {
	p.addCalls++
	p.knownChains[chain.ChainID] = true
	return nil
}

func (p *fakeProvider) SignMessage(ctx context.Context, address common.Address, msg string) (string, error) {
	if p.signErr != nil {
		return "", p.signErr
	}
	p.signedMsg = msg
	return "0xsigned", nil
}

func (p *fakeProvider) Events() <-chan wallet.Event { return p.events }
func (p *fakeProvider) Close() error                { return nil }

// =============================================================================

func TestConnect(t *testing.T) {
	provider := newFakeProvider()
	connector := wallet.NewConnector(provider, testChain)

	conn, err := connector.Connect(context.Background())
	require.NoError(t, err)

	assert.True(t, conn.Signed)
	assert.Equal(t, provider.accounts[0], conn.Address)
	assert.Equal(t, "0xsigned", conn.Signature)
	assert.Contains(t, conn.Challenge, conn.Address.Hex())
	assert.Equal(t, conn.Challenge, provider.signedMsg)
	assert.Equal(t, "0xaa36a7", provider.chainID)
	assert.Equal(t, wallet.Connected, connector.Status())
}

func TestConnectNoProvider(t *testing.T) {
	connector := wallet.NewConnector(nil, testChain)

	_, err := connector.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NoProvider))
}

func TestConnectNoAccounts(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts = nil

	connector := wallet.NewConnector(provider, testChain)

	_, err := connector.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NoAccounts))
	assert.Equal(t, wallet.Disconnected, connector.Status())
}

func TestConnectUserRejected(t *testing.T) {
	provider := newFakeProvider()
	provider.accountsErr = errs.Newf(errs.UserRejected, "user rejected the request")

	connector := wallet.NewConnector(provider, testChain)

	_, err := connector.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UserRejected))
}

func TestConnectRejectedSignature(t *testing.T) {
	provider := newFakeProvider()
	provider.signErr = errs.Newf(errs.UserRejected, "user rejected the request")

	connector := wallet.NewConnector(provider, testChain)

	_, err := connector.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UserRejected))
	assert.Equal(t, wallet.Disconnected, connector.Status())
}

func TestEnsureChainAddsUnknown(t *testing.T) {
	provider := newFakeProvider()
	provider.knownChains = map[string]bool{"0x1": true}

	connector := wallet.NewConnector(provider, testChain)

	require.NoError(t, connector.EnsureChain(context.Background()))
	assert.Equal(t, 1, provider.addCalls)
	assert.Equal(t, 2, provider.switchCalls)
	assert.Equal(t, "0xaa36a7", provider.chainID)
}

func TestEnsureChainAlreadyThere(t *testing.T) {
	provider := newFakeProvider()
	provider.chainID = "0xaa36a7"

	connector := wallet.NewConnector(provider, testChain)

	require.NoError(t, connector.EnsureChain(context.Background()))
	assert.Equal(t, 0, provider.switchCalls)
}

func TestConnectBlockedOnSwitchFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.knownChains = map[string]bool{"0x1": true}
	addFail := errs.Newf(errs.Network, "wallet rpc -32000: add failed")
	provider.addCalls = 0

	failing := &addFailingProvider{fakeProvider: provider, addErr: addFail}
	connector := wallet.NewConnector(failing, testChain)

	_, err := connector.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.WrongNetwork))
	assert.Equal(t, wallet.Disconnected, connector.Status())
}

type addFailingProvider struct {
	*fakeProvider
	addErr error
}

func (p *addFailingProvider) AddChain(ctx context.Context, chain wallet.ChainDescriptor) error {
	return p.addErr
}

func TestLinkManual(t *testing.T) {
	connector := wallet.NewConnector(nil, testChain)

	addr := "0x" + strings.Repeat("a", 40)

	conn, err := connector.LinkManual(addr)
	require.NoError(t, err)
	assert.False(t, conn.Signed)
	assert.Empty(t, conn.Signature)
	assert.Equal(t, common.HexToAddress(addr), conn.Address)
	assert.Equal(t, wallet.Connected, connector.Status())
}

func TestLinkManualInvalid(t *testing.T) {
	connector := wallet.NewConnector(nil, testChain)

	_, err := connector.LinkManual("0x123")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestListen(t *testing.T) {
	provider := newFakeProvider()
	connector := wallet.NewConnector(provider, testChain)

	accounts := make(chan []common.Address, 1)
	chains := make(chan string, 1)

	connector.OnAccountsChanged(func(a []common.Address) { accounts <- a })
	connector.OnChainChanged(func(id string) { chains <- id })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go connector.Listen(ctx)

	provider.events <- wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: provider.accounts}
	provider.events <- wallet.Event{Kind: wallet.EventChainChanged, ChainID: "0x1"}

	assert.Equal(t, provider.accounts, <-accounts)
	assert.Equal(t, "0x1", <-chains)
}
