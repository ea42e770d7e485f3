// Package wallet provides the linking sequence between the app and a wallet
// provider: account request, chain switch, challenge signing and change
// notifications.
package wallet

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/walletchat/wchat/chat/app/sdk/errs"
	"github.com/walletchat/wchat/chat/app/sdk/validate"
	"github.com/walletchat/wchat/chat/foundation/signature"
)

// Provider defines the behavior the connector needs from a wallet. Errors
// returned by implementations carry errs classifications; the connector
// never inspects provider specific codes.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (string, error)
	SwitchChain(ctx context.Context, chainID string) error
	AddChain(ctx context.Context, chain ChainDescriptor) error
	SignMessage(ctx context.Context, address common.Address, msg string) (string, error)
	Events() <-chan Event
	Close() error
}

// Connector walks a provider through the linking sequence and relays its
// change notifications.
type Connector struct {
	provider Provider
	chain    ChainDescriptor
	now      func() time.Time

	mu     sync.Mutex
	status Status

	onAccountsChanged func(accounts []common.Address)
	onChainChanged    func(chainID string)
}

// NewConnector constructs a connector for the specified provider and target
// chain. A nil provider is allowed; signature linking then fails with
// NoProvider while the manual path keeps working.
func NewConnector(provider Provider, chain ChainDescriptor) *Connector {
	return &Connector{
		provider: provider,
		chain:    chain,
		now:      time.Now,
	}
}

// Status returns where the connector currently is in the sequence.
func (c *Connector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *Connector) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = s
}

// =============================================================================

// Connect runs the full signature linking sequence: request accounts, make
// sure the wallet is on the target chain, then sign the ownership
// challenge. The chain switch is a hard precondition; failing it aborts the
// link so balances can never be read from the wrong network.
func (c *Connector) Connect(ctx context.Context) (Connection, error) {
	if c.provider == nil {
		return Connection{}, errs.Newf(errs.NoProvider, "no wallet provider available")
	}

	c.setStatus(RequestingAccounts)

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		c.setStatus(Disconnected)
		return Connection{}, err
	}

	if len(accounts) == 0 {
		c.setStatus(Disconnected)
		return Connection{}, errs.Newf(errs.NoAccounts, "wallet returned no accounts")
	}

	address := accounts[0]

	// -------------------------------------------------------------------------

	c.setStatus(NetworkCheck)

	if err := c.EnsureChain(ctx); err != nil {
		c.setStatus(Disconnected)
		return Connection{}, err
	}

	// -------------------------------------------------------------------------

	c.setStatus(SigningChallenge)

	challenge := signature.Challenge(address, c.now())

	sig, err := c.provider.SignMessage(ctx, address, challenge)
	if err != nil {
		c.setStatus(Disconnected)
		if errs.Is(err, errs.UserRejected) {
			return Connection{}, err
		}
		return Connection{}, errs.Newf(errs.SignFailed, "sign challenge: %s", err)
	}

	c.setStatus(Connected)

	conn := Connection{
		Address:   address,
		Challenge: challenge,
		Signature: sig,
		Signed:    true,
	}

	return conn, nil
}

// EnsureChain asks the provider to move to the target chain. A wallet that
// doesn't know the chain gets it registered once before the switch is
// retried.
func (c *Connector) EnsureChain(ctx context.Context) error {
	if c.provider == nil {
		return errs.Newf(errs.NoProvider, "no wallet provider available")
	}

	current, err := c.provider.ChainID(ctx)
	if err == nil && chainEqual(current, c.chain.ChainID) {
		return nil
	}

	c.setStatus(SwitchingChain)

	err = c.provider.SwitchChain(ctx, c.chain.ChainID)
	if err == nil {
		return nil
	}

	if !errs.Is(err, errs.UnknownChain) {
		return errs.Newf(errs.WrongNetwork, "switch chain: %s", err)
	}

	if err := c.provider.AddChain(ctx, c.chain); err != nil {
		return errs.Newf(errs.WrongNetwork, "add chain: %s", err)
	}

	if err := c.provider.SwitchChain(ctx, c.chain.ChainID); err != nil {
		return errs.Newf(errs.WrongNetwork, "switch after add: %s", err)
	}

	return nil
}

// LinkManual accepts any syntactically valid address with no cryptographic
// proof. This is the deliberate lower assurance fallback and stays separate
// from the signature path.
func (c *Connector) LinkManual(raw string) (Connection, error) {
	if err := validate.WalletAddress(raw); err != nil {
		return Connection{}, err
	}

	c.setStatus(Connected)

	conn := Connection{
		Address: common.HexToAddress(strings.TrimSpace(raw)),
	}

	return conn, nil
}

// Disconnect resets the connector to its initial state.
func (c *Connector) Disconnect() {
	c.setStatus(Disconnected)
}

// =============================================================================

// OnAccountsChanged registers the callback invoked when the wallet switches
// accounts out from under the app.
func (c *Connector) OnAccountsChanged(f func(accounts []common.Address)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onAccountsChanged = f
}

// OnChainChanged registers the callback invoked when the wallet moves to a
// different chain.
func (c *Connector) OnChainChanged(f func(chainID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onChainChanged = f
}

// Listen pumps provider notifications into the registered callbacks until
// the context is done or the provider's event channel closes.
func (c *Connector) Listen(ctx context.Context) {
	if c.provider == nil {
		return
	}

	events := c.provider.Events()
	if events == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}

			c.mu.Lock()
			accountsFn := c.onAccountsChanged
			chainFn := c.onChainChanged
			c.mu.Unlock()

			switch ev.Kind {
			case EventAccountsChanged:
				if accountsFn != nil {
					accountsFn(ev.Accounts)
				}

			case EventChainChanged:
				if chainFn != nil {
					chainFn(ev.ChainID)
				}
			}
		}
	}
}

func chainEqual(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
