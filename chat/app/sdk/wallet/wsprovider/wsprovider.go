// Package wsprovider implements the wallet provider interface over a
// websocket JSON-RPC bridge to a remote signer such as a browser wallet.
package wsprovider

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/walletchat/wchat/chat/app/sdk/errs"
	"github.com/walletchat/wchat/chat/app/sdk/wallet"
)

// Provider specific error codes. These never leave this package; they are
// mapped to errs classifications at the boundary.
const (
	codeUserRejected = 4001
	codeUnknownChain = 4902
)

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Provider speaks JSON-RPC to the remote signer over a single websocket
// connection. Responses are routed back to callers by request id; messages
// carrying a method instead are pushed change notifications.
type Provider struct {
	conn   *websocket.Conn
	events chan wallet.Event

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	closed  bool
}

// Dial connects to the signer bridge at the specified url and starts the
// read loop.
func Dial(url string) (*Provider, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, errs.Newf(errs.NoProvider, "dial wallet bridge: %s", err)
	}

	p := Provider{
		conn:    conn,
		events:  make(chan wallet.Event, 8),
		pending: make(map[uint64]chan response),
	}

	go p.readLoop()

	return &p, nil
}

// Close shuts the connection down and releases every waiting caller.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.conn.Close()
}

// Events returns the channel of pushed change notifications.
func (p *Provider) Events() <-chan wallet.Event {
	return p.events
}

// =============================================================================

// RequestAccounts asks the signer for its accounts.
func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	raw, err := p.call(ctx, "eth_requestAccounts")
	if err != nil {
		return nil, err
	}

	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, errs.Newf(errs.Internal, "decode accounts: %s", err)
	}

	accounts := make([]common.Address, len(hexes))
	for i, h := range hexes {
		accounts[i] = common.HexToAddress(h)
	}

	return accounts, nil
}

// ChainID returns the signer's active chain id.
func (p *Provider) ChainID(ctx context.Context) (string, error) {
	raw, err := p.call(ctx, "eth_chainId")
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", errs.Newf(errs.Internal, "decode chain id: %s", err)
	}

	return id, nil
}

// SwitchChain asks the signer to move to the specified chain.
func (p *Provider) SwitchChain(ctx context.Context, chainID string) error {
	param := struct {
		ChainID string `json:"chainId"`
	}{
		ChainID: chainID,
	}

	_, err := p.call(ctx, "wallet_switchEthereumChain", param)
	return err
}

// AddChain registers the chain's metadata with the signer.
func (p *Provider) AddChain(ctx context.Context, chain wallet.ChainDescriptor) error {
	_, err := p.call(ctx, "wallet_addEthereumChain", chain)
	return err
}

// SignMessage asks the signer to personal_sign the message with the key for
// the specified address.
func (p *Provider) SignMessage(ctx context.Context, address common.Address, msg string) (string, error) {
	msgHex := "0x" + hex.EncodeToString([]byte(msg))

	raw, err := p.call(ctx, "personal_sign", msgHex, address.Hex())
	if err != nil {
		return "", err
	}

	var sig string
	if err := json.Unmarshal(raw, &sig); err != nil {
		return "", errs.Newf(errs.Internal, "decode signature: %s", err)
	}

	return sig, nil
}

// =============================================================================

func (p *Provider) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errs.Newf(errs.NoProvider, "wallet bridge closed")
	}

	p.nextID++
	id := p.nextID
	ch := make(chan response, 1)
	p.pending[id] = ch

	req := request{
		ID:     id,
		Method: method,
		Params: params,
	}

	err := p.conn.WriteJSON(req)
	p.mu.Unlock()

	if err != nil {
		p.drop(id)
		return nil, errs.Newf(errs.Network, "write %s: %s", method, err)
	}

	select {
	case <-ctx.Done():
		p.drop(id)
		return nil, ctx.Err()

	case resp, ok := <-ch:
		if !ok {
			return nil, errs.Newf(errs.NoProvider, "wallet bridge closed")
		}
		if resp.Error != nil {
			return nil, mapError(resp.Error)
		}
		return resp.Result, nil
	}
}

func (p *Provider) drop(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.pending, id)
}

func (p *Provider) readLoop() {
	defer func() {
		p.mu.Lock()
		for id, ch := range p.pending {
			close(ch)
			delete(p.pending, id)
		}
		p.mu.Unlock()

		close(p.events)
	}()

	for {
		var resp response
		if err := p.conn.ReadJSON(&resp); err != nil {
			return
		}

		if resp.Method != "" {
			p.pushEvent(resp)
			continue
		}

		p.mu.Lock()
		ch, exists := p.pending[resp.ID]
		if exists {
			delete(p.pending, resp.ID)
		}
		p.mu.Unlock()

		if exists {
			ch <- resp
		}
	}
}

func (p *Provider) pushEvent(resp response) {
	switch resp.Method {
	case "accountsChanged":
		var hexes []string
		if err := json.Unmarshal(resp.Params, &hexes); err != nil {
			return
		}

		accounts := make([]common.Address, len(hexes))
		for i, h := range hexes {
			accounts[i] = common.HexToAddress(h)
		}

		p.send(wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: accounts})

	case "chainChanged":
		var id string
		if err := json.Unmarshal(resp.Params, &id); err != nil {
			return
		}

		p.send(wallet.Event{Kind: wallet.EventChainChanged, ChainID: id})
	}
}

func (p *Provider) send(ev wallet.Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// mapError converts the signer's numeric codes into the closed set of named
// classifications so nothing downstream inspects raw codes.
func mapError(e *rpcError) error {
	switch e.Code {
	case codeUserRejected:
		return errs.Newf(errs.UserRejected, "user rejected the request")
	case codeUnknownChain:
		return errs.Newf(errs.UnknownChain, "chain not registered with wallet")
	default:
		return errs.Newf(errs.Network, "wallet rpc %d: %s", e.Code, e.Message)
	}
}
