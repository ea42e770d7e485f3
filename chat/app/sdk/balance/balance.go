// Package balance queries the native coin and configured token balances for
// an address. Every lookup runs concurrently and fails independently; the
// set is only published once all lookups have settled.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrorMarker is the value published for a symbol whose lookup failed.
const ErrorMarker = "Error"

// ERC-20 selectors for balanceOf(address) and decimals().
var (
	selBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31}
	selDecimals  = []byte{0x31, 0x3c, 0xe5, 0x67}
)

// Token identifies one configured token contract.
type Token struct {
	Symbol   string
	Contract common.Address
}

// Set maps a symbol to its formatted decimal balance or the error marker.
type Set map[string]string

// Reader defines the chain read behavior the fetcher needs. It is
// satisfied by ethclient.Client.
type Reader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EnsureChainFn is called before querying so a connected wallet is moved to
// the right network first. Failure degrades the display, it never blocks
// the fetch.
type EnsureChainFn func(ctx context.Context) error

// Fetcher queries balances through a chain reader.
type Fetcher struct {
	reader      Reader
	nativeSym   string
	tokens      []Token
	ensureChain EnsureChainFn
}

// New constructs a fetcher for the native symbol and token list.
func New(reader Reader, nativeSym string, tokens []Token, ensureChain EnsureChainFn) *Fetcher {
	return &Fetcher{
		reader:      reader,
		nativeSym:   nativeSym,
		tokens:      tokens,
		ensureChain: ensureChain,
	}
}

// NewReadOnly constructs a fetcher over a public read-only RPC endpoint.
// Used when no wallet provider is present; only the native balance is
// queried on this path.
func NewReadOnly(rpcURL string, nativeSym string) (*Fetcher, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	return New(client, nativeSym, nil, nil), nil
}

// Fetch resolves the full balance set for the address. It never returns an
// error; a failed lookup yields the error marker for that symbol only.
func (f *Fetcher) Fetch(ctx context.Context, address common.Address) Set {
	if f.ensureChain != nil {
		f.ensureChain(ctx)
	}

	set := make(Set, len(f.tokens)+1)

	var mu sync.Mutex
	var wg sync.WaitGroup

	publish := func(symbol string, value string) {
		mu.Lock()
		defer mu.Unlock()
		set[symbol] = value
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		wei, err := f.reader.BalanceAt(ctx, address, nil)
		if err != nil {
			publish(f.nativeSym, ErrorMarker)
			return
		}

		publish(f.nativeSym, FormatUnits(wei, 18))
	}()

	for _, token := range f.tokens {
		token := token
		wg.Add(1)
		go func() {
			defer wg.Done()

			v, err := f.tokenBalance(ctx, token, address)
			if err != nil {
				publish(token.Symbol, ErrorMarker)
				return
			}

			publish(token.Symbol, v)
		}()
	}

	wg.Wait()

	return set
}

func (f *Fetcher) tokenBalance(ctx context.Context, token Token, address common.Address) (string, error) {
	data := make([]byte, 0, 36)
	data = append(data, selBalanceOf...)
	data = append(data, common.LeftPadBytes(address.Bytes(), 32)...)

	balRaw, err := f.reader.CallContract(ctx, ethereum.CallMsg{To: &token.Contract, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("balanceOf: %w", err)
	}

	decRaw, err := f.reader.CallContract(ctx, ethereum.CallMsg{To: &token.Contract, Data: selDecimals}, nil)
	if err != nil {
		return "", fmt.Errorf("decimals: %w", err)
	}

	if len(decRaw) == 0 {
		return "", fmt.Errorf("decimals: empty result")
	}

	decimals := int(new(big.Int).SetBytes(decRaw).Int64())
	amount := new(big.Int).SetBytes(balRaw)

	return FormatUnits(amount, decimals), nil
}

// =============================================================================

// FormatUnits renders an integer amount scaled down by the specified number
// of decimals, with trailing zeros trimmed.
func FormatUnits(amount *big.Int, decimals int) string {
	if decimals <= 0 {
		return amount.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(amount, scale, frac)

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := fmt.Sprintf("%0*s", decimals, frac.String())
	fracStr = strings.TrimRight(fracStr, "0")

	return whole.String() + "." + fracStr
}
