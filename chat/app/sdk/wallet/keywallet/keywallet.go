// Package keywallet implements the wallet provider interface over a local
// ECDSA key kept on disk. It signs locally, is always on the configured
// chain and never changes accounts.
package keywallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/walletchat/wchat/chat/app/sdk/wallet"
	"github.com/walletchat/wchat/chat/foundation/signature"
)

const idFileName = "key.ecdsa"

// Provider holds the local key. The key is created on first use.
type Provider struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    string
}

// New loads the key from the specified directory, generating and saving a
// fresh one when none exists yet.
func New(filePath string, chainID string) (*Provider, error) {
	os.MkdirAll(filepath.Join(filePath, "id"), os.ModePerm)

	fileName := filepath.Join(filePath, "id", idFileName)

	var privateKey *ecdsa.PrivateKey
	var err error

	_, statErr := os.Stat(fileName)
	switch {
	case statErr != nil:
		privateKey, err = createKey(fileName)

	default:
		privateKey, err = crypto.LoadECDSA(fileName)
	}

	if err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}

	p := Provider{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
	}

	return &p, nil
}

// Address returns the key's address.
func (p *Provider) Address() common.Address {
	return p.address
}

// RequestAccounts returns the single local account.
func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

// ChainID reports the configured chain; a local key has no network context
// of its own.
func (p *Provider) ChainID(ctx context.Context) (string, error) {
	return p.chainID, nil
}

// SwitchChain is a no-op for a local key.
func (p *Provider) SwitchChain(ctx context.Context, chainID string) error {
	p.chainID = chainID
	return nil
}

// AddChain is a no-op for a local key.
func (p *Provider) AddChain(ctx context.Context, chain wallet.ChainDescriptor) error {
	return nil
}

// SignMessage signs the message with the local key.
func (p *Provider) SignMessage(ctx context.Context, address common.Address, msg string) (string, error) {
	if address != p.address {
		return "", fmt.Errorf("unknown account: %s", address.Hex())
	}

	return signature.Sign(msg, p.privateKey)
}

// Events returns nil; a local key never changes accounts or chains.
func (p *Provider) Events() <-chan wallet.Event {
	return nil
}

// Close releases nothing; the key lives for the process.
func (p *Provider) Close() error {
	return nil
}

// =============================================================================

func createKey(fileName string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generateKey: %w", err)
	}

	if err := crypto.SaveECDSA(fileName, privateKey); err != nil {
		return nil, fmt.Errorf("saveECDSA: %w", err)
	}

	return privateKey, nil
}
