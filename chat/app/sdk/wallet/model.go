package wallet

import "github.com/ethereum/go-ethereum/common"

// Status represents where the connector is in the linking sequence.
type Status int

// Set of connector states.
const (
	Disconnected Status = iota
	RequestingAccounts
	NetworkCheck
	SwitchingChain
	SigningChallenge
	Connected
)

var statusNames = [...]string{
	"disconnected",
	"requesting_accounts",
	"network_check",
	"switching_chain",
	"signing_challenge",
	"connected",
}

// String returns the name of the status.
func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// =============================================================================

// ChainDescriptor carries the metadata needed to register a chain with a
// wallet that doesn't know it yet.
type ChainDescriptor struct {
	ChainID      string   `json:"chainId"`
	Name         string   `json:"chainName"`
	RPCURLs      []string `json:"rpcUrls"`
	NativeSymbol string   `json:"nativeCurrencySymbol"`
	Decimals     int      `json:"nativeCurrencyDecimals"`
}

// Connection is the result of a completed linking sequence. Signed is false
// on the manual path, which carries no cryptographic proof.
type Connection struct {
	Address   common.Address
	Challenge string
	Signature string
	Signed    bool
}

// =============================================================================

// EventKind identifies a provider pushed notification.
type EventKind int

// Set of provider event kinds.
const (
	EventAccountsChanged EventKind = iota
	EventChainChanged
)

// Event represents an externally triggered provider notification.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  string
}
