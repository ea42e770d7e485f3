package session

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Step identifies which screen is active. Exactly one is active at a time.
type Step int

// Set of screens.
const (
	StepConnect Step = iota
	StepChooseAuth
	StepRegister
	StepLogin
	StepChat
)

var stepNames = [...]string{
	"connect",
	"chooseAuth",
	"register",
	"login",
	"chat",
}

// String returns the name of the step.
func (s Step) String() string {
	if int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// =============================================================================

// UserRef is the client's read-only copy of a registered user.
type UserRef struct {
	Username      string
	WalletAddress string
}

// AuthRecord is the single process-wide record of the linked wallet and,
// once logged in, the backend identity. User is only ever present alongside
// a wallet address.
type AuthRecord struct {
	WalletAddress common.Address
	Signature     string
	Challenge     string
	CreatedAt     time.Time
	User          *UserRef
	Token         string
}

// ErrNoRecord is returned by a Storage when no auth record exists. Corrupt
// or unreadable stored data is reported the same way, never as a failure.
var ErrNoRecord = errors.New("no auth record")

// Storage defines the persistence policy for the auth record. Two policies
// exist: memory (lost on restart) and durable (sqlite, survives restart).
type Storage interface {
	Retrieve() (AuthRecord, error)
	Save(rec AuthRecord) error
	Delete() error
}

// =============================================================================

// Notice is a dismissible user-visible message.
type Notice struct {
	ID   string
	Text string
}
