package backend

import "time"

// User represents a registered user as returned by the backend. The client
// only ever holds a read-only copy.
type User struct {
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
}

// Message represents a single chat message. TxHash is a client generated
// placeholder carrying no on-chain meaning.
type Message struct {
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	TxHash    string    `json:"txHash"`
}

// RegisterInput carries the registration form fields posted to the backend.
type RegisterInput struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	DOB           string `json:"dob"`
	WalletAddress string `json:"walletAddress"`
}
