// Package session owns the auth record and the screen state machine that
// orchestrates validators, backend, wallet and balances. Only this package
// mutates session state; the view layer observes it.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/walletchat/wchat/chat/app/sdk/backend"
	"github.com/walletchat/wchat/chat/app/sdk/balance"
	"github.com/walletchat/wchat/chat/app/sdk/errs"
	"github.com/walletchat/wchat/chat/app/sdk/validate"
	"github.com/walletchat/wchat/chat/app/sdk/wallet"
	"github.com/walletchat/wchat/chat/foundation/logger"
)

// Backender defines the backend calls the state machine makes.
type Backender interface {
	Register(ctx context.Context, input backend.RegisterInput) error
	Login(ctx context.Context, username string, password string) (backend.User, string, error)
	Users(ctx context.Context) ([]backend.User, error)
	Messages(ctx context.Context, userA string, userB string) ([]backend.Message, error)
	SendMessage(ctx context.Context, msg backend.Message) error
}

// Connector defines the wallet behavior the state machine needs.
type Connector interface {
	Connect(ctx context.Context) (wallet.Connection, error)
	LinkManual(raw string) (wallet.Connection, error)
	Disconnect()
	OnAccountsChanged(f func(accounts []common.Address))
	OnChainChanged(f func(chainID string))
}

// Balancer defines the balance lookup behavior the state machine needs.
type Balancer interface {
	Fetch(ctx context.Context, address common.Address) balance.Set
}

// Config contains the systems the store orchestrates.
type Config struct {
	Log     *logger.Logger
	Backend Backender
	Wallet  Connector
	Balance Balancer
	Storage Storage
	Profile validate.Profile
}

// Store is the session state machine. Every mutation happens under the lock
// as a single atomic replace; observers are notified after the lock is
// released.
type Store struct {
	log     *logger.Logger
	backend Backender
	wallet  Connector
	balance Balancer
	storage Storage
	profile validate.Profile

	mu       sync.Mutex
	step     Step
	auth     AuthRecord
	hasAuth  bool
	form     validate.RegistrationForm
	users    []backend.User
	partner  string
	thread   []backend.Message
	balances balance.Set
	notices  []Notice
	epoch    int

	onChange func()
}

// New constructs the store in the connect step and wires the wallet change
// notifications: an external account change invalidates the whole session
// (the stored signature was bound to the old address), an external chain
// change only refreshes balances.
func New(cfg Config) *Store {
	s := Store{
		log:     cfg.Log,
		backend: cfg.Backend,
		wallet:  cfg.Wallet,
		balance: cfg.Balance,
		storage: cfg.Storage,
		profile: cfg.Profile,
		step:    StepConnect,
	}

	if cfg.Wallet != nil {
		cfg.Wallet.OnAccountsChanged(func(accounts []common.Address) {
			s.Disconnect(context.Background())
		})
		cfg.Wallet.OnChainChanged(func(chainID string) {
			s.RefreshBalances(context.Background())
		})
	}

	return &s
}

// OnChange registers the observer invoked after every state mutation.
func (s *Store) OnChange(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onChange = f
}

// =============================================================================
// Read access for the view layer.

// Step returns the active screen.
func (s *Store) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.step
}

// Auth returns a copy of the auth record and whether one exists.
func (s *Store) Auth() (AuthRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.auth, s.hasAuth
}

// Users returns the last loaded user list.
func (s *Store) Users() []backend.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.users
}

// Partner returns the username of the open conversation, if any.
func (s *Store) Partner() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.partner
}

// Thread returns the messages of the open conversation.
func (s *Store) Thread() []backend.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.thread
}

// Balances returns the last published balance set.
func (s *Store) Balances() balance.Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances
}

// Notices returns the pending notices.
func (s *Store) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Notice(nil), s.notices...)
}

// Form returns a copy of the form scratch state.
func (s *Store) Form() validate.RegistrationForm {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.form
}

// SetFormField updates one form field.
func (s *Store) SetFormField(field string, value string) {
	s.mu.Lock()

	switch field {
	case "username":
		s.form.Username = value
	case "password":
		s.form.Password = value
	case "email":
		s.form.Email = value
	case "phone":
		s.form.Phone = value
	case "dob":
		s.form.DOB = value
	case "walletAddress":
		s.form.WalletAddress = value
	}

	s.mu.Unlock()
	s.notify()
}

// DismissNotice removes the notice with the given id.
func (s *Store) DismissNotice(id string) {
	s.mu.Lock()

	kept := s.notices[:0]
	for _, n := range s.notices {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notices = kept

	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// Startup restoration.

// Restore decides the starting screen from whatever the storage policy kept.
// A record with wallet, user and token enters chat optimistically and
// validates the user server-side in the background, reverting to chooseAuth
// when validation fails or the backend is unreachable. A wallet-only record
// enters chooseAuth. Anything else starts at connect.
func (s *Store) Restore(ctx context.Context) {
	rec, err := s.storage.Retrieve()
	if err != nil {
		s.transition(func() {
			s.step = StepConnect
		})
		return
	}

	if rec.User == nil || rec.Token == "" {
		s.transition(func() {
			s.auth = rec
			s.hasAuth = true
			s.step = StepChooseAuth
		})
		return
	}

	if tokenExpired(rec.Token, time.Now()) {
		rec.User = nil
		rec.Token = ""
		s.storage.Save(rec)

		s.transition(func() {
			s.auth = rec
			s.hasAuth = true
			s.step = StepChooseAuth
			s.pushNotice("Your session expired, please log in again")
		})
		return
	}

	// The epoch is captured after the bump so the background validation
	// applies only while the session is still on this optimistic entry.
	s.mu.Lock()
	s.auth = rec
	s.hasAuth = true
	s.step = StepChat
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	go s.validateRestoredUser(ctx, rec, epoch)
}

func (s *Store) validateRestoredUser(ctx context.Context, rec AuthRecord, epoch int) {
	users, err := s.backend.Users(ctx)

	exists := false
	if err == nil {
		for _, u := range users {
			if u.Username == rec.User.Username {
				exists = true
				break
			}
		}
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}

	if err != nil || !exists {
		rec.User = nil
		rec.Token = ""
		s.storage.Save(rec)

		s.auth = rec
		s.step = StepChooseAuth
		s.users = nil
		s.thread = nil
		s.partner = ""
		s.epoch++
		s.pushNotice("Could not restore your session, please log in again")

		s.mu.Unlock()
		s.notify()
		return
	}

	s.users = users
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// Wallet linking.

// ConnectWallet runs the signature linking path. On success the auth record
// is created wallet-only and the flow moves to chooseAuth.
func (s *Store) ConnectWallet(ctx context.Context) {
	conn, err := s.wallet.Connect(ctx)
	if err != nil {
		s.transition(func() {
			s.pushNotice(err.Error())
		})
		return
	}

	s.adoptConnection(conn)
}

// LinkManual runs the manual linking path: any syntactically valid address,
// no signature, no proof.
func (s *Store) LinkManual(raw string) {
	conn, err := s.wallet.LinkManual(raw)
	if err != nil {
		s.transition(func() {
			s.pushNotice(err.Error())
		})
		return
	}

	s.adoptConnection(conn)
}

func (s *Store) adoptConnection(conn wallet.Connection) {
	rec := AuthRecord{
		WalletAddress: conn.Address,
		Signature:     conn.Signature,
		Challenge:     conn.Challenge,
		CreatedAt:     time.Now(),
	}

	s.transition(func() {
		if err := s.storage.Save(rec); err != nil {
			s.log.Error(context.Background(), "session-save", "err", err)
		}

		s.auth = rec
		s.hasAuth = true
		s.step = StepChooseAuth
		s.form = validate.RegistrationForm{}
	})
}

// =============================================================================
// Auth flow.

// ChooseRegister moves to the register screen with a fresh form.
func (s *Store) ChooseRegister() {
	s.transition(func() {
		if s.step != StepChooseAuth {
			return
		}
		s.step = StepRegister
		s.form = validate.RegistrationForm{WalletAddress: s.auth.WalletAddress.Hex()}
	})
}

// ChooseLogin moves to the login screen with a fresh form.
func (s *Store) ChooseLogin() {
	s.transition(func() {
		if s.step != StepChooseAuth {
			return
		}
		s.step = StepLogin
		s.form = validate.RegistrationForm{}
	})
}

// BackToChooseAuth leaves the register/login screens, clearing the form.
func (s *Store) BackToChooseAuth() {
	s.transition(func() {
		if s.step != StepRegister && s.step != StepLogin {
			return
		}
		s.step = StepChooseAuth
		s.form = validate.RegistrationForm{}
	})
}

// SubmitRegistration validates the form and registers the account. Success
// moves to the login screen with the form reset; any failure keeps the
// current screen and form.
func (s *Store) SubmitRegistration(ctx context.Context) map[string]string {
	s.mu.Lock()
	form := s.form
	epoch := s.epoch
	s.mu.Unlock()

	if fields := s.profile.CheckRegistration(form); len(fields) > 0 {
		return fields
	}

	input := backend.RegisterInput{
		Username:      form.Username,
		Password:      form.Password,
		Email:         form.Email,
		Phone:         form.Phone,
		DOB:           form.DOB,
		WalletAddress: form.WalletAddress,
	}

	if err := s.backend.Register(ctx, input); err != nil {
		s.transitionIf(epoch, func() {
			s.pushNotice(err.Error())
		})
		return nil
	}

	s.transitionIf(epoch, func() {
		s.step = StepLogin
		s.form = validate.RegistrationForm{}
	})

	return nil
}

// SubmitLogin validates the credentials and logs in. Success merges the
// user and token into the auth record, preserving the wallet fields, and
// enters chat. Any failure keeps the login screen and form untouched.
func (s *Store) SubmitLogin(ctx context.Context) map[string]string {
	s.mu.Lock()
	form := s.form
	rec := s.auth
	epoch := s.epoch
	s.mu.Unlock()

	fields := make(map[string]string)
	if err := validate.Username(form.Username); err != nil {
		fields["username"] = err.Error()
	}
	if form.Password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		return fields
	}

	usr, token, err := s.backend.Login(ctx, form.Username, form.Password)
	if err != nil {
		s.transitionIf(epoch, func() {
			s.pushNotice(err.Error())
		})
		return nil
	}

	rec.User = &UserRef{
		Username:      usr.Username,
		WalletAddress: usr.WalletAddress,
	}
	rec.Token = token

	applied := s.transitionIf(epoch, func() {
		if err := s.storage.Save(rec); err != nil {
			s.log.Error(ctx, "session-save", "err", err)
		}

		s.auth = rec
		s.step = StepChat
		s.form = validate.RegistrationForm{}
	})

	if applied {
		s.RefreshUsers(ctx)
	}

	return nil
}

// =============================================================================
// Chat flow.

// RefreshUsers reloads the user list wholesale. An expired token forces a
// logout back to chooseAuth.
func (s *Store) RefreshUsers(ctx context.Context) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	users, err := s.backend.Users(ctx)
	if err != nil {
		s.fail(epoch, err)
		return
	}

	s.transitionIf(epoch, func() {
		s.users = users
	})
}

// OpenThread loads the conversation with the specified partner. The thread
// is the subsequence of all messages between the session user and the
// partner, in the backend's return order.
func (s *Store) OpenThread(ctx context.Context, partner string) {
	s.mu.Lock()
	if s.auth.User == nil {
		s.mu.Unlock()
		return
	}
	self := s.auth.User.Username
	epoch := s.epoch
	s.mu.Unlock()

	msgs, err := s.backend.Messages(ctx, self, partner)
	if err != nil {
		s.fail(epoch, err)
		return
	}

	thread := FilterThread(msgs, self, partner)

	s.transitionIf(epoch, func() {
		s.partner = partner
		s.thread = thread
	})
}

// Send posts a message to the open conversation and reloads the thread.
func (s *Store) Send(ctx context.Context, text string) {
	s.mu.Lock()
	if s.auth.User == nil || s.partner == "" {
		s.mu.Unlock()
		return
	}
	self := s.auth.User.Username
	partner := s.partner
	epoch := s.epoch
	s.mu.Unlock()

	if text == "" {
		return
	}

	msg := backend.Message{
		Sender:   self,
		Receiver: partner,
		Text:     text,
		TxHash:   placeholderTxHash(),
	}

	if err := s.backend.SendMessage(ctx, msg); err != nil {
		s.fail(epoch, err)
		return
	}

	s.OpenThread(ctx, partner)
}

// RefreshBalances fetches the balance set for the linked wallet in the
// background. A late result is dropped if the session moved on.
func (s *Store) RefreshBalances(ctx context.Context) {
	s.mu.Lock()
	if !s.hasAuth || s.balance == nil {
		s.mu.Unlock()
		return
	}
	address := s.auth.WalletAddress
	epoch := s.epoch
	s.mu.Unlock()

	go func() {
		set := s.balance.Fetch(ctx, address)

		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			return
		}
		s.balances = set
		s.mu.Unlock()
		s.notify()
	}()
}

// =============================================================================
// Teardown.

// SwitchAccount is the logout-equivalent action from chat: the wallet
// linkage survives, the backend identity and all per-user state do not.
func (s *Store) SwitchAccount() {
	s.transition(func() {
		rec := s.auth
		rec.User = nil
		rec.Token = ""

		if err := s.storage.Save(rec); err != nil {
			s.log.Error(context.Background(), "session-save", "err", err)
		}

		s.auth = rec
		s.step = StepChooseAuth
		s.users = nil
		s.thread = nil
		s.partner = ""
		s.form = validate.RegistrationForm{}
		s.balances = nil
	})
}

// Disconnect is the full logout: the auth record and all derived state are
// cleared and the flow returns to connect.
func (s *Store) Disconnect(ctx context.Context) {
	if s.wallet != nil {
		s.wallet.Disconnect()
	}

	// The delete happens inside the transition so an in-flight backend call
	// can never re-save the record after it is gone.
	s.transition(func() {
		if err := s.storage.Delete(); err != nil {
			s.log.Error(ctx, "session-delete", "err", err)
		}

		s.auth = AuthRecord{}
		s.hasAuth = false
		s.step = StepConnect
		s.users = nil
		s.thread = nil
		s.partner = ""
		s.form = validate.RegistrationForm{}
		s.balances = nil
		s.notices = nil
	})
}

// =============================================================================

// fail routes an operation error: expired auth forces a logout to
// chooseAuth, anything else becomes a notice with no state change. The
// epoch is the value captured before the failing call; a session that has
// moved on since swallows the error.
func (s *Store) fail(epoch int, err error) {
	if !errs.Is(err, errs.AuthExpired) {
		s.transitionIf(epoch, func() {
			s.pushNotice(err.Error())
		})
		return
	}

	s.transitionIf(epoch, func() {
		rec := s.auth
		rec.User = nil
		rec.Token = ""
		s.storage.Save(rec)

		s.auth = rec
		s.step = StepChooseAuth
		s.users = nil
		s.thread = nil
		s.partner = ""
		s.pushNotice("Your session expired, please log in again")
	})
}

// transition applies a mutation atomically, bumps the epoch so in-flight
// async results can detect they are stale, and notifies the observer.
func (s *Store) transition(mutate func()) {
	s.mu.Lock()
	mutate()
	s.epoch++
	s.mu.Unlock()

	s.notify()
}

// transitionIf applies the mutation only when the session hasn't moved on
// since the epoch was captured, reporting whether it was applied. Every
// result of a backend call comes back through here so a late response can
// never land on a screen the user already left.
func (s *Store) transitionIf(epoch int, mutate func()) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	mutate()
	s.epoch++
	s.mu.Unlock()

	s.notify()

	return true
}

// pushNotice must be called with the lock held.
func (s *Store) pushNotice(text string) {
	s.notices = append(s.notices, Notice{
		ID:   uuid.NewString(),
		Text: text,
	})
}

func (s *Store) notify() {
	s.mu.Lock()
	f := s.onChange
	s.mu.Unlock()

	if f != nil {
		f()
	}
}

// =============================================================================

// FilterThread returns the subsequence of msgs exchanged between self and
// partner in either direction, preserving order.
func FilterThread(msgs []backend.Message, self string, partner string) []backend.Message {
	var thread []backend.Message
	for _, m := range msgs {
		if (m.Sender == self && m.Receiver == partner) || (m.Sender == partner && m.Receiver == self) {
			thread = append(thread, m)
		}
	}
	return thread
}

// tokenExpired reports whether the token is a JWT whose exp claim has
// already passed. Opaque tokens can't be checked locally and report false;
// the backend remains the authority either way.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}

	if claims.ExpiresAt == nil {
		return false
	}

	return claims.ExpiresAt.Before(now)
}

// placeholderTxHash generates the txHash field attached to outgoing
// messages. It is random filler, not an on-chain proof.
func placeholderTxHash() string {
	b := make([]byte, 32)
	rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}
