// Package backend provides the client for the remote REST chat backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/walletchat/wchat/chat/app/sdk/errs"
)

// TokenSource returns the current bearer token or an empty string when the
// session has none. Requests without a token go out unauthenticated and the
// server remains the final authority on rejecting them.
type TokenSource func() string

// Client provides access to the six backend operations. The client is
// stateless; auth state lives with the token source.
type Client struct {
	host  string
	http  *http.Client
	token TokenSource
}

// New constructs a client for the backend at the specified host.
func New(host string, token TokenSource) *Client {
	if token == nil {
		token = func() string { return "" }
	}

	return &Client{
		host:  strings.TrimRight(host, "/"),
		http:  http.DefaultClient,
		token: token,
	}
}

// =============================================================================

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}

// Register creates a new account. A success:false response surfaces as a
// Rejected error carrying the backend's message.
func (c *Client) Register(ctx context.Context, input RegisterInput) error {
	var resp envelope
	if err := c.do(ctx, http.MethodPost, "/auth/register", input, &resp, false); err != nil {
		return err
	}

	if !resp.Success {
		return errs.Newf(errs.Rejected, "%s", orUnknown(resp.Message))
	}

	return nil
}

// Login exchanges credentials for a user reference and a bearer token.
func (c *Client) Login(ctx context.Context, username string, password string) (User, string, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{
		Username: username,
		Password: password,
	}

	var resp envelope
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp, false); err != nil {
		return User{}, "", err
	}

	if !resp.Success {
		return User{}, "", errs.Newf(errs.Rejected, "%s", orUnknown(resp.Message))
	}

	if resp.User == nil {
		return User{}, "", errs.Newf(errs.Network, "login response missing user")
	}

	return *resp.User, resp.Token, nil
}

// Users returns the list of registered users. Backends answer this route
// with either an array or an error object; the object form is decoded into
// a typed error here so callers never inspect raw shapes.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users", nil, &raw, true); err != nil {
		return nil, err
	}

	if isArray(raw) {
		var users []User
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, errs.Newf(errs.Network, "decode users: %s", err)
		}
		return users, nil
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, errs.Newf(errs.Network, "decode users error body: %s", err)
	}

	if isExpired(e.Message) {
		return nil, errs.Newf(errs.AuthExpired, "%s", e.Message)
	}

	return nil, errs.Newf(errs.Rejected, "%s", orUnknown(e.Message))
}

// Messages returns every message exchanged between the two users, in the
// backend's return order.
func (c *Client) Messages(ctx context.Context, userA string, userB string) ([]Message, error) {
	path := fmt.Sprintf("/messages/%s/%s", url.PathEscape(userA), url.PathEscape(userB))

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs, true); err != nil {
		return nil, err
	}

	return msgs, nil
}

// SendMessage posts a new message. The sender may be left empty for the
// server to infer from the bearer token.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	var resp envelope
	if err := c.do(ctx, http.MethodPost, "/messages", msg, &resp, true); err != nil {
		return err
	}

	if !resp.Success {
		return errs.Newf(errs.Rejected, "%s", orUnknown(resp.Message))
	}

	return nil
}

// DeleteAllUsers wipes every registered user. Destructive; callers must
// confirm with the user before dispatching.
func (c *Client) DeleteAllUsers(ctx context.Context) error {
	var resp envelope
	return c.do(ctx, http.MethodDelete, "/users", nil, &resp, true)
}

// DeleteAllMessages wipes every stored message. Destructive; callers must
// confirm with the user before dispatching.
func (c *Client) DeleteAllMessages(ctx context.Context) error {
	var resp envelope
	return c.do(ctx, http.MethodDelete, "/messages", nil, &resp, true)
}

// =============================================================================

func (c *Client) do(ctx context.Context, method string, path string, body any, v any, authed bool) error {
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errs.Newf(errs.Internal, "marshal: %s", err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, rdr)
	if err != nil {
		return errs.Newf(errs.Internal, "new request: %s", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if authed {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Newf(errs.Network, "backend unreachable: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errs.Newf(errs.AuthExpired, "token rejected")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.Newf(errs.Network, "backend status %d", resp.StatusCode)
	}

	if v == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errs.Newf(errs.Network, "decode: %s", err)
	}

	return nil
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b == '['
		}
	}
	return false
}

func isExpired(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "expired") || strings.Contains(m, "invalid token")
}

func orUnknown(msg string) string {
	if msg == "" {
		return "request rejected"
	}
	return msg
}
