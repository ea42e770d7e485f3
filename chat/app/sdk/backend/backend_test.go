package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletchat/wchat/chat/app/sdk/backend"
	"github.com/walletchat/wchat/chat/app/sdk/errs"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "bill", body["username"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user":    map[string]string{"username": "bill", "walletAddress": "0xabc"},
			"token":   "tkn-123",
		})
	}))
	defer srv.Close()

	client := backend.New(srv.URL, nil)

	usr, token, err := client.Login(context.Background(), "bill", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, "bill", usr.Username)
	assert.Equal(t, "tkn-123", token)
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Invalid credentials",
		})
	}))
	defer srv.Close()

	client := backend.New(srv.URL, nil)

	_, _, err := client.Login(context.Background(), "bill", "wrong")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Rejected))
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestUsersBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tkn-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]string{
			{"username": "bill", "walletAddress": "0xabc"},
			{"username": "jill", "walletAddress": "0xdef"},
		})
	}))
	defer srv.Close()

	client := backend.New(srv.URL, func() string { return "tkn-123" })

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "jill", users[1].Username)
}

func TestUsersErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "token expired",
		})
	}))
	defer srv.Close()

	client := backend.New(srv.URL, func() string { return "stale" })

	_, err := client.Users(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.AuthExpired))
}

func TestUsersUnauthorizedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := backend.New(srv.URL, func() string { return "stale" })

	_, err := client.Users(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.AuthExpired))
}

func TestUnreachable(t *testing.T) {
	client := backend.New("http://127.0.0.1:1", nil)

	_, err := client.Users(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Network))
}

func TestSendMessage(t *testing.T) {
	var got backend.Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	client := backend.New(srv.URL, func() string { return "tkn" })

	msg := backend.Message{
		Sender:   "bill",
		Receiver: "jill",
		Text:     "hello",
		TxHash:   "0xdead",
	}

	require.NoError(t, client.SendMessage(context.Background(), msg))
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "0xdead", got.TxHash)
}

func TestDeleteAll(t *testing.T) {
	var paths []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	client := backend.New(srv.URL, nil)

	require.NoError(t, client.DeleteAllUsers(context.Background()))
	require.NoError(t, client.DeleteAllMessages(context.Background()))
	assert.Equal(t, []string{"/users", "/messages"}, paths)
}
