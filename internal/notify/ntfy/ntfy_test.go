package ntfy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReminderFailures(t *testing.T) {
	var got Message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{ServerURL: srv.URL, Topic: "alerts", Token: "tk"})
	require.NoError(t, c.SendReminderFailures(context.Background(), 2, 5, []string{"user 1: forbidden"}))

	assert.Equal(t, "Bearer tk", auth)
	assert.Equal(t, "alerts", got.Topic)
	assert.Contains(t, got.Message, "2 of 5")
	assert.Contains(t, got.Message, "user 1: forbidden")
}

func TestSendReminderFailures_NothingFailed(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{ServerURL: srv.URL})
	require.NoError(t, c.SendReminderFailures(context.Background(), 0, 5, nil))
	assert.False(t, called)
}

func TestSendMessage_ServerError(t *testing.T) {
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{ServerURL: srv.URL, Username: "u", Password: "p"})
	err := c.SendMessage(context.Background(), Message{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}
