package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier(t *testing.T) {
	var got map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL)
	require.NoError(t, n.Notify(context.Background(), "Added 2 torrents to deluge"))
	assert.Equal(t, "Added 2 torrents to deluge", got["content"])

	require.NoError(t, n.Notify(context.Background(), strings.Repeat("é", 3000)))
	assert.Equal(t, discordContentLimit, utf8.RuneCountInString(got["content"]))
}

func TestDiscordNotifierErrors(t *testing.T) {
	assert.ErrorIs(t, (&DiscordNotifier{}).Notify(context.Background(), "x"), ErrNoWebhook)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Notify(context.Background(), "x")
	assert.EqualError(t, err, "webhook failed with status 429")
}
