package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: time.Second},
		baseURL: baseURL,
		token:   "test-token",
	}
}

func apiOK(messageID int64) string {
	return `{"ok":true,"result":{"message_id":` + strconv.FormatInt(messageID, 10) + `}}`
}

func TestSendMessageSuccess(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(apiOK(42)))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SendMessage(context.Background(), 100, "hello", "HTML")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(42), res.MessageID)
	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, float64(100), payload["chat_id"])
	assert.Equal(t, "hello", payload["text"])
	assert.Equal(t, "HTML", payload["parse_mode"])
}

func TestSendPhotoSuccess(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(apiOK(7)))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SendPhoto(context.Background(), 100, "https://img/1.jpg", "caption", "HTML")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.ImageAvailable)
	assert.Equal(t, "https://img/1.jpg", payload["photo"])
	assert.Equal(t, "caption", payload["caption"])
}

func TestSendPhotoBadImageIsNotRetryableAndFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"wrong file identifier"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SendPhoto(context.Background(), 100, "https://img/broken", "c", "HTML")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Retryable)
	// Non-retryable photo rejection invites a text fallback.
	assert.False(t, res.ImageAvailable)
	assert.Equal(t, "wrong file identifier", res.Error)
}

func TestSendMessageRateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SendMessage(context.Background(), 100, "x", "HTML")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Retryable)
}

func TestSendPhotoRetryableKeepsImageAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SendPhoto(context.Background(), 100, "https://img/1.jpg", "c", "HTML")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Retryable)
	// Retryable failures say nothing about the image itself.
	assert.True(t, res.ImageAvailable)
}

func TestSendMessageNetworkFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	res, err := testClient(srv.URL).SendMessage(context.Background(), 100, "x", "HTML")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Retryable)
	assert.NotEmpty(t, res.Error)
}

func TestSendMessageCancelledContextIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(apiOK(1)))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := testClient(srv.URL).SendMessage(ctx, 100, "x", "HTML")
	require.Error(t, err)
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(429))
	assert.True(t, retryableStatus(500))
	assert.True(t, retryableStatus(503))
	assert.False(t, retryableStatus(400))
	assert.False(t, retryableStatus(403))
	assert.False(t, retryableStatus(404))
}
