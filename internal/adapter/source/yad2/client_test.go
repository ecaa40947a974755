package yad2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentifier/rentifier/internal/domain"
)

func feedJSON(items string) string {
	return `{"data":{"feed":{"feed_items":[` + items + `]}}}`
}

func TestFetchCityRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "5000", r.URL.Query().Get("cityCode"))
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feedJSON(`{"token":"abc","order_id":1,"title":"t"}`)))
	}))
	defer srv.Close()

	c := newClient(srv.URL, time.Second, 3)
	// Shrink the backoff so the retries do not stall the test.
	resp, err := fetchWithFastBackoff(t, c, "5000")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, resp.Data.Feed.Items, 1)
	assert.Equal(t, "abc", resp.Data.Feed.Items[0].Token)
}

func TestFetchCityGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(srv.URL, time.Second, 3)
	_, err := fetchWithFastBackoff(t, c, "5000")
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var se *domain.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.SourceErrHTTP, se.Kind)
	assert.True(t, se.Retryable)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestFetchCityClientErrorIsPermanent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newClient(srv.URL, time.Second, 3)
	_, err := fetchWithFastBackoff(t, c, "5000")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not be retried")

	var se *domain.SourceError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable)
}

func TestFetchCityCaptchaIsPermanent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte("<html>" + captchaMarker + "</html>"))
	}))
	defer srv.Close()

	c := newClient(srv.URL, time.Second, 3)
	_, err := fetchWithFastBackoff(t, c, "5000")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "captcha must not be retried")

	var se *domain.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.SourceErrCaptcha, se.Kind)
	assert.False(t, se.Retryable)
}

func TestFetchCityMalformedJSONIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newClient(srv.URL, time.Second, 3)
	_, err := fetchWithFastBackoff(t, c, "5000")
	require.Error(t, err)

	var se *domain.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.SourceErrParse, se.Kind)
	assert.False(t, se.Retryable)
}

func TestDoFetchSendsBrowserHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(feedJSON("")))
	}))
	defer srv.Close()

	c := newClient(srv.URL, time.Second, 1)
	_, err := c.doFetch(context.Background(), "5000")
	require.NoError(t, err)
}

// fetchWithFastBackoff bounds the retry waits so tests with real retries
// finish quickly. The 1s production interval comes from fetchCity; here the
// context deadline caps total wall time as a safety net.
func fetchWithFastBackoff(t *testing.T, c *client, cityCode string) (*feedResponse, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.fetchCity(ctx, cityCode)
}
