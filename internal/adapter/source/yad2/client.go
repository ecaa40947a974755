// Package yad2 implements the reference marketplace connector.
package yad2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rentifier/rentifier/internal/domain"
)

// captchaMarker is the vendor-specific bot-manager marker; its presence in a
// response body makes the attempt non-retryable.
const captchaMarker = "Radware Bot Manager Captcha"

const maxBodyBytes = 4 << 20

type client struct {
	hc          *http.Client
	baseURL     string
	maxAttempts int
}

func newClient(baseURL string, timeout time.Duration, maxAttempts int) *client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &client{
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:     baseURL,
		maxAttempts: maxAttempts,
	}
}

type feedResponse struct {
	Data struct {
		Feed struct {
			Items []feedItem `json:"feed_items"`
		} `json:"feed"`
	} `json:"data"`
}

type feedItem struct {
	Token        string   `json:"token"`
	OrderID      int64    `json:"order_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	Rooms        float64  `json:"rooms"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Street       string   `json:"street"`
	HouseNumber  string   `json:"address_home_number"`
	Floor        string   `json:"floor"`
	SquareMeters float64  `json:"square_meters"`
	PropertyType string   `json:"property_type"`
	Condition    string   `json:"asset_condition"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Images       []string `json:"images_urls"`
	DateAdded    string   `json:"date_added"`
}

// fetchCity pulls one city's rental feed page, retrying retryable failures
// with exponential backoff (1s, 2s, ...) up to maxAttempts total attempts.
func (c *client) fetchCity(ctx context.Context, cityCode string) (*feedResponse, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 1 * time.Second
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	var resp *feedResponse
	op := func() error {
		var err error
		resp, err = c.doFetch(ctx, cityCode)
		if err != nil {
			var se *domain.SourceError
			if errors.As(err, &se) && !se.Retryable {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *client) doFetch(ctx context.Context, cityCode string) (*feedResponse, error) {
	url := fmt.Sprintf("%s/feed-search-legacy/realestate/rent?cityCode=%s&forceLdLoad=true", c.baseURL, cityCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewSourceError(domain.SourceErrParse, 0, false, err)
	}
	// Fixed browser-like headers; the upstream rejects naked clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en-US;q=0.8")

	res, err := c.hc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.NewSourceError(domain.SourceErrTimeout, 0, true, err)
		}
		return nil, domain.NewSourceError(domain.SourceErrNetwork, 0, true, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewSourceError(domain.SourceErrNetwork, res.StatusCode, true, err)
	}
	if bytes.Contains(body, []byte(captchaMarker)) {
		return nil, domain.NewSourceError(domain.SourceErrCaptcha, res.StatusCode, false, errors.New("captcha challenge served"))
	}
	if res.StatusCode >= 500 {
		return nil, domain.NewSourceError(domain.SourceErrHTTP, res.StatusCode, true, fmt.Errorf("upstream status %d", res.StatusCode))
	}
	if res.StatusCode >= 400 {
		return nil, domain.NewSourceError(domain.SourceErrHTTP, res.StatusCode, false, fmt.Errorf("upstream status %d", res.StatusCode))
	}

	var out feedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.NewSourceError(domain.SourceErrParse, res.StatusCode, false, err)
	}
	return &out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
