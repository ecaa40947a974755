// Package telegram implements the chat transport over the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rentifier/rentifier/internal/config"
	"github.com/rentifier/rentifier/internal/domain"
)

// Channel is the value recorded in notifications_sent.channel.
const Channel = "telegram"

const maxBodyBytes = 1 << 20

// Client implements domain.ChatTransport against the Bot API. API-level
// failures are reported in the SendResult, not as errors; the returned
// error is reserved for request construction and context cancellation.
type Client struct {
	hc      *http.Client
	baseURL string
	token   string
}

// New constructs a transport client from configuration.
func New(cfg config.Config) *Client {
	return &Client{
		hc: &http.Client{
			Timeout:   cfg.SourceHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: cfg.TelegramBaseURL,
		token:   cfg.TelegramBotToken,
	}
}

type apiResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendMessage delivers a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) (domain.SendResult, error) {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": false,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return c.call(ctx, "sendMessage", payload, false)
}

// SendPhoto delivers a photo by URL with a caption. When the API rejects the
// photo for a non-retryable reason (bad URL, dimensions, wrong file) the
// result carries ImageAvailable=false so the caller can fall back to text.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption, parseMode string) (domain.SendResult, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return c.call(ctx, "sendPhoto", payload, true)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any, photo bool) (domain.SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("op=telegram.%s: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("op=telegram.%s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.SendResult{}, fmt.Errorf("op=telegram.%s: %w", method, ctx.Err())
		}
		// Network failures are retryable on the next run.
		return domain.SendResult{Retryable: true, ImageAvailable: true, Error: err.Error()}, nil
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return domain.SendResult{Retryable: true, ImageAvailable: true, Error: err.Error()}, nil
	}
	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return domain.SendResult{Retryable: retryableStatus(res.StatusCode), ImageAvailable: true, Error: "malformed api response"}, nil
	}
	if api.OK {
		return domain.SendResult{Success: true, MessageID: api.Result.MessageID, ImageAvailable: true}, nil
	}

	retryable := retryableStatus(api.ErrorCode)
	slog.Debug("telegram send rejected",
		slog.String("method", method),
		slog.Int("error_code", api.ErrorCode),
		slog.String("description", api.Description))
	return domain.SendResult{
		Error:          api.Description,
		Retryable:      retryable,
		ImageAvailable: !(photo && !retryable),
	}, nil
}

// Retryable per the Bot API: 429 and upstream 5xx; everything else in the
// 4xx range is a permanent rejection.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return code >= 500
}
