// Package telegram is a minimal Bot API client covering the two calls the
// relay depends on: sendMessage and long-poll getUpdates. It speaks plain
// HTTPS to api.telegram.org and hides the wire shape behind gateway types.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/councilbot/go-relay-backend/internal/gateway"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// APIError carries the Bot API failure details for a non-ok response.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = "request failed"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("telegram http %d: %s", e.StatusCode, desc)
	}
	return "telegram: " + desc
}

// Client is a Bot API client bound to one bot token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient builds a client for token. A nil httpClient gets a 60s-timeout
// default; baseURL falls back to DefaultBaseURL when empty.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Send delivers a text message and returns the platform id Telegram assigned
// to it. Implements gateway.Sender.
func (c *Client) Send(ctx context.Context, req gateway.SendRequest) (int64, error) {
	body := sendMessageRequest{
		ChatID:                req.ChatID,
		Text:                  req.Text,
		DisableWebPagePreview: true,
		ReplyToMessageID:      req.ReplyTo,
	}
	b, _ := json.Marshal(body)

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var out sendMessageResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return 0, &APIError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   out.ErrorCode,
			Description: out.Description,
		}
	}
	if out.Result == nil {
		return 0, &APIError{StatusCode: resp.StatusCode, Description: "sendMessage: missing result"}
	}
	return out.Result.MessageID, nil
}

// GetMe verifies the token and returns the bot's own username.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/bot%s/getMe", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}
	var out getMeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if !out.OK {
		return "", &APIError{StatusCode: resp.StatusCode, Description: "getMe: ok=false"}
	}
	return out.Result.Username, nil
}

// getUpdates long-polls for new updates starting at offset and returns them
// with the next offset to ask for.
func (c *Client) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&allowed_updates=[\"message\"]", c.baseURL, c.token, secs)
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	// The request deadline trails the server-side poll timeout.
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, offset, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, offset, &APIError{StatusCode: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}

	var out getUpdatesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, &APIError{StatusCode: resp.StatusCode, Description: "getUpdates: ok=false"}
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}
