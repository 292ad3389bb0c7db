package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/zhouzirui/vanguard/backend/internal/config"
	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
)

// 读取错误响应体的上限
const maxErrorBodyBytes = 64 << 10

// Client talks to the relay server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client from configuration.
func New(cfg config.ClientConfig) *Client {
	return NewWithHTTPClient(cfg.APIURL, &http.Client{Timeout: cfg.Timeout})
}

// NewWithHTTPClient creates a client using hc for every request.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// BaseURL returns the relay address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health is the body of GET /health.
type Health struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// SendMessageStream posts req to /api/chat and returns the event stream.
// Transport and HTTP failures are reported as a single json event with
// success=false; the returned stream is never nil.
func (c *Client) SendMessageStream(ctx context.Context, req chat.ChatRequest) *Stream {
	payload, err := json.Marshal(req)
	if err != nil {
		return failureStream(fmt.Sprintf("failed to encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return failureStream(fmt.Sprintf("failed to build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[client] request to %s failed: %v", c.baseURL, err)
		return failureStream(c.networkErrorMessage())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg := errorFromBody(resp)
		log.Printf("[client] relay returned %d: %s", resp.StatusCode, msg)
		return failureStream(msg)
	}

	return NewStream(resp.Body)
}

// SendMessage waits for the whole reply. A structured result wins; otherwise
// the concatenated text is returned as a successful response.
func (c *Client) SendMessage(ctx context.Context, req chat.ChatRequest) chat.ChatResponse {
	var text strings.Builder
	for ev := range c.SendMessageStream(ctx, req).Events() {
		switch ev.Type {
		case EventText:
			text.WriteString(ev.Text)
		case EventJSON:
			return *ev.Response
		}
	}
	return chat.ChatResponse{Success: true, Message: text.String()}
}

// Health checks that the relay is up.
func (c *Client) Health(ctx context.Context) (Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Health{}, fmt.Errorf("%s: %w", c.networkErrorMessage(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("health check returned %s", resp.Status)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health, nil
}

func (c *Client) networkErrorMessage() string {
	return fmt.Sprintf("Failed to connect to AI server at %s. Please ensure the backend is running.", c.baseURL)
}

func failureStream(msg string) *Stream {
	return streamOf(Event{Type: EventJSON, Response: &chat.ChatResponse{Success: false, Error: msg}})
}

// errorFromBody extracts the server's error message, falling back to the status text.
func errorFromBody(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		if body.Details != "" {
			return body.Error + ": " + body.Details
		}
		return body.Error
	}

	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 512 {
		return text
	}
	if status := http.StatusText(resp.StatusCode); status != "" {
		return status
	}
	return resp.Status
}
