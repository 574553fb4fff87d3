// ABOUTME: Client for the FAQ bot-query endpoint, independent of the ticketing API.
// ABOUTME: Enforces a hard per-request timeout so a slow bot never wedges the session.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBotTimeout bounds a single bot query end to end.
const DefaultBotTimeout = 10 * time.Second

// ErrBotTimeout indicates the bot query exceeded its deadline.
var ErrBotTimeout = errors.New("bot query timed out")

// BotClient queries the storefront's FAQ bot. It is unrelated to the
// ticketing gateway and carries no authentication.
type BotClient struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
}

// NewBotClient creates a bot-query client. A zero timeout selects
// DefaultBotTimeout.
func NewBotClient(endpoint string, timeout time.Duration) *BotClient {
	if timeout <= 0 {
		timeout = DefaultBotTimeout
	}
	return &BotClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		timeout:    timeout,
	}
}

// Ask submits a freeform query and returns the bot's response text. The call
// is bounded by the client timeout and is cancellable through ctx, so session
// teardown can abort an in-flight query.
func (b *BotClient) Ask(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrBotTimeout
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var parsed struct {
		ResponseText string `json:"response_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return parsed.ResponseText, nil
}
