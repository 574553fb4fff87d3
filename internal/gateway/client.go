// ABOUTME: HTTP client for the ticketing backend (contacts, conversations, messages).
// ABOUTME: All calls carry the static api_access_token header; failures wrap APIError.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 15 * time.Second

// APIError is returned when the ticketing backend responds with a non-2xx
// status. The session layer surfaces these as bot-authored error messages and
// never lets them escape the conversation.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticketing api: status %d: %s", e.StatusCode, e.Body)
}

// Profile describes the storefront customer used for contact lookup/creation.
type Profile struct {
	Name             string
	Email            string
	PhoneNumber      string
	CustomAttributes map[string]any
}

// Contact is a ticketing-backend contact record.
type Contact struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// RemoteSender is the sender block of a remote message record.
type RemoteSender struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// RemoteMessage is a message record as reported by the ticketing backend,
// both over REST history fetches and inside WebSocket frames. CreatedAt is
// seconds since epoch.
type RemoteMessage struct {
	ID        int64        `json:"id"`
	Content   string       `json:"content"`
	Sender    RemoteSender `json:"sender"`
	CreatedAt int64        `json:"created_at"`
}

// CreateConversationParams describes a new conversation.
type CreateConversationParams struct {
	ContactID        int64
	InboxID          int64
	Status           string
	CustomAttributes map[string]any
	InitialMessage   string // optional, posted atomically with the conversation
}

// Client talks to the ticketing REST API for one account.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountID  int64
	token      string
	logger     *slog.Logger
}

// NewClient creates a ticketing API client. Pass nil logger for default.
func NewClient(baseURL string, accountID int64, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		accountID:  accountID,
		token:      token,
		logger:     logger.With("component", "gateway"),
	}
}

// FindOrCreateContact looks up a contact by email and creates one if absent.
func (c *Client) FindOrCreateContact(ctx context.Context, profile Profile) (int64, error) {
	if profile.Email != "" {
		var found struct {
			Payload []Contact `json:"payload"`
		}
		q := url.Values{"email": {profile.Email}}
		err := c.do(ctx, http.MethodGet, c.accountPath("contacts")+"?"+q.Encode(), nil, &found)
		if err != nil {
			return 0, fmt.Errorf("searching contact: %w", err)
		}
		for _, contact := range found.Payload {
			if contact.Email == profile.Email {
				c.logger.Debug("contact found", "contact_id", contact.ID)
				return contact.ID, nil
			}
		}
	}

	body := map[string]any{
		"name":              profile.Name,
		"email":             profile.Email,
		"phone_number":      profile.PhoneNumber,
		"custom_attributes": profile.CustomAttributes,
	}
	var created Contact
	if err := c.do(ctx, http.MethodPost, c.accountPath("contacts"), body, &created); err != nil {
		return 0, fmt.Errorf("creating contact: %w", err)
	}
	c.logger.Debug("contact created", "contact_id", created.ID)
	return created.ID, nil
}

// CreateConversation opens a conversation for a contact and returns its id.
func (c *Client) CreateConversation(ctx context.Context, params CreateConversationParams) (int64, error) {
	body := map[string]any{
		"inbox_id":          params.InboxID,
		"contact_id":        params.ContactID,
		"custom_attributes": params.CustomAttributes,
		"status":            params.Status,
	}
	if params.InitialMessage != "" {
		body["message"] = map[string]any{"content": params.InitialMessage}
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.accountPath("conversations"), body, &resp); err != nil {
		return 0, fmt.Errorf("creating conversation: %w", err)
	}
	c.logger.Debug("conversation created", "conversation_id", resp.ID, "status", params.Status)
	return resp.ID, nil
}

// PostMessage appends an incoming (customer-authored) message to a
// conversation and returns the server-assigned message id.
func (c *Client) PostMessage(ctx context.Context, conversationID int64, text string) (int64, error) {
	body := map[string]any{
		"content":      text,
		"message_type": "incoming",
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	path := c.conversationPath(conversationID, "messages")
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return 0, fmt.Errorf("posting message: %w", err)
	}
	return resp.ID, nil
}

// ListMessages fetches the full message history for a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]RemoteMessage, error) {
	var resp struct {
		Payload []RemoteMessage `json:"payload"`
	}
	path := c.conversationPath(conversationID, "messages")
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return resp.Payload, nil
}

// ToggleStatus sets a conversation's status ("open", "pending", ...).
func (c *Client) ToggleStatus(ctx context.Context, conversationID int64, status string) error {
	body := map[string]any{"status": status}
	path := c.conversationPath(conversationID, "toggle_status")
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("toggling status: %w", err)
	}
	return nil
}

// Resolve marks a conversation resolved. Callers treat this as best-effort on
// teardown: errors are logged, never surfaced.
func (c *Client) Resolve(ctx context.Context, conversationID int64) error {
	path := c.conversationPath(conversationID, "resolve")
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("resolving conversation: %w", err)
	}
	return nil
}

func (c *Client) accountPath(suffix string) string {
	return fmt.Sprintf("%s/accounts/%d/%s", c.baseURL, c.accountID, suffix)
}

func (c *Client) conversationPath(conversationID int64, suffix string) string {
	return fmt.Sprintf("%s/accounts/%d/conversations/%d/%s", c.baseURL, c.accountID, conversationID, suffix)
}

// do executes one API call, encoding body as JSON and decoding into out when
// out is non-nil. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("api_access_token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// FormatMessageID renders a server-assigned message id as a transcript id.
func FormatMessageID(id int64) string {
	return strconv.FormatInt(id, 10)
}
