// Package rest implements the engine transport against the portal's
// HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hivedesk/hivedesk/internal/chat"
	"github.com/hivedesk/hivedesk/internal/engine"
	"github.com/hivedesk/hivedesk/internal/logging"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8000.
	BaseURL string

	// Token is attached as "Authorization: Token <token>".
	Token string

	// Timeout bounds each request. Default: 10s.
	Timeout time.Duration

	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the portal API. It implements engine.Transport.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   zerolog.Logger
}

var _ engine.Transport = (*Client)(nil)

// NewClient validates the config and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(cfg.Token),
		http:  httpClient,
		log:   logging.Component("rest"),
	}, nil
}

// userPayload is the portal's user serialization.
type userPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Director  bool   `json:"is_director"`
	Online    bool   `json:"is_online"`
}

func (u userPayload) displayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// FetchMessages implements engine.Transport.
func (c *Client) FetchMessages(ctx context.Context) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.get(ctx, "/api/communication/messages/", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// FetchContacts implements engine.Transport.
func (c *Client) FetchContacts(ctx context.Context, role engine.RoleFilter) ([]chat.Contact, error) {
	path := "/api/users/manage/"
	switch role {
	case engine.RoleParent:
		path += "?is_parent=true"
	case engine.RoleOperator:
		path += "?is_director=true"
	}

	var users []userPayload
	if err := c.get(ctx, path, &users); err != nil {
		return nil, err
	}
	contacts := make([]chat.Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, chat.Contact{
			ID:          u.ID,
			DisplayName: u.displayName(),
			Operator:    u.Director,
			Online:      u.Online,
		})
	}
	return contacts, nil
}

// FetchIdentity implements engine.Transport.
func (c *Client) FetchIdentity(ctx context.Context) (chat.Identity, error) {
	var u userPayload
	if err := c.get(ctx, "/api/users/me/", &u); err != nil {
		return chat.Identity{}, err
	}
	return chat.Identity{ID: u.ID, DisplayName: u.displayName(), Operator: u.Director}, nil
}

// MarkRead implements engine.Transport.
func (c *Client) MarkRead(ctx context.Context, counterpartID int64) error {
	payload := map[string]int64{"counterpart": counterpartID}
	return c.post(ctx, "/api/communication/messages/mark_read/", payload, nil)
}

// Send implements engine.Transport.
func (c *Client) Send(ctx context.Context, counterpartID int64, subject, body string) error {
	payload := map[string]any{
		"receiver": counterpartID,
		"subject":  subject,
		"body":     body,
	}
	return c.post(ctx, "/api/communication/messages/", payload, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
