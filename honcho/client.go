// Package honcho is a minimal client for the Honcho conversational-memory
// API. It covers the surface the bridge needs: workspace-scoped sessions,
// peers, message ingestion and derived-context retrieval.
package honcho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bridgeErrors "github.com/alogotron/a0-plugin-honcho/errors"
)

const (
	// DefaultBaseURL is the hosted Honcho API endpoint.
	DefaultBaseURL = "https://api.honcho.dev/v2"

	// DefaultWorkspaceID is used when no workspace is configured.
	DefaultWorkspaceID = "agent-zero"
)

// Config configures a Client.
type Config struct {
	APIKey      string
	WorkspaceID string
	BaseURL     string
	HTTPClient  *http.Client
}

// Client is a workspace-scoped Honcho API client.
type Client struct {
	apiKey      string
	workspaceID string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates a Honcho client for one workspace.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, bridgeErrors.New(bridgeErrors.CodeAPIKeyMissing, "HONCHO_API_KEY not set").
			WithSuggestion("Add HONCHO_API_KEY to the host's secret store")
	}
	workspaceID := cfg.WorkspaceID
	if workspaceID == "" {
		workspaceID = DefaultWorkspaceID
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		apiKey:      cfg.APIKey,
		workspaceID: workspaceID,
		baseURL:     baseURL,
		httpClient:  httpClient,
	}, nil
}

// WorkspaceID returns the workspace this client is scoped to.
func (c *Client) WorkspaceID() string {
	return c.workspaceID
}

// Session returns a handle for the given session id. No network call is made.
func (c *Client) Session(id string) *Session {
	return &Session{client: c, id: id}
}

// Peer returns a handle for the given peer id. No network call is made.
func (c *Client) Peer(id string) *Peer {
	return &Peer{id: id}
}

// Peer identifies a participant (user or agent) in a session.
type Peer struct {
	id string
}

// ID returns the peer identifier.
func (p *Peer) ID() string {
	return p.id
}

// Message builds a message authored by this peer.
func (p *Peer) Message(content string) Message {
	return Message{PeerID: p.id, Content: content}
}

// Message is one message to ingest into a session.
type Message struct {
	PeerID  string `json:"peer_id"`
	Content string `json:"content"`
}

// SessionContext is the derived representation of a session's history.
// The server populates summary or peer_representation depending on how
// much dialectic processing has run; either may be absent.
type SessionContext struct {
	Summary            string `json:"summary"`
	PeerRepresentation string `json:"peer_representation"`
}

// Text returns the summary when present, else the peer representation,
// else the empty string.
func (sc *SessionContext) Text() string {
	if sc == nil {
		return ""
	}
	if sc.Summary != "" {
		return sc.Summary
	}
	return sc.PeerRepresentation
}

// Session is a handle on one remote conversation thread.
type Session struct {
	client *Client
	id     string
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AddPeers registers peers with the session. Registering an
// already-registered peer is not an error on the server side.
func (s *Session) AddPeers(ctx context.Context, peers ...*Peer) error {
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID())
	}
	body := map[string]interface{}{"peer_ids": ids}
	return s.client.post(ctx, s.path("peers"), body, nil)
}

// AddMessages ingests one or more messages into the session.
func (s *Session) AddMessages(ctx context.Context, msgs ...Message) error {
	body := map[string]interface{}{"messages": msgs}
	return s.client.post(ctx, s.path("messages"), body, nil)
}

// Context fetches the derived session context, capped at maxTokens.
func (s *Session) Context(ctx context.Context, maxTokens int) (*SessionContext, error) {
	query := url.Values{}
	if maxTokens > 0 {
		query.Set("tokens", strconv.Itoa(maxTokens))
	}

	var sc SessionContext
	if err := s.client.get(ctx, s.path("context"), query, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Session) path(suffix string) string {
	return fmt.Sprintf("/workspaces/%s/sessions/%s/%s",
		url.PathEscape(s.client.workspaceID), url.PathEscape(s.id), suffix)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
