// Package bridge adapts a host agent framework to the Honcho
// conversational-memory service: configuration resolution, client
// caching, lazy session bootstrap, message push with retry and
// user-context retrieval with a TTL cache.
//
// All state lives on the Bridge instance; nothing is package-global.
package bridge

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	bridgeErrors "github.com/alogotron/a0-plugin-honcho/errors"
	"github.com/alogotron/a0-plugin-honcho/honcho"
	"github.com/alogotron/a0-plugin-honcho/secrets"
	"github.com/alogotron/a0-plugin-honcho/telemetry"
)

const (
	// DefaultUserID is the user peer id when HONCHO_USER_ID is not set.
	DefaultUserID = "user"

	// AgentPeerID is the peer the agent's own messages are attributed to.
	AgentPeerID = "agent-zero"

	// ContextCacheTTL bounds how long a fetched user context is reused.
	ContextCacheTTL = 120 * time.Second

	// MaxMessageLength caps content sent to Honcho.
	MaxMessageLength = 10_000

	// DefaultContextTokens caps the derived context size requested.
	DefaultContextTokens = 500

	logPreviewLength = 80
)

// Secret store keys.
const (
	KeyAPIKey      = "HONCHO_API_KEY"
	KeyWorkspaceID = "HONCHO_WORKSPACE_ID"
	KeyUserID      = "HONCHO_USER_ID"
)

// Conversation is the host-owned handle for one conversation. The host
// keeps ownership; the bridge only tracks per-conversation state in its
// own map, keyed by the conversation value (which must be comparable —
// a pointer is the usual case).
//
// ConversationID should return a stable identifier. When it returns "",
// the bridge mints a session id once per conversation value; that id is
// stable for the value's lifetime but not across restarts.
type Conversation interface {
	ConversationID() string
}

// convState tracks whether a conversation has a bootstrapped session.
// Enabled is re-checked on every operation; a failed re-init flips it
// back to false.
type convState struct {
	enabled    bool
	sessionID  string
	fallbackID string
}

// contextEntry is one TTL-cached user context. Empty text is cached
// like any other result so a misconfigured or quiet session does not
// trigger a remote fetch on every prompt build.
type contextEntry struct {
	fetchedAt time.Time
	text      string
}

// Bridge is the adapter between the host and Honcho.
type Bridge struct {
	store   secrets.Store
	retry   RetryPolicy
	log     *telemetry.Logger
	metrics *telemetry.Metrics

	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu       sync.RWMutex
	clients  map[string]*honcho.Client // workspace id -> client, never invalidated
	contexts map[string]contextEntry   // session id -> cached user context
	states   map[Conversation]*convState
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(log *telemetry.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithRetryPolicy sets the message push retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *Bridge) { b.retry = p }
}

// WithBaseURL overrides the Honcho API endpoint.
func WithBaseURL(u string) Option {
	return func(b *Bridge) { b.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.httpClient = c }
}

// New creates a Bridge reading credentials from store.
func New(store secrets.Store, opts ...Option) *Bridge {
	b := &Bridge{
		store:    store,
		retry:    DefaultRetryPolicy(),
		log:      telemetry.NewLogger(false),
		metrics:  telemetry.NewMetrics(),
		now:      time.Now,
		clients:  make(map[string]*honcho.Client),
		contexts: make(map[string]contextEntry),
		states:   make(map[Conversation]*convState),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Logger returns the bridge's logger, for the extensions built on top.
func (b *Bridge) Logger() *telemetry.Logger {
	return b.log
}

// Metrics returns the bridge's metrics collector.
func (b *Bridge) Metrics() *telemetry.Metrics {
	return b.metrics
}

// secretValues loads the secret store. Any failure reads as an empty
// store; secrets are never logged.
func (b *Bridge) secretValues() map[string]string {
	if b.store == nil {
		return nil
	}
	values, err := b.store.Load()
	if err != nil {
		b.log.Debug("unable to load secrets", "error", err)
		return nil
	}
	return values
}

// apiKey resolves HONCHO_API_KEY, trimmed. Empty means not configured.
func (b *Bridge) apiKey() string {
	return strings.TrimSpace(b.secretValues()[KeyAPIKey])
}

// configValue resolves a named config value with a fallback default.
func (b *Bridge) configValue(key, fallback string) string {
	if v := strings.TrimSpace(b.secretValues()[key]); v != "" {
		return v
	}
	return fallback
}

// IsConfigured reports whether an API key resolves. A missing store or
// blank key is "not configured", never an error.
func (b *Bridge) IsConfigured() bool {
	return b.apiKey() != ""
}

// UserID returns the configured user peer id.
func (b *Bridge) UserID() string {
	return b.configValue(KeyUserID, DefaultUserID)
}

// client returns a memoized per-workspace client, or nil when the
// integration is unconfigured or construction fails. Clients live for
// the process; duplicate construction under concurrent first use is
// harmless.
func (b *Bridge) client() *honcho.Client {
	apiKey := b.apiKey()
	if apiKey == "" {
		return nil
	}
	workspaceID := b.configValue(KeyWorkspaceID, honcho.DefaultWorkspaceID)

	b.mu.RLock()
	cached := b.clients[workspaceID]
	b.mu.RUnlock()
	if cached != nil {
		return cached
	}

	client, err := honcho.NewClient(honcho.Config{
		APIKey:      apiKey,
		WorkspaceID: workspaceID,
		BaseURL:     b.baseURL,
		HTTPClient:  b.httpClient,
	})
	if err != nil {
		b.log.Error("failed to create honcho client", "workspace", workspaceID, "error", err)
		return nil
	}

	b.mu.Lock()
	if existing := b.clients[workspaceID]; existing != nil {
		b.mu.Unlock()
		return existing
	}
	b.clients[workspaceID] = client
	b.mu.Unlock()

	b.log.Info("created honcho client", "workspace", workspaceID)
	return client
}

// SessionID derives the Honcho session id for a conversation. A stable
// conversation id maps to chat-<id>; otherwise an id is minted once and
// kept in the conversation's state entry.
func (b *Bridge) SessionID(conv Conversation) string {
	if conv == nil {
		return ""
	}
	if id := conv.ConversationID(); id != "" {
		return "chat-" + id
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.states[conv]
	if st == nil {
		st = &convState{}
		b.states[conv] = st
	}
	if st.fallbackID == "" {
		st.fallbackID = "session-" + uuid.NewString()
	}
	return st.fallbackID
}

// Enabled reports whether the conversation currently has a
// bootstrapped session.
func (b *Bridge) Enabled(conv Conversation) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := b.states[conv]
	return st != nil && st.enabled
}

// EnsureInitialized lazily bootstraps the Honcho session for a
// conversation. Idempotent: an enabled conversation short-circuits.
// Returns whether the conversation is enabled afterwards.
func (b *Bridge) EnsureInitialized(ctx context.Context, conv Conversation) bool {
	if conv == nil {
		return false
	}
	if b.Enabled(conv) {
		return true
	}

	if !b.IsConfigured() {
		b.markDisabled(conv)
		return false
	}
	client := b.client()
	if client == nil {
		b.markDisabled(conv)
		return false
	}

	sessionID := b.SessionID(conv)
	session := client.Session(sessionID)
	b.metrics.IncAPIRequests()
	if err := session.AddPeers(ctx, client.Peer(b.UserID()), client.Peer(AgentPeerID)); err != nil {
		// Peers may already exist; registration is best-effort.
		b.log.Debug("peer registration skipped", "session", sessionID, "error",
			bridgeErrors.Wrap(bridgeErrors.CodeSessionInitFailed, "add peers", err))
	}

	b.mu.Lock()
	st := b.states[conv]
	if st == nil {
		st = &convState{}
		b.states[conv] = st
	}
	st.enabled = true
	st.sessionID = sessionID
	b.mu.Unlock()

	b.metrics.IncSessionsInitialized()
	b.log.Info("initialised honcho session", "session", sessionID)
	return true
}

// markDisabled flips an existing state entry to disabled. It never
// creates an entry: a conversation the bridge has not touched stays
// untouched.
func (b *Bridge) markDisabled(conv Conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st := b.states[conv]; st != nil {
		st.enabled = false
	}
}

// SyncMessage validates and pushes one message to the conversation's
// session. Returns whether the push succeeded. Fire-and-forget: a push
// that fails after retries is logged and lost.
func (b *Bridge) SyncMessage(ctx context.Context, conv Conversation, role, content string) bool {
	role, err := normalizeRole(role)
	if err != nil {
		b.log.Warn("message validation failed", "error", err)
		return false
	}
	content, err = validateContent(content)
	if err != nil {
		b.log.Warn("message validation failed", "error", err)
		return false
	}

	if !b.EnsureInitialized(ctx, conv) {
		return false
	}
	client := b.client()
	if client == nil {
		return false
	}

	sessionID := b.SessionID(conv)
	peerID := AgentPeerID
	if role == "user" {
		peerID = b.UserID()
	}

	if err := b.pushMessage(ctx, client, sessionID, peerID, content); err != nil {
		b.metrics.IncSyncFailures()
		b.log.Error("message sync failed",
			"session", sessionID, "role", role, "error", err, "content", preview(content))
		return false
	}

	b.metrics.IncMessagesSynced()
	b.log.Debug("synced message",
		"session", sessionID, "role", role, "chars", len(content), "content", preview(content))
	return true
}

// pushMessage pushes one message through the retry policy.
func (b *Bridge) pushMessage(ctx context.Context, client *honcho.Client, sessionID, peerID, content string) error {
	session := client.Session(sessionID)
	msg := client.Peer(peerID).Message(truncate(content, MaxMessageLength))

	err := b.retry.Do(ctx, func() error {
		b.metrics.IncAPIRequests()
		return session.AddMessages(ctx, msg)
	})
	if err != nil {
		return bridgeErrors.Wrap(bridgeErrors.CodeRemoteError, "message push failed", err)
	}
	return nil
}

// UserContext fetches the summarised user context for a conversation,
// serving a cached result when younger than ContextCacheTTL. The
// cached value is returned verbatim, including empty results. Fetch
// failures return ok=false and are not cached, so the next call
// retries.
func (b *Bridge) UserContext(ctx context.Context, conv Conversation, maxTokens int) (string, bool) {
	if maxTokens < 1 {
		maxTokens = DefaultContextTokens
	}

	if !b.EnsureInitialized(ctx, conv) {
		return "", false
	}
	sessionID := b.SessionID(conv)

	b.mu.RLock()
	entry, cached := b.contexts[sessionID]
	b.mu.RUnlock()
	if cached && b.now().Sub(entry.fetchedAt) < ContextCacheTTL {
		b.metrics.IncContextCacheHits()
		return entry.text, true
	}

	client := b.client()
	if client == nil {
		return "", false
	}

	b.metrics.IncContextFetches()
	b.metrics.IncAPIRequests()
	sc, err := client.Session(sessionID).Context(ctx, maxTokens)
	if err != nil {
		b.log.Error("user context fetch failed", "session", sessionID, "error", err)
		return "", false
	}

	text := sc.Text()
	b.mu.Lock()
	b.contexts[sessionID] = contextEntry{fetchedAt: b.now(), text: text}
	b.mu.Unlock()
	return text, true
}

// ClearContextCache invalidates the cached user context for one session.
func (b *Bridge) ClearContextCache(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.contexts, sessionID)
}

// ClearAllContextCaches invalidates every cached user context.
func (b *Bridge) ClearAllContextCaches() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contexts = make(map[string]contextEntry)
}
