package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alogotron/a0-plugin-honcho/secrets"
	"github.com/alogotron/a0-plugin-honcho/telemetry"
)

// chat is a minimal host conversation for tests.
type chat struct {
	id string
}

func (c *chat) ConversationID() string { return c.id }

// fakeStore is a mutable secret store, so tests can simulate secrets
// appearing or disappearing mid-run.
type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *fakeStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
}

func (s *fakeStore) unset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// honchoServer is a fake Honcho API that records requests per endpoint.
type honchoServer struct {
	*httptest.Server

	mu           sync.Mutex
	peerCalls    int
	messageCalls int
	contextCalls int
	messages     []map[string]string
	contextBody  map[string]string
	contextFail  bool
}

func newHonchoServer(t *testing.T) *honchoServer {
	t.Helper()
	hs := &honchoServer{contextBody: map[string]string{}}

	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hs.mu.Lock()
		defer hs.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/peers"):
			hs.peerCalls++
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/messages"):
			hs.messageCalls++
			body, _ := io.ReadAll(r.Body)
			var payload struct {
				Messages []map[string]string `json:"messages"`
			}
			json.Unmarshal(body, &payload)
			hs.messages = append(hs.messages, payload.Messages...)
			w.WriteHeader(http.StatusCreated)
		case strings.HasSuffix(r.URL.Path, "/context"):
			hs.contextCalls++
			if hs.contextFail {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(hs.contextBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(hs.Close)
	return hs
}

func (hs *honchoServer) counts() (peers, messages, contexts int) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.peerCalls, hs.messageCalls, hs.contextCalls
}

func newTestBridge(store secrets.Store, serverURL string) *Bridge {
	return New(store,
		WithLogger(telemetry.NewNopLogger()),
		WithBaseURL(serverURL),
		WithRetryPolicy(fastRetryPolicy()),
	)
}

func configuredStore() *fakeStore {
	return &fakeStore{values: map[string]string{KeyAPIKey: "sk-test"}}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   bool
	}{
		{"no key", map[string]string{}, false},
		{"blank key", map[string]string{KeyAPIKey: "   "}, false},
		{"key set", map[string]string{KeyAPIKey: "sk-test"}, true},
		{"other config only", map[string]string{KeyWorkspaceID: "ws"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBridge(&fakeStore{values: tt.values}, "http://unused")
			if got := b.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsConfigured_NilStore(t *testing.T) {
	b := newTestBridge(nil, "http://unused")
	if b.IsConfigured() {
		t.Error("nil store should read as not configured")
	}
}

func TestSessionID_StableID(t *testing.T) {
	b := newTestBridge(configuredStore(), "http://unused")
	if got := b.SessionID(&chat{id: "42"}); got != "chat-42" {
		t.Errorf("SessionID = %q, want chat-42", got)
	}
}

func TestSessionID_FallbackMintedOnce(t *testing.T) {
	b := newTestBridge(configuredStore(), "http://unused")
	conv := &chat{}

	first := b.SessionID(conv)
	second := b.SessionID(conv)
	if first == "" || !strings.HasPrefix(first, "session-") {
		t.Errorf("unexpected fallback id: %q", first)
	}
	if first != second {
		t.Errorf("fallback id not stable: %q vs %q", first, second)
	}

	other := b.SessionID(&chat{})
	if other == first {
		t.Error("distinct conversations should get distinct fallback ids")
	}
}

func TestEnsureInitialized_NotConfigured(t *testing.T) {
	b := newTestBridge(&fakeStore{}, "http://unused")
	conv := &chat{id: "1"}

	if b.EnsureInitialized(context.Background(), conv) {
		t.Fatal("expected false when unconfigured")
	}
	// No state entry may be created for an untouched conversation.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.states) != 0 {
		t.Errorf("expected no state entries, got %d", len(b.states))
	}
}

func TestEnsureInitialized_Idempotent(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	for i := 0; i < 3; i++ {
		if !b.EnsureInitialized(context.Background(), conv) {
			t.Fatalf("init %d failed", i)
		}
	}

	peers, _, _ := server.counts()
	if peers != 1 {
		t.Errorf("expected 1 peer registration, got %d", peers)
	}
	if !b.Enabled(conv) {
		t.Error("conversation should be enabled")
	}
}

func TestEnsureInitialized_CountsAPIRequest(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)

	if !b.EnsureInitialized(context.Background(), &chat{id: "1"}) {
		t.Fatal("expected init to succeed")
	}
	if got := b.Metrics().Snapshot()["api_requests"]; got != 1 {
		t.Errorf("peer registration should count as an outbound request, got %d", got)
	}
}

func TestEnsureInitialized_PeerFailureSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer server.Close()

	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	// Already-registered peers are the steady state; init still succeeds.
	if !b.EnsureInitialized(context.Background(), conv) {
		t.Error("peer registration failure should not fail init")
	}
}

func TestEnsureInitialized_FlipsBackWhenKeyRemoved(t *testing.T) {
	server := newHonchoServer(t)
	store := configuredStore()
	b := newTestBridge(store, server.URL)
	conv := &chat{id: "1"}

	if !b.EnsureInitialized(context.Background(), conv) {
		t.Fatal("expected init to succeed")
	}

	store.unset(KeyAPIKey)
	b.mu.Lock()
	b.states[conv].enabled = false // force a re-check path
	b.mu.Unlock()

	if b.EnsureInitialized(context.Background(), conv) {
		t.Error("expected false after key removal")
	}
	if b.Enabled(conv) {
		t.Error("conversation should be disabled")
	}
}

func TestSyncMessage_RejectsBadRoleWithoutNetwork(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	for _, role := range []string{"system", "tool", "", "admin"} {
		if b.SyncMessage(context.Background(), conv, role, "hello") {
			t.Errorf("role %q should be rejected", role)
		}
	}

	peers, messages, contexts := server.counts()
	if peers+messages+contexts != 0 {
		t.Errorf("validation failure must not touch the network, got %d requests",
			peers+messages+contexts)
	}
}

func TestSyncMessage_NormalizesRole(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)

	if !b.SyncMessage(context.Background(), &chat{id: "1"}, "  Assistant ", "Hello") {
		t.Fatal("normalized role should be accepted")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(server.messages))
	}
	if server.messages[0]["peer_id"] != AgentPeerID {
		t.Errorf("assistant message should use peer %q, got %q",
			AgentPeerID, server.messages[0]["peer_id"])
	}
}

func TestSyncMessage_RejectsEmptyContent(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)

	if b.SyncMessage(context.Background(), &chat{id: "1"}, "user", "   \n\t ") {
		t.Error("blank content should be rejected")
	}
	_, messages, _ := server.counts()
	if messages != 0 {
		t.Errorf("expected no pushes, got %d", messages)
	}
}

func TestSyncMessage_UserPeer(t *testing.T) {
	server := newHonchoServer(t)
	store := configuredStore()
	store.set(KeyUserID, "marcus")
	b := newTestBridge(store, server.URL)

	if !b.SyncMessage(context.Background(), &chat{id: "1"}, "user", "hi there") {
		t.Fatal("expected sync to succeed")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if server.messages[0]["peer_id"] != "marcus" {
		t.Errorf("user message should use configured peer, got %q", server.messages[0]["peer_id"])
	}
}

func TestSyncMessage_TruncatesLongContent(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)

	long := strings.Repeat("x", MaxMessageLength+500)
	if !b.SyncMessage(context.Background(), &chat{id: "1"}, "user", long) {
		t.Fatal("expected sync to succeed")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if got := len(server.messages[0]["content"]); got != MaxMessageLength {
		t.Errorf("expected content capped at %d, got %d", MaxMessageLength, got)
	}
}

func TestSyncMessage_RetriesThenFails(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/peers") {
			w.WriteHeader(http.StatusOK)
			return
		}
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	b := newTestBridge(configuredStore(), server.URL)
	if b.SyncMessage(context.Background(), &chat{id: "1"}, "user", "hello") {
		t.Fatal("expected sync to fail after retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 push attempts, got %d", attempts)
	}
	if got := b.Metrics().Snapshot()["sync_failures"]; got != 1 {
		t.Errorf("expected 1 recorded sync failure, got %d", got)
	}
}

func TestUserContext_CachedWithinTTL(t *testing.T) {
	server := newHonchoServer(t)
	server.contextBody = map[string]string{"summary": "Likes Python"}
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	now := time.Now()
	b.now = func() time.Time { return now }

	first, ok := b.UserContext(context.Background(), conv, 500)
	if !ok || first != "Likes Python" {
		t.Fatalf("unexpected first fetch: %q, %v", first, ok)
	}

	now = now.Add(ContextCacheTTL - time.Second)
	second, ok := b.UserContext(context.Background(), conv, 500)
	if !ok || second != first {
		t.Errorf("expected identical cached value, got %q", second)
	}

	_, _, contexts := server.counts()
	if contexts != 1 {
		t.Errorf("expected 1 remote fetch, got %d", contexts)
	}
}

func TestUserContext_RefetchesAfterTTL(t *testing.T) {
	server := newHonchoServer(t)
	server.contextBody = map[string]string{"summary": "v1"}
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	now := time.Now()
	b.now = func() time.Time { return now }

	b.UserContext(context.Background(), conv, 500)

	server.mu.Lock()
	server.contextBody = map[string]string{"summary": "v2"}
	server.mu.Unlock()

	now = now.Add(ContextCacheTTL + time.Second)
	text, ok := b.UserContext(context.Background(), conv, 500)
	if !ok || text != "v2" {
		t.Errorf("expected fresh fetch after TTL, got %q, %v", text, ok)
	}

	_, _, contexts := server.counts()
	if contexts != 2 {
		t.Errorf("expected 2 remote fetches, got %d", contexts)
	}
}

func TestUserContext_EmptyResultIsCached(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	text, ok := b.UserContext(context.Background(), conv, 500)
	if !ok || text != "" {
		t.Fatalf("expected cached empty result, got %q, %v", text, ok)
	}
	text, ok = b.UserContext(context.Background(), conv, 500)
	if !ok || text != "" {
		t.Fatalf("expected cached empty result, got %q, %v", text, ok)
	}

	_, _, contexts := server.counts()
	if contexts != 1 {
		t.Errorf("empty results must be cached; got %d fetches", contexts)
	}
}

func TestUserContext_FailureNotCached(t *testing.T) {
	server := newHonchoServer(t)
	server.contextFail = true
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	if _, ok := b.UserContext(context.Background(), conv, 500); ok {
		t.Fatal("expected failure")
	}

	server.mu.Lock()
	server.contextFail = false
	server.contextBody = map[string]string{"summary": "recovered"}
	server.mu.Unlock()

	text, ok := b.UserContext(context.Background(), conv, 500)
	if !ok || text != "recovered" {
		t.Errorf("failures must not be cached; got %q, %v", text, ok)
	}

	_, _, contexts := server.counts()
	if contexts != 2 {
		t.Errorf("expected a retry fetch after failure, got %d", contexts)
	}
}

func TestUserContext_PeerRepresentationFallback(t *testing.T) {
	server := newHonchoServer(t)
	server.contextBody = map[string]string{"peer_representation": "prefers short answers"}
	b := newTestBridge(configuredStore(), server.URL)

	text, ok := b.UserContext(context.Background(), &chat{id: "1"}, 500)
	if !ok || text != "prefers short answers" {
		t.Errorf("expected peer representation fallback, got %q", text)
	}
}

func TestUserContext_BadMaxTokensDefaults(t *testing.T) {
	server := newHonchoServer(t)
	server.contextBody = map[string]string{"summary": "ok"}
	b := newTestBridge(configuredStore(), server.URL)

	if _, ok := b.UserContext(context.Background(), &chat{id: "1"}, -5); !ok {
		t.Error("invalid maxTokens should fall back to the default, not fail")
	}
}

func TestClearContextCache(t *testing.T) {
	server := newHonchoServer(t)
	server.contextBody = map[string]string{"summary": "v1"}
	b := newTestBridge(configuredStore(), server.URL)
	conv := &chat{id: "1"}

	b.UserContext(context.Background(), conv, 500)
	b.ClearContextCache(b.SessionID(conv))
	b.UserContext(context.Background(), conv, 500)

	_, _, contexts := server.counts()
	if contexts != 2 {
		t.Errorf("expected refetch after invalidation, got %d", contexts)
	}
}

func TestClearAllContextCaches(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)

	b.UserContext(context.Background(), &chat{id: "1"}, 500)
	b.UserContext(context.Background(), &chat{id: "2"}, 500)
	b.ClearAllContextCaches()
	b.UserContext(context.Background(), &chat{id: "1"}, 500)

	_, _, contexts := server.counts()
	if contexts != 3 {
		t.Errorf("expected 3 fetches, got %d", contexts)
	}
}

func TestClientCache_OnePerWorkspace(t *testing.T) {
	server := newHonchoServer(t)
	b := newTestBridge(configuredStore(), server.URL)

	c1 := b.client()
	c2 := b.client()
	if c1 == nil || c1 != c2 {
		t.Error("expected the same memoized client")
	}
}
