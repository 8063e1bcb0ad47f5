package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/config"
	"github.com/xproxy/xproxy/internal/routing"
	"github.com/xproxy/xproxy/internal/state"
)

type upstreamCall struct {
	path    string
	body    map[string]interface{}
	headers http.Header
}

// fakeUpstream records proxied requests and replies with a canned
// responses-API body.
type fakeUpstream struct {
	mu      sync.Mutex
	calls   []upstreamCall
	respond func(w http.ResponseWriter, body map[string]interface{})
	server  *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{}
	u.respond = func(w http.ResponseWriter, body map[string]interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "resp_upstream_1",
			"output": []interface{}{map[string]interface{}{"role": "assistant", "content": "hi"}},
		})
	}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.mu.Lock()
		u.calls = append(u.calls, upstreamCall{path: r.URL.Path, body: body, headers: r.Header.Clone()})
		u.mu.Unlock()
		u.respond(w, body)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *fakeUpstream) lastCall(t *testing.T) upstreamCall {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.calls)
	return u.calls[len(u.calls)-1]
}

func newProxyFixture(t *testing.T, upstream *fakeUpstream) (*ProxyHandler, *state.MemoryStore) {
	t.Helper()

	resolver, err := routing.NewResolver(&config.RoutingConfig{
		Providers: []config.ProviderConfig{
			{Name: "gpt4", Model: "gpt-4o", AccessKey: "sk-a"},
		},
		ModelAliases: map[string]string{"fast": "gpt4"},
	}, zap.NewNop())
	require.NoError(t, err)

	store := state.NewMemoryStore()
	handler := NewProxyHandler(&ProxyConfig{
		Resolver: resolver,
		State:    state.NewProcessor(store, zap.NewNop()),
		Endpoint: upstream.server.URL,
		Logger:   zap.NewNop(),
	})
	return handler, store
}

func postJSON(t *testing.T, handle func(http.ResponseWriter, *http.Request), path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handle(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
	return rec
}

func TestProxyRequiresModel(t *testing.T) {
	upstream := newFakeUpstream(t)
	handler, _ := newProxyFixture(t, upstream)

	rec := postJSON(t, handler.ChatCompletions, "/v1/chat/completions", map[string]interface{}{
		"messages": []interface{}{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "model field required in request body")
}

func TestProxyForwardsWithResolvedModel(t *testing.T) {
	upstream := newFakeUpstream(t)
	handler, _ := newProxyFixture(t, upstream)

	rec := postJSON(t, handler.ChatCompletions, "/v1/chat/completions", map[string]interface{}{
		"model": "fast",
		"metadata": map[string]interface{}{
			routing.MetadataPreferenceKey: "x",
			"trace_id":                    "abc",
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	call := upstream.lastCall(t)
	assert.Equal(t, "/v1/chat/completions", call.path)
	// Alias resolved to the configured upstream model.
	assert.Equal(t, "gpt-4o", call.body["model"])
	// Private metadata stripped, the rest kept.
	metadata := call.body["metadata"].(map[string]interface{})
	assert.NotContains(t, metadata, routing.MetadataPreferenceKey)
	assert.Equal(t, "abc", metadata["trace_id"])

	assert.NotEmpty(t, call.headers.Get(HeaderRequestID))
	assert.NotEmpty(t, call.headers.Get(HeaderTraceparent))
	assert.Equal(t, "false", call.headers.Get(HeaderArchIsStreaming))
}

func TestProxyPreservesClientRequestID(t *testing.T) {
	upstream := newFakeUpstream(t)
	handler, _ := newProxyFixture(t, upstream)

	payload, _ := json.Marshal(map[string]interface{}{"model": "gpt-4o"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(payload))
	req.Header.Set(HeaderRequestID, "req-fixed-123")
	rec := httptest.NewRecorder()
	handler.ChatCompletions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-fixed-123", upstream.lastCall(t).headers.Get(HeaderRequestID))
}

func TestProxyResponsesStateChaining(t *testing.T) {
	upstream := newFakeUpstream(t)
	handler, _ := newProxyFixture(t, upstream)

	// First turn: stored under the upstream's response id.
	rec := postJSON(t, handler.Responses, "/v1/responses", map[string]interface{}{
		"model": "gpt-4o",
		"input": "first question",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Second turn chains on the first.
	rec = postJSON(t, handler.Responses, "/v1/responses", map[string]interface{}{
		"model":                "gpt-4o",
		"input":                "second question",
		"previous_response_id": "resp_upstream_1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	call := upstream.lastCall(t)
	// The upstream sees the flattened history, not the chaining id.
	assert.NotContains(t, call.body, "previous_response_id")
	input := call.body["input"].([]interface{})
	require.Len(t, input, 3)
	first := input[0].(map[string]interface{})
	assert.Equal(t, "first question", first["content"])
	last := input[2].(map[string]interface{})
	assert.Equal(t, "second question", last["content"])
}

func TestProxyResponsesUnknownPreviousID(t *testing.T) {
	upstream := newFakeUpstream(t)
	handler, _ := newProxyFixture(t, upstream)

	rec := postJSON(t, handler.Responses, "/v1/responses", map[string]interface{}{
		"model":                "gpt-4o",
		"input":                "hello",
		"previous_response_id": "resp_never_seen",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Conversation state not found for previous_response_id: resp_never_seen")

	// Nothing reached the upstream.
	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	assert.Empty(t, upstream.calls)
}

func TestProxyCircuitBreakerOpensOnFailures(t *testing.T) {
	// An upstream that always fails at the TCP level.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	resolver, err := routing.NewResolver(&config.RoutingConfig{}, zap.NewNop())
	require.NoError(t, err)
	handler := NewProxyHandler(&ProxyConfig{
		Resolver: resolver,
		Endpoint: dead.URL,
		Logger:   zap.NewNop(),
	})

	body := map[string]interface{}{"model": "gpt-4o"}
	for i := 0; i < 5; i++ {
		rec := postJSON(t, handler.ChatCompletions, "/v1/chat/completions", body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}

	// After the failure run the breaker rejects without dialing.
	rec := postJSON(t, handler.ChatCompletions, "/v1/chat/completions", body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream temporarily unavailable")
}

func TestModelsHandlerListsSorted(t *testing.T) {
	resolver, err := routing.NewResolver(&config.RoutingConfig{
		Providers: []config.ProviderConfig{
			{Name: "sonnet", Model: "claude-3-5-sonnet-20241022", AccessKey: "sk-b"},
			{Name: "gpt4", Model: "gpt-4o", AccessKey: "sk-a"},
		},
	}, zap.NewNop())
	require.NoError(t, err)

	handler := NewModelsHandler(resolver, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Data[0].ID)
	assert.Equal(t, "gpt-4o", resp.Data[1].ID)
	assert.Equal(t, "xproxy", resp.Data[0].OwnedBy)
}
