package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/routing"
	"github.com/xproxy/xproxy/internal/state"
	"github.com/xproxy/xproxy/internal/telemetry"
	"github.com/xproxy/xproxy/pkg/circuitbreaker"
)

type ProxyConfig struct {
	Resolver *routing.Resolver
	State    *state.Processor
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// ProxyHandler is the LLM request pipeline: parse, resolve, hydrate
// conversational state, forward, stream back. The upstream HTTP client is
// shared; keep-alive pooling is required.
type ProxyHandler struct {
	resolver *routing.Resolver
	state    *state.Processor
	endpoint string
	client   *http.Client
	breakers *circuitbreaker.Manager
	logger   *zap.Logger
}

func NewProxyHandler(cfg *ProxyConfig) *ProxyHandler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &ProxyHandler{
		resolver: cfg.Resolver,
		state:    cfg.State,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breakers: circuitbreaker.NewManager(5, 30*time.Second),
		logger:   cfg.Logger,
	}
}

// ChatCompletions, Messages and Responses all run the same pipeline; the
// responses API additionally carries conversational state.
func (h *ProxyHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, false)
}

func (h *ProxyHandler) Messages(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, false)
}

func (h *ProxyHandler) Responses(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.state != nil)
}

// Agents forwards multi-agent orchestration traffic unchanged; the
// orchestrator behind the upstream endpoint owns its semantics.
func (h *ProxyHandler) Agents(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, false)
}

func (h *ProxyHandler) proxy(w http.ResponseWriter, r *http.Request, stateful bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "failed to read request body")
		return
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	clientModel, _ := body["model"].(string)
	if clientModel == "" {
		sendError(w, h.logger, http.StatusBadRequest, "model field required in request body")
		return
	}

	isStreaming, _ := body["stream"].(bool)

	resolvedModel := h.resolver.ResolveModel(clientModel)
	provider, providerKnown := h.resolver.Table().Get(resolvedModel)

	upstreamModel := routing.ModelNameOnly(resolvedModel)
	providerHint := ""
	if providerKnown {
		providerHint = routing.ProviderPrefix(provider.Name)
		if provider.Model != "" {
			upstreamModel = provider.Model
		}
	}

	// Conversational state: resolve previous_response_id chaining before
	// the body is serialized for the upstream.
	var capture *state.TurnCapture
	if stateful {
		previousID, _ := body["previous_response_id"].(string)
		combined, err := h.state.HydrateRequest(r.Context(), body)
		if err != nil {
			if errors.Is(err, state.ErrNotFound) {
				sendError(w, h.logger, http.StatusConflict,
					"Conversation state not found for previous_response_id: "+previousID)
				return
			}
			h.logger.Error("state hydration failed", zap.Error(err))
			sendError(w, h.logger, http.StatusInternalServerError, "conversation state unavailable")
			return
		}
		capture = &state.TurnCapture{
			CombinedInput:      combined,
			Model:              clientModel,
			AliasResolvedModel: resolvedModel,
			IsStreaming:        isStreaming,
		}
	}

	routing.PrepareBody(body, upstreamModel)

	payload, err := json.Marshal(body)
	if err != nil {
		sendError(w, h.logger, http.StatusInternalServerError, "failed to serialize request body")
		return
	}

	upstreamURL := h.endpoint + r.URL.Path
	if providerKnown && provider.Endpoint != "" {
		upstreamURL = strings.TrimSuffix(provider.Endpoint, "/") + r.URL.Path
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, upstreamURL, bytes.NewReader(payload))
	if err != nil {
		sendError(w, h.logger, http.StatusInternalServerError, "failed to build upstream request")
		return
	}

	copyProxyHeaders(req.Header, r.Header)
	req.Header.Set("Content-Type", "application/json")

	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, requestID)
	if capture != nil {
		capture.RequestID = requestID
	}

	if req.Header.Get(HeaderTraceparent) == "" {
		req.Header.Set(HeaderTraceparent, telemetry.NewTraceparent())
	}
	if providerHint != "" {
		req.Header.Set(HeaderArchProviderHint, providerHint)
	}
	req.Header.Set(HeaderArchIsStreaming, strconv.FormatBool(isStreaming))

	breaker := h.breakers.Get(req.URL.Host)
	if !breaker.Allow() {
		h.logger.Warn("upstream circuit open",
			zap.String("host", req.URL.Host),
			zap.String("request_id", requestID))
		sendError(w, h.logger, http.StatusServiceUnavailable, "upstream temporarily unavailable")
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		breaker.RecordFailure()
		h.logger.Error("upstream request failed",
			zap.String("url", upstreamURL),
			zap.String("request_id", requestID),
			zap.Error(err))
		sendError(w, h.logger, http.StatusInternalServerError, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		breaker.RecordFailure()
	} else {
		breaker.RecordSuccess()
	}

	upstreamBody := io.ReadCloser(resp.Body)
	if capture != nil && resp.StatusCode == http.StatusOK {
		upstreamBody = h.state.WrapResponse(resp.Body, resp.Header.Get("Content-Encoding"), capture)
	}

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	h.streamBody(w, upstreamBody, requestID)
	upstreamBody.Close()
}

// streamBody copies the upstream stream to the client, flushing per
// chunk so SSE deltas are delivered as they arrive.
func (h *ProxyHandler) streamBody(w http.ResponseWriter, body io.Reader, requestID string) {
	flusher, canFlush := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.logger.Debug("client disconnected mid-stream",
					zap.String("request_id", requestID))
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("upstream stream error",
					zap.String("request_id", requestID),
					zap.Error(err))
			}
			return
		}
	}
}

// copyProxyHeaders forwards client headers, dropping the ones the
// pipeline owns. Content-Length must go: the body was re-serialized.
func copyProxyHeaders(dst, src http.Header) {
	for name, values := range src {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Host", "Connection", "Accept-Encoding":
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		switch http.CanonicalHeaderKey(name) {
		case "Connection", "Transfer-Encoding":
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
