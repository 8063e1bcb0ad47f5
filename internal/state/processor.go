package state

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TurnCapture carries the request-side facts the processor needs when the
// response stream completes.
type TurnCapture struct {
	CombinedInput      []interface{}
	Model              string
	AliasResolvedModel string
	IsStreaming        bool
	RequestID          string
}

// Processor is the stream middleware that persists conversation turns for
// upstreams without native responses-API state.
type Processor struct {
	store  Store
	logger *zap.Logger
}

func NewProcessor(store Store, logger *zap.Logger) *Processor {
	return &Processor{store: store, logger: logger}
}

// Store exposes the underlying backend for request-side hydration.
func (p *Processor) Store() Store {
	return p.store
}

// ExtractInputItems normalizes a responses-API "input" field into a flat
// item list. A bare string becomes a single user message item.
func ExtractInputItems(input interface{}) []interface{} {
	switch v := input.(type) {
	case nil:
		return nil
	case string:
		return []interface{}{
			map[string]interface{}{
				"type":    "message",
				"role":    "user",
				"content": v,
			},
		}
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

// HydrateRequest resolves previous_response_id chaining: the stored
// turn's items are prepended to the request's input, and the id is
// removed before the body goes upstream. Returns the combined input.
func (p *Processor) HydrateRequest(ctx context.Context, body map[string]interface{}) ([]interface{}, error) {
	items := ExtractInputItems(body["input"])

	previousID, _ := body["previous_response_id"].(string)
	if previousID == "" {
		return items, nil
	}

	combined, err := p.store.Combine(ctx, previousID, items)
	if err != nil {
		return nil, err
	}

	body["input"] = combined
	delete(body, "previous_response_id")
	return combined, nil
}

// WrapResponse returns a reader that passes the upstream bytes through
// unchanged while accumulating them for capture. When the stream ends
// (or the client disconnects after a complete message), the assistant
// turn is parsed and stored.
func (p *Processor) WrapResponse(body io.ReadCloser, contentEncoding string, capture *TurnCapture) io.ReadCloser {
	return &captureReader{
		rc:       body,
		gzipped:  strings.Contains(strings.ToLower(contentEncoding), "gzip"),
		finished: p.makeFinisher(capture),
	}
}

func (p *Processor) makeFinisher(capture *TurnCapture) func(data []byte, gzipped bool) {
	return func(data []byte, gzipped bool) {
		if gzipped {
			gz, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				p.logger.Warn("state capture: bad gzip stream", zap.Error(err))
				return
			}
			decoded, err := io.ReadAll(gz)
			if err != nil {
				p.logger.Warn("state capture: gzip decode failed", zap.Error(err))
				return
			}
			data = decoded
		}

		var (
			responseID string
			output     []interface{}
			complete   bool
		)
		if capture.IsStreaming {
			responseID, output, complete = parseEventStream(data)
		} else {
			responseID, output, complete = parseResponseBody(data)
		}
		if !complete {
			p.logger.Debug("state capture: incomplete response, not stored",
				zap.String("request_id", capture.RequestID))
			return
		}
		if responseID == "" {
			responseID = NewResponseID()
		}

		turn := &Turn{
			InputItems:         capture.CombinedInput,
			Output:             output,
			Model:              capture.Model,
			AliasResolvedModel: capture.AliasResolvedModel,
			IsStreaming:        capture.IsStreaming,
			RequestID:          capture.RequestID,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.store.Put(ctx, responseID, turn); err != nil {
			p.logger.Error("state capture: store failed",
				zap.String("response_id", responseID),
				zap.Error(err))
			return
		}
		p.logger.Debug("stored conversation turn",
			zap.String("response_id", responseID),
			zap.Int("items", len(turn.InputItems)))
	}
}

// captureReader tees the upstream body into an accumulation buffer. The
// finish hook runs once, at EOF or at Close (client disconnect).
type captureReader struct {
	rc       io.ReadCloser
	buf      bytes.Buffer
	gzipped  bool
	finished func(data []byte, gzipped bool)
	done     bool
}

func (r *captureReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.buf.Write(p[:n])
	}
	if err == io.EOF {
		r.finish()
	}
	return n, err
}

func (r *captureReader) Close() error {
	r.finish()
	return r.rc.Close()
}

func (r *captureReader) finish() {
	if r.done {
		return
	}
	r.done = true
	r.finished(r.buf.Bytes(), r.gzipped)
}

// parseResponseBody extracts the response id and output items from a
// non-streaming responses-API body.
func parseResponseBody(data []byte) (string, []interface{}, bool) {
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", nil, false
	}

	id, _ := body["id"].(string)
	output, _ := body["output"].([]interface{})
	if output == nil {
		return id, nil, false
	}
	return id, output, true
}

// parseEventStream scans an SSE stream for the response.completed event
// and returns its response object's id and output. Text deltas alone do
// not constitute a complete message.
func parseEventStream(data []byte) (string, []interface{}, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var lastCompleted map[string]interface{}
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var event map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		if eventType, _ := event["type"].(string); eventType == "response.completed" {
			if response, ok := event["response"].(map[string]interface{}); ok {
				lastCompleted = response
			}
		}
	}

	if lastCompleted == nil {
		return "", nil, false
	}
	id, _ := lastCompleted["id"].(string)
	output, _ := lastCompleted["output"].([]interface{})
	return id, output, true
}
