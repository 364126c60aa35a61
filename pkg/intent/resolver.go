package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cc-intelligence-be/internal/pkg/logger"
)

// Resolver turns a raw user utterance into a structured research intent.
// The primary path is an external text-understanding endpoint; on any failure
// (network, timeout, malformed payload) it degrades to the local parser, so
// Resolve never returns an error.
type Resolver struct {
	endpointURL string
	httpClient  *http.Client
	timeout     time.Duration
	logger      logger.ILogger
}

// NewResolver creates a resolver against the given endpoint. An empty
// endpoint URL disables the primary path entirely.
func NewResolver(endpointURL string, timeout time.Duration, log logger.ILogger) *Resolver {
	return &Resolver{
		endpointURL: endpointURL,
		httpClient:  &http.Client{},
		timeout:     timeout,
		logger:      log,
	}
}

type resolveRequest struct {
	Utterance string `json:"utterance"`
}

// Resolve analyzes the utterance and produces a stable intent.
func (r *Resolver) Resolve(ctx context.Context, utterance string) *Intent {
	if r.endpointURL == "" {
		return Fallback(utterance)
	}

	resolved, err := r.resolvePrimary(ctx, utterance)
	if err != nil {
		r.logger.Warn("IntentResolver", "Primary resolution failed, using fallback parser", map[string]interface{}{
			"error": err.Error(),
		})
		return Fallback(utterance)
	}

	r.logger.Info("IntentResolver", "Resolved intent", map[string]interface{}{
		"company":    resolved.Company,
		"context":    string(resolved.Context),
		"confidence": resolved.Confidence,
	})
	return resolved
}

func (r *Resolver) resolvePrimary(ctx context.Context, utterance string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(resolveRequest{Utterance: utterance})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("resolve endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read resolve response: %w", err)
	}

	return parseIntent(raw)
}

// parseIntent validates the endpoint payload against the Intent shape.
// Fields that fail type checks are discarded rather than rejecting the whole
// result; confidence is clamped into [0,1].
func parseIntent(raw []byte) (*Intent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("malformed resolve payload: %w", err)
	}

	intent := &Intent{}

	var company string
	if data, ok := fields["company"]; ok && json.Unmarshal(data, &company) == nil {
		intent.Company = company
	}

	var contextStr string
	if data, ok := fields["context"]; ok && json.Unmarshal(data, &contextStr) == nil && ValidContext(contextStr) {
		intent.Context = Context(contextStr)
	}

	var note string
	if data, ok := fields["note"]; ok && json.Unmarshal(data, &note) == nil {
		intent.Note = note
	}

	var confidence float64
	if data, ok := fields["confidence"]; ok && json.Unmarshal(data, &confidence) == nil {
		intent.Confidence = clamp(confidence)
	}

	return intent, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
