package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/pkg/research"
)

// Wire event names emitted by the research server, in causal order.
const (
	wireCollectionStarted = "collection_started"
	wireProgressUpdate    = "progress_update"
	wireResearchFindings  = "research_findings"
	wireResearchComplete  = "research_complete"
	wireError             = "error"
)

// SSEClient consumes the server push channel for research requests. One HTTP
// connection is opened per (areaId, company) request and parsed as a
// text/event-stream.
type SSEClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.ILogger
}

func NewSSEClient(baseURL string, log logger.ILogger) *SSEClient {
	return &SSEClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     log,
	}
}

func (c *SSEClient) Open(ctx context.Context, areaID research.AreaID, company string) (Stream, error) {
	endpoint := fmt.Sprintf("%s/api/research/stream?area=%s&company=%s",
		c.baseURL, url.QueryEscape(string(areaID)), url.QueryEscape(company))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open research stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("research stream rejected with status %d", resp.StatusCode)
	}

	s := &sseStream{
		events: make(chan research.Event),
		body:   resp.Body,
		done:   make(chan struct{}),
		logger: c.logger,
	}
	go s.pump()

	return s, nil
}

type sseStream struct {
	events chan research.Event
	body   io.ReadCloser
	done   chan struct{}
	cancel sync.Once
	logger logger.ILogger
}

func (s *sseStream) Events() <-chan research.Event {
	return s.events
}

func (s *sseStream) Cancel() {
	s.cancel.Do(func() {
		close(s.done)
		s.body.Close()
	})
}

// deliver sends one event unless the stream has been cancelled.
func (s *sseStream) deliver(ev research.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// pump reads the event stream until a terminal event or transport death.
// A dead transport synthesizes a failed event so no consumer waits forever.
func (s *sseStream) pump() {
	defer close(s.events)
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	var partial *research.Finding

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			if eventName == "" && data.Len() == 0 {
				continue
			}
			terminal := s.dispatch(eventName, data.String(), &partial)
			eventName = ""
			data.Reset()
			if terminal {
				return
			}
		}
	}

	select {
	case <-s.done:
		// Cancelled; nothing to synthesize.
	default:
		reason := "research stream closed before completing"
		if err := scanner.Err(); err != nil {
			reason = err.Error()
		}
		s.deliver(research.Event{Type: research.EventFailed, Reason: reason})
	}
}

// dispatch translates one wire event and reports whether it was terminal.
func (s *sseStream) dispatch(name, data string, partial **research.Finding) bool {
	switch name {
	case wireCollectionStarted:
		s.deliver(research.Event{Type: research.EventStarted})

	case wireProgressUpdate:
		var payload struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			s.logger.Warn("SSEClient", "Dropping unparseable progress event", map[string]interface{}{"error": err.Error()})
			return false
		}
		s.deliver(research.Event{Type: research.EventProgress, StepIndex: payload.Index})

	case wireResearchFindings:
		// Non-terminal payload carrier; remembered until research_complete.
		var finding research.Finding
		if err := json.Unmarshal([]byte(data), &finding); err != nil {
			s.logger.Warn("SSEClient", "Dropping unparseable findings event", map[string]interface{}{"error": err.Error()})
			return false
		}
		*partial = &finding

	case wireResearchComplete:
		finding := *partial
		var complete struct {
			Finding *research.Finding `json:"finding"`
		}
		if err := json.Unmarshal([]byte(data), &complete); err == nil && complete.Finding != nil {
			finding = complete.Finding
		}
		if finding == nil {
			s.deliver(research.Event{Type: research.EventFailed, Reason: "research completed without findings"})
			return true
		}
		s.deliver(research.Event{Type: research.EventResult, Finding: finding})
		return true

	case wireError:
		var payload struct {
			Reason string `json:"reason"`
		}
		reason := "research failed"
		if err := json.Unmarshal([]byte(data), &payload); err == nil && payload.Reason != "" {
			reason = payload.Reason
		}
		s.deliver(research.Event{Type: research.EventFailed, Reason: reason})
		return true

	default:
		s.logger.Debug("SSEClient", "Ignoring unknown stream event", map[string]interface{}{"event": name})
	}
	return false
}
