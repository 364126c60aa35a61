package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cc-intelligence-be/pkg/research"
)

// SimulatedClient is a script-driven stream producer used for local
// development and the simulation command. It honors the same contract as the
// SSE client so the orchestrator cannot tell them apart.
type SimulatedClient struct {
	registry  *research.Registry
	stepDelay time.Duration
}

func NewSimulatedClient(registry *research.Registry, stepDelay time.Duration) *SimulatedClient {
	return &SimulatedClient{
		registry:  registry,
		stepDelay: stepDelay,
	}
}

func (c *SimulatedClient) Open(_ context.Context, areaID research.AreaID, company string) (Stream, error) {
	area := c.registry.Area(areaID)
	if area == nil {
		return nil, fmt.Errorf("unknown research area %q", areaID)
	}

	script := make([]research.Event, 0, len(area.Steps)+2)
	script = append(script, research.Event{Type: research.EventStarted})
	for i := range area.Steps {
		script = append(script, research.Event{Type: research.EventProgress, StepIndex: i})
	}
	script = append(script, research.Event{
		Type:    research.EventResult,
		Finding: syntheticFinding(area, company),
	})

	return PlayScript(script, c.stepDelay), nil
}

func syntheticFinding(area *research.Area, company string) *research.Finding {
	items, _ := json.Marshal([]map[string]string{
		{"summary": fmt.Sprintf("Simulated %s insight for %s", area.Title, company)},
		{"summary": fmt.Sprintf("Second simulated %s record", area.Title)},
	})
	return &research.Finding{
		AreaID: area.ID,
		Title:  fmt.Sprintf("%s — %s", company, area.Title),
		Items:  items,
		Sources: []research.Source{
			{ID: "sim-1", URL: "https://example.com/" + string(area.ID), Title: "Simulated source"},
		},
	}
}

// PlayScript returns a stream that replays the given events with a fixed
// delay between them. The script is truncated at its first terminal event;
// a script with no terminal event ends in a synthesized failure.
func PlayScript(script []research.Event, delay time.Duration) Stream {
	s := &scriptedStream{
		events: make(chan research.Event),
		done:   make(chan struct{}),
	}
	go s.play(script, delay)
	return s
}

type scriptedStream struct {
	events chan research.Event
	done   chan struct{}
	cancel sync.Once
}

func (s *scriptedStream) Events() <-chan research.Event {
	return s.events
}

func (s *scriptedStream) Cancel() {
	s.cancel.Do(func() {
		close(s.done)
	})
}

func (s *scriptedStream) play(script []research.Event, delay time.Duration) {
	defer close(s.events)

	for _, ev := range script {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.done:
				return
			}
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
		if ev.IsTerminal() {
			return
		}
	}

	select {
	case s.events <- research.Event{Type: research.EventFailed, Reason: "simulated stream ended without a terminal event"}:
	case <-s.done:
	}
}
