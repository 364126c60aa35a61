package stream

import (
	"context"
	"testing"
	"time"

	"cc-intelligence-be/pkg/research"

	"github.com/stretchr/testify/assert"
)

func collect(t *testing.T, s Stream) []research.Event {
	t.Helper()
	var got []research.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestSimulatedClientFullRun(t *testing.T) {
	registry := research.NewRegistry()
	client := NewSimulatedClient(registry, 0)

	s, err := client.Open(context.Background(), research.AreaTechStack, "Acme Corp")
	assert.NoError(t, err)

	got := collect(t, s)
	area := registry.Area(research.AreaTechStack)

	assert.Equal(t, len(area.Steps)+2, len(got))
	assert.Equal(t, research.EventStarted, got[0].Type)
	for i := 0; i < len(area.Steps); i++ {
		assert.Equal(t, research.EventProgress, got[i+1].Type)
		assert.Equal(t, i, got[i+1].StepIndex)
	}

	last := got[len(got)-1]
	assert.Equal(t, research.EventResult, last.Type)
	assert.NotNil(t, last.Finding)
	assert.Equal(t, research.AreaTechStack, last.Finding.AreaID)
	assert.Contains(t, last.Finding.Title, "Acme Corp")
}

func TestSimulatedClientUnknownArea(t *testing.T) {
	client := NewSimulatedClient(research.NewRegistry(), 0)

	s, err := client.Open(context.Background(), research.AreaID("astrology"), "Acme")
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestPlayScriptStopsAtFirstTerminal(t *testing.T) {
	script := []research.Event{
		{Type: research.EventStarted},
		{Type: research.EventFailed, Reason: "boom"},
		{Type: research.EventProgress, StepIndex: 0},
		{Type: research.EventResult},
	}

	got := collect(t, PlayScript(script, 0))

	assert.Equal(t, 2, len(got))
	assert.Equal(t, research.EventFailed, got[1].Type)
	assert.Equal(t, "boom", got[1].Reason)
}

func TestPlayScriptSynthesizesFailureWithoutTerminal(t *testing.T) {
	script := []research.Event{
		{Type: research.EventStarted},
		{Type: research.EventProgress, StepIndex: 0},
	}

	got := collect(t, PlayScript(script, 0))

	assert.Equal(t, 3, len(got))
	last := got[len(got)-1]
	assert.Equal(t, research.EventFailed, last.Type)
	assert.NotEmpty(t, last.Reason)
}

func TestScriptedStreamCancelSuppressesEvents(t *testing.T) {
	script := []research.Event{
		{Type: research.EventStarted},
		{Type: research.EventProgress, StepIndex: 0},
		{Type: research.EventResult},
	}

	s := PlayScript(script, 50*time.Millisecond)
	s.Cancel()
	s.Cancel() // idempotent

	got := collect(t, s)
	// Cancelled before the first delay elapsed, so nothing should arrive.
	assert.Empty(t, got)
}
