package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/internal/repository/memory"
	"cc-intelligence-be/pkg/intent"
	"cc-intelligence-be/pkg/research"
	"cc-intelligence-be/pkg/research/stream"
	"cc-intelligence-be/pkg/session"

	"github.com/stretchr/testify/assert"
)

// fakeStream is a hand-driven stream: tests push events and observe Cancel.
type fakeStream struct {
	events    chan research.Event
	cancelled chan struct{}
	once      sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events:    make(chan research.Event, 16),
		cancelled: make(chan struct{}),
	}
}

func (f *fakeStream) Events() <-chan research.Event { return f.events }

func (f *fakeStream) Cancel() {
	f.once.Do(func() { close(f.cancelled) })
}

func (f *fakeStream) send(ev research.Event) {
	f.events <- ev
	if ev.IsTerminal() {
		close(f.events)
	}
}

func (f *fakeStream) isCancelled() bool {
	select {
	case <-f.cancelled:
		return true
	default:
		return false
	}
}

// fakeClient records every Open and hands each one its own fakeStream.
type fakeClient struct {
	mu     sync.Mutex
	opened []*fakeStream
	areas  []research.AreaID
	notify chan *fakeStream
}

func newFakeClient() *fakeClient {
	return &fakeClient{notify: make(chan *fakeStream, 16)}
}

func (c *fakeClient) Open(_ context.Context, areaID research.AreaID, _ string) (stream.Stream, error) {
	s := newFakeStream()
	c.mu.Lock()
	c.opened = append(c.opened, s)
	c.areas = append(c.areas, areaID)
	c.mu.Unlock()
	c.notify <- s
	return s, nil
}

func (c *fakeClient) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opened)
}

func (c *fakeClient) openedArea(i int) research.AreaID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.areas[i]
}

func (c *fakeClient) waitOpen(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-c.notify:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a stream to open")
		return nil
	}
}

type fixture struct {
	orch   *Orchestrator
	client *fakeClient
	store  *session.Store
	cancel context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewIsolatedLogger("logs/test_orchestrator.log")
	repo := memory.NewSessionRepository(0)
	store := session.NewStore(repo, log, 10*time.Millisecond, 50)
	registry := research.NewRegistry()
	resolver := intent.NewResolver("", time.Second, log)
	client := newFakeClient()

	orch := New(resolver, client, store, registry, nil, nil, log)
	ctx, cancel := context.WithCancel(context.Background())
	go orch.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{orch: orch, client: client, store: store, cancel: cancel}
}

// streamingEntry finds the transcript entry still streaming, if any.
func streamingEntry(snap *session.Session) *session.TranscriptEntry {
	if snap == nil {
		return nil
	}
	for i := range snap.Transcript {
		if snap.Transcript[i].Streaming != nil {
			return &snap.Transcript[i]
		}
	}
	return nil
}

func TestSendUtteranceStartsResearch(t *testing.T) {
	f := newFixture(t)

	err := f.orch.SendUtterance(context.Background(), "Tell me about shopify.com competitive positioning")
	assert.NoError(t, err)

	s := f.client.waitOpen(t)

	snap := f.orch.Snapshot()
	assert.NotNil(t, snap)
	assert.Equal(t, "shopify.com", snap.Company)
	assert.Equal(t, 2, len(snap.Transcript))
	assert.Equal(t, session.RoleUser, snap.Transcript[0].Role)

	placeholder := streamingEntry(snap)
	assert.NotNil(t, placeholder)
	assert.Equal(t, research.AreaID("competitive-landscape"), f.client.openedArea(0))

	s.send(research.Event{Type: research.EventStarted})
	s.send(research.Event{Type: research.EventProgress, StepIndex: 0})
	s.send(research.Event{
		Type: research.EventResult,
		Finding: &research.Finding{
			AreaID: research.AreaCompetitiveLandscape,
			Title:  "shopify.com — Competitive Landscape",
		},
	})

	assert.Eventually(t, func() bool {
		snap := f.orch.Snapshot()
		return streamingEntry(snap) == nil && len(snap.Ledger) == 1
	}, 5*time.Second, 10*time.Millisecond)

	snap = f.orch.Snapshot()
	done := snap.Transcript[1]
	assert.NotNil(t, done.Finding)
	assert.NotEmpty(t, done.FollowUps)
	assert.Equal(t, research.AreaCompetitiveLandscape, snap.Ledger[0].AreaID)
}

func TestSendUtteranceWithoutCompanyOrSession(t *testing.T) {
	f := newFixture(t)

	err := f.orch.SendUtterance(context.Background(), "what should i do next")
	assert.ErrorIs(t, err, ErrCompanyNotResolved)
	assert.Nil(t, f.orch.Snapshot())
}

func TestSendUtteranceClarifiesWithinSession(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	err := f.orch.SendUtterance(context.Background(), "hmm not sure yet")
	assert.NoError(t, err)

	snap := f.orch.Snapshot()
	assert.Equal(t, 2, len(snap.Transcript))
	assert.Equal(t, session.RoleAssistant, snap.Transcript[1].Role)
	assert.Contains(t, snap.Transcript[1].Text, "couldn't identify a company")
	// No research was started.
	assert.Equal(t, 0, f.client.openCount())
}

func TestSelectAreaRequiresSession(t *testing.T) {
	f := newFixture(t)

	err := f.orch.SelectArea(research.AreaTechStack)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSelectAreaUnknown(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	err := f.orch.SelectArea(research.AreaID("astrology"))
	assert.ErrorIs(t, err, ErrUnknownArea)
}

func TestDuplicateRequestSuppressed(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
	f.client.waitOpen(t)

	// Same area again while in flight: accepted but not duplicated.
	assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
	assert.NoError(t, f.orch.Retry(research.AreaTechStack))

	snap := f.orch.Snapshot()
	assert.Equal(t, 1, f.client.openCount())
	assert.Equal(t, 1, len(snap.Transcript))
}

func TestProgressIsMonotonic(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
	s := f.client.waitOpen(t)

	s.events <- research.Event{Type: research.EventProgress, StepIndex: 0}
	s.events <- research.Event{Type: research.EventProgress, StepIndex: 0} // duplicate
	s.events <- research.Event{Type: research.EventProgress, StepIndex: 2} // out of order

	assert.Eventually(t, func() bool {
		entry := streamingEntry(f.orch.Snapshot())
		return entry != nil && entry.Streaming.Steps[0].Done
	}, 5*time.Second, 10*time.Millisecond)

	entry := streamingEntry(f.orch.Snapshot())
	assert.True(t, entry.Streaming.Steps[0].Done)
	assert.False(t, entry.Streaming.Steps[1].Done)
	assert.False(t, entry.Streaming.Steps[2].Done)

	s.events <- research.Event{Type: research.EventProgress, StepIndex: 1}

	assert.Eventually(t, func() bool {
		entry := streamingEntry(f.orch.Snapshot())
		return entry != nil && entry.Streaming.Steps[1].Done
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLedgerReplacedOnRerun(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	runOnce := func(title string) {
		assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
		s := f.client.waitOpen(t)
		s.send(research.Event{
			Type: research.EventResult,
			Finding: &research.Finding{
				AreaID: research.AreaTechStack,
				Title:  title,
			},
		})
		assert.Eventually(t, func() bool {
			return streamingEntry(f.orch.Snapshot()) == nil
		}, 5*time.Second, 10*time.Millisecond)
	}

	runOnce("first pass")
	firstID := f.orch.Snapshot().Ledger[0].ID

	runOnce("second pass")

	snap := f.orch.Snapshot()
	assert.Equal(t, 1, len(snap.Ledger))
	assert.Equal(t, "second pass", snap.Ledger[0].Finding.Title)
	assert.NotEqual(t, firstID, snap.Ledger[0].ID)
}

func TestFailureOffersRetry(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SelectArea(research.AreaBuyingSignals))
	s := f.client.waitOpen(t)

	s.send(research.Event{Type: research.EventFailed, Reason: "upstream exploded"})

	assert.Eventually(t, func() bool {
		return streamingEntry(f.orch.Snapshot()) == nil
	}, 5*time.Second, 10*time.Millisecond)

	snap := f.orch.Snapshot()
	failed := snap.Transcript[len(snap.Transcript)-1]
	assert.Contains(t, failed.Text, "upstream exploded")
	assert.Empty(t, snap.Ledger)
	assert.Equal(t, 1, len(failed.FollowUps))
	assert.Equal(t, research.FollowUpRetry, failed.FollowUps[0].Kind)

	// Selecting the retry follow-up starts a fresh run.
	assert.NoError(t, f.orch.SelectFollowUp(failed.FollowUps[0].ID))
	f.client.waitOpen(t)
	assert.Equal(t, 2, f.client.openCount())
}

func TestSelectFollowUpUnknown(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	err := f.orch.SelectFollowUp("no-such-option")
	assert.ErrorIs(t, err, ErrUnknownFollowUp)
}

func TestExactlyOneTerminalApplied(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
	s := f.client.waitOpen(t)

	s.events <- research.Event{
		Type:    research.EventResult,
		Finding: &research.Finding{AreaID: research.AreaTechStack, Title: "winner"},
	}
	s.events <- research.Event{Type: research.EventFailed, Reason: "too late"}
	close(s.events)

	assert.Eventually(t, func() bool {
		snap := f.orch.Snapshot()
		return streamingEntry(snap) == nil && len(snap.Ledger) == 1
	}, 5*time.Second, 10*time.Millisecond)

	snap := f.orch.Snapshot()
	last := snap.Transcript[len(snap.Transcript)-1]
	assert.NotNil(t, last.Finding)
	assert.Equal(t, "winner", last.Finding.Title)
	assert.NotContains(t, last.Text, "too late")
}

func TestSwitchCompanyCancelsAndRestores(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
	first := f.client.waitOpen(t)

	assert.NoError(t, f.orch.SwitchCompany("Globex"))

	assert.Eventually(t, first.isCancelled, 5*time.Second, 10*time.Millisecond)

	// A late terminal from the cancelled stream must not leak into Globex.
	first.events <- research.Event{
		Type:    research.EventResult,
		Finding: &research.Finding{AreaID: research.AreaTechStack, Title: "stale"},
	}
	close(first.events)

	assert.NoError(t, f.orch.SelectArea(research.AreaBuyingSignals))
	s := f.client.waitOpen(t)
	s.send(research.Event{
		Type:    research.EventResult,
		Finding: &research.Finding{AreaID: research.AreaBuyingSignals, Title: "Globex signals"},
	})

	assert.Eventually(t, func() bool {
		snap := f.orch.Snapshot()
		return snap.Company == "Globex" && len(snap.Ledger) == 1
	}, 5*time.Second, 10*time.Millisecond)

	snap := f.orch.Snapshot()
	assert.Equal(t, research.AreaBuyingSignals, snap.Ledger[0].AreaID)

	// Switching back restores the persisted Acme transcript.
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	snap = f.orch.Snapshot()
	assert.Equal(t, "Acme", snap.Company)
	assert.NotEmpty(t, snap.Transcript)
	assert.Empty(t, snap.Ledger)
}

func TestSwitchToSameCompanyIsNoOp(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SelectArea(research.AreaTechStack))
	first := f.client.waitOpen(t)

	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.False(t, first.isCancelled())
}

func TestSendUtteranceSwitchesCompany(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	err := f.orch.SendUtterance(context.Background(), "I have a demo with Globex tomorrow")
	assert.NoError(t, err)
	f.client.waitOpen(t)

	snap := f.orch.Snapshot()
	assert.Equal(t, "Globex", snap.Company)
	assert.Equal(t, research.AreaID("tech-stack"), f.client.openedArea(0))
}

func TestEmptyInputsRejected(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.orch.SendUtterance(context.Background(), "   "))
	assert.Error(t, f.orch.SwitchCompany(""))
}

func TestShutdownPersistsSession(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SendUtterance(context.Background(), "Acme renewal check-in"))
	f.client.waitOpen(t)

	f.cancel()
	assert.Eventually(t, func() bool {
		return f.orch.Snapshot() == nil
	}, 5*time.Second, 10*time.Millisecond)

	restored := f.store.Load(context.Background(), "Acme")
	assert.NotNil(t, restored)
	assert.NotEmpty(t, restored.Transcript)
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))
	assert.NoError(t, f.orch.SendUtterance(context.Background(), "hello there Acme"))

	snap := f.orch.Snapshot()
	snap.Transcript[0].Text = "mutated"
	snap.Company = "hijacked"

	fresh := f.orch.Snapshot()
	assert.Equal(t, "Acme", fresh.Company)
	assert.NotEqual(t, "mutated", fresh.Transcript[0].Text)
}

func TestConcurrentCallersAreSerialized(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orch.SwitchCompany("Acme"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = f.orch.SendUtterance(context.Background(), fmt.Sprintf("note number %d", i))
		}(i)
	}
	wg.Wait()

	snap := f.orch.Snapshot()
	// Each utterance adds a user entry plus a clarification.
	assert.Equal(t, 40, len(snap.Transcript))

	seen := map[int64]bool{}
	for _, entry := range snap.Transcript {
		assert.False(t, seen[entry.ID])
		seen[entry.ID] = true
	}
}
