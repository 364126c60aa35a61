package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/pkg/events"
	"cc-intelligence-be/pkg/intent"
	pktNats "cc-intelligence-be/pkg/nats"
	"cc-intelligence-be/pkg/research"
	"cc-intelligence-be/pkg/research/stream"
	"cc-intelligence-be/pkg/session"
)

// SessionUpdatesTopic is the in-process pub/sub topic carrying session
// snapshots after every mutation.
const SessionUpdatesTopic = "research.session.updates"

// Orchestrator owns the active session and drives research requests through
// their lifecycle: idle → requested → streaming → completed/failed.
//
// All session state is owned by the run loop goroutine. Public methods and
// stream readers communicate with it exclusively through the command
// channel, so the session is never mutated concurrently.
type Orchestrator struct {
	resolver  *intent.Resolver
	streams   stream.Client
	store     *session.Store
	registry  *research.Registry
	publisher message.Publisher // session snapshot fan-out; may be nil
	bus       *pktNats.Publisher // lifecycle events; may be nil
	logger    logger.ILogger

	cmds chan func()
	done chan struct{}

	// Owned by the run loop.
	sess      *session.Session
	active    map[research.AreaID]*activeStream
	streamSeq uint64
}

// activeStream tracks one in-flight research request. A late terminal event
// from a superseded stream is recognized by pointer identity and dropped.
type activeStream struct {
	id      uint64
	company string
	areaID  research.AreaID
	entryID int64
	stream  stream.Stream // nil until the connection is open
}

func New(
	resolver *intent.Resolver,
	streams stream.Client,
	store *session.Store,
	registry *research.Registry,
	publisher message.Publisher,
	bus *pktNats.Publisher,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		streams:   streams,
		store:     store,
		registry:  registry,
		publisher: publisher,
		bus:       bus,
		logger:    log,
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
		active:    make(map[research.AreaID]*activeStream),
	}
}

// Run processes commands until the context is cancelled. It must be running
// before any public method is called.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return
		case cmd := <-o.cmds:
			cmd()
		}
	}
}

func (o *Orchestrator) shutdown() {
	for key, as := range o.active {
		if as.stream != nil {
			as.stream.Cancel()
		}
		delete(o.active, key)
	}
	if o.sess != nil {
		o.store.Save(o.sess)
		o.store.Flush(o.sess.Company)
	}
	o.logger.Info("Orchestrator", "Shut down", nil)
}

// post hands a command to the run loop.
func (o *Orchestrator) post(cmd func()) {
	select {
	case o.cmds <- cmd:
	case <-o.done:
	}
}

// call runs a command on the loop and waits for its result.
func (o *Orchestrator) call(cmd func() error) error {
	reply := make(chan error, 1)
	o.post(func() { reply <- cmd() })
	select {
	case err := <-reply:
		return err
	case <-o.done:
		return ErrStopped
	}
}

// SendUtterance resolves the user's free text and, when it names a usable
// company, starts research there. Intent resolution happens outside the run
// loop so a slow resolver never blocks stream events.
func (o *Orchestrator) SendUtterance(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("utterance must not be empty")
	}

	resolved := o.resolver.Resolve(ctx, text)

	return o.call(func() error {
		actionable := intent.IsActionable(resolved)

		if actionable && (o.sess == nil || o.sess.Company != resolved.Company) {
			o.switchCompany(resolved.Company)
		}
		if o.sess == nil {
			return ErrCompanyNotResolved
		}

		o.sess.Append(session.TranscriptEntry{Role: session.RoleUser, Text: text})

		if !actionable {
			o.sess.Append(session.TranscriptEntry{
				Role: session.RoleAssistant,
				Text: "I couldn't identify a company in that message. Name the company you want to research, or pick a research area.",
			})
			o.afterMutation()
			return nil
		}

		area := o.registry.AreaForContext(resolved.Context)
		return o.startResearch(area)
	})
}

// SelectArea starts research on a specific area for the current company.
func (o *Orchestrator) SelectArea(areaID research.AreaID) error {
	return o.call(func() error {
		if o.sess == nil {
			return ErrNoActiveSession
		}
		area := o.registry.Area(areaID)
		if area == nil {
			return fmt.Errorf("%w: %s", ErrUnknownArea, areaID)
		}
		return o.startResearch(area)
	})
}

// SelectFollowUp executes a follow-up action previously offered on a
// transcript entry.
func (o *Orchestrator) SelectFollowUp(optionID string) error {
	return o.call(func() error {
		if o.sess == nil {
			return ErrNoActiveSession
		}
		for i := len(o.sess.Transcript) - 1; i >= 0; i-- {
			for _, followUp := range o.sess.Transcript[i].FollowUps {
				if followUp.ID != optionID {
					continue
				}
				area := o.registry.Area(followUp.AreaID)
				if area == nil {
					return fmt.Errorf("%w: %s", ErrUnknownArea, followUp.AreaID)
				}
				return o.startResearch(area)
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownFollowUp, optionID)
	})
}

// Retry re-runs a failed area. It re-enters the same request path, so an
// area already in flight is not duplicated.
func (o *Orchestrator) Retry(areaID research.AreaID) error {
	return o.SelectArea(areaID)
}

// SwitchCompany persists the outgoing session, cancels its in-flight
// streams, and loads or seeds the session for the incoming company.
func (o *Orchestrator) SwitchCompany(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("company name must not be empty")
	}
	return o.call(func() error {
		o.switchCompany(name)
		return nil
	})
}

// Snapshot returns a read-only copy of the active session, or nil when no
// company is active yet.
func (o *Orchestrator) Snapshot() *session.Session {
	reply := make(chan *session.Session, 1)
	o.post(func() {
		if o.sess == nil {
			reply <- nil
			return
		}
		reply <- o.sess.Clone()
	})
	select {
	case snap := <-reply:
		return snap
	case <-o.done:
		return nil
	}
}

// --- run-loop internals -------------------------------------------------

func (o *Orchestrator) switchCompany(name string) {
	if o.sess != nil {
		if o.sess.Company == name {
			return
		}
		outgoing := o.sess.Company
		o.store.Save(o.sess)
		o.store.Flush(outgoing)
		for key, as := range o.active {
			if as.stream != nil {
				as.stream.Cancel()
			}
			delete(o.active, key)
		}
		o.emit(events.NewCompanySwitchedEvent(outgoing, name))
		o.logger.Info("Orchestrator", "Switched company", map[string]interface{}{
			"from": outgoing, "to": name,
		})
	}

	if loaded := o.store.Load(context.Background(), name); loaded != nil {
		o.sess = loaded
	} else {
		o.sess = session.New(name)
	}
	o.publishSnapshot()
}

// startResearch transitions (company, area) from idle to requested. A second
// request while one is in flight is an idempotent no-op.
func (o *Orchestrator) startResearch(area *research.Area) error {
	if as, inFlight := o.active[area.ID]; inFlight && as.company == o.sess.Company {
		o.logger.Debug("Orchestrator", "Suppressing duplicate research request", map[string]interface{}{
			"company": o.sess.Company, "area": string(area.ID),
		})
		return nil
	}

	steps := make([]session.Step, len(area.Steps))
	for i, label := range area.Steps {
		steps[i] = session.Step{Label: label}
	}

	// Placeholder rendered before the first network event arrives.
	entryID := o.sess.Append(session.TranscriptEntry{
		Role:      session.RoleAssistant,
		Text:      fmt.Sprintf("Researching %s for %s...", area.Title, o.sess.Company),
		Streaming: &session.StreamingState{Steps: steps},
	})

	o.streamSeq++
	as := &activeStream{
		id:      o.streamSeq,
		company: o.sess.Company,
		areaID:  area.ID,
		entryID: entryID,
	}
	o.active[area.ID] = as

	o.afterMutation()
	o.emit(events.NewResearchStartedEvent(as.company, string(area.ID)))

	go o.openAndPump(as)
	return nil
}

// openAndPump runs outside the loop: it opens the stream and forwards every
// event back in. Open failures become a synthetic failed event.
func (o *Orchestrator) openAndPump(as *activeStream) {
	s, err := o.streams.Open(context.Background(), as.areaID, as.company)
	if err != nil {
		o.post(func() {
			o.handleStreamEvent(as, research.Event{Type: research.EventFailed, Reason: err.Error()})
		})
		return
	}

	o.post(func() {
		if o.active[as.areaID] == as {
			as.stream = s
		} else {
			// Cancelled while the connection was being opened.
			s.Cancel()
		}
	})

	for ev := range s.Events() {
		ev := ev
		o.post(func() { o.handleStreamEvent(as, ev) })
	}
}

// handleStreamEvent applies one stream event to the session. Events for a
// stream that is no longer current (cancelled, superseded, or already
// terminal) are dropped with no user-visible effect.
func (o *Orchestrator) handleStreamEvent(as *activeStream, ev research.Event) {
	if o.active[as.areaID] != as || o.sess == nil || o.sess.Company != as.company {
		o.logger.Debug("Orchestrator", "Dropping event for stale stream", map[string]interface{}{
			"company": as.company, "area": string(as.areaID), "event": string(ev.Type),
		})
		return
	}

	entry := o.sess.Entry(as.entryID)
	if entry == nil {
		delete(o.active, as.areaID)
		return
	}

	switch ev.Type {
	case research.EventStarted:
		// Already rendered via the placeholder; nothing to update.

	case research.EventProgress:
		entry.Streaming.MarkStep(ev.StepIndex)
		o.afterMutation()

	case research.EventResult:
		o.completeResearch(as, entry, ev.Finding)

	case research.EventFailed:
		o.failResearch(as, entry, ev.Reason)
	}
}

func (o *Orchestrator) completeResearch(as *activeStream, entry *session.TranscriptEntry, finding *research.Finding) {
	area := o.registry.Area(as.areaID)
	delete(o.active, as.areaID)

	entry.Streaming.MarkAll()
	entry.Streaming = nil
	entry.Finding = finding
	entry.Text = fmt.Sprintf("Here is what I found on %s for %s.", area.Title, as.company)
	entry.FollowUps = append([]research.FollowUpAction(nil), area.FollowUps...)

	o.sess.UpsertLedger(session.LedgerEntry{
		ID:          uuid.New(),
		AreaID:      as.areaID,
		Title:       area.Title,
		CompletedAt: time.Now().UTC(),
		Finding:     *finding,
	})

	o.afterMutation()
	o.emit(events.NewResearchCompletedEvent(as.company, string(as.areaID), len(finding.Sources)))
	o.logger.Info("Orchestrator", "Research completed", map[string]interface{}{
		"company": as.company, "area": string(as.areaID),
	})
}

func (o *Orchestrator) failResearch(as *activeStream, entry *session.TranscriptEntry, reason string) {
	area := o.registry.Area(as.areaID)
	delete(o.active, as.areaID)

	entry.Streaming = nil
	entry.Finding = nil
	entry.Text = fmt.Sprintf("Research on %s hit a problem: %s", area.Title, reason)
	entry.FollowUps = []research.FollowUpAction{research.RetryFollowUp(as.areaID)}

	o.afterMutation()
	o.emit(events.NewResearchFailedEvent(as.company, string(as.areaID), reason))
	o.logger.Warn("Orchestrator", "Research failed", map[string]interface{}{
		"company": as.company, "area": string(as.areaID), "reason": reason,
	})
}

// afterMutation persists (debounced) and fans out the new snapshot.
func (o *Orchestrator) afterMutation() {
	o.sess.Touch()
	o.store.Save(o.sess)
	o.publishSnapshot()
}

func (o *Orchestrator) publishSnapshot() {
	if o.publisher == nil || o.sess == nil {
		return
	}
	payload, err := json.Marshal(o.sess.Clone())
	if err != nil {
		o.logger.Error("Orchestrator", "Failed to marshal session snapshot", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := o.publisher.Publish(SessionUpdatesTopic, msg); err != nil {
		o.logger.Error("Orchestrator", "Failed to publish session snapshot", map[string]interface{}{"error": err.Error()})
	}
}

// emit forwards a lifecycle event to the external bus, off the run loop.
func (o *Orchestrator) emit(event events.Event) {
	if o.bus == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.bus.Publish(ctx, event); err != nil {
			o.logger.Warn("Orchestrator", "Failed to publish lifecycle event", map[string]interface{}{
				"type": event.EventType(), "error": err.Error(),
			})
		}
	}()
}
