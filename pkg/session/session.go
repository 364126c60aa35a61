package session

import (
	"time"

	"github.com/google/uuid"

	"cc-intelligence-be/pkg/research"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Step is one unit of streaming progress shown to the user. Once done it
// never reverts.
type Step struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// StreamingState is present on a transcript entry only while its research
// request is in flight. Steps complete strictly in index order.
type StreamingState struct {
	Steps []Step `json:"steps"`
}

// MarkStep completes step i. Out-of-order or repeated indices are ignored, so
// duplicated and reordered progress events are harmless.
func (s *StreamingState) MarkStep(i int) {
	if s == nil || i < 0 || i >= len(s.Steps) {
		return
	}
	if i != s.nextUndone() {
		return
	}
	s.Steps[i].Done = true
}

// MarkAll completes every remaining step, in order.
func (s *StreamingState) MarkAll() {
	if s == nil {
		return
	}
	for i := range s.Steps {
		s.Steps[i].Done = true
	}
}

func (s *StreamingState) nextUndone() int {
	for i := range s.Steps {
		if !s.Steps[i].Done {
			return i
		}
	}
	return len(s.Steps)
}

// TranscriptEntry is the append-only unit of conversation. Entries are never
// mutated once Streaming is cleared; while streaming, the orchestrator
// updates the same entry in place by id.
type TranscriptEntry struct {
	ID        int64                     `json:"id"`
	Role      Role                      `json:"role"`
	Text      string                    `json:"text"`
	CreatedAt time.Time                 `json:"created_at"`
	Finding   *research.Finding         `json:"finding,omitempty"`
	Streaming *StreamingState           `json:"streaming,omitempty"`
	FollowUps []research.FollowUpAction `json:"follow_ups,omitempty"`
}

// LedgerEntry records one successfully completed research area. The ledger
// holds at most one entry per area; re-running an area replaces it.
type LedgerEntry struct {
	ID          uuid.UUID        `json:"id"`
	AreaID      research.AreaID  `json:"area_id"`
	Title       string           `json:"title"`
	CompletedAt time.Time        `json:"completed_at"`
	Finding     research.Finding `json:"finding"`
}

// Session is the full research state for one company: the conversation
// transcript plus the completed-research ledger. Exactly one session is
// active in memory at a time; it is mutated only by the orchestrator.
type Session struct {
	Company    string            `json:"company"`
	Transcript []TranscriptEntry `json:"transcript"`
	Ledger     []LedgerEntry     `json:"ledger"`
	UpdatedAt  time.Time         `json:"updated_at"`

	nextEntryID int64
}

// New seeds a fresh session for a company.
func New(company string) *Session {
	return &Session{
		Company:     company,
		UpdatedAt:   time.Now().UTC(),
		nextEntryID: 1,
	}
}

// Append adds a transcript entry, assigning it the next monotonic id, and
// returns the assigned id.
func (s *Session) Append(entry TranscriptEntry) int64 {
	if s.nextEntryID == 0 {
		s.restoreCounter()
	}
	entry.ID = s.nextEntryID
	s.nextEntryID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.Transcript = append(s.Transcript, entry)
	s.touch()
	return entry.ID
}

// Entry returns the transcript entry with the given id, or nil.
func (s *Session) Entry(id int64) *TranscriptEntry {
	for i := range s.Transcript {
		if s.Transcript[i].ID == id {
			return &s.Transcript[i]
		}
	}
	return nil
}

// UpsertLedger inserts the entry, replacing any prior entry for the same
// area.
func (s *Session) UpsertLedger(entry LedgerEntry) {
	for i := range s.Ledger {
		if s.Ledger[i].AreaID == entry.AreaID {
			s.Ledger[i] = entry
			s.touch()
			return
		}
	}
	s.Ledger = append(s.Ledger, entry)
	s.touch()
}

// Touch refreshes the modification timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) touch() {
	s.Touch()
}

// restoreCounter recomputes the next entry id after deserialization.
func (s *Session) restoreCounter() {
	var max int64
	for i := range s.Transcript {
		if s.Transcript[i].ID > max {
			max = s.Transcript[i].ID
		}
	}
	s.nextEntryID = max + 1
}

// Clone returns a deep-enough copy safe to hand to other goroutines.
// Findings are immutable once produced, so sharing their pointers is fine.
func (s *Session) Clone() *Session {
	out := &Session{
		Company:     s.Company,
		UpdatedAt:   s.UpdatedAt,
		nextEntryID: s.nextEntryID,
	}
	out.Transcript = make([]TranscriptEntry, len(s.Transcript))
	for i, entry := range s.Transcript {
		cloned := entry
		if entry.Streaming != nil {
			steps := make([]Step, len(entry.Streaming.Steps))
			copy(steps, entry.Streaming.Steps)
			cloned.Streaming = &StreamingState{Steps: steps}
		}
		if len(entry.FollowUps) > 0 {
			cloned.FollowUps = append([]research.FollowUpAction(nil), entry.FollowUps...)
		}
		out.Transcript[i] = cloned
	}
	out.Ledger = append([]LedgerEntry(nil), s.Ledger...)
	return out
}
