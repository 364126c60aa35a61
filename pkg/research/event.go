package research

import "encoding/json"

// EventType identifies one kind of research stream event.
type EventType string

const (
	// EventStarted means the server accepted the request and began work.
	EventStarted EventType = "started"
	// EventProgress means one streaming step completed.
	EventProgress EventType = "progress"
	// EventResult is the terminal success event.
	EventResult EventType = "result"
	// EventFailed is the terminal failure event.
	EventFailed EventType = "failed"
)

// Event is one element of a research stream. Exactly one of Result/Failed is
// delivered per stream, and nothing follows it.
type Event struct {
	Type      EventType
	StepIndex int      // valid for EventProgress
	Finding   *Finding // valid for EventResult
	Reason    string   // valid for EventFailed
}

// IsTerminal reports whether no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Type == EventResult || e.Type == EventFailed
}

// Source is a cited origin of a finding.
type Source struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Finding is the typed result of one research area. The item payload shape
// varies per area, so beyond the area tag and sources it is treated as an
// opaque value to store and attach, never to interpret.
type Finding struct {
	AreaID  AreaID          `json:"area_id"`
	Title   string          `json:"title"`
	Items   json.RawMessage `json:"items,omitempty"`
	Sources []Source        `json:"sources,omitempty"`
}
