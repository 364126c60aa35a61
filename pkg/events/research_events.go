package events

import "time"

// Research lifecycle event codes published to the event bus.
const (
	TypeResearchStarted   = "RESEARCH_STARTED"
	TypeResearchCompleted = "RESEARCH_COMPLETED"
	TypeResearchFailed    = "RESEARCH_FAILED"
	TypeCompanySwitched   = "COMPANY_SWITCHED"
)

func NewResearchStartedEvent(company, areaID string) Event {
	return BaseEvent{
		Type: TypeResearchStarted,
		Data: map[string]interface{}{
			"company": company,
			"area_id": areaID,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func NewResearchCompletedEvent(company, areaID string, sources int) Event {
	return BaseEvent{
		Type: TypeResearchCompleted,
		Data: map[string]interface{}{
			"company": company,
			"area_id": areaID,
			"sources": sources,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func NewResearchFailedEvent(company, areaID, reason string) Event {
	return BaseEvent{
		Type: TypeResearchFailed,
		Data: map[string]interface{}{
			"company": company,
			"area_id": areaID,
			"reason":  reason,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func NewCompanySwitchedEvent(from, to string) Event {
	return BaseEvent{
		Type: TypeCompanySwitched,
		Data: map[string]interface{}{
			"from": from,
			"to":   to,
		},
		OccurredAt: time.Now().UTC(),
	}
}
