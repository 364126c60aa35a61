package research

import "cc-intelligence-be/pkg/intent"

// AreaID names one category of company research.
type AreaID string

const (
	AreaDecisionMakers       AreaID = "decision-makers"
	AreaTechStack            AreaID = "tech-stack"
	AreaBusinessChallenges   AreaID = "business-challenges"
	AreaCompetitiveLandscape AreaID = "competitive-landscape"
	AreaBuyingSignals        AreaID = "buying-signals"
)

// FollowUpKind distinguishes what selecting a follow-up action does.
type FollowUpKind string

const (
	FollowUpResearchArea FollowUpKind = "research_area"
	FollowUpRetry        FollowUpKind = "retry"
)

// FollowUpAction is a selectable next step offered on a transcript entry.
type FollowUpAction struct {
	ID     string       `json:"id"`
	Label  string       `json:"label"`
	Kind   FollowUpKind `json:"kind"`
	AreaID AreaID       `json:"area_id"`
}

// Area describes one research area: display title, the static step template
// shown while streaming, and the follow-ups offered after completion.
type Area struct {
	ID        AreaID
	Title     string
	Steps     []string
	FollowUps []FollowUpAction
}

func followUp(area AreaID, label string) FollowUpAction {
	return FollowUpAction{
		ID:     "followup-" + string(area),
		Label:  label,
		Kind:   FollowUpResearchArea,
		AreaID: area,
	}
}

// RetryFollowUp builds the retry affordance offered after a failed stream.
func RetryFollowUp(area AreaID) FollowUpAction {
	return FollowUpAction{
		ID:     "retry-" + string(area),
		Label:  "Retry research",
		Kind:   FollowUpRetry,
		AreaID: area,
	}
}

// Registry is the static catalog of research areas.
type Registry struct {
	areas map[AreaID]*Area
	order []AreaID
}

// NewRegistry builds the default area catalog.
func NewRegistry() *Registry {
	r := &Registry{areas: make(map[AreaID]*Area)}

	r.add(&Area{
		ID:    AreaDecisionMakers,
		Title: "Decision Makers",
		Steps: []string{
			"Scanning leadership team",
			"Mapping reporting lines",
			"Identifying champions and blockers",
			"Compiling contact profiles",
		},
		FollowUps: []FollowUpAction{
			followUp(AreaTechStack, "Look into their tech stack"),
			followUp(AreaBusinessChallenges, "Explore business challenges"),
		},
	})

	r.add(&Area{
		ID:    AreaTechStack,
		Title: "Tech Stack",
		Steps: []string{
			"Collecting job postings",
			"Analyzing engineering footprint",
			"Matching vendor signals",
		},
		FollowUps: []FollowUpAction{
			followUp(AreaCompetitiveLandscape, "Map the competitive landscape"),
			followUp(AreaBuyingSignals, "Check for buying signals"),
		},
	})

	r.add(&Area{
		ID:    AreaBusinessChallenges,
		Title: "Business Challenges",
		Steps: []string{
			"Reviewing earnings and press",
			"Extracting strategic initiatives",
			"Ranking pain points",
		},
		FollowUps: []FollowUpAction{
			followUp(AreaDecisionMakers, "Find the decision makers"),
			followUp(AreaBuyingSignals, "Check for buying signals"),
		},
	})

	r.add(&Area{
		ID:    AreaCompetitiveLandscape,
		Title: "Competitive Landscape",
		Steps: []string{
			"Identifying direct competitors",
			"Comparing market positioning",
			"Summarizing differentiation",
		},
		FollowUps: []FollowUpAction{
			followUp(AreaBusinessChallenges, "Explore business challenges"),
			followUp(AreaDecisionMakers, "Find the decision makers"),
		},
	})

	r.add(&Area{
		ID:    AreaBuyingSignals,
		Title: "Buying Signals",
		Steps: []string{
			"Scanning hiring and funding activity",
			"Detecting vendor changes",
			"Scoring signal strength",
		},
		FollowUps: []FollowUpAction{
			followUp(AreaDecisionMakers, "Find the decision makers"),
			followUp(AreaTechStack, "Look into their tech stack"),
		},
	})

	return r
}

func (r *Registry) add(a *Area) {
	r.areas[a.ID] = a
	r.order = append(r.order, a.ID)
}

// Area returns the area for id, or nil when unknown.
func (r *Registry) Area(id AreaID) *Area {
	return r.areas[id]
}

// Areas returns the catalog in registration order.
func (r *Registry) Areas() []*Area {
	out := make([]*Area, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.areas[id])
	}
	return out
}

// AreaForContext picks the research area a resolved intent context maps to.
// Utterances with no context start at decision makers.
func (r *Registry) AreaForContext(ctx intent.Context) *Area {
	switch ctx {
	case intent.ContextCompetitive:
		return r.Area(AreaCompetitiveLandscape)
	case intent.ContextRenewal:
		return r.Area(AreaBusinessChallenges)
	case intent.ContextDemo:
		return r.Area(AreaTechStack)
	case intent.ContextNegotiation, intent.ContextClosing:
		return r.Area(AreaBuyingSignals)
	default:
		return r.Area(AreaDecisionMakers)
	}
}
