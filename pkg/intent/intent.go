package intent

// Context classifies why the user is researching a company.
type Context string

const (
	ContextDiscovery   Context = "discovery"
	ContextCompetitive Context = "competitive"
	ContextRenewal     Context = "renewal"
	ContextDemo        Context = "demo"
	ContextNegotiation Context = "negotiation"
	ContextClosing     Context = "closing"
)

// ActionableConfidence is the floor below which a resolved company is unusable.
const ActionableConfidence = 0.4

// Intent is the resolved interpretation of one user utterance. Produced once
// per utterance and never mutated afterwards.
type Intent struct {
	Company    string  `json:"company,omitempty"`
	Context    Context `json:"context,omitempty"`
	Note       string  `json:"note,omitempty"`
	Confidence float64 `json:"confidence"`
}

// IsActionable reports whether the intent names a company we trust enough to
// start research on.
func IsActionable(i *Intent) bool {
	return i != nil && i.Company != "" && i.Confidence >= ActionableConfidence
}

// ValidContext reports whether s is one of the known context values.
func ValidContext(s string) bool {
	switch Context(s) {
	case ContextDiscovery, ContextCompetitive, ContextRenewal, ContextDemo, ContextNegotiation, ContextClosing:
		return true
	}
	return false
}
