package intent

import (
	"regexp"
	"strings"
)

// domainPattern matches a bare domain-like token ("label.label.tld").
var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)+$`)

// capitalizedRunPattern matches runs of capitalized words ("Acme Corp").
var capitalizedRunPattern = regexp.MustCompile(`(?:[A-Z][a-zA-Z0-9&-]*)(?:\s+[A-Z][a-zA-Z0-9&-]*)*`)

// stoplist holds generic capitalized terms that are never company names.
var stoplist = map[string]struct{}{
	"Analysis":    {},
	"Report":      {},
	"Research":    {},
	"Overview":    {},
	"Summary":     {},
	"Company":     {},
	"The":         {},
	"I":           {},
	"We":          {},
	"My":          {},
	"Our":         {},
	"What":        {},
	"Who":         {},
	"How":         {},
	"Tell":        {},
	"Show":        {},
	"Find":        {},
	"Competitive": {},
	"Renewal":     {},
	"Demo":        {},
}

// contextKeywords maps each research context to the utterance keywords that
// imply it. First match wins.
var contextKeywords = []struct {
	context  Context
	keywords []string
}{
	{ContextCompetitive, []string{"competitive", "competitor", "versus", "vs ", "compare"}},
	{ContextRenewal, []string{"renewal", "renew", "churn", "retention"}},
	{ContextDemo, []string{"demo", "demonstration", "trial"}},
	{ContextNegotiation, []string{"negotiation", "negotiate", "pricing", "contract"}},
	{ContextClosing, []string{"closing", "close the deal", "signature"}},
	{ContextDiscovery, []string{"discovery", "learn about", "tell me about", "prospect"}},
}

// Fallback is the deterministic secondary resolution path. It never consults
// the network, so it is safe to run when the primary resolver is down.
func Fallback(utterance string) *Intent {
	trimmed := strings.TrimSpace(utterance)
	intent := &Intent{}

	if domain := firstDomainToken(trimmed); domain != "" {
		intent.Company = domain
		intent.Confidence = 0.85
	} else if company := firstCompanyCandidate(trimmed); company != "" {
		intent.Company = company
		intent.Confidence = 0.6
	}

	lowered := strings.ToLower(trimmed)
	for _, mapping := range contextKeywords {
		if containsAny(lowered, mapping.keywords) {
			intent.Context = mapping.context
			intent.Confidence += 0.2
			break
		}
	}

	intent.Confidence = clamp(intent.Confidence)
	return intent
}

// firstDomainToken returns the first whitespace-separated token that looks
// like a bare domain, with trailing punctuation stripped.
func firstDomainToken(utterance string) string {
	for _, field := range strings.Fields(utterance) {
		token := strings.Trim(field, ".,!?;:")
		if domainPattern.MatchString(token) {
			return token
		}
	}
	return ""
}

// firstCompanyCandidate extracts the first capitalized word run that survives
// the stoplist.
func firstCompanyCandidate(utterance string) string {
	for _, run := range capitalizedRunPattern.FindAllString(utterance, -1) {
		words := strings.Fields(run)
		var kept []string
		for _, word := range words {
			if _, stopped := stoplist[word]; stopped {
				break
			}
			kept = append(kept, word)
		}
		if len(kept) > 0 {
			return strings.Join(kept, " ")
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
