package model

// IntentKind identifies the classified purpose of an applicant message.
type IntentKind string

const (
	IntentFacultySearch  IntentKind = "faculty_search"
	IntentProgramSearch  IntentKind = "program_search"
	IntentResearchTrend  IntentKind = "research_trend"
	IntentDeadlineInfo   IntentKind = "deadline_info"
	IntentDocumentReview IntentKind = "document_review"
	IntentGeneral        IntentKind = "general"
)

// Intent is a single classified intent with its confidence.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Confidence float64    `json:"confidence"`
}

// Classification is the ranked intent set produced for one message. A
// compound message carries more than one intent; the router dispatches the
// union of their agent affinities.
type Classification struct {
	Intents []Intent `json:"intents"`

	// Criteria extracted alongside the intents, used to filter record
	// queries and refresh the preference snapshot.
	Criteria SearchCriteria `json:"criteria"`

	// ProviderAssisted is true when the lexical pass was below threshold
	// and the completion provider supplied the classification.
	ProviderAssisted bool `json:"provider_assisted,omitempty"`
}

// Confidence returns the classification's overall confidence: the maximum
// over member intents, 0 for an empty set.
func (c Classification) Confidence() float64 {
	best := 0.0
	for _, in := range c.Intents {
		if in.Confidence > best {
			best = in.Confidence
		}
	}
	return best
}

// Has reports whether the classification contains the given intent kind.
func (c Classification) Has(kind IntentKind) bool {
	for _, in := range c.Intents {
		if in.Kind == kind {
			return true
		}
	}
	return false
}

// Kinds returns the intent kinds in rank order.
func (c Classification) Kinds() []IntentKind {
	kinds := make([]IntentKind, len(c.Intents))
	for i, in := range c.Intents {
		kinds[i] = in.Kind
	}
	return kinds
}

// SearchCriteria holds the structured filters extracted from a message.
type SearchCriteria struct {
	Universities  []string `json:"universities,omitempty"`
	ResearchAreas []string `json:"research_areas,omitempty"`
	DegreeTypes   []string `json:"degree_types,omitempty"`
	HiringFocus   bool     `json:"hiring_focus,omitempty"`
	FundingNeeded bool     `json:"funding_needed,omitempty"`
	NoGRE         bool     `json:"no_gre,omitempty"`
}
