package model

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleSystem    Role = "system"
)

// Preferences is the mutable applicant-preference snapshot carried by a
// conversation. Agents read it; only the composer's persist step updates it.
type Preferences struct {
	ResearchInterests  []string `json:"research_interests,omitempty"`
	DegreeTypes        []string `json:"degree_types,omitempty"`
	TargetUniversities []string `json:"target_universities,omitempty"`
	FundingRequired    bool     `json:"funding_required,omitempty"`
	NoGRE              bool     `json:"no_gre,omitempty"`
	MaxTuition         float64  `json:"max_tuition,omitempty"`
}

// Merge folds freshly extracted criteria into the snapshot without
// discarding earlier turns' signals.
func (p *Preferences) Merge(c SearchCriteria) {
	p.ResearchInterests = mergeUnique(p.ResearchInterests, c.ResearchAreas)
	p.DegreeTypes = mergeUnique(p.DegreeTypes, c.DegreeTypes)
	p.TargetUniversities = mergeUnique(p.TargetUniversities, c.Universities)
	if c.FundingNeeded {
		p.FundingRequired = true
	}
	if c.NoGRE {
		p.NoGRE = true
	}
}

func mergeUnique(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := existing
	for _, v := range added {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Turn is one message in a conversation. Immutable once created; owned
// exclusively by its conversation.
type Turn struct {
	ID         string        `json:"id"`
	Role       Role          `json:"role"`
	Text       string        `json:"text"`
	CreatedAt  time.Time     `json:"created_at"`
	Intents    []Intent      `json:"intents,omitempty"`
	Matches    []MatchResult `json:"matches,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Sources    []AgentStatus `json:"sources,omitempty"`
}

// Conversation holds per-session state: ordered turns plus the preference
// snapshot. Created on first message, mutated every turn, archived rather
// than deleted.
type Conversation struct {
	ID          string      `json:"id"`
	Turns       []Turn      `json:"turns"`
	Preferences Preferences `json:"preferences"`
	// Version increments on every append; the context store rejects appends
	// carrying a stale version.
	Version   int       `json:"version"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastResults returns the most recent system turn carrying structured
// results, or nil. Used to ground conversational replies in prior findings.
func (c *Conversation) LastResults() *Turn {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		t := &c.Turns[i]
		if t.Role == RoleSystem && len(t.Matches) > 0 {
			return t
		}
	}
	return nil
}
