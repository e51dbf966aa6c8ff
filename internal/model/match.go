package model

import "time"

// ScoreContributor is one weighted sub-score of a match. The ordered list
// makes every score explainable and reproducible.
type ScoreContributor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

// MatchResult is a scored candidate. Scores within one response are
// comparable only when produced by the same scoring configuration.
type MatchResult struct {
	RecordID     string             `json:"record_id"`
	RecordType   RecordType         `json:"record_type"`
	Name         string             `json:"name"`
	University   string             `json:"university"`
	Score        float64            `json:"score"`
	Contributors []ScoreContributor `json:"contributors,omitempty"`
	Status       HiringStatus       `json:"status"`
	StaleAsOf    time.Time          `json:"stale_as_of"`
	Detail       map[string]any     `json:"detail,omitempty"`
}

// AgentName identifies a specialized agent.
type AgentName string

const (
	AgentFaculty        AgentName = "faculty"
	AgentProgram        AgentName = "program"
	AgentResearchTrend  AgentName = "research_trend"
	AgentConversational AgentName = "conversational"
)

// OutcomeStatus is the terminal completion status of one agent invocation.
type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeTimeout  OutcomeStatus = "timeout"
	OutcomeError    OutcomeStatus = "error"
	OutcomeDegraded OutcomeStatus = "degraded"
)

// Trend is one entry of the research-trend agent's ranked tag frequencies.
type Trend struct {
	Area  string `json:"area"`
	Count int    `json:"count"`
}

// AgentOutcome is the terminal result of one agent invocation.
type AgentOutcome struct {
	Agent      AgentName     `json:"agent"`
	Status     OutcomeStatus `json:"status"`
	Matches    []MatchResult `json:"matches,omitempty"`
	Trends     []Trend       `json:"trends,omitempty"`
	Narrative  string        `json:"narrative,omitempty"`
	Confidence float64       `json:"confidence"`
	// Note carries a degradation explanation (stale cache, provider error).
	Note string `json:"note,omitempty"`
}

// AgentStatus is the observability entry for one agent in a response.
type AgentStatus struct {
	Agent   AgentName     `json:"agent"`
	Status  OutcomeStatus `json:"status"`
	Matches int           `json:"matches"`
	Note    string        `json:"note,omitempty"`
}

// ComposedResponse is the merged reply for one turn, matching the
// documented JSON response shape.
type ComposedResponse struct {
	Response        string        `json:"response"`
	SessionID       string        `json:"session_id"`
	FacultyMatches  []MatchResult `json:"faculty_matches"`
	ProgramMatches  []MatchResult `json:"program_matches"`
	Trends          []Trend       `json:"trends,omitempty"`
	ConfidenceScore float64       `json:"confidence_score"`
	Sources         []AgentStatus `json:"sources"`
	// Degraded is set when any agent timed out or errored and the
	// confidence ceiling was applied.
	Degraded bool `json:"degraded,omitempty"`
	// Unpersisted is set when the turn was answered but could not be
	// written to the context store; conversation state may be inconsistent.
	Unpersisted bool `json:"unpersisted,omitempty"`
}
