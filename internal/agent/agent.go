// Package agent holds the specialized agents the router fans out to. Each
// agent answers one slice of an admissions question and reports a terminal
// outcome; partial results never escape an invocation.
package agent

import (
	"context"
	"encoding/json"
	"math"

	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/pkg/anthropic"
)

// Request is the per-turn input handed to every selected agent. Agents read
// it, they never mutate it.
type Request struct {
	Message        string
	Classification model.Classification
	Preferences    model.Preferences
	Conversation   *model.Conversation
	MaxMatches     int
}

// Agent is one specialized worker. Handle must return a terminal outcome:
// on internal failure it reports OutcomeError with empty results rather
// than returning an error.
type Agent interface {
	Name() model.AgentName
	// Affinity lists the intent kinds this agent serves.
	Affinity() []model.IntentKind
	Handle(ctx context.Context, req Request) model.AgentOutcome
}

// effectiveInterests merges the stated criteria of this turn with the
// accumulated preference snapshot, criteria first.
func effectiveInterests(req Request) []string {
	return mergeFirst(req.Classification.Criteria.ResearchAreas, req.Preferences.ResearchInterests)
}

func effectiveUniversities(req Request) []string {
	return mergeFirst(req.Classification.Criteria.Universities, req.Preferences.TargetUniversities)
}

func mergeFirst(primary, fallback []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

func errorOutcome(name model.AgentName, note string) model.AgentOutcome {
	return model.AgentOutcome{Agent: name, Status: model.OutcomeError, Note: note}
}

func capMatches(matches []model.MatchResult, limit int) []model.MatchResult {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}

// noMatchConfidence is reported when a search agent ran fine but found
// nothing relevant.
const noMatchConfidence = 0.2

// matchConfidence derives an agent's self-confidence from the scores it
// produced: the mean of the match scores.
func matchConfidence(matches []model.MatchResult) float64 {
	if len(matches) == 0 {
		return noMatchConfidence
	}
	var sum float64
	for _, m := range matches {
		sum += m.Score
	}
	return math.Round(sum/float64(len(matches))*10000) / 10000
}

// attachNarrative asks the provider to phrase the already-scored matches.
// Failures are soft: the structured results stand, the outcome's status
// records that the prose is missing.
func attachNarrative(ctx context.Context, completer anthropic.Completer, outcome *model.AgentOutcome, system, prompt string) {
	if completer == nil || len(outcome.Matches) == 0 {
		return
	}

	grounding := matchGrounding(outcome.Matches)
	narrative, err := completer.Complete(ctx, anthropic.CompleteRequest{
		System:    system,
		Prompt:    prompt,
		Grounding: grounding,
		MaxTokens: 400,
	})
	if err != nil {
		if anthropic.IsTimeout(err) {
			outcome.Status = model.OutcomeTimeout
			outcome.Note = joinNotes(outcome.Note, "narrative generation timed out")
			return
		}
		zap.L().Warn("agent: narrative unavailable",
			zap.String("agent", string(outcome.Agent)),
			zap.Error(err),
		)
		outcome.Status = model.OutcomeDegraded
		outcome.Note = joinNotes(outcome.Note, "narrative unavailable")
		return
	}
	outcome.Narrative = narrative
}

// matchGrounding serializes scored matches for a narrative prompt. Only
// already-computed fields go in; the provider never sees raw records.
func matchGrounding(matches []model.MatchResult) string {
	capped := matches
	if len(capped) > 5 {
		capped = capped[:5]
	}
	type entry struct {
		Name       string  `json:"name"`
		University string  `json:"university"`
		Score      float64 `json:"score"`
		Status     string  `json:"status"`
	}
	entries := make([]entry, len(capped))
	for i, m := range capped {
		entries[i] = entry{Name: m.Name, University: m.University, Score: m.Score, Status: string(m.Status)}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(payload)
}
