// Package compose merges agent outcomes into the single response a turn
// returns: deduplicated ranked matches, merged narrative, and an aggregate
// confidence that reflects how degraded the turn was.
package compose

import (
	"fmt"
	"math"
	"strings"

	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/internal/scoring"
)

// Composer builds the final response for one routed turn.
type Composer struct {
	maxMatches      int
	degradedCeiling float64
}

// New creates a Composer from the router configuration.
func New(cfg config.RouterConfig) *Composer {
	maxMatches := cfg.MaxMatches
	if maxMatches <= 0 {
		maxMatches = 10
	}
	ceiling := cfg.DegradedCeiling
	if ceiling <= 0 {
		ceiling = 0.6
	}
	return &Composer{maxMatches: maxMatches, degradedCeiling: ceiling}
}

// Compose merges outcomes in dispatch order. Duplicate records keep their
// higher-scored occurrence; ranking is fully deterministic.
func (c *Composer) Compose(sessionID string, outcomes []model.AgentOutcome) *model.ComposedResponse {
	resp := &model.ComposedResponse{
		SessionID:      sessionID,
		FacultyMatches: []model.MatchResult{},
		ProgramMatches: []model.MatchResult{},
	}

	merged := dedupe(outcomes)
	scoring.Sort(merged)

	for _, m := range merged {
		switch m.RecordType {
		case model.RecordFaculty:
			if len(resp.FacultyMatches) < c.maxMatches {
				resp.FacultyMatches = append(resp.FacultyMatches, m)
			}
		case model.RecordProgram:
			if len(resp.ProgramMatches) < c.maxMatches {
				resp.ProgramMatches = append(resp.ProgramMatches, m)
			}
		}
	}

	var narratives []string
	for _, o := range outcomes {
		resp.Sources = append(resp.Sources, model.AgentStatus{
			Agent:   o.Agent,
			Status:  o.Status,
			Matches: len(o.Matches),
			Note:    o.Note,
		})
		if o.Narrative != "" {
			narratives = append(narratives, o.Narrative)
		}
		if len(o.Trends) > 0 && len(resp.Trends) == 0 {
			resp.Trends = o.Trends
		}
		if o.Status != model.OutcomeOK {
			resp.Degraded = true
		}
	}

	resp.ConfidenceScore = c.confidence(outcomes, resp.Degraded)
	resp.Response = buildText(narratives, resp)
	return resp
}

// confidence is the match-count-weighted mean of per-agent confidence.
// Agents that found nothing carry no weight; when no agent found anything
// the contributing agents weigh equally. Any non-OK outcome caps the
// result at the degraded ceiling.
func (c *Composer) confidence(outcomes []model.AgentOutcome, degraded bool) float64 {
	var weighted, weight float64
	for _, o := range outcomes {
		if o.Status == model.OutcomeError || o.Status == model.OutcomeTimeout {
			continue
		}
		w := float64(len(o.Matches))
		weighted += w * o.Confidence
		weight += w
	}
	if weight == 0 {
		n := 0
		for _, o := range outcomes {
			if o.Status == model.OutcomeError || o.Status == model.OutcomeTimeout {
				continue
			}
			weighted += o.Confidence
			n++
		}
		weight = float64(n)
	}
	if weight == 0 {
		return 0
	}

	conf := weighted / weight
	if degraded && conf > c.degradedCeiling {
		conf = c.degradedCeiling
	}
	return math.Round(math.Min(1, math.Max(0, conf))*10000) / 10000
}

// buildText joins agent narratives, or synthesizes a factual summary when
// no agent produced prose.
func buildText(narratives []string, resp *model.ComposedResponse) string {
	if len(narratives) > 0 {
		return strings.Join(narratives, "\n\n")
	}

	var parts []string
	if n := len(resp.FacultyMatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d faculty %s", n, plural(n, "match", "matches")))
	}
	if n := len(resp.ProgramMatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d program %s", n, plural(n, "match", "matches")))
	}
	if len(resp.Trends) > 0 {
		parts = append(parts, fmt.Sprintf("top research area: %s", resp.Trends[0].Area))
	}
	if len(parts) == 0 {
		if resp.Degraded {
			return "I couldn't complete that search right now. Please try again."
		}
		return "No matching faculty or programs found. Try broadening your research areas or universities."
	}
	return "Found " + strings.Join(parts, ", ") + "."
}

// dedupe merges matches across outcomes keeping the higher-scored
// occurrence of each record, first occurrence order preserved for ties.
func dedupe(outcomes []model.AgentOutcome) []model.MatchResult {
	index := make(map[string]int)
	var merged []model.MatchResult
	for _, o := range outcomes {
		for _, m := range o.Matches {
			if at, seen := index[m.RecordID]; seen {
				if m.Score > merged[at].Score {
					merged[at] = m
				}
				continue
			}
			index[m.RecordID] = len(merged)
			merged = append(merged, m)
		}
	}
	return merged
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
