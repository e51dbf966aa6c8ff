package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/internal/records"
	"github.com/gradpath/advisor/pkg/anthropic"
)

// trendLimit caps the ranked tag list.
const trendLimit = 10

// TrendAgent ranks research-area tag frequencies across the faculty pool,
// restricted to the applicant's target universities when stated. The
// ranking is computed locally; the provider only phrases it.
type TrendAgent struct {
	store     records.Store
	completer anthropic.Completer
}

// NewTrend creates a research-trend agent. completer may be nil, in which
// case outcomes carry trends without a narrative.
func NewTrend(store records.Store, completer anthropic.Completer) *TrendAgent {
	return &TrendAgent{store: store, completer: completer}
}

func (a *TrendAgent) Name() model.AgentName { return model.AgentResearchTrend }

func (a *TrendAgent) Affinity() []model.IntentKind {
	return []model.IntentKind{model.IntentResearchTrend}
}

func (a *TrendAgent) Handle(ctx context.Context, req Request) model.AgentOutcome {
	filter := records.FacultyFilter{
		Universities: effectiveUniversities(req),
		Limit:        500,
	}

	recs, err := a.store.QueryFaculty(ctx, filter)
	servedStale := errors.Is(err, records.ErrServedStale)
	if err != nil && !servedStale {
		zap.L().Warn("trend agent: query failed", zap.Error(err))
		return errorOutcome(a.Name(), "record store unavailable")
	}

	trends := rankAreas(recs)

	outcome := model.AgentOutcome{
		Agent:      a.Name(),
		Status:     model.OutcomeOK,
		Trends:     trends,
		Confidence: trendConfidence(len(recs)),
	}
	if servedStale {
		outcome.Status = model.OutcomeDegraded
		outcome.Note = "served cached faculty records"
	}
	if len(trends) == 0 || a.completer == nil {
		return outcome
	}

	narrative, err := a.completer.Complete(ctx, anthropic.CompleteRequest{
		System:    "You summarize research-area frequency data for graduate applicants. Be factual and brief.",
		Prompt:    "Describe in two or three sentences what these research-area counts say about current faculty focus. Counts are faculty members per area.",
		Grounding: formatTrends(trends),
		MaxTokens: 300,
	})
	if err != nil {
		if anthropic.IsTimeout(err) {
			outcome.Status = model.OutcomeTimeout
			outcome.Note = joinNotes(outcome.Note, "narrative generation timed out")
			return outcome
		}
		zap.L().Warn("trend agent: narrative unavailable", zap.Error(err))
		outcome.Status = model.OutcomeDegraded
		outcome.Note = joinNotes(outcome.Note, "trend narrative unavailable")
		return outcome
	}
	outcome.Narrative = narrative
	return outcome
}

// rankAreas counts case-folded research-area tags and orders them by count
// descending, then area name ascending.
func rankAreas(recs []model.FacultyRecord) []model.Trend {
	folder := cases.Fold()
	counts := make(map[string]int)
	for _, f := range recs {
		for _, area := range f.ResearchAreas {
			key := strings.TrimSpace(folder.String(area))
			if key == "" {
				continue
			}
			counts[key]++
		}
	}

	trends := make([]model.Trend, 0, len(counts))
	for area, count := range counts {
		trends = append(trends, model.Trend{Area: area, Count: count})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Count != trends[j].Count {
			return trends[i].Count > trends[j].Count
		}
		return trends[i].Area < trends[j].Area
	})
	if len(trends) > trendLimit {
		trends = trends[:trendLimit]
	}
	return trends
}

// trendConfidence grows with the sampled pool, saturating at 0.9.
func trendConfidence(pool int) float64 {
	if pool == 0 {
		return noMatchConfidence
	}
	return math.Min(0.9, math.Round(float64(pool)/20*10000)/10000)
}

func formatTrends(trends []model.Trend) string {
	var b strings.Builder
	for _, t := range trends {
		fmt.Fprintf(&b, "%s: %d\n", t.Area, t.Count)
	}
	return b.String()
}

func joinNotes(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}
