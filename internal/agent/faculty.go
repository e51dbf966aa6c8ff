package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/internal/records"
	"github.com/gradpath/advisor/internal/scoring"
	"github.com/gradpath/advisor/pkg/anthropic"
)

// FacultyAgent finds and scores faculty whose research areas and hiring
// status fit the applicant.
type FacultyAgent struct {
	store      records.Store
	scoringCfg config.ScoringConfig
	completer  anthropic.Completer
	now        func() time.Time
}

// NewFaculty creates a faculty-search agent. completer may be nil, in
// which case outcomes carry matches without a narrative.
func NewFaculty(store records.Store, scoringCfg config.ScoringConfig, completer anthropic.Completer) *FacultyAgent {
	return &FacultyAgent{
		store:      store,
		scoringCfg: scoringCfg,
		completer:  completer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithNow fixes the reference time used for recency scoring.
func (a *FacultyAgent) WithNow(t time.Time) *FacultyAgent {
	a.now = func() time.Time { return t }
	return a
}

func (a *FacultyAgent) Name() model.AgentName { return model.AgentFaculty }

func (a *FacultyAgent) Affinity() []model.IntentKind {
	return []model.IntentKind{model.IntentFacultySearch}
}

func (a *FacultyAgent) Handle(ctx context.Context, req Request) model.AgentOutcome {
	filter := records.FacultyFilter{
		Universities:  effectiveUniversities(req),
		ResearchAreas: effectiveInterests(req),
		HiringOnly:    req.Classification.Criteria.HiringFocus,
	}

	recs, err := a.store.QueryFaculty(ctx, filter)
	servedStale := errors.Is(err, records.ErrServedStale)
	if err != nil && !servedStale {
		zap.L().Warn("faculty agent: query failed", zap.Error(err))
		return errorOutcome(a.Name(), "record store unavailable")
	}

	engine := scoring.New(a.scoringCfg).WithNow(a.now())
	matches := make([]model.MatchResult, 0, len(recs))
	for _, f := range recs {
		m := engine.Score(req.Preferences, f)
		if m.Detail == nil {
			m.Detail = map[string]any{}
		}
		m.Detail["department"] = f.Department
		if f.HIndex > 0 {
			m.Detail["h_index"] = f.HIndex
		}
		if f.HomepageURL != "" {
			m.Detail["homepage_url"] = f.HomepageURL
		}
		matches = append(matches, m)
	}
	scoring.Sort(matches)
	matches = capMatches(matches, req.MaxMatches)

	outcome := model.AgentOutcome{
		Agent:      a.Name(),
		Status:     model.OutcomeOK,
		Matches:    matches,
		Confidence: matchConfidence(matches),
	}
	if servedStale {
		outcome.Status = model.OutcomeDegraded
		outcome.Note = "served cached faculty records"
	}

	attachNarrative(ctx, a.completer, &outcome,
		"You present faculty matches to a graduate applicant. Mention only the people in the grounding data.",
		"Summarize these faculty matches in two or three sentences, leading with the strongest.")
	return outcome
}
