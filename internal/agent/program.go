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

// ProgramAgent finds and scores degree programs. It also answers deadline
// questions: deadlines ride along on the program matches it returns.
type ProgramAgent struct {
	store      records.Store
	scoringCfg config.ScoringConfig
	completer  anthropic.Completer
	now        func() time.Time
}

// NewProgram creates a program-search agent. completer may be nil.
func NewProgram(store records.Store, scoringCfg config.ScoringConfig, completer anthropic.Completer) *ProgramAgent {
	return &ProgramAgent{
		store:      store,
		scoringCfg: scoringCfg,
		completer:  completer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithNow fixes the reference time used for recency scoring.
func (a *ProgramAgent) WithNow(t time.Time) *ProgramAgent {
	a.now = func() time.Time { return t }
	return a
}

func (a *ProgramAgent) Name() model.AgentName { return model.AgentProgram }

func (a *ProgramAgent) Affinity() []model.IntentKind {
	return []model.IntentKind{model.IntentProgramSearch, model.IntentDeadlineInfo}
}

func (a *ProgramAgent) Handle(ctx context.Context, req Request) model.AgentOutcome {
	filter := records.ProgramFilter{
		Universities:  effectiveUniversities(req),
		ResearchAreas: effectiveInterests(req),
		DegreeTypes:   mergeFirst(req.Classification.Criteria.DegreeTypes, req.Preferences.DegreeTypes),
	}

	recs, err := a.store.QueryPrograms(ctx, filter)
	servedStale := errors.Is(err, records.ErrServedStale)
	if err != nil && !servedStale {
		zap.L().Warn("program agent: query failed", zap.Error(err))
		return errorOutcome(a.Name(), "record store unavailable")
	}

	engine := scoring.New(a.scoringCfg).WithNow(a.now())
	matches := make([]model.MatchResult, 0, len(recs))
	for _, p := range recs {
		m := engine.Score(req.Preferences, p)
		if m.Detail == nil {
			m.Detail = map[string]any{}
		}
		m.Detail["degree_type"] = p.DegreeType
		m.Detail["gre_required"] = p.GRERequired
		m.Detail["funding_available"] = p.FundingAvailable
		if p.Deadline != "" {
			m.Detail["application_deadline"] = p.Deadline
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
		outcome.Note = "served cached program records"
	}

	attachNarrative(ctx, a.completer, &outcome,
		"You present graduate program matches to an applicant. Mention only programs in the grounding data; quote deadlines exactly.",
		"Summarize these program matches in two or three sentences, leading with the strongest.")
	return outcome
}
