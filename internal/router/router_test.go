package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/agent"
	"github.com/gradpath/advisor/internal/classify"
	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
)

// stubAgent returns a fixed outcome, optionally blocking until cancelled.
type stubAgent struct {
	name     model.AgentName
	affinity []model.IntentKind
	outcome  model.AgentOutcome
	block    bool
	calls    int
	seen     []agent.Request
}

func (s *stubAgent) Name() model.AgentName        { return s.name }
func (s *stubAgent) Affinity() []model.IntentKind { return s.affinity }

func (s *stubAgent) Handle(ctx context.Context, req agent.Request) model.AgentOutcome {
	s.calls++
	s.seen = append(s.seen, req)
	if s.block {
		<-ctx.Done()
		return model.AgentOutcome{Agent: s.name, Status: model.OutcomeError, Note: "cancelled"}
	}
	out := s.outcome
	out.Agent = s.name
	return out
}

func okOutcome(matches int) model.AgentOutcome {
	out := model.AgentOutcome{Status: model.OutcomeOK, Confidence: 0.8}
	for i := 0; i < matches; i++ {
		out.Matches = append(out.Matches, model.MatchResult{RecordID: "r", Score: 0.7})
	}
	return out
}

func newTestRouter(cfg config.RouterConfig, agents ...agent.Agent) (*Router, *stubAgent) {
	fallback := &stubAgent{
		name:     model.AgentConversational,
		affinity: []model.IntentKind{model.IntentGeneral, model.IntentDocumentReview},
		outcome:  model.AgentOutcome{Status: model.OutcomeOK, Narrative: "hello", Confidence: 0.5},
	}
	classifier := classify.New(nil, config.ClassifierConfig{LexicalThreshold: 0.55})
	return New(classifier, fallback, cfg, append(agents, fallback)...), fallback
}

func searchAgents() (*stubAgent, *stubAgent, *stubAgent) {
	faculty := &stubAgent{
		name:     model.AgentFaculty,
		affinity: []model.IntentKind{model.IntentFacultySearch},
		outcome:  okOutcome(2),
	}
	program := &stubAgent{
		name:     model.AgentProgram,
		affinity: []model.IntentKind{model.IntentProgramSearch, model.IntentDeadlineInfo},
		outcome:  okOutcome(1),
	}
	trend := &stubAgent{
		name:     model.AgentResearchTrend,
		affinity: []model.IntentKind{model.IntentResearchTrend},
		outcome:  model.AgentOutcome{Status: model.OutcomeOK, Trends: []model.Trend{{Area: "ml", Count: 3}}, Confidence: 0.7},
	}
	return faculty, program, trend
}

func TestRouteDispatchesByAffinity(t *testing.T) {
	faculty, program, trend := searchAgents()
	r, fallback := newTestRouter(config.RouterConfig{AgentTimeoutSecs: 5, MaxMatches: 10}, faculty, program, trend)

	result := r.Route(context.Background(), "Which professors at Stanford work on machine learning?", nil, model.Preferences{})

	require.True(t, result.Classification.Has(model.IntentFacultySearch))
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, model.AgentFaculty, result.Outcomes[0].Agent)
	assert.False(t, result.FellBack)
	assert.Equal(t, 1, faculty.calls)
	assert.Zero(t, program.calls)
	assert.Zero(t, trend.calls)
	assert.Zero(t, fallback.calls)
}

func TestRouteCompoundIntentFansOut(t *testing.T) {
	faculty, program, trend := searchAgents()
	r, _ := newTestRouter(config.RouterConfig{AgentTimeoutSecs: 5, MaxMatches: 10}, faculty, program, trend)

	result := r.Route(context.Background(),
		"Find machine learning professors and tell me the program application deadline", nil, model.Preferences{})

	require.True(t, result.Classification.Has(model.IntentFacultySearch))
	require.True(t, result.Classification.Has(model.IntentDeadlineInfo))
	require.Len(t, result.Outcomes, 2, "one outcome per selected agent")
	assert.Equal(t, model.AgentFaculty, result.Outcomes[0].Agent, "dispatch order is registration order")
	assert.Equal(t, model.AgentProgram, result.Outcomes[1].Agent)
	assert.Equal(t, 1, program.calls, "deadline and program intents share one agent invocation")
}

func TestRouteScoresAgainstTurnCriteria(t *testing.T) {
	faculty, program, trend := searchAgents()
	r, _ := newTestRouter(config.RouterConfig{AgentTimeoutSecs: 5, MaxMatches: 10}, faculty, program, trend)

	stored := model.Preferences{ResearchInterests: []string{"robotics"}}
	r.Route(context.Background(), "Find machine learning professors at Stanford", nil, stored)

	require.Len(t, faculty.seen, 1)
	prefs := faculty.seen[0].Preferences
	assert.Contains(t, prefs.ResearchInterests, "machine learning",
		"a first-turn message scores against what it just stated")
	assert.Contains(t, prefs.ResearchInterests, "robotics", "stored interests survive the fold")
	assert.Contains(t, prefs.TargetUniversities, "Stanford")
}

func TestRouteAmbiguousMessageFallsBack(t *testing.T) {
	faculty, program, trend := searchAgents()
	r, fallback := newTestRouter(config.RouterConfig{AgentTimeoutSecs: 5}, faculty, program, trend)

	result := r.Route(context.Background(), "thanks, that helps!", nil, model.Preferences{})

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, model.AgentConversational, result.Outcomes[0].Agent)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, model.IntentGeneral, result.Classification.Intents[0].Kind)
}

func TestRouteAgentTimeout(t *testing.T) {
	blocked := &stubAgent{
		name:     model.AgentFaculty,
		affinity: []model.IntentKind{model.IntentFacultySearch},
		block:    true,
	}
	program := &stubAgent{
		name:     model.AgentProgram,
		affinity: []model.IntentKind{model.IntentProgramSearch},
		outcome:  okOutcome(1),
	}
	r, _ := newTestRouter(config.RouterConfig{AgentTimeoutSecs: 1, MaxMatches: 10}, blocked, program)

	start := time.Now()
	result := r.Route(context.Background(),
		"Find machine learning professors and masters program requirements", nil, model.Preferences{})
	require.Less(t, time.Since(start), 3*time.Second)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, model.OutcomeTimeout, result.Outcomes[0].Status)
	assert.Empty(t, result.Outcomes[0].Matches, "timed-out agents contribute no partial results")
	assert.Equal(t, model.OutcomeOK, result.Outcomes[1].Status, "one slow agent does not sink the others")
	assert.False(t, result.FellBack)
}

func TestRouteAllAgentsFailedFallsBack(t *testing.T) {
	broken := &stubAgent{
		name:     model.AgentFaculty,
		affinity: []model.IntentKind{model.IntentFacultySearch},
		outcome:  model.AgentOutcome{Status: model.OutcomeError, Note: "store down"},
	}
	r, fallback := newTestRouter(config.RouterConfig{AgentTimeoutSecs: 5}, broken)

	result := r.Route(context.Background(), "Which professors work on robotics?", nil, model.Preferences{})

	require.True(t, result.FellBack)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, model.OutcomeError, result.Outcomes[0].Status)
	assert.Equal(t, model.AgentConversational, result.Outcomes[1].Agent)
	assert.Equal(t, 1, fallback.calls)
}

func TestTurnIllegalTransitionPanics(t *testing.T) {
	run := &turn{state: StateIdle}
	require.Panics(t, func() { run.advance(StateDone) })
}
