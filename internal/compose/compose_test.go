package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
)

var testCfg = config.RouterConfig{MaxMatches: 10, DegradedCeiling: 0.6}

func match(id string, kind model.RecordType, name string, score float64) model.MatchResult {
	return model.MatchResult{
		RecordID:   id,
		RecordType: kind,
		Name:       name,
		Score:      score,
		StaleAsOf:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestComposeMergesAndSplitsMatches(t *testing.T) {
	c := New(testCfg)
	outcomes := []model.AgentOutcome{
		{
			Agent: model.AgentFaculty, Status: model.OutcomeOK, Confidence: 0.8,
			Matches: []model.MatchResult{
				match("f-1", model.RecordFaculty, "Alice Chen", 0.84),
				match("f-2", model.RecordFaculty, "Carol Zhou", 0.5),
			},
		},
		{
			Agent: model.AgentProgram, Status: model.OutcomeOK, Confidence: 0.7,
			Matches: []model.MatchResult{
				match("p-1", model.RecordProgram, "CS PhD", 0.9),
			},
		},
	}

	resp := c.Compose("sess-1", outcomes)

	assert.Equal(t, "sess-1", resp.SessionID)
	require.Len(t, resp.FacultyMatches, 2)
	require.Len(t, resp.ProgramMatches, 1)
	assert.Equal(t, "Alice Chen", resp.FacultyMatches[0].Name)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, 2, resp.Sources[0].Matches)
	assert.Contains(t, resp.Response, "2 faculty matches")
	assert.Contains(t, resp.Response, "1 program match")
}

func TestComposeDedupeKeepsHigherScore(t *testing.T) {
	c := New(testCfg)
	outcomes := []model.AgentOutcome{
		{
			Agent: model.AgentFaculty, Status: model.OutcomeOK, Confidence: 0.8,
			Matches: []model.MatchResult{match("f-1", model.RecordFaculty, "Alice Chen", 0.6)},
		},
		{
			Agent: model.AgentResearchTrend, Status: model.OutcomeOK, Confidence: 0.7,
			Matches: []model.MatchResult{match("f-1", model.RecordFaculty, "Alice Chen", 0.84)},
		},
	}

	resp := c.Compose("sess-1", outcomes)
	require.Len(t, resp.FacultyMatches, 1)
	assert.InDelta(t, 0.84, resp.FacultyMatches[0].Score, 1e-9)
}

func TestComposeMatchCapPerSection(t *testing.T) {
	c := New(config.RouterConfig{MaxMatches: 2, DegradedCeiling: 0.6})
	var matches []model.MatchResult
	for i, name := range []string{"A", "B", "C", "D"} {
		matches = append(matches, match(name, model.RecordFaculty, name, 0.9-float64(i)*0.1))
	}
	resp := c.Compose("s", []model.AgentOutcome{
		{Agent: model.AgentFaculty, Status: model.OutcomeOK, Confidence: 0.8, Matches: matches},
	})
	require.Len(t, resp.FacultyMatches, 2)
	assert.Equal(t, "A", resp.FacultyMatches[0].Name)
	assert.Equal(t, "B", resp.FacultyMatches[1].Name)
}

func TestComposeConfidenceWeighting(t *testing.T) {
	c := New(testCfg)

	t.Run("match counts weight the average", func(t *testing.T) {
		resp := c.Compose("s", []model.AgentOutcome{
			{
				Agent: model.AgentFaculty, Status: model.OutcomeOK, Confidence: 0.9,
				Matches: []model.MatchResult{
					match("f-1", model.RecordFaculty, "A", 0.9),
					match("f-2", model.RecordFaculty, "B", 0.9),
					match("f-3", model.RecordFaculty, "C", 0.9),
				},
			},
			{
				Agent: model.AgentProgram, Status: model.OutcomeOK, Confidence: 0.3,
				Matches: []model.MatchResult{match("p-1", model.RecordProgram, "P", 0.3)},
			},
		})
		// (3*0.9 + 1*0.3) / 4
		assert.InDelta(t, 0.75, resp.ConfidenceScore, 1e-9)
	})

	t.Run("zero-result agents carry no weight", func(t *testing.T) {
		resp := c.Compose("s", []model.AgentOutcome{
			{
				Agent: model.AgentFaculty, Status: model.OutcomeOK, Confidence: 0.9,
				Matches: []model.MatchResult{match("f-1", model.RecordFaculty, "A", 0.9)},
			},
			{Agent: model.AgentProgram, Status: model.OutcomeOK, Confidence: 0.2},
		})
		assert.InDelta(t, 0.9, resp.ConfidenceScore, 1e-9)
	})

	t.Run("no matches anywhere averages contributors equally", func(t *testing.T) {
		resp := c.Compose("s", []model.AgentOutcome{
			{Agent: model.AgentConversational, Status: model.OutcomeOK, Confidence: 0.5, Narrative: "hi"},
		})
		assert.InDelta(t, 0.5, resp.ConfidenceScore, 1e-9)
	})

	t.Run("bounds hold", func(t *testing.T) {
		resp := c.Compose("s", nil)
		assert.GreaterOrEqual(t, resp.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, resp.ConfidenceScore, 1.0)
	})
}

func TestComposeDegradedCeiling(t *testing.T) {
	c := New(testCfg)
	outcomes := []model.AgentOutcome{
		{
			Agent: model.AgentFaculty, Status: model.OutcomeOK, Confidence: 0.95,
			Matches: []model.MatchResult{match("f-1", model.RecordFaculty, "A", 0.95)},
		},
		{Agent: model.AgentProgram, Status: model.OutcomeTimeout, Note: "agent deadline exceeded"},
	}

	resp := c.Compose("s", outcomes)
	assert.True(t, resp.Degraded)
	assert.InDelta(t, 0.6, resp.ConfidenceScore, 1e-9, "timeout caps confidence at the ceiling")
	assert.Less(t, resp.ConfidenceScore, 0.95, "degraded turn scores below the healthy average")
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, model.OutcomeTimeout, resp.Sources[1].Status)
}

func TestComposeStaleCacheCapsConfidence(t *testing.T) {
	c := New(testCfg)
	resp := c.Compose("s", []model.AgentOutcome{
		{
			Agent: model.AgentFaculty, Status: model.OutcomeDegraded, Confidence: 0.9,
			Note:    "served cached faculty records",
			Matches: []model.MatchResult{match("f-1", model.RecordFaculty, "A", 0.9)},
		},
	})
	assert.True(t, resp.Degraded)
	assert.InDelta(t, 0.6, resp.ConfidenceScore, 1e-9)
	assert.NotEmpty(t, resp.FacultyMatches, "degraded results still surface")
}

func TestComposeNarrativeMerging(t *testing.T) {
	c := New(testCfg)
	resp := c.Compose("s", []model.AgentOutcome{
		{Agent: model.AgentResearchTrend, Status: model.OutcomeOK, Confidence: 0.7,
			Trends: []model.Trend{{Area: "machine learning", Count: 5}}, Narrative: "ML leads."},
		{Agent: model.AgentConversational, Status: model.OutcomeOK, Confidence: 0.5, Narrative: "Ask me more."},
	})
	assert.Equal(t, "ML leads.\n\nAsk me more.", resp.Response)
	require.Len(t, resp.Trends, 1)
}

func TestComposeEmptyDegradedTurn(t *testing.T) {
	c := New(testCfg)
	resp := c.Compose("s", []model.AgentOutcome{
		{Agent: model.AgentFaculty, Status: model.OutcomeError, Note: "store down"},
	})
	assert.True(t, resp.Degraded)
	assert.Zero(t, resp.ConfidenceScore)
	assert.Contains(t, resp.Response, "couldn't complete")
	assert.Empty(t, resp.FacultyMatches)
}
