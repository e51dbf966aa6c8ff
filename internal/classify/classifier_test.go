package classify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/pkg/anthropic"
)

type fakeCompleter struct {
	text string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, req anthropic.CompleteRequest) (string, error) {
	return f.text, f.err
}

func newTestClassifier(provider anthropic.Completer) *Classifier {
	return New(provider, config.ClassifierConfig{LexicalThreshold: 0.55})
}

func TestClassifyFacultySearch(t *testing.T) {
	c := newTestClassifier(nil)
	cls := c.Classify(context.Background(), "Find me CS professors at Stanford", nil)

	require.True(t, cls.Has(model.IntentFacultySearch))
	assert.GreaterOrEqual(t, cls.Confidence(), 0.55)
	assert.Contains(t, cls.Criteria.Universities, "Stanford")
}

func TestClassifyCompoundIntent(t *testing.T) {
	c := newTestClassifier(nil)
	cls := c.Classify(context.Background(), "Find ML professors at Stanford and show CS deadlines", nil)

	assert.True(t, cls.Has(model.IntentFacultySearch))
	assert.True(t, cls.Has(model.IntentDeadlineInfo))
	assert.Contains(t, cls.Criteria.ResearchAreas, "machine learning")
}

func TestClassifyAmbiguousFallsSoft(t *testing.T) {
	c := newTestClassifier(nil)
	cls := c.Classify(context.Background(), "hello there", nil)

	require.Len(t, cls.Intents, 1)
	assert.Equal(t, model.IntentGeneral, cls.Intents[0].Kind)
	assert.Zero(t, cls.Confidence())
}

func TestClassifyProviderFallback(t *testing.T) {
	t.Run("UsedWhenLexicalLow", func(t *testing.T) {
		c := newTestClassifier(&fakeCompleter{
			text: `{"intents":[{"kind":"program_search","confidence":0.8}]}`,
		})
		cls := c.Classify(context.Background(), "what should I do next year", nil)

		require.True(t, cls.Has(model.IntentProgramSearch))
		assert.True(t, cls.ProviderAssisted)
	})

	t.Run("ProviderErrorDegradesToGeneral", func(t *testing.T) {
		c := newTestClassifier(&fakeCompleter{err: eris.New("boom")})
		cls := c.Classify(context.Background(), "what should I do next year", nil)

		assert.True(t, cls.Has(model.IntentGeneral))
		assert.Zero(t, cls.Confidence())
	})

	t.Run("UnparseableDiscarded", func(t *testing.T) {
		c := newTestClassifier(&fakeCompleter{text: "I think this is a faculty question."})
		cls := c.Classify(context.Background(), "what should I do next year", nil)

		assert.True(t, cls.Has(model.IntentGeneral))
	})

	t.Run("WrapsProseAroundJSON", func(t *testing.T) {
		c := newTestClassifier(&fakeCompleter{
			text: "Sure: {\"intents\":[{\"kind\":\"research_trend\",\"confidence\":0.7}]} hope that helps",
		})
		cls := c.Classify(context.Background(), "what should I do next year", nil)

		assert.True(t, cls.Has(model.IntentResearchTrend))
	})

	t.Run("InvalidKindsFiltered", func(t *testing.T) {
		c := newTestClassifier(&fakeCompleter{
			text: `{"intents":[{"kind":"weather","confidence":0.9}]}`,
		})
		cls := c.Classify(context.Background(), "what should I do next year", nil)

		assert.True(t, cls.Has(model.IntentGeneral))
	})
}

func TestExtractCriteria(t *testing.T) {
	crit := ExtractCriteria("Looking for a funded PhD in NLP at MIT or Berkeley, no GRE, hiring now")

	assert.ElementsMatch(t, []string{"MIT", "Berkeley"}, crit.Universities)
	assert.Contains(t, crit.ResearchAreas, "natural language processing")
	assert.Equal(t, []string{"PhD"}, crit.DegreeTypes)
	assert.True(t, crit.FundingNeeded)
	assert.True(t, crit.NoGRE)
	assert.True(t, crit.HiringFocus)
}

func TestExtractCriteriaWordBoundaryAliases(t *testing.T) {
	// "ml" must match as a word, not inside e.g. "html".
	crit := ExtractCriteria("I write html pages")
	assert.Empty(t, crit.ResearchAreas)

	crit = ExtractCriteria("interested in ml")
	assert.Contains(t, crit.ResearchAreas, "machine learning")
}
