// Package classify maps applicant messages to ranked intent sets. Lexical
// rules run first; the completion provider is consulted only when they are
// not confident enough, and a double miss degrades to the general intent
// rather than failing the turn.
package classify

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/pkg/anthropic"
)

// Lexical confidence shape: one keyword hit is a moderate signal, each
// additional hit strengthens it.
const (
	baseHitConfidence  = 0.6
	extraHitConfidence = 0.15
	maxLexicalScore    = 0.95
)

var intentKeywords = map[model.IntentKind][]string{
	model.IntentFacultySearch:  {"professor", "faculty", "advisor", "supervisor", "lab", "pi "},
	model.IntentProgramSearch:  {"program", "degree", "admission", "requirements", "tuition", "curriculum"},
	model.IntentResearchTrend:  {"trend", "trending", "hot topic", "emerging", "research direction"},
	model.IntentDeadlineInfo:   {"deadline", "due date", "application date", "when to apply"},
	model.IntentDocumentReview: {"review my", "statement of purpose", "sop", "resume", "cv feedback"},
}

// Classifier produces intent sets for applicant messages.
type Classifier struct {
	provider  anthropic.Completer // nil disables the provider fallback
	threshold float64
}

// New creates a classifier. provider may be nil, in which case low-
// confidence messages degrade straight to the general intent.
func New(provider anthropic.Completer, cfg config.ClassifierConfig) *Classifier {
	threshold := cfg.LexicalThreshold
	if threshold <= 0 {
		threshold = 0.55
	}
	return &Classifier{provider: provider, threshold: threshold}
}

// Classify maps a message plus conversation context to a ranked intent
// set. It never returns an error: ambiguity is answered with the general
// intent at confidence 0.
func (c *Classifier) Classify(ctx context.Context, message string, conv *model.Conversation) model.Classification {
	criteria := ExtractCriteria(message)

	cls := c.lexical(message, criteria)
	if cls.Confidence() >= c.threshold {
		return cls
	}

	if c.provider != nil {
		if pcls, ok := c.providerAssist(ctx, message, conv); ok && pcls.Confidence() >= c.threshold {
			pcls.Criteria = criteria
			pcls.ProviderAssisted = true
			return pcls
		}
	}

	// Both passes below threshold: soft fallback, never a hard failure.
	return model.Classification{
		Intents:  []model.Intent{{Kind: model.IntentGeneral, Confidence: 0}},
		Criteria: criteria,
	}
}

func (c *Classifier) lexical(message string, criteria model.SearchCriteria) model.Classification {
	lower := " " + strings.ToLower(message) + " "

	var intents []model.Intent
	for _, kind := range intentOrder {
		hits := 0
		for _, kw := range intentKeywords[kind] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		// Extracted criteria reinforce their natural intent even without an
		// explicit keyword ("Anyone at Stanford doing NLP?").
		if kind == model.IntentFacultySearch && hits == 0 && criteria.HiringFocus {
			hits = 1
		}
		if hits == 0 {
			continue
		}
		conf := baseHitConfidence + extraHitConfidence*float64(hits-1)
		if conf > maxLexicalScore {
			conf = maxLexicalScore
		}
		intents = append(intents, model.Intent{Kind: kind, Confidence: conf})
	}

	return model.Classification{Intents: intents, Criteria: criteria}
}

const classifyPrompt = `Classify this graduate admissions question into one or more intents:
faculty_search, program_search, research_trend, deadline_info, document_review, general.

Reply with JSON only: {"intents":[{"kind":"...","confidence":0.0}]}`

// providerAssist asks the completion provider for a classification. The
// provider output is parsed strictly; anything unparseable is discarded.
func (c *Classifier) providerAssist(ctx context.Context, message string, conv *model.Conversation) (model.Classification, bool) {
	grounding := "Question: " + message
	if conv != nil && len(conv.Preferences.ResearchInterests) > 0 {
		grounding += "\nKnown interests: " + strings.Join(conv.Preferences.ResearchInterests, ", ")
	}

	low := 0.0
	text, err := c.provider.Complete(ctx, anthropic.CompleteRequest{
		System:      "You classify graduate-admissions questions. Output JSON only.",
		Prompt:      classifyPrompt,
		Grounding:   grounding,
		MaxTokens:   200,
		Temperature: &low,
	})
	if err != nil {
		zap.L().Warn("classify: provider fallback failed", zap.Error(err))
		return model.Classification{}, false
	}

	var parsed struct {
		Intents []model.Intent `json:"intents"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		zap.L().Warn("classify: unparseable provider classification", zap.Error(err))
		return model.Classification{}, false
	}

	var intents []model.Intent
	for _, in := range parsed.Intents {
		if !validKind(in.Kind) || in.Confidence < 0 || in.Confidence > 1 {
			continue
		}
		intents = append(intents, in)
	}
	if len(intents) == 0 {
		return model.Classification{}, false
	}
	return model.Classification{Intents: intents}, true
}

// extractJSON trims prose the model may wrap around the JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func validKind(k model.IntentKind) bool {
	switch k {
	case model.IntentFacultySearch, model.IntentProgramSearch,
		model.IntentResearchTrend, model.IntentDeadlineInfo,
		model.IntentDocumentReview, model.IntentGeneral:
		return true
	}
	return false
}

var intentOrder = []model.IntentKind{
	model.IntentFacultySearch,
	model.IntentProgramSearch,
	model.IntentResearchTrend,
	model.IntentDeadlineInfo,
	model.IntentDocumentReview,
}
