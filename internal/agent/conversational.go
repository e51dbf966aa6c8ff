package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/pkg/anthropic"
)

// Conversational confidence levels: a free-form reply with no structured
// backing is worth less than one grounded in earlier findings.
const (
	ungroundedConfidence = 0.5
	groundedConfidence   = 0.65
)

// fallbackReply is used when no completion provider is available.
const fallbackReply = "I can help you find faculty, compare graduate programs, check application deadlines, and look at research trends. What are you interested in?"

// ConversationalAgent answers general questions and is the router's
// fallback when no specialized agent applies. Replies referencing earlier
// results are grounded in the stored turns, never re-generated.
type ConversationalAgent struct {
	completer anthropic.Completer
}

// NewConversational creates the fallback dialogue agent. completer may be
// nil; the agent then serves a canned reply.
func NewConversational(completer anthropic.Completer) *ConversationalAgent {
	return &ConversationalAgent{completer: completer}
}

func (a *ConversationalAgent) Name() model.AgentName { return model.AgentConversational }

func (a *ConversationalAgent) Affinity() []model.IntentKind {
	return []model.IntentKind{model.IntentGeneral, model.IntentDocumentReview}
}

func (a *ConversationalAgent) Handle(ctx context.Context, req Request) model.AgentOutcome {
	grounding := priorResults(req.Conversation)
	confidence := ungroundedConfidence
	if grounding != "" {
		confidence = groundedConfidence
	}

	if a.completer == nil {
		return model.AgentOutcome{
			Agent:      a.Name(),
			Status:     model.OutcomeOK,
			Narrative:  fallbackReply,
			Confidence: ungroundedConfidence,
		}
	}

	reply, err := a.completer.Complete(ctx, anthropic.CompleteRequest{
		System:    conversationalSystem(req),
		Prompt:    req.Message,
		Grounding: grounding,
		MaxTokens: 700,
	})
	if err != nil {
		if anthropic.IsTimeout(err) {
			return model.AgentOutcome{
				Agent:  a.Name(),
				Status: model.OutcomeTimeout,
				Note:   "completion provider timed out",
			}
		}
		zap.L().Warn("conversational agent: provider failed", zap.Error(err))
		return model.AgentOutcome{
			Agent:      a.Name(),
			Status:     model.OutcomeDegraded,
			Narrative:  fallbackReply,
			Confidence: ungroundedConfidence,
			Note:       "completion provider unavailable",
		}
	}

	return model.AgentOutcome{
		Agent:      a.Name(),
		Status:     model.OutcomeOK,
		Narrative:  reply,
		Confidence: confidence,
	}
}

func conversationalSystem(req Request) string {
	var b strings.Builder
	b.WriteString("You are a graduate admissions advisor. Answer from the grounding data when present; never invent faculty, programs, scores, or deadlines.")
	if req.Classification.Has(model.IntentDocumentReview) {
		b.WriteString(" The applicant is asking about application documents (statement of purpose, CV, letters). Give concrete, structural advice.")
	}
	if len(req.Preferences.ResearchInterests) > 0 {
		fmt.Fprintf(&b, " The applicant's stated interests: %s.", strings.Join(req.Preferences.ResearchInterests, ", "))
	}
	return b.String()
}

// priorResults serializes the most recent structured findings so follow-up
// questions are answered from stored state.
func priorResults(conv *model.Conversation) string {
	if conv == nil {
		return ""
	}
	last := conv.LastResults()
	if last == nil {
		return ""
	}
	payload, err := json.Marshal(last.Matches)
	if err != nil {
		return ""
	}
	return "Results already shown to the applicant:\n" + string(payload)
}
