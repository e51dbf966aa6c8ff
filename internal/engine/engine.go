// Package engine orchestrates one conversational turn: load context, route
// the message, compose the reply, persist the exchange. Concurrency rules
// live here: the newest turn of a conversation wins, and a failed persist
// degrades the response instead of losing it.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/compose"
	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/convo"
	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/internal/router"
)

// ErrSuperseded is returned when a newer message on the same conversation
// cancelled this turn. Nothing was persisted.
var ErrSuperseded = eris.New("engine: turn superseded by a newer message")

// Engine processes applicant messages end to end.
type Engine struct {
	contexts convo.ContextStore
	router   *router.Router
	composer *compose.Composer
	cfg      config.RouterConfig

	mu       sync.Mutex
	inflight map[string]*inflightTurn

	now func() time.Time
}

type inflightTurn struct {
	cancel context.CancelFunc
}

// New creates an Engine.
func New(contexts convo.ContextStore, r *router.Router, c *compose.Composer, cfg config.RouterConfig) *Engine {
	return &Engine{
		contexts: contexts,
		router:   r,
		composer: c,
		cfg:      cfg,
		inflight: make(map[string]*inflightTurn),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process answers one applicant message. An empty conversationID starts a
// new conversation. A second message arriving for the same conversation
// while this one is in flight cancels it; the cancelled turn persists
// nothing and returns ErrSuperseded.
func (e *Engine) Process(ctx context.Context, conversationID, message string) (*model.ComposedResponse, error) {
	conv, err := e.loadOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	tctx, finish := e.begin(ctx, conv.ID)
	defer finish()

	if timeout := time.Duration(e.cfg.TurnTimeoutSecs) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, timeout)
		defer cancel()
	}

	result := e.router.Route(tctx, message, conv, conv.Preferences)
	resp := e.composer.Compose(conv.ID, result.Outcomes)

	if tctx.Err() == context.Canceled && ctx.Err() == nil {
		return nil, ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.persist(ctx, conv, message, result, resp)
	return resp, nil
}

// Conversation loads a conversation snapshot for read-only use.
func (e *Engine) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	return e.contexts.Load(ctx, id)
}

// Archive retires a conversation.
func (e *Engine) Archive(ctx context.Context, id string) error {
	return e.contexts.Archive(ctx, id)
}

func (e *Engine) loadOrCreate(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return e.contexts.Create(ctx)
	}
	return e.contexts.Load(ctx, id)
}

// begin registers this turn as the conversation's in-flight one, cancelling
// any previous turn still running.
func (e *Engine) begin(ctx context.Context, conversationID string) (context.Context, func()) {
	tctx, cancel := context.WithCancel(ctx)
	entry := &inflightTurn{cancel: cancel}

	e.mu.Lock()
	if prev, ok := e.inflight[conversationID]; ok {
		zap.L().Info("engine: cancelling superseded turn", zap.String("conversation_id", conversationID))
		prev.cancel()
	}
	e.inflight[conversationID] = entry
	e.mu.Unlock()

	finish := func() {
		e.mu.Lock()
		if e.inflight[conversationID] == entry {
			delete(e.inflight, conversationID)
		}
		e.mu.Unlock()
		cancel()
	}
	return tctx, finish
}

// persist appends the applicant and system turns atomically, retrying once
// on a version conflict. A second conflict marks the response unpersisted
// rather than failing the already-computed answer.
func (e *Engine) persist(ctx context.Context, conv *model.Conversation, message string, result router.Result, resp *model.ComposedResponse) {
	now := e.now()
	turns := []model.Turn{
		{
			ID:        uuid.New().String(),
			Role:      model.RoleApplicant,
			Text:      message,
			CreatedAt: now,
			Intents:   result.Classification.Intents,
		},
		{
			ID:         uuid.New().String(),
			Role:       model.RoleSystem,
			Text:       resp.Response,
			CreatedAt:  now,
			Matches:    append(append([]model.MatchResult{}, resp.FacultyMatches...), resp.ProgramMatches...),
			Confidence: resp.ConfidenceScore,
			Sources:    resp.Sources,
		},
	}

	prefs := conv.Preferences
	prefs.Merge(result.Classification.Criteria)

	err := e.contexts.Append(ctx, conv.ID, turns, prefs, conv.Version)
	if eris.Is(err, convo.ErrConcurrentModification) {
		fresh, loadErr := e.contexts.Load(ctx, conv.ID)
		if loadErr != nil {
			err = loadErr
		} else {
			prefs = fresh.Preferences
			prefs.Merge(result.Classification.Criteria)
			err = e.contexts.Append(ctx, conv.ID, turns, prefs, fresh.Version)
		}
	}
	if err != nil {
		zap.L().Error("engine: failed to persist turn",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		resp.Unpersisted = true
	}
}
