// Package router turns a classified message into a set of agent outcomes.
// Each turn walks a fixed state machine; agents run concurrently under a
// per-agent deadline, and a turn that selects nothing or loses every agent
// falls back to the conversational agent instead of failing.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gradpath/advisor/internal/agent"
	"github.com/gradpath/advisor/internal/classify"
	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/model"
)

// State is one phase of a routed turn.
type State string

const (
	StateIdle           State = "idle"
	StateClassifying    State = "classifying"
	StateDispatching    State = "dispatching"
	StateAwaitingAgents State = "awaiting_agents"
	StateComposing      State = "composing"
	StateFallback       State = "fallback"
	StateDone           State = "done"
)

// transitions is the legal state graph. An illegal transition is a
// programming error and panics in place.
var transitions = map[State][]State{
	StateIdle:           {StateClassifying},
	StateClassifying:    {StateDispatching, StateFallback},
	StateDispatching:    {StateAwaitingAgents},
	StateAwaitingAgents: {StateComposing, StateFallback},
	StateFallback:       {StateComposing},
	StateComposing:      {StateDone},
}

// Router owns intent classification and the agent fan-out for one process.
// It never retries an agent; retry policy lives in the provider client.
type Router struct {
	classifier *classify.Classifier
	agents     []agent.Agent
	fallback   agent.Agent
	cfg        config.RouterConfig
}

// New creates a Router. fallback answers turns no specialized agent takes;
// it may also appear in agents to serve its own intents directly.
func New(classifier *classify.Classifier, fallback agent.Agent, cfg config.RouterConfig, agents ...agent.Agent) *Router {
	return &Router{
		classifier: classifier,
		agents:     agents,
		fallback:   fallback,
		cfg:        cfg,
	}
}

// Result is everything a routed turn produced, in dispatch order.
type Result struct {
	Classification model.Classification
	Outcomes       []model.AgentOutcome
	// FellBack is set when the conversational fallback answered because no
	// specialized agent was selected or every selected agent failed.
	FellBack bool
}

// Route classifies the message, dispatches the matching agents, and
// collects their terminal outcomes.
func (r *Router) Route(ctx context.Context, message string, conv *model.Conversation, prefs model.Preferences) Result {
	run := &turn{state: StateIdle}

	run.advance(StateClassifying)
	cls := r.classifier.Classify(ctx, message, conv)

	// Criteria stated in this message score this turn; the stored snapshot
	// picks them up only when the turn persists.
	prefs.Merge(cls.Criteria)

	req := agent.Request{
		Message:        message,
		Classification: cls,
		Preferences:    prefs,
		Conversation:   conv,
		MaxMatches:     r.cfg.MaxMatches,
	}

	selected := r.selectAgents(cls)
	if len(selected) == 0 {
		run.advance(StateFallback)
		outcome := r.runFallback(ctx, req)
		run.advance(StateComposing)
		run.advance(StateDone)
		return Result{Classification: cls, Outcomes: []model.AgentOutcome{outcome}, FellBack: true}
	}

	run.advance(StateDispatching)
	run.advance(StateAwaitingAgents)
	outcomes := r.dispatch(ctx, selected, req)

	result := Result{Classification: cls, Outcomes: outcomes}
	if allFailed(outcomes) && !contains(selected, r.fallback.Name()) {
		run.advance(StateFallback)
		result.Outcomes = append(result.Outcomes, r.runFallback(ctx, req))
		result.FellBack = true
	}

	run.advance(StateComposing)
	run.advance(StateDone)
	return result
}

// selectAgents returns the agents whose affinity intersects the classified
// intents, in registration order, each at most once.
func (r *Router) selectAgents(cls model.Classification) []agent.Agent {
	var selected []agent.Agent
	for _, a := range r.agents {
		if affinityMatches(a, cls) {
			selected = append(selected, a)
		}
	}
	return selected
}

// dispatch fans the request out and waits for every agent. A deadline miss
// becomes an OutcomeTimeout with empty results; partial agent output is
// discarded wholesale.
func (r *Router) dispatch(ctx context.Context, selected []agent.Agent, req agent.Request) []model.AgentOutcome {
	outcomes := make([]model.AgentOutcome, len(selected))

	g := new(errgroup.Group)
	g.SetLimit(len(selected))
	for i, a := range selected {
		g.Go(func() error {
			outcomes[i] = r.runAgent(ctx, a, req)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// runAgent invokes one agent under the per-agent deadline. A hung agent is
// abandoned: its goroutine keeps the cancelled context, its result is
// dropped.
func (r *Router) runAgent(ctx context.Context, a agent.Agent, req agent.Request) model.AgentOutcome {
	timeout := time.Duration(r.cfg.AgentTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan model.AgentOutcome, 1)
	start := time.Now()
	go func() {
		done <- a.Handle(actx, req)
	}()

	select {
	case outcome := <-done:
		zap.L().Debug("router: agent finished",
			zap.String("agent", string(a.Name())),
			zap.String("status", string(outcome.Status)),
			zap.Int("matches", len(outcome.Matches)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return outcome
	case <-actx.Done():
		zap.L().Warn("router: agent deadline exceeded",
			zap.String("agent", string(a.Name())),
			zap.Duration("timeout", timeout),
		)
		return model.AgentOutcome{
			Agent:  a.Name(),
			Status: model.OutcomeTimeout,
			Note:   "agent deadline exceeded",
		}
	}
}

func (r *Router) runFallback(ctx context.Context, req agent.Request) model.AgentOutcome {
	outcome := r.runAgent(ctx, r.fallback, req)
	if outcome.Note == "" {
		outcome.Note = "conversational fallback"
	}
	return outcome
}

// turn tracks the state of one routed message.
type turn struct {
	state State
}

func (t *turn) advance(next State) {
	for _, allowed := range transitions[t.state] {
		if allowed == next {
			zap.L().Debug("router: state transition",
				zap.String("from", string(t.state)),
				zap.String("to", string(next)),
			)
			t.state = next
			return
		}
	}
	panic("router: illegal transition " + string(t.state) + " -> " + string(next))
}

func affinityMatches(a agent.Agent, cls model.Classification) bool {
	for _, kind := range a.Affinity() {
		if cls.Has(kind) {
			return true
		}
	}
	return false
}

func allFailed(outcomes []model.AgentOutcome) bool {
	for _, o := range outcomes {
		if o.Status != model.OutcomeError && o.Status != model.OutcomeTimeout {
			return false
		}
	}
	return len(outcomes) > 0
}

func contains(agents []agent.Agent, name model.AgentName) bool {
	for _, a := range agents {
		if a.Name() == name {
			return true
		}
	}
	return false
}
