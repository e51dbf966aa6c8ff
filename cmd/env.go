package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/agent"
	"github.com/gradpath/advisor/internal/classify"
	"github.com/gradpath/advisor/internal/compose"
	"github.com/gradpath/advisor/internal/convo"
	"github.com/gradpath/advisor/internal/engine"
	"github.com/gradpath/advisor/internal/records"
	"github.com/gradpath/advisor/internal/router"
	"github.com/gradpath/advisor/pkg/anthropic"
)

// env wires the full processing stack for a command invocation.
type env struct {
	Records  records.Store
	Seeder   records.Seeder
	Contexts convo.ContextStore
	Engine   *engine.Engine
}

// initEnv builds the stores for the configured driver and assembles the
// engine on top of them.
func initEnv(ctx context.Context) (*env, error) {
	recordStore, seeder, contextStore, err := initStores(ctx)
	if err != nil {
		return nil, err
	}

	var completer anthropic.Completer
	if cfg.Anthropic.Key != "" {
		completer = anthropic.NewClient(anthropic.Config{
			Key:        cfg.Anthropic.Key,
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			Timeout:    time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Anthropic.RatePerSec,
		})
	} else {
		zap.L().Warn("no anthropic key configured, narratives and classifier fallback disabled")
	}

	cached := records.NewCached(recordStore)
	conversational := agent.NewConversational(completer)

	r := router.New(
		classify.New(completer, cfg.Classifier),
		conversational,
		cfg.Router,
		agent.NewFaculty(cached, cfg.Scoring, completer),
		agent.NewProgram(cached, cfg.Scoring, completer),
		agent.NewTrend(cached, completer),
		conversational,
	)

	return &env{
		Records:  cached,
		Seeder:   seeder,
		Contexts: contextStore,
		Engine:   engine.New(contextStore, r, compose.New(cfg.Router), cfg.Router),
	}, nil
}

func initStores(ctx context.Context) (records.Store, records.Seeder, convo.ContextStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		recordStore, err := records.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		contextStore, err := convo.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			recordStore.Close()
			return nil, nil, nil, err
		}
		return recordStore, recordStore, contextStore, nil

	case "sqlite", "":
		recordStore, err := records.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		contextStore, err := convo.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			recordStore.Close()
			return nil, nil, nil, err
		}
		return recordStore, recordStore, contextStore, nil

	case "memory":
		recordStore := records.NewMemory()
		return recordStore, recordStore, convo.NewMemory(), nil

	default:
		return nil, nil, nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (e *env) Migrate(ctx context.Context) error {
	if err := e.Records.Migrate(ctx); err != nil {
		return err
	}
	type migrator interface{ Migrate(context.Context) error }
	if m, ok := e.Contexts.(migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

func (e *env) Close() {
	if err := e.Records.Close(); err != nil {
		zap.L().Warn("closing record store", zap.Error(err))
	}
	if err := e.Contexts.Close(); err != nil {
		zap.L().Warn("closing context store", zap.Error(err))
	}
}
