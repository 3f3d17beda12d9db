package main

import (
	"context"
	"errors"

	"github.com/MimeLyc/subs-ai/internal/batch"
	"github.com/MimeLyc/subs-ai/internal/config"
	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/media"
	"github.com/MimeLyc/subs-ai/internal/persistence"
	"github.com/MimeLyc/subs-ai/internal/quarantine"
	"github.com/MimeLyc/subs-ai/internal/segment"
	"github.com/MimeLyc/subs-ai/internal/service"
	"github.com/MimeLyc/subs-ai/internal/state"
	"github.com/MimeLyc/subs-ai/internal/tokenizer"
	"github.com/MimeLyc/subs-ai/internal/translator"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

// app owns the state lock for the lifetime of one command.
type app struct {
	pipeline *service.Pipeline
	lock     *persistence.Lock
	close    func() error
}

func (a *app) Close() error {
	return errors.Join(a.close(), a.lock.Release())
}

func openState(ctx context.Context, cfg *config.Config) (*state.State, func() error, error) {
	backend, err := persistence.Open(cfg.State.Backend, cfg.State.Dir)
	if err != nil {
		return nil, nil, service.WrapError(err, service.ErrConfig, "open state backend")
	}
	st, err := state.Load(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, nil, service.WrapError(err, service.ErrFileRead, "load state")
	}
	return st, backend.Close, nil
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	lock, err := persistence.AcquireLock(cfg.State.Dir)
	if err != nil {
		return nil, err
	}
	st, closeState, err := openState(ctx, cfg)
	if err != nil {
		lock.Release()
		return nil, err
	}

	pipeline, err := newPipeline(cfg, st)
	if err != nil {
		closeState()
		lock.Release()
		return nil, err
	}
	return &app{pipeline: pipeline, lock: lock, close: closeState}, nil
}

func newPipeline(cfg *config.Config, st *state.State) (*service.Pipeline, error) {
	system := translator.SystemPrompt(cfg.Translate.TargetLanguage, cfg.Translate.Extra)
	policy := &quarantine.Policy{
		Counter:   st.Errors,
		Log:       quarantine.NewLog(cfg.State.Dir),
		Threshold: cfg.Runtime.QuarantineThreshold,
		System:    system,
	}

	orchestrator := &service.FileOrchestrator{
		State:          st,
		Segmenter:      segment.New(tokenizer.NewFactory(cfg.Translate.Tokenizer, cfg.LLM.Model), system),
		Extractor:      media.NewExtractor(cfg.Translate.TargetAliases),
		Budget:         cfg.Translate.MaxTokens,
		TargetAlias:    cfg.Translate.TargetAliases[0],
		Languages:      cfg.Languages(),
		IgnoreExisting: cfg.Translate.IgnoreExisting,
	}
	pipeline := &service.Pipeline{
		Orchestrator: orchestrator,
		State:        st,
		PollInterval: cfg.Runtime.PollInterval,
	}

	if cfg.Runtime.Local {
		log.Info("Using local translation server at %s", cfg.Runtime.LocalServerURL)
		orchestrator.Sync = newSync(translator.NewLocalServer(cfg.Runtime.LocalServerURL), st, policy, system, cfg)
		return pipeline, nil
	}

	client, err := llm.NewClient(cfg.LLMClientConfig())
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfig, "create provider client")
	}
	if cfg.Runtime.Sync {
		orchestrator.Sync = newSync(client, st, policy, system, cfg)
		return pipeline, nil
	}

	dispatcher := batch.NewDispatcher(client, st, client.NewChatRequest, system)
	orchestrator.Queue = dispatcher
	pipeline.Dispatcher = dispatcher
	pipeline.Poller = batch.NewPoller(client, st, policy)
	return pipeline, nil
}

func newSync(provider translator.Provider, st *state.State, policy *quarantine.Policy, system string, cfg *config.Config) *translator.Sync {
	return &translator.Sync{
		Provider:     provider,
		Translations: st.Translations,
		Policy:       policy,
		System:       system,
		Concurrency:  cfg.Runtime.SyncConcurrency,
		MaxAttempts:  cfg.Runtime.SyncMaxAttempts,
	}
}
