package main

import (
	"fmt"
	"log/slog"

	"github.com/user/evinav/internal/catalog"
	"github.com/user/evinav/internal/config"
	"github.com/user/evinav/internal/machine"
	"github.com/user/evinav/internal/postproc"
	"github.com/user/evinav/internal/prompt"
	"github.com/user/evinav/internal/state"
	"github.com/user/evinav/internal/tools"
	"github.com/user/evinav/internal/turn"
	"github.com/user/evinav/pkg/llm"
	"github.com/user/evinav/pkg/llm/openai"
)

// stack holds the wired core shared by the daemon and the local chat REPL.
type stack struct {
	sessions    *state.SessionStore
	transcripts *state.TranscriptStore
	machine     *machine.Machine
	runner      *turn.Runner
}

func buildStack(cfg *config.Config) (*stack, error) {
	sessions := state.NewSessionStore(cfg.DataDir)
	transcripts := state.NewTranscriptStore(cfg.DataDir)

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var provider llm.Provider
	if cfg.LLM.APIKey != "" {
		provider = openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	} else {
		slog.Warn("llm provider disabled (no api key); freeform replies fall back to a fixed message")
	}

	engine, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, cat.Questions)
	if err != nil {
		return nil, fmt.Errorf("create prompt engine: %w", err)
	}

	services := tools.NewServiceLookup(cat)
	var searcher tools.Searcher
	if cfg.Brave.APIKey != "" {
		searcher = tools.NewBraveSearcher(cfg.Brave.APIKey)
	} else {
		slog.Warn("guided search running without a web searcher (no brave api key)")
	}
	search := tools.NewGuidedSearch(searcher)

	m := machine.New(cat, services, search)
	runner := turn.New(sessions, transcripts, m, provider, engine, postproc.New(cat))

	return &stack{
		sessions:    sessions,
		transcripts: transcripts,
		machine:     m,
		runner:      runner,
	}, nil
}
