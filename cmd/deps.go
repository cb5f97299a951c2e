package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/llm"
	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/speech"
	"github.com/abhisek/lingo/internal/store"
)

var errNoLLM = errors.New("no LLM provider configured")

// services are the collaborators shared by every engine a command builds.
type services struct {
	scripts     script.Provider
	synth       speech.Synthesizer
	transcriber speech.Transcriber
	sessionCfg  session.Config
}

// buildServices wires script generation and speech from the environment.
// scriptFile, when set, replaces generation with a fixed script. Without an
// LLM the engine still runs on its fallback script.
func buildServices(ctx context.Context, st *store.Store, scriptFile string, strict bool, obs speech.Observer, logger *zap.Logger) (*services, error) {
	svc := &services{sessionCfg: session.ConfigFromEnv()}
	if strict {
		svc.sessionCfg.Fallback = nil
	}

	speechCfg := speech.ConfigFromEnv()
	if err := speechCfg.Validate(); err != nil {
		return nil, fmt.Errorf("speech config: %w", err)
	}
	svc.sessionCfg.Speed = speechCfg.Speed

	var err error
	if svc.synth, err = speech.NewSynthesizer(speechCfg, logger, obs); err != nil {
		return nil, err
	}
	if svc.transcriber, err = speech.NewTranscriber(speechCfg, logger, obs); err != nil {
		return nil, err
	}

	if scriptFile != "" {
		svc.scripts = script.NewFileProvider(scriptFile, logger)
		return svc, nil
	}

	llmCfg := llm.ConfigFromEnv()
	if err := llmCfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "LLM provider not configured:", err)
		fmt.Fprintln(os.Stderr, "Dialogues will use the built-in fallback script.")
		svc.scripts = script.ProviderFunc(func(context.Context, string, time.Duration, string) ([]script.Line, error) {
			return nil, errNoLLM
		})
		return svc, nil
	}
	provider, err := llm.NewProvider(ctx, llmCfg, st.EventRepo(), logger)
	if err != nil {
		return nil, err
	}
	scriptCfg := script.ConfigFromEnv()
	scriptCfg.Timeout = llmCfg.Timeout
	svc.scripts = script.NewLLMProvider(provider, scriptCfg, logger)
	return svc, nil
}
