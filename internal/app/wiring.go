package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/agent"
	"github.com/ggonzalez94/defi-sentinel/internal/builder"
	"github.com/ggonzalez94/defi-sentinel/internal/cache"
	"github.com/ggonzalez94/defi-sentinel/internal/config"
	"github.com/ggonzalez94/defi-sentinel/internal/dispatch"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/execution/planner"
	"github.com/ggonzalez94/defi-sentinel/internal/execution/signer"
	"github.com/ggonzalez94/defi-sentinel/internal/httpx"
	"github.com/ggonzalez94/defi-sentinel/internal/llm"
	"github.com/ggonzalez94/defi-sentinel/internal/resolver"
)

// completerFactory builds the model client from settings and reports the
// model name shown in envelope metadata.
type completerFactory func(settings config.Settings) (llm.Completer, string)

func defaultCompleter(settings config.Settings) (llm.Completer, string) {
	if strings.TrimSpace(settings.LLMAPIKey) == "" {
		return llm.Unavailable{Reason: "no API key configured (set " + config.DefaultLLMKeyEnv + ")"}, ""
	}
	client := llm.NewAnthropic(llm.AnthropicOptions{
		APIKey:     settings.LLMAPIKey,
		Model:      settings.LLMModel,
		MaxTokens:  settings.LLMMaxTokens,
		BaseURL:    settings.LLMBaseURL,
		Timeout:    settings.Timeout,
		MaxRetries: settings.Retries,
	})
	return client, client.Model()
}

// ensureAgent assembles the alert pipeline once per invocation.
func (s *runtimeState) ensureAgent(ctx context.Context) (*agent.Agent, error) {
	if s.agent != nil {
		return s.agent, nil
	}
	settings := s.settings
	logger := s.log
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	local, err := signer.NewLocalSignerFromInputs(settings.KeySource, "")
	if err != nil && !errors.Is(err, signer.ErrNoWallet) {
		return nil, clierr.Wrap(clierr.CodeUsage, "load signing key", err)
	}
	var key signer.Signer
	if local != nil {
		key = local
	}
	wallet := signer.NewWallet(settings.WalletAddress, key)
	owner, err := wallet.Address(ctx)
	if err != nil && !errors.Is(err, signer.ErrNoWallet) {
		return nil, clierr.Wrap(clierr.CodeUsage, "resolve wallet", err)
	}

	var journal execution.Journal
	if s.journal != nil {
		journal = s.journal
	}
	var exec dispatch.Executor
	switch settings.ExecutorMode {
	case config.ExecutorRemote:
		exec = execution.NewRemote(settings.ExecutorURL, settings.ExecutorAPIKey, httpx.New(settings.Timeout, settings.Retries), logger)
		s.executor = config.ExecutorRemote
	default:
		exec = execution.NewSimulator(execution.SimulatorOptions{
			Planner: planner.New(),
			Wallet:  wallet,
			Signer:  key,
			Journal: journal,
			Logger:  logger,
		})
		s.executor = config.ExecutorSimulator
	}

	factory := s.runner.newCompleter
	if factory == nil {
		factory = defaultCompleter
	}
	completer, modelName := factory(settings)
	s.model = modelName
	if settings.CacheEnabled && modelName != "" {
		if s.cache == nil {
			store, err := cache.Open(settings.CachePath, settings.CacheLockPath)
			if err != nil {
				logger.Warn("model cache disabled", "error", err)
			} else {
				s.cache = store
			}
		}
		if s.cache != nil {
			completer = llm.NewCached(completer, s.cache, modelName, settings.CacheTTL, logger)
		}
	}

	res := resolver.New(resolver.Options{
		Registry:        s.registry,
		Wallet:          wallet,
		FallbackAddress: settings.FallbackAddress,
		AllowFallback:   settings.AllowFallback,
		Logger:          logger,
	})
	b := builder.New(builder.Options{
		Registry: s.registry,
		Owner:    owner,
		Logger:   logger,
	})
	s.agent = agent.New(agent.Options{
		LLM:          completer,
		Resolver:     res,
		Builder:      b,
		Dispatcher:   dispatch.New(exec, settings.EnableActions, logger),
		SystemPrompt: agent.SystemPrompt(s.registry),
		KeepRaw:      s.keepRaw,
		Logger:       logger,
	})
	logger.Debug("pipeline ready", "executor", s.executor, "model", s.model, "wallet", owner)
	return s.agent, nil
}
