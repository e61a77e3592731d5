// Package agent runs security alerts through analysis, resolution, building
// and dispatch.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/builder"
	"github.com/ggonzalez94/defi-sentinel/internal/dispatch"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/llm"
	"github.com/ggonzalez94/defi-sentinel/internal/model"
	"github.com/ggonzalez94/defi-sentinel/internal/resolver"
)

const llmUnavailablePrefix = "LLM analysis unavailable: "

type Options struct {
	LLM          llm.Completer
	Resolver     *resolver.Resolver
	Builder      *builder.Builder
	Dispatcher   *dispatch.Dispatcher
	SystemPrompt string
	// KeepRaw copies the model response into the outcome.
	KeepRaw bool
	Logger  *slog.Logger
	NewID   func() string
}

type Agent struct {
	llm        llm.Completer
	resolver   *resolver.Resolver
	builder    *builder.Builder
	dispatcher *dispatch.Dispatcher
	system     string
	keepRaw    bool
	log        *slog.Logger
	newID      func() string
}

func New(opts Options) *Agent {
	a := &Agent{
		llm:        opts.LLM,
		resolver:   opts.Resolver,
		builder:    opts.Builder,
		dispatcher: opts.Dispatcher,
		system:     opts.SystemPrompt,
		keepRaw:    opts.KeepRaw,
		log:        opts.Logger,
		newID:      opts.NewID,
	}
	if a.llm == nil {
		a.llm = llm.Unavailable{}
	}
	if a.resolver == nil {
		a.resolver = resolver.New(resolver.Options{})
	}
	if a.builder == nil {
		a.builder = builder.New(builder.Options{})
	}
	if a.dispatcher == nil {
		a.dispatcher = dispatch.New(nil, nil, opts.Logger)
	}
	if a.log == nil {
		a.log = slog.New(slog.DiscardHandler)
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	return a
}

// ProcessAlert returns the human-readable result for one alert.
func (a *Agent) ProcessAlert(ctx context.Context, alert string) string {
	return a.Process(ctx, alert).Message
}

// Process never panics and never returns an error. Every failure is
// described in the outcome message.
func (a *Agent) Process(ctx context.Context, alert string) (out model.AlertOutcome) {
	out.AlertID = a.newID()
	log := a.log.With("alert_id", out.AlertID)
	ctx = execution.WithAlertID(ctx, out.AlertID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("alert processing panicked", "panic", fmt.Sprint(rec))
			out.Success = false
			out.Executed = false
			out.Message = fmt.Sprintf("Error processing alert: %v", rec)
		}
	}()

	var res resolver.Resolution
	raw, err := a.llm.Complete(ctx, a.system, userPrompt(alert))
	if err != nil {
		log.Warn("llm analysis failed, falling back to monitoring", "error", err)
		out.LLMError = err.Error()
		res = resolver.Resolution{Request: resolver.MonitorDefault(), Source: resolver.SourceFallback}
	} else {
		if a.keepRaw {
			out.RawResponse = raw
		}
		res = a.resolver.Resolve(ctx, raw)
	}
	out.Source = string(res.Source)
	out.Kind = string(res.Request.Kind)
	log.Info("resolved alert", "kind", res.Request.Kind, "source", res.Source)

	result := a.handle(ctx, res.Request)
	out.Kind = string(result.Kind)
	out.Success = result.Success
	out.Executed = result.Executed
	out.TxHash = result.TxHash
	out.ExplorerURL = result.ExplorerURL
	out.Message = result.Message
	if out.LLMError != "" {
		out.Message = llmUnavailablePrefix + out.LLMError + "\n" + out.Message
	}
	log.Info("alert handled", "kind", out.Kind, "success", out.Success, "executed", out.Executed)
	return out
}

func (a *Agent) handle(ctx context.Context, req action.Request) dispatch.Outcome {
	built, err := a.builder.Build(ctx, req)
	if err != nil {
		a.log.Info("action parameters rejected", "kind", req.Kind, "error", err)
		return dispatch.Outcome{Kind: req.Kind, Message: "Error: " + err.Error()}
	}
	return a.dispatcher.Dispatch(ctx, built)
}

// Monitors exposes the builder's active monitors.
func (a *Agent) Monitors() *builder.MonitorBook {
	return a.builder.Monitors()
}
