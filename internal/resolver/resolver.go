// Package resolver turns raw language-model output into a canonical
// action.Request. Structured JSON is preferred; free text falls back to
// keyword classification and regex parameter extraction.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

// AddressProvider supplies the operator wallet address used as the
// withdraw destination.
type AddressProvider interface {
	Address(ctx context.Context) (string, error)
}

type Source string

const (
	SourceStructured Source = "structured"
	SourceRepaired   Source = "repaired"
	SourceFreeText   Source = "free_text"
	SourceFallback   Source = "fallback"
)

type Resolution struct {
	Request action.Request `json:"request"`
	Source  Source         `json:"source"`
}

type Options struct {
	Registry        *registry.Registry
	Wallet          AddressProvider
	FallbackAddress string
	AllowFallback   bool
	Extractor       Extractor
	Logger          *slog.Logger
}

type Resolver struct {
	registry        *registry.Registry
	wallet          AddressProvider
	fallbackAddress string
	allowFallback   bool
	extractor       Extractor
	log             *slog.Logger
}

func New(opts Options) *Resolver {
	r := &Resolver{
		registry:        opts.Registry,
		wallet:          opts.Wallet,
		fallbackAddress: opts.FallbackAddress,
		allowFallback:   opts.AllowFallback,
		extractor:       opts.Extractor,
		log:             opts.Logger,
	}
	if r.extractor == nil {
		r.extractor = NewRegexExtractor()
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	return r
}

// Resolve never fails. Anything unexpected degrades to the monitor default.
func (r *Resolver) Resolve(ctx context.Context, text string) (res Resolution) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("resolution panicked, falling back to monitor", "panic", fmt.Sprint(rec))
			res = Resolution{Request: MonitorDefault(), Source: SourceFallback}
		}
	}()

	if plan, ok, repaired := parseStructured(text); ok {
		kind := ParseKind(plan.rawKind)
		source := SourceStructured
		if repaired {
			source = SourceRepaired
		}
		r.log.Debug("resolved structured action plan", "kind", kind, "raw_kind", plan.rawKind, "source", source)
		return Resolution{Request: r.normalize(ctx, kind, plan.rawKind, plan.params), Source: source}
	}

	kind := ClassifyText(text)
	r.log.Debug("resolved free-text action", "kind", kind)
	return Resolution{Request: r.fromFreeText(ctx, kind, text), Source: SourceFreeText}
}

func (r *Resolver) fromFreeText(ctx context.Context, kind action.Kind, text string) action.Request {
	defaults := freeTextParams[kind]
	names := make([]string, 0, len(defaults))
	for _, d := range defaults {
		names = append(names, d.name)
	}
	found := r.extractor.Extract(text, names)
	params := make(map[string]any, len(defaults))
	for _, d := range defaults {
		if v, ok := found[d.name]; ok {
			params[d.name] = v
		} else if d.value != "" {
			params[d.name] = d.value
		}
	}
	return r.normalize(ctx, kind, string(kind), params)
}
