// Package builder validates resolved action requests and resolves their
// symbolic references against the registry.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

const (
	DefaultChainID  = "1"
	DefaultSlippage = "0.5"
	DefaultFeeTier  = 3000
)

type Options struct {
	Registry *registry.Registry
	// Owner is the wallet whose registry holdings back "all" amounts and
	// position lookups. Withdrawals fall back to their destination.
	Owner    string
	Monitors *MonitorBook
	Logger   *slog.Logger
}

type Builder struct {
	reg      *registry.Registry
	owner    string
	monitors *MonitorBook
	log      *slog.Logger
}

func New(opts Options) *Builder {
	b := &Builder{
		reg:      opts.Registry,
		owner:    strings.TrimSpace(opts.Owner),
		monitors: opts.Monitors,
		log:      opts.Logger,
	}
	if b.reg == nil {
		b.reg = registry.New(registry.Data{})
	}
	if b.monitors == nil {
		b.monitors = NewMonitorBook()
	}
	if b.log == nil {
		b.log = slog.New(slog.DiscardHandler)
	}
	return b
}

func (b *Builder) Monitors() *MonitorBook { return b.monitors }

// Build returns the validated action for req. Errors are *clierr.Error with
// a user-facing message.
func (b *Builder) Build(ctx context.Context, req action.Request) (action.Built, error) {
	var (
		built action.Built
		err   error
	)
	switch req.Kind {
	case action.KindWithdraw:
		var w *action.Withdraw
		if w, err = b.Withdraw(ctx, req); err == nil {
			built = w
		}
	case action.KindRevoke:
		var r *action.Revoke
		if r, err = b.Revoke(ctx, req); err == nil {
			built = r
		}
	case action.KindSwap:
		var s *action.Swap
		if s, err = b.Swap(ctx, req); err == nil {
			built = s
		}
	case action.KindMonitor:
		var m *action.Monitor
		if m, err = b.Monitor(ctx, req); err == nil {
			built = m
		}
	default:
		raw := req.RawKind
		if raw == "" {
			raw = string(req.Kind)
		}
		err = clierr.New(clierr.CodeUnsupported, fmt.Sprintf("Unsupported action type '%s'", raw))
	}
	if err != nil {
		return nil, err
	}
	return built, nil
}

func isUnset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, registry.Unknown)
}

func invalid(format string, args ...any) error {
	return clierr.New(clierr.CodeInvalidInput, fmt.Sprintf(format, args...))
}

func unresolved(format string, args ...any) error {
	return clierr.New(clierr.CodeUnresolved, fmt.Sprintf(format, args...))
}

// resolveToken maps a symbol or literal address to an address on chainID.
// A literal address passes through untouched so test suffixes survive.
func (b *Builder) resolveToken(token, chainID string) (addr string, symbol string, ok bool) {
	token = strings.TrimSpace(token)
	if id.IsEVMAddress(token) {
		if sym, found := b.reg.SymbolForAddress(id.StripTestSuffix(token), chainID); found {
			return token, sym, true
		}
		return token, "", true
	}
	addr = b.reg.LookupTokenAddress(token, chainID)
	if addr == registry.Unknown {
		return "", token, false
	}
	if t, found := b.reg.LookupToken(token); found {
		symbol = t.Symbol
	} else {
		symbol = token
	}
	return addr, symbol, true
}

func (b *Builder) ownerFor(fallback string) string {
	if b.owner != "" {
		return b.owner
	}
	return id.StripTestSuffix(fallback)
}
