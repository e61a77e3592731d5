// Package dispatch hands built actions to an executor and turns the result
// into the message returned to the alert source.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/policy"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

// Executor performs the on-chain side of an action.
type Executor interface {
	Withdraw(ctx context.Context, w *action.Withdraw) (action.Result, error)
	Revoke(ctx context.Context, r *action.Revoke) (action.Result, error)
	Swap(ctx context.Context, s *action.Swap) (action.Result, error)
}

type Outcome struct {
	Kind        action.Kind `json:"kind"`
	Success     bool        `json:"success"`
	Executed    bool        `json:"executed"`
	Message     string      `json:"message"`
	TxHash      string      `json:"transaction_hash,omitempty"`
	ExplorerURL string      `json:"explorer_url,omitempty"`
}

type Dispatcher struct {
	exec      Executor
	allowlist []string
	log       *slog.Logger
}

func New(exec Executor, allowlist []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{exec: exec, allowlist: allowlist, log: logger}
}

// Dispatch never returns an error; every failure ends up in the message.
func (d *Dispatcher) Dispatch(ctx context.Context, built action.Built) Outcome {
	if built == nil {
		return Outcome{Kind: action.KindUnknown, Message: "Error: no action to dispatch"}
	}
	kind := built.Kind()
	if err := policy.CheckActionAllowed(d.allowlist, string(kind)); err != nil {
		d.log.Warn("action blocked by policy", "kind", kind)
		return Outcome{Kind: kind, Message: "Error: " + err.Error()}
	}

	switch b := built.(type) {
	case *action.Withdraw:
		return d.execute(ctx, kind, b.ChainID, func(ctx context.Context) (action.Result, error) {
			return d.exec.Withdraw(ctx, b)
		}, func() string { return withdrawSummary(b) })
	case *action.Revoke:
		return d.execute(ctx, kind, b.ChainID, func(ctx context.Context) (action.Result, error) {
			return d.exec.Revoke(ctx, b)
		}, func() string { return revokeSummary(b) })
	case *action.Swap:
		if b.TwoStep {
			return Outcome{Kind: kind, Success: true, Message: twoStepSummary(b)}
		}
		if b.Simulation {
			return Outcome{Kind: kind, Success: true, Message: simulationSummary(b)}
		}
		return d.execute(ctx, kind, b.ChainID, func(ctx context.Context) (action.Result, error) {
			return d.exec.Swap(ctx, b)
		}, func() string { return swapSummary(b) })
	case *action.Monitor:
		return Outcome{Kind: kind, Success: true, Message: monitorSummary(b)}
	default:
		return Outcome{Kind: kind, Message: fmt.Sprintf("Error: Unsupported action type '%s'", kind)}
	}
}

func (d *Dispatcher) execute(ctx context.Context, kind action.Kind, chainID string, call func(context.Context) (action.Result, error), summary func() string) (out Outcome) {
	out = Outcome{Kind: kind, Executed: true}
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("executor panicked", "kind", kind, "panic", fmt.Sprint(rec))
			out = Outcome{Kind: kind, Executed: true, Message: fmt.Sprintf("Error %s: %v", kind.Gerund(), rec)}
		}
	}()
	if d.exec == nil {
		out.Message = fmt.Sprintf("Error %s: no executor configured", kind.Gerund())
		return out
	}

	result, err := call(ctx)
	if err != nil {
		d.log.Error("executor call failed", "kind", kind, "error", err)
		out.Message = fmt.Sprintf("Error %s: %v", kind.Gerund(), err)
		return out
	}
	if !result.Success {
		d.log.Warn("executor reported failure", "kind", kind, "message", result.Message)
		msg := result.Message
		if msg == "" {
			msg = "executor reported failure"
		}
		out.Message = fmt.Sprintf("Failed to %s: %s", kind.Verb(), msg)
		return out
	}

	out.Success = true
	out.TxHash = result.TxHash
	var sb strings.Builder
	sb.WriteString(summary())
	if result.Message != "" {
		sb.WriteString("\n")
		sb.WriteString(result.Message)
	}
	if url, ok := registry.ExplorerTxURL(chainID, result.TxHash); ok {
		out.ExplorerURL = url
		sb.WriteString("\nTransaction: ")
		sb.WriteString(url)
	} else if result.TxHash != "" {
		sb.WriteString("\nTransaction hash: ")
		sb.WriteString(result.TxHash)
	}
	out.Message = sb.String()
	return out
}
