package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ggonzalez94/defi-sentinel/internal/builder"
	"github.com/ggonzalez94/defi-sentinel/internal/dispatch"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/execution/planner"
	"github.com/ggonzalez94/defi-sentinel/internal/execution/signer"
	"github.com/ggonzalez94/defi-sentinel/internal/llm"
	"github.com/ggonzalez94/defi-sentinel/internal/model"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
	"github.com/ggonzalez94/defi-sentinel/internal/resolver"
)

const (
	testWallet = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testUSDC   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

type harness struct {
	agent *Agent
	store *execution.Store
}

func newHarness(t *testing.T, completer llm.Completer, allow []string) harness {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	dir := t.TempDir()
	store, err := execution.OpenStore(filepath.Join(dir, "actions.db"), filepath.Join(dir, "actions.lock"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	wallet := signer.NewWallet(testWallet, nil)
	sim := execution.NewSimulator(execution.SimulatorOptions{Planner: planner.New(), Wallet: wallet, Journal: store})
	ids := 0
	a := New(Options{
		LLM:          completer,
		Resolver:     resolver.New(resolver.Options{Registry: reg, Wallet: wallet, AllowFallback: true}),
		Builder:      builder.New(builder.Options{Registry: reg, Owner: testWallet}),
		Dispatcher:   dispatch.New(sim, allow, nil),
		SystemPrompt: SystemPrompt(reg),
		NewID: func() string {
			ids++
			return "alert-" + string(rune('0'+ids))
		},
	})
	return harness{agent: a, store: store}
}

func reply(text string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, string) (string, error) { return text, nil })
}

func TestProcessStructuredRevokeIsExecutedAndJournaled(t *testing.T) {
	h := newHarness(t, reply(`Analysis follows.
{"analysis": "router compromised", "action_plan": {"action_type": "revoke", "parameters": {"token_address": "`+testUSDC+`", "protocol": "UniswapV3", "chain_id": "1"}}}`), nil)

	out := h.agent.Process(context.Background(), "Uniswap router exploit reported")
	if !out.Success || !out.Executed || out.Kind != "revoke" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !strings.HasPrefix(out.Message, "Successfully revoked") || !strings.Contains(out.Message, "Transaction: https://etherscan.io/tx/0x") {
		t.Fatalf("unexpected message: %s", out.Message)
	}
	records, err := h.store.ListByAlert(out.AlertID)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected journaled revoke for %s, got %d err=%v", out.AlertID, len(records), err)
	}
}

func TestProcessLLMFailureFallsBackToMonitoring(t *testing.T) {
	h := newHarness(t, llm.Unavailable{Reason: "ANTHROPIC_API_KEY is not set"}, nil)
	var got string
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.Fatalf("ProcessAlert panicked: %v", rec)
			}
		}()
		got = h.agent.ProcessAlert(context.Background(), "something odd on chain")
	}()
	if !strings.HasPrefix(got, llmUnavailablePrefix) {
		t.Fatalf("expected explanatory prefix, got %s", got)
	}
	if !strings.Contains(got, "Started monitoring") {
		t.Fatalf("expected monitor default outcome, got %s", got)
	}
}

func TestProcessFreeTextWithdraw(t *testing.T) {
	h := newHarness(t, reply("SECURITY ALERT: Critical vulnerability detected, possible fund drainage. Recommend we withdraw immediately. token: USDC amount: all"), nil)
	out := h.agent.Process(context.Background(), "vulnerability in lending pool")
	if out.Kind != "withdraw" || out.Source != string(resolver.SourceFreeText) {
		t.Fatalf("expected free-text withdraw, got %+v", out)
	}
	if !out.Executed || !out.Success || !strings.Contains(out.Message, "all (1500)") {
		t.Fatalf("expected full USDC withdrawal to execute: %+v", out)
	}
}

func TestProcessInvalidParametersReturnError(t *testing.T) {
	h := newHarness(t, reply(`{"action_plan": {"action_type": "revoke", "parameters": {"token_address": "0x123", "spender_address": "0xE592427A0AEce92De3Edee1F18E0157C05861564"}}}`), nil)
	out := h.agent.Process(context.Background(), "alert")
	if out.Success || out.Executed || !strings.HasPrefix(out.Message, "Error: ") {
		t.Fatalf("expected parameter error, got %+v", out)
	}
}

func TestProcessBlockedAction(t *testing.T) {
	h := newHarness(t, reply(`{"action_plan": {"action_type": "revoke", "parameters": {"token_address": "`+testUSDC+`", "protocol": "UniswapV3", "chain_id": "1"}}}`), []string{"monitor"})
	out := h.agent.Process(context.Background(), "alert")
	if out.Executed || !strings.Contains(out.Message, "blocked") {
		t.Fatalf("expected policy block, got %+v", out)
	}
}

func TestProcessRecoversFromPanics(t *testing.T) {
	h := newHarness(t, llm.CompleterFunc(func(context.Context, string, string) (string, error) {
		panic("model client exploded")
	}), nil)
	out := h.agent.Process(context.Background(), "alert")
	if out.Success || !strings.Contains(out.Message, "model client exploded") {
		t.Fatalf("expected recovered panic message, got %+v", out)
	}
}

func TestSystemPromptListsProtocols(t *testing.T) {
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	prompt := SystemPrompt(reg)
	if !strings.Contains(prompt, "UniswapV3") || !strings.Contains(prompt, "action_plan") {
		t.Fatalf("unexpected system prompt: %s", prompt)
	}
	if !strings.Contains(userPrompt("  drain detected "), "drain detected\n") {
		t.Fatal("expected trimmed alert in user prompt")
	}
}

func TestWatchProcessesLinesInOrder(t *testing.T) {
	h := newHarness(t, llm.Unavailable{}, nil)
	var seen []model.AlertOutcome
	err := h.agent.Watch(context.Background(), strings.NewReader("first alert\n\nsecond alert\n"), func(o model.AlertOutcome) error {
		seen = append(seen, o)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if len(seen) != 2 || seen[0].AlertID != "alert-1" || seen[1].AlertID != "alert-2" {
		t.Fatalf("unexpected outcomes: %+v", seen)
	}
	if !strings.Contains(seen[1].Message, "Updated monitoring") {
		t.Fatalf("expected second default monitor to update the first: %s", seen[1].Message)
	}
}

func TestWatchStopsOnEmitError(t *testing.T) {
	h := newHarness(t, llm.Unavailable{}, nil)
	stop := errors.New("stop")
	calls := 0
	err := h.agent.Watch(context.Background(), strings.NewReader("a\nb\nc\n"), func(model.AlertOutcome) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected emit error after one alert, got calls=%d err=%v", calls, err)
	}
}
