package builder

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

const (
	demoWallet  = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testSpender = "0x1111111111111111111111111111111111111111"
	usdcMainnet = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return New(Options{Registry: reg, Owner: demoWallet})
}

func req(kind action.Kind, params map[string]string) action.Request {
	return action.NewRequest(kind, params)
}

func expectError(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("unexpected error: got %q want %q", err.Error(), want)
	}
}

func TestWithdrawErrorOrder(t *testing.T) {
	b := newTestBuilder(t)
	cases := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{"missing token", map[string]string{"token": "unknown", "amount": "all", "destination_address": demoWallet}, "Missing token information for withdrawal"},
		{"missing destination", map[string]string{"token": "USDC", "amount": "all"}, "Missing destination address for withdrawal"},
		{"missing amount", map[string]string{"token": "USDC", "destination_address": "bad"}, "Missing amount for withdrawal"},
		{"invalid destination", map[string]string{"token": "USDC", "amount": "all", "destination_address": "0x123", "chain_id": "abc"}, "Invalid destination address format: 0x123"},
		{"invalid chain", map[string]string{"token": "USDC", "amount": "all", "destination_address": demoWallet, "chain_id": "mainnet"}, "Invalid chain ID: mainnet"},
		{"unresolvable token", map[string]string{"token": "FOO", "amount": "ten", "destination_address": demoWallet, "chain_id": "1"}, "Could not resolve token address for FOO on chain 1"},
		{"invalid amount", map[string]string{"token": "USDC", "amount": "ten", "destination_address": demoWallet, "chain_id": "1"}, "Invalid amount format: ten"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Withdraw(context.Background(), req(action.KindWithdraw, tc.params))
			expectError(t, err, tc.want)
		})
	}
}

func TestWithdrawResolvesExitAndNotesGaps(t *testing.T) {
	b := newTestBuilder(t)
	w, err := b.Withdraw(context.Background(), req(action.KindWithdraw, map[string]string{
		"token": "aUSDC", "amount": "all", "destination_address": demoWallet, "chain_id": "1",
	}))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if w.TokenAddress != "0x98C23E9d8f34FEFb1B7BD6a91B7FF122F4e16F5c" {
		t.Fatalf("unexpected token address: %s", w.TokenAddress)
	}
	if w.ExitFunction != "withdraw" || w.Protocol != "AaveV3" || w.Exchange != "AaveV3" {
		t.Fatalf("unexpected exit resolution: %+v", w)
	}
	if w.AmountHint != "1000" || w.PositionShares != "1000" {
		t.Fatalf("unexpected holdings: hint=%q shares=%q", w.AmountHint, w.PositionShares)
	}
	if len(w.Notes) != 0 {
		t.Fatalf("did not expect notes: %v", w.Notes)
	}

	w, err = b.Withdraw(context.Background(), req(action.KindWithdraw, map[string]string{
		"token": "USDC", "amount": "25.50", "destination_address": demoWallet + "_fail", "chain_id": "84532",
	}))
	if err != nil {
		t.Fatalf("withdraw with gaps should still succeed: %v", err)
	}
	if w.Amount != "25.5" || w.DestinationAddress != demoWallet+"_fail" {
		t.Fatalf("unexpected withdraw: %+v", w)
	}
	if len(w.Notes) != 2 {
		t.Fatalf("expected position and exit notes, got %v", w.Notes)
	}
}

func TestWithdrawAcceptsTokenAddressOnly(t *testing.T) {
	b := newTestBuilder(t)
	w, err := b.Withdraw(context.Background(), req(action.KindWithdraw, map[string]string{
		"token_address": usdcMainnet, "amount": "1", "destination_address": demoWallet, "chain_id": "1",
	}))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if w.Token != "USDC" || w.Decimals != 6 {
		t.Fatalf("expected reverse symbol lookup, got %+v", w)
	}
}

func TestRevokeErrorPrecedence(t *testing.T) {
	b := newTestBuilder(t)
	cases := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{"missing token", map[string]string{"spender_address": "bad", "chain_id": "x"}, "Missing token address for revoke"},
		{"missing spender", map[string]string{"token_address": "bad", "chain_id": "x"}, "Missing spender address for revoke"},
		{"invalid token", map[string]string{"token_address": "0xnothex", "spender_address": "bad", "chain_id": "x"}, "Invalid token address format: 0xnothex"},
		{"unresolvable symbol", map[string]string{"token": "FOO", "spender_address": testSpender}, "Invalid token address format: FOO"},
		{"invalid spender", map[string]string{"token_address": usdcMainnet, "spender_address": "bad", "chain_id": "x"}, "Invalid spender address format: bad"},
		{"invalid chain", map[string]string{"token_address": usdcMainnet, "spender_address": testSpender, "chain_id": "x", "protocol": "Nope"}, "Invalid chain ID: x"},
		{"unknown protocol", map[string]string{"token_address": usdcMainnet, "spender_address": testSpender, "chain_id": "1", "protocol": "Nope"}, "Unknown protocol Nope on chain 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Revoke(context.Background(), req(action.KindRevoke, tc.params))
			expectError(t, err, tc.want)
		})
	}
}

func TestRevokeDefaultsChainAndResolvesSymbol(t *testing.T) {
	b := newTestBuilder(t)
	r, err := b.Revoke(context.Background(), req(action.KindRevoke, map[string]string{
		"token": "USDC", "spender_address": testSpender, "protocol": "UniswapV3",
	}))
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if r.ChainID != registry.FallbackChainID {
		t.Fatalf("expected default chain %s, got %s", registry.FallbackChainID, r.ChainID)
	}
	if r.TokenAddress != "0x036CbD53842c5426634e7929541eC2318f3dCF7e" || r.Token != "USDC" {
		t.Fatalf("unexpected token resolution: %+v", r)
	}
}

func TestRevokeRejectsMalformedAddresses(t *testing.T) {
	b := newTestBuilder(t)
	bad := []string{"0x123", "742d35Cc6634C0532925a3b844Bc454e4438f44e", "0x742d35Cc6634C0532925a3b844Bc454e4438f44g", "unknown_fail"}
	for _, addr := range bad {
		_, err := b.Revoke(context.Background(), req(action.KindRevoke, map[string]string{
			"token_address": usdcMainnet, "spender_address": addr, "chain_id": "1",
		}))
		if err == nil || !strings.HasPrefix(err.Error(), "Invalid spender address format") {
			t.Fatalf("expected spender rejection for %q, got %v", addr, err)
		}
	}
	r, err := b.Revoke(context.Background(), req(action.KindRevoke, map[string]string{
		"token_address": usdcMainnet, "spender_address": testSpender + "_ratelimit", "chain_id": "1",
	}))
	if err != nil {
		t.Fatalf("suffixed spender should validate: %v", err)
	}
	if r.SpenderAddress != testSpender+"_ratelimit" {
		t.Fatalf("expected raw spender preserved, got %s", r.SpenderAddress)
	}
}

func TestSwapEstimateFallsBackToParity(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.Swap(context.Background(), req(action.KindSwap, map[string]string{
		"token_in": "ETH", "token_out": "USDC", "amount_in": "1.0", "chain_id": "1",
	}))
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if s.EstimatedAmountOut != "0.98" {
		t.Fatalf("expected 0.98 estimate, got %q", s.EstimatedAmountOut)
	}
	if s.MinAmountOut != "0.9751" {
		t.Fatalf("expected 0.9751 minimum, got %q", s.MinAmountOut)
	}
	if s.DEX != "UniswapV3" || s.RouterAddress != registry.KnownUniswapRouter || s.FeeTier != 3000 {
		t.Fatalf("unexpected routing: %+v", s)
	}
}

func TestSwapUsesRatioAndBalance(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.Swap(context.Background(), req(action.KindSwap, map[string]string{
		"token_in": "WETH", "token_out": "USDC", "amount_in": "all", "chain_id": "1", "slippage": "1%", "simulation": "yes",
	}))
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	// 1.2 WETH * 3000 * 0.98 = 3528, minus 1% = 3492.72
	if s.AmountInResolved != "1.2" || s.EstimatedAmountOut != "3528" || s.MinAmountOut != "3492.72" {
		t.Fatalf("unexpected estimate: %+v", s)
	}
	if !s.Simulation {
		t.Fatal("expected simulation flag")
	}
}

func TestSwapErrors(t *testing.T) {
	b := newTestBuilder(t)
	cases := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{"missing in", map[string]string{"token_in": "unknown", "token_out": ""}, "Missing input token for swap"},
		{"missing out", map[string]string{"token_in": "ETH"}, "Missing output token for swap"},
		{"invalid chain", map[string]string{"token_in": "ETH", "token_out": "USDC", "chain_id": "one"}, "Invalid chain ID: one"},
		{"unresolvable in", map[string]string{"token_in": "FOO", "token_out": "USDC", "chain_id": "1"}, "Could not resolve token address for FOO on chain 1"},
		{"unresolvable out", map[string]string{"token_in": "ETH", "token_out": "BAR", "chain_id": "1"}, "Could not resolve token address for BAR on chain 1"},
		{"invalid amount", map[string]string{"token_in": "ETH", "token_out": "USDC", "chain_id": "1", "amount_in": "lots"}, "Invalid amount format: lots"},
		{"invalid slippage", map[string]string{"token_in": "ETH", "token_out": "USDC", "chain_id": "1", "amount_in": "1", "slippage": "150"}, "Invalid slippage: 150"},
		{"unresolvable router", map[string]string{"token_in": "ETH", "token_out": "USDC", "chain_id": "1", "amount_in": "1", "dex": "Curve"}, "Could not resolve router for Curve on chain 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Swap(context.Background(), req(action.KindSwap, tc.params))
			expectError(t, err, tc.want)
		})
	}
}

func TestSwapLPTokenRedirectsToTwoStep(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.Swap(context.Background(), req(action.KindSwap, map[string]string{
		"token_in": "UNI-V3-POS", "token_out": "USDC", "amount_in": "2", "chain_id": "1",
	}))
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if !s.TwoStep || len(s.Steps) != 3 {
		t.Fatalf("expected two-step flow with three steps, got %+v", s)
	}
	if s.Steps[0].Action != "withdraw" || !strings.Contains(s.Steps[0].Detail, "decreaseLiquidity") {
		t.Fatalf("unexpected exit step: %+v", s.Steps[0])
	}
	if s.Steps[1].Detail != "Swap 1 WETH to USDC" {
		t.Fatalf("unexpected swap step: %+v", s.Steps[1])
	}
	if s.Steps[2].Action != "keep" || s.Steps[2].Amount != "1" {
		t.Fatalf("unexpected keep step: %+v", s.Steps[2])
	}
}

func TestEstimateOutput(t *testing.T) {
	est, minOut := EstimateOutput(big.NewRat(10, 1), big.NewRat(2, 1), big.NewRat(5, 10))
	if est.Cmp(big.NewRat(196, 10)) != 0 {
		t.Fatalf("unexpected estimate: %s", est.FloatString(4))
	}
	if minOut.Cmp(big.NewRat(19502, 1000)) != 0 {
		t.Fatalf("unexpected minimum: %s", minOut.FloatString(4))
	}
}

func TestMonitorIsIdempotentPerKey(t *testing.T) {
	b := newTestBuilder(t)
	first, err := b.Monitor(context.Background(), req(action.KindMonitor, map[string]string{"asset": "aUSDC", "chain_id": "1"}))
	if err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if first.Existing || first.Threshold != "5%" || first.Duration != "24h" {
		t.Fatalf("unexpected first monitor: %+v", first)
	}
	second, err := b.Monitor(context.Background(), req(action.KindMonitor, map[string]string{"asset": "aUSDC", "chain_id": "1", "threshold": "2%"}))
	if err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if !second.Existing || second.Threshold != "2%" {
		t.Fatalf("expected update of existing entry, got %+v", second)
	}
	if b.Monitors().Len() != 1 {
		t.Fatalf("expected one active monitor, got %d", b.Monitors().Len())
	}
	entry, ok := b.Monitors().Get("aUSDC:1")
	if !ok || len(entry.Subscribers) != 1 || entry.Subscribers[0] != demoWallet {
		t.Fatalf("unexpected subscribers: %+v", entry)
	}
}

func TestMonitorDefaults(t *testing.T) {
	b := newTestBuilder(t)
	m, err := b.Monitor(context.Background(), req(action.KindMonitor, nil))
	if err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if m.Asset != "All Positions" || m.ChainID != "1" || m.Key != "All Positions:1" {
		t.Fatalf("unexpected defaults: %+v", m)
	}
}

func TestMonitorBookConcurrentUpserts(t *testing.T) {
	book := NewMonitorBook()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := "sub-a"
			if i%2 == 0 {
				sub = "sub-b"
			}
			book.Upsert(MonitorEntry{Asset: "ETH", ChainID: "1", Duration: "1h", Threshold: "1%"}, sub)
		}(i)
	}
	wg.Wait()
	entry, ok := book.Get("ETH:1")
	if !ok || len(entry.Subscribers) != 2 || book.Len() != 1 {
		t.Fatalf("unexpected book state: %+v", entry)
	}
}

func TestBuildUnsupportedKind(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Build(context.Background(), action.Request{Kind: action.KindUnknown, RawKind: "bridge"})
	expectError(t, err, "Unsupported action type 'bridge'")
	if !clierr.HasCode(err, clierr.CodeUnsupported) {
		t.Fatalf("expected unsupported code, got %v", err)
	}
}
