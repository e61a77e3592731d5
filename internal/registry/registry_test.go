package registry

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func TestDefaultRegistryLoads(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}
	if got := reg.LookupTokenAddress("USDC", "8453"); got != "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" {
		t.Fatalf("unexpected USDC base address: %s", got)
	}
	if got := reg.LookupTokenAddress("USDC", "999"); got != Unknown {
		t.Fatalf("expected unknown for missing chain, got %s", got)
	}
	if got := reg.LookupTokenAddress("NOPE", "1"); got != Unknown {
		t.Fatalf("expected unknown for missing symbol, got %s", got)
	}
	if reg.TokenDecimals("USDC") != 6 || reg.TokenDecimals("NOPE") != 18 {
		t.Fatal("unexpected token decimals")
	}
}

func TestTokenSymbolsAreCaseSensitive(t *testing.T) {
	reg := New(Data{Tokens: []Token{
		{Symbol: "USDC", Decimals: 6, Networks: map[string]string{"1": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}},
		{Symbol: "usdc", Decimals: 18, Networks: map[string]string{"1": "0x0000000000000000000000000000000000000001"}},
		{Symbol: "DAI", Decimals: 18, Networks: map[string]string{"1": "0x6B175474E89094C44Da98b954EedeAC495271d0F"}},
	}})
	if got := reg.LookupTokenAddress("USDC", "1"); got != "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48" {
		t.Fatalf("unexpected USDC address: %s", got)
	}
	if got := reg.LookupTokenAddress("usdc", "1"); got != "0x0000000000000000000000000000000000000001" {
		t.Fatalf("expected distinct lower-case entry, got %s", got)
	}
	if got := reg.LookupTokenAddress("dai", "1"); got != Unknown {
		t.Fatalf("expected unknown for differently cased symbol, got %s", got)
	}
	if reg.TokenDecimals("Dai") != 18 {
		t.Fatal("expected default decimals for unknown symbol")
	}

	def, err := Default()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}
	for _, symbol := range []string{"usdc", "Usdc"} {
		if got := def.LookupTokenAddress(symbol, "1"); got != Unknown {
			t.Fatalf("LookupTokenAddress(%q) = %s, want %s", symbol, got, Unknown)
		}
	}
	owner := "0x742D35CC6634C0532925A3B844BC454E4438F44E"
	if _, ok := def.Balance(owner, "8453", "usdc"); ok {
		t.Fatal("did not expect balance for differently cased symbol")
	}
}

func TestLookupProtocolIsCaseSensitive(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}
	cfg, ok := reg.LookupProtocol("UniswapV3", "1")
	if !ok {
		t.Fatal("expected UniswapV3 on chain 1")
	}
	if router, ok := cfg.String("router"); !ok || router != KnownUniswapRouter {
		t.Fatalf("unexpected router: %q", router)
	}
	if _, ok := reg.LookupProtocol("uniswapv3", "1"); ok {
		t.Fatal("did not expect lower-case protocol name to match")
	}
	if _, ok := reg.LookupProtocol("UniswapV3", "137"); ok {
		t.Fatal("did not expect unconfigured chain to match")
	}
}

func TestDefaultChainID(t *testing.T) {
	cases := []struct {
		name      string
		protocols []Protocol
		want      string
	}{
		{name: "empty", want: FallbackChainID},
		{
			name: "fallback present later",
			protocols: []Protocol{
				{Name: "A", Chains: []ProtocolChain{{ChainID: "137"}}},
				{Name: "B", Chains: []ProtocolChain{{ChainID: "1"}, {ChainID: "84532"}}},
			},
			want: FallbackChainID,
		},
		{
			name: "first encountered",
			protocols: []Protocol{
				{Name: "A", Chains: []ProtocolChain{{ChainID: "8453"}, {ChainID: "1"}}},
				{Name: "B", Chains: []ProtocolChain{{ChainID: "137"}}},
			},
			want: "8453",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := New(Data{Protocols: tc.protocols})
			if got := reg.DefaultChainID(); got != tc.want {
				t.Fatalf("DefaultChainID() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestProtocolChainsKeepDocumentOrder(t *testing.T) {
	dir := t.TempDir()
	body := `[{"name":"Dex","chains":{"8453":{"router":"0x1"},"1":{"router":"0x2"},"137":{}}}]`
	if err := os.WriteFile(filepath.Join(dir, ProtocolsFile), []byte(body), 0o644); err != nil {
		t.Fatalf("write protocols: %v", err)
	}
	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	protocols := reg.Protocols()
	if len(protocols) != 1 || len(protocols[0].Chains) != 3 {
		t.Fatalf("unexpected protocols: %+v", protocols)
	}
	order := []string{protocols[0].Chains[0].ChainID, protocols[0].Chains[1].ChainID, protocols[0].Chains[2].ChainID}
	if strings.Join(order, ",") != "8453,1,137" {
		t.Fatalf("unexpected chain order: %v", order)
	}
	if reg.DefaultChainID() != "8453" {
		t.Fatalf("unexpected default chain: %s", reg.DefaultChainID())
	}
	// Other datasets still come from the embedded defaults.
	if reg.LookupTokenAddress("USDC", "1") == Unknown {
		t.Fatal("expected embedded tokens when override dir lacks tokens.json")
	}
}

func TestLoadRejectsMalformedOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TokensFile), []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("write tokens: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDependenciesAndPositions(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}
	edges := reg.LookupDependencies("aUSDC")
	if len(edges) != 2 {
		t.Fatalf("expected two aUSDC edges, got %d", len(edges))
	}
	edge, ok := reg.LookupDependency("UNI-V3-POS", "1")
	if !ok {
		t.Fatal("expected LP dependency on chain 1")
	}
	if len(edge.Underlyings) != 2 || edge.Underlyings[0].Symbol != "WETH" || edge.Underlyings[0].Ratio != "0.5" {
		t.Fatalf("unexpected underlyings: %+v", edge.Underlyings)
	}
	exit, ok := edge.PrimaryExit()
	if !ok || exit.FunctionName != "decreaseLiquidity" {
		t.Fatalf("unexpected exit function: %+v", exit)
	}

	owner := "0x742D35CC6634C0532925A3B844BC454E4438F44E"
	positions := reg.UserPositions(owner, "1", "UNI-V3-POS")
	if len(positions) != 1 || positions[0].TokenID != "12345" {
		t.Fatalf("unexpected positions: %+v", positions)
	}
	if all := reg.UserPositions(owner, "1", ""); len(all) != 3 {
		t.Fatalf("expected all positions, got %d", len(all))
	}
	if balance, ok := reg.Balance(owner, "8453", "USDC"); !ok || balance != "320.75" {
		t.Fatalf("unexpected balance: %q ok=%v", balance, ok)
	}
	if _, ok := reg.Balance(owner, "137", "USDC"); ok {
		t.Fatal("did not expect balance on unconfigured chain")
	}
}

func TestStaticTables(t *testing.T) {
	if DefaultDEXForChain("8453") != "UniswapV3" || DefaultDEXForChain("999") != DefaultDEX {
		t.Fatal("unexpected default dex")
	}
	ratio, ok := PriceRatio("ETH", "USDC")
	if ok || ratio.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("expected 1:1 fallback for ETH/USDC, got %s ok=%v", ratio, ok)
	}
	ratio, ok = PriceRatio("weth", "usdc")
	if !ok || ratio.Cmp(big.NewRat(3000, 1)) != 0 {
		t.Fatalf("unexpected WETH/USDC ratio: %s", ratio)
	}
	url, ok := ExplorerTxURL("1", "0xabc")
	if !ok || url != "https://etherscan.io/tx/0xabc" {
		t.Fatalf("unexpected explorer url: %q", url)
	}
	if _, ok := ExplorerTxURL("999", "0xabc"); ok {
		t.Fatal("did not expect explorer for unknown chain")
	}
}

func TestABIConstantsParse(t *testing.T) {
	abis := []string{
		ERC20MinimalABI,
		UniswapV3RouterABI,
		UniswapV3PositionManagerABI,
		AavePoolABI,
		ERC4626VaultABI,
	}
	for _, raw := range abis {
		if _, err := abi.JSON(strings.NewReader(raw)); err != nil {
			t.Fatalf("failed to parse abi json: %v", err)
		}
	}
}
