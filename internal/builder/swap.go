package builder

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

// Flat markdown applied to every ratio estimate before slippage.
var estimateMarkdown = big.NewRat(98, 100)

func (b *Builder) Swap(_ context.Context, req action.Request) (*action.Swap, error) {
	tokenIn := req.Param("token_in")
	if isUnset(tokenIn) {
		return nil, invalid("Missing input token for swap")
	}
	tokenOut := req.Param("token_out")
	if isUnset(tokenOut) {
		return nil, invalid("Missing output token for swap")
	}
	chainID := req.Param("chain_id")
	if chainID == "" {
		chainID = DefaultChainID
	}
	if _, err := id.ParseChainID(chainID); err != nil {
		return nil, invalid("Invalid chain ID: %s", chainID)
	}
	amountIn := req.Param("amount_in")
	if amountIn == "" {
		amountIn = id.AmountAll
	}
	owner := b.ownerFor(req.Param("recipient"))

	if edge, ok := b.reg.LookupDependency(tokenIn, chainID); ok {
		return b.twoStepSwap(edge, tokenIn, tokenOut, amountIn, chainID, owner, req)
	}

	inAddress, inSymbol, ok := b.resolveToken(tokenIn, chainID)
	if !ok {
		return nil, unresolved("Could not resolve token address for %s on chain %s", tokenIn, chainID)
	}
	outAddress, outSymbol, ok := b.resolveToken(tokenOut, chainID)
	if !ok {
		return nil, unresolved("Could not resolve token address for %s on chain %s", tokenOut, chainID)
	}
	normalizedAmount, err := id.ParseAmount(amountIn)
	if err != nil {
		return nil, invalid("Invalid amount format: %s", amountIn)
	}
	slippageRaw := req.Param("slippage")
	if slippageRaw == "" {
		slippageRaw = DefaultSlippage
	}
	slippage, ok := parseSlippage(slippageRaw)
	if !ok {
		return nil, invalid("Invalid slippage: %s", slippageRaw)
	}
	feeTier := DefaultFeeTier
	if raw := req.Param("fee_tier"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return nil, invalid("Invalid fee tier: %s", raw)
		}
		feeTier = v
	}

	dex := req.Param("dex")
	if isUnset(dex) {
		dex = registry.DefaultDEXForChain(chainID)
	}
	router := req.Param("router_address")
	if router == "" {
		if cfg, ok := b.reg.LookupProtocol(dex, chainID); ok {
			_, router, _ = cfg.First("swapRouter", "router")
		}
	}
	if router == "" || !id.IsEVMAddress(router) {
		return nil, unresolved("Could not resolve router for %s on chain %s", dex, chainID)
	}

	out := &action.Swap{
		TokenIn:         displaySymbol(inSymbol, tokenIn),
		TokenOut:        displaySymbol(outSymbol, tokenOut),
		TokenInAddress:  inAddress,
		TokenOutAddress: outAddress,
		AmountIn:        normalizedAmount,
		Decimals:        b.reg.TokenDecimals(inSymbol),
		DecimalsOut:     b.reg.TokenDecimals(outSymbol),
		DEX:             dex,
		RouterAddress:   router,
		FeeTier:         feeTier,
		ChainID:         chainID,
		SlippagePct:     id.FormatRat(slippage),
		Recipient:       req.Param("recipient"),
		Simulation:      isTruthy(req.Param("simulation")),
	}
	if out.Recipient == "" {
		out.Recipient = b.owner
	}

	amount, ok := b.numericAmount(normalizedAmount, owner, chainID, out.TokenIn)
	if ok {
		out.AmountInResolved = id.FormatRat(amount)
		ratio, _ := registry.PriceRatio(out.TokenIn, out.TokenOut)
		estimate, minOut := EstimateOutput(amount, ratio, slippage)
		out.EstimatedAmountOut = id.FormatRat(estimate)
		out.MinAmountOut = id.FormatRat(minOut)
	}
	b.log.Debug("built swap", "token_in", out.TokenIn, "token_out", out.TokenOut, "chain_id", chainID, "dex", dex)
	return out, nil
}

// EstimateOutput applies ratio and the flat markdown to amount, then the
// slippage percentage to get the minimum acceptable output.
func EstimateOutput(amount, ratio, slippagePct *big.Rat) (estimate, minOut *big.Rat) {
	estimate = new(big.Rat).Mul(amount, ratio)
	estimate.Mul(estimate, estimateMarkdown)
	keep := new(big.Rat).Sub(big.NewRat(1, 1), new(big.Rat).Quo(slippagePct, big.NewRat(100, 1)))
	minOut = new(big.Rat).Mul(estimate, keep)
	return estimate, minOut
}

func (b *Builder) twoStepSwap(edge registry.DependencyEdge, tokenIn, tokenOut, amountIn, chainID, owner string, req action.Request) (*action.Swap, error) {
	normalizedAmount, err := id.ParseAmount(amountIn)
	if err != nil {
		return nil, invalid("Invalid amount format: %s", amountIn)
	}
	out := &action.Swap{
		TokenIn:            edge.DerivativeSymbol,
		TokenOut:           tokenOut,
		AmountIn:           normalizedAmount,
		ChainID:            chainID,
		FeeTier:            DefaultFeeTier,
		SlippagePct:        DefaultSlippage,
		TwoStep:            true,
		DerivativeProtocol: edge.Protocol,
		Simulation:         isTruthy(req.Param("simulation")),
	}
	amount, haveAmount := b.numericAmount(normalizedAmount, owner, chainID, edge.DerivativeSymbol)
	if haveAmount {
		out.AmountInResolved = id.FormatRat(amount)
	}

	exitDetail := fmt.Sprintf("Exit %s position", edge.Protocol)
	if exit, ok := edge.PrimaryExit(); ok {
		exitDetail = fmt.Sprintf("Exit %s position via %s on %s", edge.Protocol, exit.FunctionName, exit.ContractAddress)
	}
	out.Steps = append(out.Steps, action.SwapStep{
		Action: string(action.KindWithdraw),
		Token:  edge.DerivativeSymbol,
		Amount: out.AmountInResolved,
		Detail: exitDetail,
	})
	for _, u := range edge.Underlyings {
		step := action.SwapStep{Action: string(action.KindSwap), Token: u.Symbol}
		if haveAmount {
			if ratio, ok := id.ParseRat(u.Ratio); ok {
				step.Amount = id.FormatRat(new(big.Rat).Mul(amount, ratio))
			}
		}
		qty := step.Amount
		if qty == "" {
			qty = "the received"
		}
		if strings.EqualFold(u.Symbol, tokenOut) {
			step.Action = "keep"
			step.Detail = fmt.Sprintf("Keep %s %s", qty, u.Symbol)
		} else {
			step.Detail = fmt.Sprintf("Swap %s %s to %s", qty, u.Symbol, tokenOut)
		}
		out.Steps = append(out.Steps, step)
	}
	return out, nil
}

// numericAmount resolves "all" through the owner's registry balance.
func (b *Builder) numericAmount(amount, owner, chainID, symbol string) (*big.Rat, bool) {
	if id.IsAll(amount) {
		balance, ok := b.reg.Balance(owner, chainID, symbol)
		if !ok {
			return nil, false
		}
		amount = balance
	}
	return id.ParseRat(amount)
}

func parseSlippage(raw string) (*big.Rat, bool) {
	v, ok := id.ParseRat(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if !ok || v.Cmp(big.NewRat(100, 1)) > 0 {
		return nil, false
	}
	return v, true
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func displaySymbol(symbol, fallback string) string {
	if symbol != "" {
		return symbol
	}
	return fallback
}
