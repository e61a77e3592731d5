package dispatch

import (
	"fmt"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

func withdrawSummary(w *action.Withdraw) string {
	amount := w.Amount
	if id.IsAll(amount) {
		amount = "all"
		if w.AmountHint != "" {
			amount = fmt.Sprintf("all (%s)", w.AmountHint)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully withdrew %s %s to %s on %s", amount, tokenLabel(w.Token, w.TokenAddress), w.DestinationAddress, chainLabel(w.ChainID))
	if w.Exchange != "" {
		fmt.Fprintf(&sb, " via %s", w.Exchange)
	}
	for _, note := range w.Notes {
		sb.WriteString("\nNote: ")
		sb.WriteString(note)
	}
	return sb.String()
}

func revokeSummary(r *action.Revoke) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully revoked %s approval for spender %s on %s", tokenLabel(r.Token, r.TokenAddress), r.SpenderAddress, chainLabel(r.ChainID))
	if r.Protocol != "" {
		fmt.Fprintf(&sb, " (%s)", r.Protocol)
	}
	return sb.String()
}

func swapSummary(s *action.Swap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully swapped %s %s for %s on %s (%s)", swapAmount(s), s.TokenIn, s.TokenOut, s.DEX, chainLabel(s.ChainID))
	if s.EstimatedAmountOut != "" {
		fmt.Fprintf(&sb, ", estimated output %s %s, minimum %s %s", s.EstimatedAmountOut, s.TokenOut, s.MinAmountOut, s.TokenOut)
	}
	return sb.String()
}

func simulationSummary(s *action.Swap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Simulation: would swap %s %s for %s on %s (%s)", swapAmount(s), s.TokenIn, s.TokenOut, s.DEX, chainLabel(s.ChainID))
	if s.EstimatedAmountOut != "" {
		fmt.Fprintf(&sb, ", receiving approximately %s %s (minimum %s %s at %s%% slippage)", s.EstimatedAmountOut, s.TokenOut, s.MinAmountOut, s.TokenOut, s.SlippagePct)
	}
	sb.WriteString(". No transaction was submitted.")
	return sb.String()
}

func twoStepSummary(s *action.Swap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is a %s position token on %s; swapping it to %s takes two steps:", s.TokenIn, s.DerivativeProtocol, chainLabel(s.ChainID), s.TokenOut)
	for i, step := range s.Steps {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, step.Detail)
	}
	sb.WriteString("\nSubmit the withdrawal first, then swap the received tokens.")
	return sb.String()
}

func monitorSummary(m *action.Monitor) string {
	verb := "Started"
	if m.Existing {
		verb = "Updated"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s monitoring %s on %s for %s with a %s alert threshold", verb, m.Asset, chainLabel(m.ChainID), m.Duration, m.Threshold)
	if len(m.Subscribers) > 0 {
		fmt.Fprintf(&sb, "; notifying %s", strings.Join(m.Subscribers, ", "))
	}
	return sb.String()
}

func swapAmount(s *action.Swap) string {
	if id.IsAll(s.AmountIn) {
		if s.AmountInResolved != "" {
			return fmt.Sprintf("all (%s)", s.AmountInResolved)
		}
		return "all"
	}
	return s.AmountIn
}

func tokenLabel(symbol, address string) string {
	if symbol == "" {
		return address
	}
	return symbol
}

func chainLabel(chainID string) string {
	chain := id.LookupChain(chainID)
	return fmt.Sprintf("%s (chain %s)", chain.Name, chainID)
}
