package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

const systemPromptHeader = `You are the incident responder for a DeFi treasury wallet.
Read the security alert, decide whether funds are at risk and choose exactly one remediation.

Answer with a single JSON object and nothing else:
{"analysis": "<one sentence>", "action_plan": {"action_type": "<action>", "parameters": {...}}}

Actions and their parameters:
- withdraw: token or token_address, amount ("all" or a decimal), chain_id, protocol, destination_address
- revoke: token_address, spender_address or protocol, chain_id
- swap: token_in, token_out, amount_in, chain_id, slippage, dex
- monitor: asset, chain_id, duration, threshold

Prefer withdraw when a protocol holding our funds is exploited, revoke when an approved
spender is compromised, swap when an asset we hold is depegging and monitor otherwise.`

// SystemPrompt lists the actions and the protocols the registry knows about.
func SystemPrompt(reg *registry.Registry) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	if reg == nil {
		return b.String()
	}
	protocols := reg.Protocols()
	if len(protocols) == 0 {
		return b.String()
	}
	b.WriteString("\n\nKnown protocols (name: chain ids):\n")
	for _, p := range protocols {
		chains := make([]string, 0, len(p.Chains))
		for _, c := range p.Chains {
			chains = append(chains, c.ChainID)
		}
		sort.Strings(chains)
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, strings.Join(chains, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func userPrompt(alert string) string {
	return "Security alert:\n" + strings.TrimSpace(alert) + "\n\nRespond with the JSON action plan. Allowed action_type values: " + strings.Join(kindNames(), ", ") + "."
}

func kindNames() []string {
	names := make([]string, 0, len(action.Kinds))
	for _, k := range action.Kinds {
		names = append(names, string(k))
	}
	return names
}
