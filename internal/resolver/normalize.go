package resolver

import (
	"context"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

// normalize backfills kind-specific parameters on a raw parameter map and
// renders every value as a string.
func (r *Resolver) normalize(ctx context.Context, kind action.Kind, rawKind string, params map[string]any) action.Request {
	if params == nil {
		params = map[string]any{}
	}
	switch kind {
	case action.KindWithdraw:
		r.normalizeWithdraw(ctx, params)
	case action.KindRevoke:
		r.normalizeRevoke(params)
	case action.KindSwap:
		normalizeSwap(params)
	case action.KindMonitor:
		normalizeMonitor(params)
	}

	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = stringify(v)
	}
	return action.Request{Kind: kind, RawKind: rawKind, Params: out}
}

// normalizeWithdraw picks the destination in order: the wallet address, a
// destination the model supplied, then the fallback address.
func (r *Resolver) normalizeWithdraw(ctx context.Context, params map[string]any) {
	if addr := r.walletAddress(ctx); addr != "" {
		params["destination_address"] = addr
	} else if !hasParam(params, "destination_address") && r.allowFallback && r.fallbackAddress != "" {
		r.log.Warn("wallet provider unavailable, using fallback destination", "address", r.fallbackAddress)
		params["destination_address"] = r.fallbackAddress
	}
	if !hasParam(params, "token") {
		if token := firstToken(params["tokens"]); token != "" {
			params["token"] = token
		}
	}
	setDefault(params, "amount", "all")
	setDefault(params, "chain_id", "1")
}

func (r *Resolver) normalizeRevoke(params map[string]any) {
	protocol := paramString(params, "protocol")
	if protocol == "" || hasParam(params, "spender_address") {
		return
	}
	chainID := paramString(params, "chain_id")
	if chainID == "" && r.registry != nil {
		chainID = r.registry.DefaultChainID()
	}
	if r.registry != nil {
		if cfg, ok := r.registry.LookupProtocol(protocol, chainID); ok {
			if key, spender, ok := cfg.First("router", "swapRouter", "approvalAddress"); ok {
				r.log.Debug("revoke spender from protocol config", "protocol", protocol, "chain_id", chainID, "key", key)
				params["spender_address"] = spender
				return
			}
		}
	}
	if approval := paramString(params, "approval_address"); approval != "" {
		params["spender_address"] = approval
		return
	}
	if strings.Contains(strings.ToLower(protocol), "uniswap") {
		params["spender_address"] = registry.KnownUniswapRouter
	}
}

func normalizeSwap(params map[string]any) {
	tokens := tokenList(params["tokens"])
	if len(tokens) < 2 {
		return
	}
	if !hasParam(params, "token_in") {
		params["token_in"] = tokens[0]
	}
	if !hasParam(params, "token_out") {
		params["token_out"] = tokens[1]
	}
}

func normalizeMonitor(params map[string]any) {
	if !hasParam(params, "asset") {
		if asset := paramString(params, "asset_to_monitor"); asset != "" {
			params["asset"] = asset
		}
	}
	setDefault(params, "duration", DefaultMonitorDuration)
	setDefault(params, "threshold", DefaultMonitorThreshold)
}

func (r *Resolver) walletAddress(ctx context.Context) string {
	if r.wallet == nil {
		return ""
	}
	addr, err := r.wallet.Address(ctx)
	if err != nil {
		r.log.Debug("wallet provider returned no address", "error", err)
		return ""
	}
	return strings.TrimSpace(addr)
}

func paramString(params map[string]any, key string) string {
	return strings.TrimSpace(stringify(params[key]))
}

func hasParam(params map[string]any, key string) bool {
	return paramString(params, key) != ""
}

func setDefault(params map[string]any, key, value string) {
	if !hasParam(params, key) {
		params[key] = value
	}
}

// tokenList accepts a list of strings or of objects keyed token/token_name.
func tokenList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, key := range []string{"token", "token_name"} {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
					break
				}
			}
		}
	}
	return out
}

func firstToken(raw any) string {
	tokens := tokenList(raw)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
