package resolver

import (
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
)

var kindAliases = map[string]action.Kind{
	"withdraw":   action.KindWithdraw,
	"withdrawal": action.KindWithdraw,
	"revoke":     action.KindRevoke,
	"revocation": action.KindRevoke,
	"swap":       action.KindSwap,
	"exchange":   action.KindSwap,
	"convert":    action.KindSwap,
	"monitor":    action.KindMonitor,
	"monitoring": action.KindMonitor,
}

// ParseKind folds a model-supplied action name onto a canonical kind.
func ParseKind(raw string) action.Kind {
	if kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return kind
	}
	return action.KindUnknown
}

type keywordRule struct {
	kind     action.Kind
	keywords []string
}

// Checked in order; the first rule with a matching substring wins.
var freeTextRules = []keywordRule{
	{kind: action.KindWithdraw, keywords: []string{"withdraw", "exit"}},
	{kind: action.KindSwap, keywords: []string{"swap", "convert", "exchange"}},
	{kind: action.KindRevoke, keywords: []string{"revoke", "permissions", "approval"}},
}

// ClassifyText picks an action kind from free text. It never returns
// KindUnknown.
func ClassifyText(text string) action.Kind {
	lower := strings.ToLower(text)
	for _, rule := range freeTextRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind
			}
		}
	}
	return action.KindMonitor
}

type paramDefault struct {
	name  string
	value string
}

var freeTextParams = map[action.Kind][]paramDefault{
	action.KindWithdraw: {
		{"token", "unknown"},
		{"amount", "all"},
		{"chain_id", "1"},
		{"token_address", ""},
		{"destination_address", ""},
		{"protocol", ""},
	},
	action.KindSwap: {
		{"token_in", "unknown"},
		{"token_out", "USDC"},
		{"amount_in", "all"},
		{"chain_id", "1"},
		{"slippage", ""},
		{"dex", ""},
	},
	action.KindRevoke: {
		{"token", "unknown"},
		{"token_address", "unknown"},
		{"protocol", "unknown"},
		{"chain_id", "1"},
		{"spender_address", ""},
	},
	action.KindMonitor: {
		{"asset", DefaultMonitorAsset},
		{"chain_id", ""},
		{"duration", DefaultMonitorDuration},
		{"threshold", DefaultMonitorThreshold},
	},
}

const (
	DefaultMonitorAsset     = "All Positions"
	DefaultMonitorDuration  = "24h"
	DefaultMonitorThreshold = "5%"
)

// MonitorDefault is the request used whenever resolution cannot proceed.
func MonitorDefault() action.Request {
	return action.NewRequest(action.KindMonitor, map[string]string{
		"asset":     DefaultMonitorAsset,
		"duration":  DefaultMonitorDuration,
		"threshold": DefaultMonitorThreshold,
	})
}
