// Package action holds the canonical request and built-action types that flow
// from the resolver through the builders to the dispatcher.
package action

import (
	"sort"
	"strings"
)

type Kind string

const (
	KindWithdraw Kind = "withdraw"
	KindRevoke   Kind = "revoke"
	KindSwap     Kind = "swap"
	KindMonitor  Kind = "monitor"
	KindUnknown  Kind = "unknown"
)

var Kinds = []Kind{KindWithdraw, KindRevoke, KindSwap, KindMonitor}

// Verb is the infinitive used in user-facing failure messages.
func (k Kind) Verb() string {
	switch k {
	case KindWithdraw:
		return "withdraw"
	case KindRevoke:
		return "revoke approval"
	case KindSwap:
		return "swap"
	case KindMonitor:
		return "set up monitoring"
	default:
		return string(k)
	}
}

// Gerund is the -ing form used when an executor call faults.
func (k Kind) Gerund() string {
	switch k {
	case KindWithdraw:
		return "withdrawing"
	case KindRevoke:
		return "revoking approval"
	case KindSwap:
		return "swapping"
	case KindMonitor:
		return "setting up monitoring"
	default:
		return string(k)
	}
}

// Request is a resolved but not yet validated action.
type Request struct {
	Kind    Kind              `json:"kind"`
	RawKind string            `json:"raw_kind,omitempty"`
	Params  map[string]string `json:"params"`
}

func NewRequest(kind Kind, params map[string]string) Request {
	if params == nil {
		params = map[string]string{}
	}
	return Request{Kind: kind, RawKind: string(kind), Params: params}
}

// Param returns the trimmed parameter value.
func (r Request) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	return strings.TrimSpace(r.Params[key])
}

func (r Request) Has(key string) bool {
	return r.Param(key) != ""
}

// SetDefault sets key only when it is absent or blank.
func (r Request) SetDefault(key, value string) {
	if r.Params == nil || r.Has(key) {
		return
	}
	r.Params[key] = value
}

func (r Request) Keys() []string {
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Built is a fully validated action. The set of implementations is closed.
type Built interface {
	Kind() Kind
	built()
}

type Withdraw struct {
	Token              string   `json:"token"`
	TokenAddress       string   `json:"token_address"`
	Amount             string   `json:"amount"`
	AmountHint         string   `json:"amount_hint,omitempty"`
	Decimals           int      `json:"decimals"`
	DestinationAddress string   `json:"destination_address"`
	ChainID            string   `json:"chain_id"`
	Protocol           string   `json:"protocol,omitempty"`
	Exchange           string   `json:"exchange,omitempty"`
	ExitContract       string   `json:"exit_contract,omitempty"`
	ExitFunction       string   `json:"exit_function,omitempty"`
	ExitContractType   string   `json:"exit_contract_type,omitempty"`
	UnderlyingAddress  string   `json:"underlying_address,omitempty"`
	PositionTokenID    string   `json:"position_token_id,omitempty"`
	PositionLiquidity  string   `json:"position_liquidity,omitempty"`
	PositionShares     string   `json:"position_shares,omitempty"`
	Notes              []string `json:"notes,omitempty"`
}

type Revoke struct {
	TokenAddress   string `json:"token_address"`
	Token          string `json:"token,omitempty"`
	SpenderAddress string `json:"spender_address"`
	Protocol       string `json:"protocol,omitempty"`
	ChainID        string `json:"chain_id"`
}

type SwapStep struct {
	Action string `json:"action"`
	Token  string `json:"token"`
	Amount string `json:"amount,omitempty"`
	Detail string `json:"detail"`
}

type Swap struct {
	TokenIn            string     `json:"token_in"`
	TokenOut           string     `json:"token_out"`
	TokenInAddress     string     `json:"token_in_address,omitempty"`
	TokenOutAddress    string     `json:"token_out_address,omitempty"`
	AmountIn           string     `json:"amount_in"`
	AmountInResolved   string     `json:"amount_in_resolved,omitempty"`
	Decimals           int        `json:"decimals"`
	DecimalsOut        int        `json:"decimals_out"`
	DEX                string     `json:"dex,omitempty"`
	RouterAddress      string     `json:"router_address,omitempty"`
	FeeTier            int        `json:"fee_tier"`
	ChainID            string     `json:"chain_id"`
	SlippagePct        string     `json:"slippage"`
	EstimatedAmountOut string     `json:"estimated_amount_out,omitempty"`
	MinAmountOut       string     `json:"min_amount_out,omitempty"`
	Recipient          string     `json:"recipient,omitempty"`
	Simulation         bool       `json:"simulation,omitempty"`
	TwoStep            bool       `json:"two_step,omitempty"`
	Steps              []SwapStep `json:"steps,omitempty"`
	DerivativeProtocol string     `json:"derivative_protocol,omitempty"`
}

type Monitor struct {
	Asset       string   `json:"asset"`
	ChainID     string   `json:"chain_id"`
	Duration    string   `json:"duration"`
	Threshold   string   `json:"threshold"`
	Key         string   `json:"key"`
	Subscribers []string `json:"subscribers,omitempty"`
	Existing    bool     `json:"existing"`
}

func (*Withdraw) Kind() Kind { return KindWithdraw }
func (*Revoke) Kind() Kind   { return KindRevoke }
func (*Swap) Kind() Kind     { return KindSwap }
func (*Monitor) Kind() Kind  { return KindMonitor }

func (*Withdraw) built() {}
func (*Revoke) built()   {}
func (*Swap) built()     {}
func (*Monitor) built()  {}

// Result is what an executor reports back for one submitted action.
type Result struct {
	Success bool   `json:"success"`
	TxHash  string `json:"transaction_hash,omitempty"`
	Message string `json:"message,omitempty"`
}
