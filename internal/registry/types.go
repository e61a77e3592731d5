package registry

import (
	"strconv"
	"strings"
)

// Unknown is returned by address lookups that have no answer.
const Unknown = "unknown"

type Token struct {
	Symbol   string            `json:"symbol"`
	Decimals int               `json:"decimals,omitempty"`
	Networks map[string]string `json:"networks"`
}

// ChainConfig holds per-chain protocol metadata. Keys are open-ended:
// router, swapRouter, approvalAddress, nonfungiblePositionManager, pool, vault...
type ChainConfig map[string]any

// String returns the value under key when it is a non-empty string.
func (c ChainConfig) String(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	raw, ok := c[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// First returns the first key in keys that carries a string value.
func (c ChainConfig) First(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if v, ok := c.String(key); ok {
			return key, v, true
		}
	}
	return "", "", false
}

type ProtocolChain struct {
	ChainID string
	Config  ChainConfig
}

// Protocol preserves the order in which chains appear in the source data.
type Protocol struct {
	Name   string
	Chains []ProtocolChain
}

func (p Protocol) Chain(chainID string) (ChainConfig, bool) {
	for _, chain := range p.Chains {
		if chain.ChainID == chainID {
			return chain.Config, true
		}
	}
	return nil, false
}

type Underlying struct {
	Symbol string `json:"symbol"`
	Ratio  string `json:"ratio"`
}

type ExitFunction struct {
	ContractType    string `json:"contractType"`
	FunctionName    string `json:"functionName"`
	ContractAddress string `json:"contractAddress"`
}

// DependencyEdge decomposes a derivative token into its underlyings.
type DependencyEdge struct {
	DerivativeSymbol string         `json:"derivativeSymbol"`
	ChainID          string         `json:"chainId"`
	Protocol         string         `json:"protocol"`
	Underlyings      []Underlying   `json:"underlyings"`
	ExitFunctions    []ExitFunction `json:"exitFunctions"`
}

// PrimaryExit returns the first declared exit function.
func (e DependencyEdge) PrimaryExit() (ExitFunction, bool) {
	if len(e.ExitFunctions) == 0 {
		return ExitFunction{}, false
	}
	return e.ExitFunctions[0], true
}

type UserPosition struct {
	Address   string `json:"address"`
	ChainID   string `json:"chain_id"`
	Symbol    string `json:"symbol"`
	TokenID   string `json:"tokenId,omitempty"`
	Shares    string `json:"shares,omitempty"`
	Liquidity string `json:"liquidity,omitempty"`
}

// Holding is one owner's snapshot on one chain.
type Holding struct {
	Owner     string
	ChainID   string
	Balances  map[string]string
	Positions []UserPosition
}

// Data is the full static dataset a Registry is built from.
type Data struct {
	Tokens       []Token
	Protocols    []Protocol
	Dependencies []DependencyEdge
	Holdings     []Holding
}
