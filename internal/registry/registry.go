package registry

import (
	"strings"
)

// FallbackChainID is used for chain-less lookups when no protocol data is
// configured, and preferred whenever any protocol configures it.
const FallbackChainID = "84532"

// Registry is read-only after construction and safe for concurrent readers.
type Registry struct {
	tokens       map[string]Token
	protocols    []Protocol
	protocolIdx  map[string]int
	dependencies []DependencyEdge
	holdings     map[string]Holding
}

func New(data Data) *Registry {
	r := &Registry{
		tokens:      map[string]Token{},
		protocolIdx: map[string]int{},
		holdings:    map[string]Holding{},
	}
	for _, token := range data.Tokens {
		if strings.TrimSpace(token.Symbol) == "" {
			continue
		}
		r.tokens[token.Symbol] = token
	}
	for _, protocol := range data.Protocols {
		if _, ok := r.protocolIdx[protocol.Name]; ok {
			continue
		}
		r.protocolIdx[protocol.Name] = len(r.protocols)
		r.protocols = append(r.protocols, protocol)
	}
	r.dependencies = append(r.dependencies, data.Dependencies...)
	for _, holding := range data.Holdings {
		r.holdings[holdingKey(holding.Owner, holding.ChainID)] = holding
	}
	return r
}

func holdingKey(owner, chainID string) string {
	return strings.ToLower(strings.TrimSpace(owner)) + "|" + strings.TrimSpace(chainID)
}

// LookupToken is case-sensitive on the symbol: "usdc" is not "USDC".
func (r *Registry) LookupToken(symbol string) (Token, bool) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Token{}, false
	}
	token, ok := r.tokens[symbol]
	return token, ok
}

// LookupTokenAddress never fails; a miss yields Unknown.
func (r *Registry) LookupTokenAddress(symbol, chainID string) string {
	token, ok := r.LookupToken(symbol)
	if !ok {
		return Unknown
	}
	addr, ok := token.Networks[strings.TrimSpace(chainID)]
	if !ok || strings.TrimSpace(addr) == "" {
		return Unknown
	}
	return addr
}

// TokenDecimals defaults to 18 for unknown symbols.
func (r *Registry) TokenDecimals(symbol string) int {
	token, ok := r.LookupToken(symbol)
	if !ok || token.Decimals <= 0 {
		return 18
	}
	return token.Decimals
}

// SymbolForAddress is the reverse token lookup on one chain.
func (r *Registry) SymbolForAddress(address, chainID string) (string, bool) {
	for symbol, token := range r.tokens {
		if addr, ok := token.Networks[chainID]; ok && strings.EqualFold(addr, address) {
			return symbol, true
		}
	}
	return "", false
}

// LookupProtocol is case-sensitive on the protocol name.
func (r *Registry) LookupProtocol(name, chainID string) (ChainConfig, bool) {
	idx, ok := r.protocolIdx[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return r.protocols[idx].Chain(strings.TrimSpace(chainID))
}

func (r *Registry) HasProtocol(name string) bool {
	_, ok := r.protocolIdx[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Protocols() []Protocol {
	out := make([]Protocol, len(r.protocols))
	copy(out, r.protocols)
	return out
}

// LookupDependencies returns every edge for the derivative, in source order.
func (r *Registry) LookupDependencies(symbol string) []DependencyEdge {
	symbol = strings.TrimSpace(symbol)
	var out []DependencyEdge
	for _, edge := range r.dependencies {
		if strings.EqualFold(edge.DerivativeSymbol, symbol) {
			out = append(out, edge)
		}
	}
	return out
}

func (r *Registry) LookupDependency(symbol, chainID string) (DependencyEdge, bool) {
	for _, edge := range r.LookupDependencies(symbol) {
		if edge.ChainID == strings.TrimSpace(chainID) {
			return edge, true
		}
	}
	return DependencyEdge{}, false
}

// DefaultChainID picks the chain used when a request names none. The
// fallback chain wins when any protocol configures it; otherwise the first
// chain seen walking protocols and their chains in source order.
func (r *Registry) DefaultChainID() string {
	first := ""
	for _, protocol := range r.protocols {
		for _, chain := range protocol.Chains {
			if chain.ChainID == FallbackChainID {
				return FallbackChainID
			}
			if first == "" {
				first = chain.ChainID
			}
		}
	}
	if first == "" {
		return FallbackChainID
	}
	return first
}

// UserPositions filters the owner's positions on a chain; an empty symbol
// matches all.
func (r *Registry) UserPositions(owner, chainID, symbol string) []UserPosition {
	holding, ok := r.holdings[holdingKey(owner, chainID)]
	if !ok {
		return nil
	}
	var out []UserPosition
	for _, pos := range holding.Positions {
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		out = append(out, pos)
	}
	return out
}

func (r *Registry) Balance(owner, chainID, symbol string) (string, bool) {
	holding, ok := r.holdings[holdingKey(owner, chainID)]
	if !ok {
		return "", false
	}
	v, ok := holding.Balances[symbol]
	return v, ok
}
