package builder

import (
	"context"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

// Revoke validates in a fixed order: token, spender, token format, spender
// format, chain id, protocol.
func (b *Builder) Revoke(_ context.Context, req action.Request) (*action.Revoke, error) {
	chainID := req.Param("chain_id")
	if chainID == "" {
		chainID = b.reg.DefaultChainID()
	}

	token := req.Param("token")
	tokenAddress := req.Param("token_address")
	if isUnset(tokenAddress) {
		tokenAddress = ""
		if !isUnset(token) {
			if addr, _, ok := b.resolveToken(token, chainID); ok {
				tokenAddress = addr
			} else {
				tokenAddress = token
			}
		}
	}
	if tokenAddress == "" {
		return nil, invalid("Missing token address for revoke")
	}
	spender := req.Param("spender_address")
	if spender == "" {
		return nil, invalid("Missing spender address for revoke")
	}
	if !id.IsEVMAddress(tokenAddress) {
		return nil, invalid("Invalid token address format: %s", tokenAddress)
	}
	if !id.IsEVMAddress(spender) {
		return nil, invalid("Invalid spender address format: %s", spender)
	}
	if _, err := id.ParseChainID(chainID); err != nil {
		return nil, invalid("Invalid chain ID: %s", chainID)
	}
	protocol := req.Param("protocol")
	if isUnset(protocol) {
		protocol = ""
	}
	if protocol != "" {
		if _, ok := b.reg.LookupProtocol(protocol, chainID); !ok {
			return nil, unresolved("Unknown protocol %s on chain %s", protocol, chainID)
		}
	}

	symbol, _ := b.reg.SymbolForAddress(id.StripTestSuffix(tokenAddress), chainID)
	if symbol == "" && !isUnset(token) && !id.IsEVMAddress(token) {
		symbol = token
	}
	return &action.Revoke{
		TokenAddress:   tokenAddress,
		Token:          symbol,
		SpenderAddress: spender,
		Protocol:       protocol,
		ChainID:        chainID,
	}, nil
}
