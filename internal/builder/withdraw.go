package builder

import (
	"context"
	"fmt"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

// Withdraw builds an emergency withdrawal. Missing positions or exit
// functions are recorded as notes; the withdrawal is still attempted.
func (b *Builder) Withdraw(_ context.Context, req action.Request) (*action.Withdraw, error) {
	token := req.Param("token")
	tokenAddress := req.Param("token_address")
	if isUnset(token) && isUnset(tokenAddress) {
		return nil, invalid("Missing token information for withdrawal")
	}
	destination := req.Param("destination_address")
	if destination == "" {
		return nil, invalid("Missing destination address for withdrawal")
	}
	amount := req.Param("amount")
	if amount == "" {
		return nil, invalid("Missing amount for withdrawal")
	}
	if !id.IsEVMAddress(destination) {
		return nil, invalid("Invalid destination address format: %s", destination)
	}
	chainID := req.Param("chain_id")
	if chainID == "" {
		chainID = DefaultChainID
	}
	if _, err := id.ParseChainID(chainID); err != nil {
		return nil, invalid("Invalid chain ID: %s", chainID)
	}

	var resolvedAddress, symbol string
	if !isUnset(tokenAddress) {
		if !id.IsEVMAddress(tokenAddress) {
			return nil, invalid("Invalid token address format: %s", tokenAddress)
		}
		resolvedAddress = tokenAddress
		symbol, _ = b.reg.SymbolForAddress(id.StripTestSuffix(tokenAddress), chainID)
		if symbol == "" && !isUnset(token) {
			symbol = token
		}
	} else {
		addr, sym, ok := b.resolveToken(token, chainID)
		if !ok {
			return nil, unresolved("Could not resolve token address for %s on chain %s", token, chainID)
		}
		resolvedAddress, symbol = addr, sym
	}

	normalizedAmount, err := id.ParseAmount(amount)
	if err != nil {
		return nil, invalid("Invalid amount format: %s", amount)
	}

	out := &action.Withdraw{
		Token:              symbol,
		TokenAddress:       resolvedAddress,
		Amount:             normalizedAmount,
		Decimals:           b.reg.TokenDecimals(symbol),
		DestinationAddress: destination,
		ChainID:            chainID,
		Protocol:           req.Param("protocol"),
		Exchange:           req.Param("exchange"),
	}
	if symbol == "" {
		out.Decimals = 18
		return out, nil
	}

	owner := b.ownerFor(destination)
	if id.IsAll(normalizedAmount) {
		if balance, ok := b.reg.Balance(owner, chainID, symbol); ok {
			out.AmountHint = balance
		}
	}

	positions := b.reg.UserPositions(owner, chainID, symbol)
	if len(positions) == 0 {
		out.Notes = append(out.Notes, fmt.Sprintf("No %s position found for %s on chain %s", symbol, owner, chainID))
	} else {
		out.PositionTokenID = positions[0].TokenID
		out.PositionLiquidity = positions[0].Liquidity
		out.PositionShares = positions[0].Shares
	}

	edge, ok := b.reg.LookupDependency(symbol, chainID)
	exit, hasExit := edge.PrimaryExit()
	if !ok || !hasExit {
		out.Notes = append(out.Notes, fmt.Sprintf("No exit function registered for %s on chain %s, using a direct token transfer", symbol, chainID))
	} else {
		out.ExitContract = exit.ContractAddress
		out.ExitFunction = exit.FunctionName
		out.ExitContractType = exit.ContractType
		if len(edge.Underlyings) > 0 {
			if addr := b.reg.LookupTokenAddress(edge.Underlyings[0].Symbol, chainID); !isUnset(addr) {
				out.UnderlyingAddress = addr
			}
		}
		if out.Protocol == "" {
			out.Protocol = edge.Protocol
		}
	}
	if out.Exchange == "" {
		out.Exchange = out.Protocol
	}
	b.log.Debug("built withdraw", "token", symbol, "chain_id", chainID, "notes", len(out.Notes))
	return out, nil
}
