package planner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
)

// PlanRevoke zeroes the spender's allowance on the token.
func (p *Planner) PlanRevoke(r *action.Revoke, sender string) ([]execution.Call, error) {
	if _, err := address("sender", sender); err != nil {
		return nil, err
	}
	token, err := address("token_address", r.TokenAddress)
	if err != nil {
		return nil, err
	}
	spender, err := address("spender_address", r.SpenderAddress)
	if err != nil {
		return nil, err
	}
	step, err := approval("revoke-approval", r.ChainID, r.Token, token, spender, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return []execution.Call{step}, nil
}

func approval(stepID, chainID, symbol string, token, spender common.Address, amount *big.Int) (execution.Call, error) {
	data, err := pack(erc20ABI, "approve", spender, amount)
	if err != nil {
		return execution.Call{}, err
	}
	label := strings.ToUpper(strings.TrimSpace(symbol))
	if label == "" {
		label = token.Hex()
	}
	desc := fmt.Sprintf("Approve %s for %s", label, spender.Hex())
	if amount.Sign() == 0 {
		desc = fmt.Sprintf("Revoke %s allowance of %s", label, spender.Hex())
	}
	return call(stepID, execution.CallTypeApproval, chainID, desc, token, data, nil), nil
}
