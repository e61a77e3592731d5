package planner

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

// PlanSwap approves the router for the input amount and calls
// exactInputSingle. A native input is sent as value instead of approved.
func (p *Planner) PlanSwap(s *action.Swap, sender string) ([]execution.Call, error) {
	from, err := address("sender", sender)
	if err != nil {
		return nil, err
	}
	tokenIn, err := address("token_in_address", s.TokenInAddress)
	if err != nil {
		return nil, err
	}
	tokenOut, err := address("token_out_address", s.TokenOutAddress)
	if err != nil {
		return nil, err
	}
	router, err := address("router_address", s.RouterAddress)
	if err != nil {
		return nil, err
	}
	recipient := from
	if s.Recipient != "" {
		if recipient, err = address("recipient", s.Recipient); err != nil {
			return nil, err
		}
	}
	if s.AmountInResolved == "" {
		return nil, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("no known %s balance to swap", s.TokenIn))
	}
	amountIn, err := baseUnits(s.AmountInResolved, s.Decimals, maxUint256)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() == 0 {
		return nil, clierr.New(clierr.CodeInvalidInput, "swap amount must be positive")
	}
	minOut := big.NewInt(0)
	if s.MinAmountOut != "" {
		if minOut, err = baseUnits(s.MinAmountOut, s.DecimalsOut, maxUint256); err != nil {
			return nil, err
		}
	}

	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		Deadline          *big.Int
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(s.FeeTier)),
		Recipient:         recipient,
		Deadline:          p.deadline(),
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	}
	data, err := pack(routerABI, "exactInputSingle", params)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Swap %s %s for at least %s %s on %s", s.AmountInResolved, s.TokenIn, id.FormatRat(new(big.Rat).SetFrac(minOut, pow10(s.DecimalsOut))), s.TokenOut, s.DEX)

	calls := make([]execution.Call, 0, 2)
	var value *big.Int
	if isNative(tokenIn) {
		value = amountIn
	} else {
		approve, err := approval("swap-approval", s.ChainID, s.TokenIn, tokenIn, router, amountIn)
		if err != nil {
			return nil, err
		}
		calls = append(calls, approve)
	}
	calls = append(calls, call("swap-exact-input", execution.CallTypeSwap, s.ChainID, desc, router, data, value))
	return calls, nil
}
