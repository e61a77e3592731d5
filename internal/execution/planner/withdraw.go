package planner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

// Exit contract types understood by PlanWithdraw. Anything else falls back to
// a plain transfer of the token to the destination.
const (
	ExitPositionManager = "nonfungiblePositionManager"
	ExitPool            = "pool"
	ExitVault           = "vault"
)

// PlanWithdraw moves the position or balance to the destination address.
func (p *Planner) PlanWithdraw(w *action.Withdraw, sender string) ([]execution.Call, error) {
	from, err := address("sender", sender)
	if err != nil {
		return nil, err
	}
	to, err := address("destination_address", w.DestinationAddress)
	if err != nil {
		return nil, err
	}
	token, err := address("token_address", w.TokenAddress)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(w.ExitContract) == "" {
		return p.transfer(w, token, to)
	}
	exit, err := address("exit_contract", w.ExitContract)
	if err != nil {
		return nil, err
	}
	switch w.ExitContractType {
	case ExitPositionManager:
		return p.decreaseLiquidity(w, exit)
	case ExitPool:
		return p.poolWithdraw(w, exit, token, to)
	case ExitVault:
		return p.vaultRedeem(w, exit, from, to)
	default:
		return p.transfer(w, token, to)
	}
}

// amount resolves "all" to the known balance, or to fallback when none is
// known.
func (p *Planner) amount(w *action.Withdraw, fallback *big.Int) (*big.Int, error) {
	raw := w.Amount
	if id.IsAll(raw) {
		if w.AmountHint == "" {
			if fallback == nil {
				return nil, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("no known %s balance to withdraw in full", w.Token))
			}
			return new(big.Int).Set(fallback), nil
		}
		raw = w.AmountHint
	}
	return baseUnits(raw, w.Decimals, maxUint256)
}

func (p *Planner) transfer(w *action.Withdraw, token, to common.Address) ([]execution.Call, error) {
	amount, err := p.amount(w, nil)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Transfer %s %s to %s", id.FormatRat(new(big.Rat).SetFrac(amount, pow10(w.Decimals))), w.Token, to.Hex())
	if isNative(token) {
		return []execution.Call{call("withdraw-transfer", execution.CallTypeTransfer, w.ChainID, desc, to, "0x", amount)}, nil
	}
	data, err := pack(erc20ABI, "transfer", to, amount)
	if err != nil {
		return nil, err
	}
	return []execution.Call{call("withdraw-transfer", execution.CallTypeTransfer, w.ChainID, desc, token, data, nil)}, nil
}

func (p *Planner) poolWithdraw(w *action.Withdraw, pool, token, to common.Address) ([]execution.Call, error) {
	asset := token
	if w.UnderlyingAddress != "" {
		underlying, err := address("underlying_address", w.UnderlyingAddress)
		if err != nil {
			return nil, err
		}
		asset = underlying
	}
	// The pool treats max uint256 as the whole supplied balance.
	amount, err := p.amount(w, maxUint256)
	if err != nil {
		return nil, err
	}
	data, err := pack(aavePoolABI, "withdraw", asset, amount, to)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Withdraw %s from %s pool to %s", w.Token, w.Protocol, to.Hex())
	return []execution.Call{call("withdraw-pool", execution.CallTypeExit, w.ChainID, desc, pool, data, nil)}, nil
}

func (p *Planner) vaultRedeem(w *action.Withdraw, vault, owner, to common.Address) ([]execution.Call, error) {
	var shares *big.Int
	var err error
	if id.IsAll(w.Amount) && w.PositionShares != "" {
		shares, err = baseUnits(w.PositionShares, w.Decimals, maxUint256)
	} else {
		shares, err = p.amount(w, nil)
	}
	if err != nil {
		return nil, err
	}
	data, err := pack(vaultABI, "redeem", shares, to, owner)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Redeem %s vault shares to %s", w.Token, to.Hex())
	return []execution.Call{call("withdraw-vault", execution.CallTypeExit, w.ChainID, desc, vault, data, nil)}, nil
}

func (p *Planner) decreaseLiquidity(w *action.Withdraw, manager common.Address) ([]execution.Call, error) {
	if w.PositionTokenID == "" {
		return nil, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("no %s position token id to exit", w.Token))
	}
	tokenID, err := integer("position_token_id", w.PositionTokenID)
	if err != nil {
		return nil, err
	}
	liquidity, err := integer("position_liquidity", w.PositionLiquidity)
	if err != nil {
		return nil, err
	}
	if liquidity.Cmp(maxUint128) > 0 {
		liquidity = new(big.Int).Set(maxUint128)
	}
	params := struct {
		TokenId    *big.Int
		Liquidity  *big.Int
		Amount0Min *big.Int
		Amount1Min *big.Int
		Deadline   *big.Int
	}{
		TokenId:    tokenID,
		Liquidity:  liquidity,
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   p.deadline(),
	}
	data, err := pack(npmABI, "decreaseLiquidity", params)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Remove liquidity from %s position #%s", w.Token, tokenID.String())
	return []execution.Call{call("withdraw-liquidity", execution.CallTypeExit, w.ChainID, desc, manager, data, nil)}, nil
}

func pow10(decimals int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
