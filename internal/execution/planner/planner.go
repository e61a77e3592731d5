// Package planner turns built remediation actions into ABI-encoded calls.
package planner

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

// NativeTokenAddress marks the chain's gas token in the registry.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

const DefaultDeadlineWindow = 20 * time.Minute

var (
	erc20ABI    = mustABI(registry.ERC20MinimalABI)
	routerABI   = mustABI(registry.UniswapV3RouterABI)
	npmABI      = mustABI(registry.UniswapV3PositionManagerABI)
	aavePoolABI = mustABI(registry.AavePoolABI)
	vaultABI    = mustABI(registry.ERC4626VaultABI)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

type Planner struct {
	Now            func() time.Time
	DeadlineWindow time.Duration
}

func New() *Planner {
	return &Planner{Now: time.Now, DeadlineWindow: DefaultDeadlineWindow}
}

func (p *Planner) deadline() *big.Int {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	window := p.DeadlineWindow
	if window <= 0 {
		window = DefaultDeadlineWindow
	}
	return big.NewInt(now().Add(window).Unix())
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// address validates raw after dropping any test marker.
func address(field, raw string) (common.Address, error) {
	clean := id.StripTestSuffix(raw)
	if !common.IsHexAddress(clean) {
		return common.Address{}, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("%s must be a valid EVM address: %s", field, raw))
	}
	return common.HexToAddress(clean), nil
}

func isNative(addr common.Address) bool {
	return addr == common.HexToAddress(NativeTokenAddress)
}

// baseUnits converts a decimal amount and caps it at max.
func baseUnits(amount string, decimals int, max *big.Int) (*big.Int, error) {
	v, err := id.DecimalToBaseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	if v.Cmp(max) > 0 {
		return new(big.Int).Set(max), nil
	}
	return v, nil
}

func integer(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("%s must be a non-negative integer: %s", field, raw))
	}
	return v, nil
}

func pack(contract abi.ABI, method string, args ...any) (string, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "pack "+method+" calldata", err)
	}
	return "0x" + common.Bytes2Hex(data), nil
}

func call(stepID string, typ execution.CallType, chainID, description string, target common.Address, data string, value *big.Int) execution.Call {
	if value == nil {
		value = big.NewInt(0)
	}
	return execution.Call{
		StepID:      stepID,
		Type:        typ,
		ChainID:     chainID,
		Description: description,
		Target:      target.Hex(),
		Data:        data,
		Value:       value.String(),
	}
}

var _ execution.Planner = (*Planner)(nil)
