package registry

import (
	"math/big"
	"strings"
)

// KnownUniswapRouter is the Uniswap V3 SwapRouter deployed at the same
// address on most EVM chains. Used as a last-resort revoke spender.
const KnownUniswapRouter = "0xE592427A0AEce92De3Edee1F18E0157C05861564"

// DefaultDEX is used when a chain has no entry in the DEX table.
const DefaultDEX = "UniswapV3"

var defaultDEXByChainID = map[string]string{
	"1":     "UniswapV3",
	"10":    "UniswapV3",
	"137":   "UniswapV3",
	"8453":  "UniswapV3",
	"42161": "UniswapV3",
	"84532": "UniswapV3",
}

func DefaultDEXForChain(chainID string) string {
	if dex, ok := defaultDEXByChainID[strings.TrimSpace(chainID)]; ok {
		return dex
	}
	return DefaultDEX
}

// Pairwise spot ratios keyed "IN/OUT". Pairs not listed trade 1:1.
var priceRatios = map[string]string{
	"WETH/USDC": "3000",
	"USDC/WETH": "1/3000",
	"WETH/DAI":  "3000",
	"DAI/WETH":  "1/3000",
	"WBTC/USDC": "60000",
	"USDC/WBTC": "1/60000",
	"USDC/DAI":  "1",
	"DAI/USDC":  "1",
	"USDC/USDT": "1",
	"USDT/USDC": "1",
}

// PriceRatio returns the configured ratio for the pair, or 1 with ok=false
// when the pair is not listed. Symbols are compared case-insensitively.
func PriceRatio(tokenIn, tokenOut string) (*big.Rat, bool) {
	key := strings.ToUpper(strings.TrimSpace(tokenIn)) + "/" + strings.ToUpper(strings.TrimSpace(tokenOut))
	if raw, ok := priceRatios[key]; ok {
		if r, ok := new(big.Rat).SetString(raw); ok {
			return r, true
		}
	}
	return big.NewRat(1, 1), false
}
