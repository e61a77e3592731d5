package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type Chain struct {
	Name    string
	Slug    string
	ChainID string
}

var chainByID = map[string]Chain{
	"1":        {Name: "Ethereum", Slug: "ethereum", ChainID: "1"},
	"10":       {Name: "Optimism", Slug: "optimism", ChainID: "10"},
	"56":       {Name: "BSC", Slug: "bsc", ChainID: "56"},
	"137":      {Name: "Polygon", Slug: "polygon", ChainID: "137"},
	"8453":     {Name: "Base", Slug: "base", ChainID: "8453"},
	"42161":    {Name: "Arbitrum", Slug: "arbitrum", ChainID: "42161"},
	"43114":    {Name: "Avalanche", Slug: "avalanche", ChainID: "43114"},
	"84532":    {Name: "Base Sepolia", Slug: "base-sepolia", ChainID: "84532"},
	"11155111": {Name: "Sepolia", Slug: "sepolia", ChainID: "11155111"},
}

// StripTestSuffix drops a harness marker such as "_fail" from an address.
// Everything from the first underscore on is removed.
func StripTestSuffix(address string) string {
	address = strings.TrimSpace(address)
	if i := strings.IndexByte(address, '_'); i >= 0 {
		return address[:i]
	}
	return address
}

// TestSuffix returns the marker word after the first underscore, lower-cased.
func TestSuffix(address string) string {
	address = strings.TrimSpace(address)
	i := strings.IndexByte(address, '_')
	if i < 0 {
		return ""
	}
	return strings.ToLower(address[i+1:])
}

func IsEVMAddress(address string) bool {
	return evmAddressPattern.MatchString(StripTestSuffix(address))
}

// ParseChainID accepts any base-10 integer of any magnitude. Ranges are not
// checked.
func ParseChainID(input string) (*big.Int, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return nil, clierr.New(clierr.CodeInvalidInput, "chain id is required")
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeInvalidInput, fmt.Sprintf("invalid chain id: %s", input))
	}
	return v, nil
}

func IsChainID(input string) bool {
	_, err := ParseChainID(input)
	return err == nil
}

// LookupChain returns display metadata for known chain ids and a generic
// descriptor for everything else.
func LookupChain(chainID string) Chain {
	chainID = strings.TrimSpace(chainID)
	if chain, ok := chainByID[chainID]; ok {
		return chain
	}
	return Chain{Name: fmt.Sprintf("EVM-%s", chainID), Slug: fmt.Sprintf("evm-%s", chainID), ChainID: chainID}
}
