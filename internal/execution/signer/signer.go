package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs planned transactions. Nothing in this module broadcasts them.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}
