package signer

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoWallet is returned when neither a static address nor a signing key is
// configured.
var ErrNoWallet = errors.New("no wallet configured")

// WalletProvider reports the operator wallet address used as the safe
// destination for emergency withdrawals.
type WalletProvider interface {
	Address(ctx context.Context) (string, error)
}

// Wallet prefers a configured static address over the signer address.
type Wallet struct {
	static string
	signer Signer
}

func NewWallet(staticAddress string, s Signer) *Wallet {
	return &Wallet{static: strings.TrimSpace(staticAddress), signer: s}
}

func (w *Wallet) Address(_ context.Context) (string, error) {
	if w == nil {
		return "", ErrNoWallet
	}
	if w.static != "" {
		if !common.IsHexAddress(w.static) {
			return "", errors.New("configured wallet address is not a valid EVM address")
		}
		return common.HexToAddress(w.static).Hex(), nil
	}
	if w.signer != nil {
		return w.signer.Address().Hex(), nil
	}
	return "", ErrNoWallet
}

// Signer returns the signing key backing the wallet, if any.
func (w *Wallet) Signer() Signer {
	if w == nil {
		return nil
	}
	return w.signer
}
