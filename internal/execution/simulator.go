package execution

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution/signer"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

// Planner encodes built actions as calls. The concrete implementation lives
// in the planner subpackage.
type Planner interface {
	PlanWithdraw(w *action.Withdraw, sender string) ([]Call, error)
	PlanRevoke(r *action.Revoke, sender string) ([]Call, error)
	PlanSwap(s *action.Swap, sender string) ([]Call, error)
}

// Journal persists execution records.
type Journal interface {
	Save(rec Record) error
}

const ExecutorSimulator = "simulator"

// Address markers that make the simulator fail deterministically.
const (
	SuffixFail      = "fail"
	SuffixRateLimit = "ratelimit"
	SuffixError     = "error"
)

const (
	MessageReverted    = "transaction reverted (simulated failure)"
	MessageRateLimited = "rate limited"
	messageSimulated   = "Simulated locally, transaction not broadcast."
)

var ErrSimulatedConnectivity = errors.New("executor unreachable (simulated connectivity failure)")

type SimulatorOptions struct {
	Planner Planner
	Wallet  signer.WalletProvider
	Signer  signer.Signer
	Journal Journal
	Logger  *slog.Logger
}

// Simulator plans and hashes calls without broadcasting them.
type Simulator struct {
	planner Planner
	wallet  signer.WalletProvider
	signer  signer.Signer
	journal Journal
	log     *slog.Logger
}

func NewSimulator(opts SimulatorOptions) *Simulator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simulator{
		planner: opts.Planner,
		wallet:  opts.Wallet,
		signer:  opts.Signer,
		journal: opts.Journal,
		log:     logger,
	}
}

func (s *Simulator) Withdraw(ctx context.Context, w *action.Withdraw) (action.Result, error) {
	return s.run(ctx, w, w.ChainID, func(sender string) ([]Call, error) {
		return s.planner.PlanWithdraw(w, sender)
	}, w.TokenAddress, w.DestinationAddress)
}

func (s *Simulator) Revoke(ctx context.Context, r *action.Revoke) (action.Result, error) {
	return s.run(ctx, r, r.ChainID, func(sender string) ([]Call, error) {
		return s.planner.PlanRevoke(r, sender)
	}, r.TokenAddress, r.SpenderAddress)
}

func (s *Simulator) Swap(ctx context.Context, sw *action.Swap) (action.Result, error) {
	return s.run(ctx, sw, sw.ChainID, func(sender string) ([]Call, error) {
		return s.planner.PlanSwap(sw, sender)
	}, sw.TokenInAddress, sw.TokenOutAddress, sw.RouterAddress)
}

func (s *Simulator) run(ctx context.Context, built action.Built, chainID string, plan func(sender string) ([]Call, error), addresses ...string) (action.Result, error) {
	if err := ctx.Err(); err != nil {
		return action.Result{}, err
	}
	switch injectedFailure(addresses...) {
	case SuffixError:
		return action.Result{}, ErrSimulatedConnectivity
	case SuffixRateLimit:
		return action.Result{Success: false, Message: MessageRateLimited}, nil
	case SuffixFail:
		return action.Result{Success: false, Message: MessageReverted}, nil
	}
	if s.planner == nil {
		return action.Result{}, clierr.New(clierr.CodeExecutor, "simulator has no planner")
	}

	sender := s.sender(ctx)
	rec := NewRecord(built.Kind(), ExecutorSimulator, chainID)
	rec.AlertID = AlertIDFrom(ctx)
	rec.Sender = sender
	if payload, err := json.Marshal(built); err == nil {
		rec.Action = payload
	}

	calls, err := plan(sender)
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		s.save(rec)
		return action.Result{Success: false, Message: err.Error()}, nil
	}
	if len(calls) == 0 {
		return action.Result{Success: false, Message: "nothing to execute"}, nil
	}
	chain, err := id.ParseChainID(chainID)
	if err != nil {
		return action.Result{Success: false, Message: err.Error()}, nil
	}
	for i := range calls {
		hash, err := s.hash(chain, uint64(i), calls[i])
		if err != nil {
			return action.Result{}, clierr.Wrap(clierr.CodeExecutor, "sign planned call", err)
		}
		calls[i].TxHash = hash
	}
	rec.Calls = calls
	rec.Status = StatusCompleted
	rec.TxHash = calls[len(calls)-1].TxHash
	rec.Message = messageSimulated
	rec.Touch()
	s.save(rec)
	s.log.Info("simulated action", "kind", built.Kind(), "action_id", rec.ActionID, "calls", len(calls), "tx_hash", rec.TxHash)
	return action.Result{Success: true, TxHash: rec.TxHash, Message: messageSimulated}, nil
}

func (s *Simulator) sender(ctx context.Context) string {
	if s.wallet != nil {
		if addr, err := s.wallet.Address(ctx); err == nil {
			return addr
		}
	}
	if s.signer != nil {
		return s.signer.Address().Hex()
	}
	return common.Address{}.Hex()
}

// hash signs the call as a dynamic fee transaction when a signer is present,
// otherwise it is the keccak of the encoded call.
func (s *Simulator) hash(chainID *big.Int, nonce uint64, c Call) (string, error) {
	to := common.HexToAddress(c.Target)
	value, ok := new(big.Int).SetString(c.Value, 10)
	if !ok {
		value = big.NewInt(0)
	}
	data := common.FromHex(c.Data)
	if s.signer == nil {
		return crypto.Keccak256Hash(chainID.Bytes(), to.Bytes(), value.Bytes(), data).Hex(), nil
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		To:        &to,
		Value:     value,
		Data:      data,
		Gas:       300_000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
	})
	signed, err := s.signer.SignTx(chainID, tx)
	if err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func (s *Simulator) save(rec Record) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Save(rec); err != nil {
		s.log.Warn("journal save failed", "action_id", rec.ActionID, "error", err)
	}
}

func injectedFailure(addresses ...string) string {
	for _, addr := range addresses {
		switch suffix := strings.TrimSpace(id.TestSuffix(addr)); suffix {
		case SuffixError, SuffixRateLimit, SuffixFail:
			return suffix
		}
	}
	return ""
}
