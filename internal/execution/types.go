package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
)

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type CallType string

const (
	CallTypeApproval CallType = "approval"
	CallTypeTransfer CallType = "transfer"
	CallTypeExit     CallType = "exit"
	CallTypeSwap     CallType = "swap"
)

// Call is one planned transaction. Calls are signed locally at most; they are
// never broadcast.
type Call struct {
	StepID      string   `json:"step_id"`
	Type        CallType `json:"type"`
	ChainID     string   `json:"chain_id"`
	Description string   `json:"description,omitempty"`
	Target      string   `json:"target"`
	Data        string   `json:"data"`
	Value       string   `json:"value"`
	TxHash      string   `json:"tx_hash,omitempty"`
}

// Record is the journal entry for one executed remediation.
type Record struct {
	ActionID  string          `json:"action_id"`
	AlertID   string          `json:"alert_id,omitempty"`
	Kind      action.Kind     `json:"kind"`
	Executor  string          `json:"executor"`
	Status    Status          `json:"status"`
	ChainID   string          `json:"chain_id"`
	Sender    string          `json:"sender,omitempty"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Calls     []Call          `json:"calls"`
	Action    json.RawMessage `json:"action,omitempty"`
}

func NewRecord(kind action.Kind, executor, chainID string) Record {
	now := time.Now().UTC().Format(time.RFC3339)
	return Record{
		ActionID:  NewActionID(),
		Kind:      kind,
		Executor:  executor,
		Status:    StatusPlanned,
		ChainID:   chainID,
		CreatedAt: now,
		UpdatedAt: now,
		Calls:     []Call{},
	}
}

// PlainText is the one-line journal summary used by plain output.
func (r Record) PlainText() string {
	line := fmt.Sprintf("%s %s %s chain=%s calls=%d", r.ActionID, r.Kind, r.Status, r.ChainID, len(r.Calls))
	if r.TxHash != "" {
		line += " tx=" + r.TxHash
	}
	if r.Error != "" {
		line += " error=" + strconv.Quote(r.Error)
	}
	return line
}

func (r *Record) Touch() {
	r.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

func NewActionID() string {
	return "act_" + uuid.NewString()
}

type alertIDKey struct{}

// WithAlertID tags ctx with the alert being processed so journal entries can
// be correlated with it.
func WithAlertID(ctx context.Context, alertID string) context.Context {
	return context.WithValue(ctx, alertIDKey{}, alertID)
}

func AlertIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(alertIDKey{}).(string)
	return v
}
