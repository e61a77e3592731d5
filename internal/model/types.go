package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Executor  string    `json:"executor,omitempty"`
	Model     string    `json:"model,omitempty"`
}

// AlertOutcome is the result of running one alert through the pipeline.
type AlertOutcome struct {
	AlertID     string `json:"alert_id"`
	Source      string `json:"source"`
	Kind        string `json:"kind"`
	Success     bool   `json:"success"`
	Executed    bool   `json:"executed"`
	Message     string `json:"message"`
	TxHash      string `json:"transaction_hash,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	LLMError    string `json:"llm_error,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// PlainText lets the plain renderer print the message verbatim.
func (o AlertOutcome) PlainText() string { return o.Message }

type TokenInfo struct {
	Symbol   string `json:"symbol"`
	ChainID  string `json:"chain_id"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

type ProtocolInfo struct {
	Name    string         `json:"name"`
	ChainID string         `json:"chain_id"`
	Config  map[string]any `json:"config"`
}

type ChainInfo struct {
	ChainID string `json:"chain_id"`
	Name    string `json:"name"`
	Source  string `json:"source"`
}

type MonitorInfo struct {
	Key         string   `json:"key"`
	Asset       string   `json:"asset"`
	ChainID     string   `json:"chain_id"`
	Duration    string   `json:"duration"`
	Threshold   string   `json:"threshold"`
	Subscribers []string `json:"subscribers"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}
