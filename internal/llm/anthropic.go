package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

const (
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultMaxTokens = 1024
)

type AnthropicOptions struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Anthropic completes prompts with the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropic(opts AnthropicOptions) *Anthropic {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(max(opts.MaxRetries, 0)),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Anthropic{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (a *Anthropic) Model() string { return a.model }

func (a *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeLLM, "model request failed", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", clierr.New(clierr.CodeLLM, "model returned no text")
	}
	return text.String(), nil
}
