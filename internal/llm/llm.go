// Package llm holds the language-model collaborators used to analyze alerts.
package llm

import (
	"context"
	"errors"
	"strings"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

// Completer turns a system prompt and a user message into raw model text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type CompleterFunc func(ctx context.Context, system, user string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

var ErrUnavailable = errors.New("language model unavailable")

// Unavailable always fails. It stands in when no API key is configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Complete(context.Context, string, string) (string, error) {
	reason := strings.TrimSpace(u.Reason)
	if reason == "" {
		return "", clierr.Wrap(clierr.CodeLLM, "no model configured", ErrUnavailable)
	}
	return "", clierr.Wrap(clierr.CodeLLM, reason, ErrUnavailable)
}
