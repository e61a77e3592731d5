package execution

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/httpx"
)

const ExecutorRemote = "remote"

// Remote forwards built actions to an HTTP execution service that answers
// with {success, transaction_hash, message}.
type Remote struct {
	baseURL string
	apiKey  string
	client  *httpx.Client
	log     *slog.Logger
}

func NewRemote(baseURL, apiKey string, client *httpx.Client, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remote{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
		log:     logger,
	}
}

func (r *Remote) Withdraw(ctx context.Context, w *action.Withdraw) (action.Result, error) {
	return r.post(ctx, "/withdraw", w)
}

func (r *Remote) Revoke(ctx context.Context, rv *action.Revoke) (action.Result, error) {
	return r.post(ctx, "/revoke", rv)
}

func (r *Remote) Swap(ctx context.Context, s *action.Swap) (action.Result, error) {
	return r.post(ctx, "/swap", s)
}

func (r *Remote) post(ctx context.Context, path string, payload action.Built) (action.Result, error) {
	if r.baseURL == "" {
		return action.Result{}, clierr.New(clierr.CodeUsage, "remote executor url is not configured")
	}
	headers := map[string]string{}
	if r.apiKey != "" {
		headers["Authorization"] = "Bearer " + r.apiKey
	}
	var res action.Result
	err := httpx.PostJSON(ctx, r.client, r.baseURL+path, payload, headers, &res)
	if err != nil {
		if clierr.HasCode(err, clierr.CodeRateLimited) {
			return action.Result{Success: false, Message: MessageRateLimited}, nil
		}
		return action.Result{}, err
	}
	r.log.Info("remote executor answered", "kind", payload.Kind(), "success", res.Success, "tx_hash", res.TxHash)
	return res, nil
}
