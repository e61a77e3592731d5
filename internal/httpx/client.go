package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/version"
)

const maxRetryAfter = 5 * time.Second

// Client posts JSON to executor services with bounded retries on 429, 5xx
// and transport errors.
type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    max(retries, 0),
		userAgent:  version.CLIName + "/" + version.CLIVersion,
	}
}

// PostJSON marshals payload, posts it to url and decodes the reply into out.
// A nil out discards the reply body.
func PostJSON(ctx context.Context, c *Client, url string, payload any, headers map[string]string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode request body", err)
	}
	buf, err := c.send(ctx, http.MethodPost, url, body, headers)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return clierr.New(clierr.CodeUnavailable, "upstream returned empty response")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "decode upstream JSON", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var lastErr error
	var wait time.Duration
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if wait <= 0 {
				wait = backoff(attempt)
			}
			select {
			case <-ctx.Done():
				return nil, clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr, wait = mapNetError(err), 0
			continue
		}
		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "read upstream response", readErr)
		}

		var retry bool
		retry, lastErr = classify(resp.StatusCode, buf)
		if lastErr == nil {
			return buf, nil
		}
		if !retry {
			return nil, lastErr
		}
		wait = retryAfter(resp.Header.Get("Retry-After"))
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, clierr.New(clierr.CodeUnavailable, "request failed")
}

// classify maps a response status to an error and reports whether another
// attempt may succeed.
func classify(status int, body []byte) (bool, error) {
	switch {
	case status >= 200 && status < 300:
		return false, nil
	case status == http.StatusTooManyRequests:
		return true, clierr.New(clierr.CodeRateLimited, "upstream rate limited request")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false, clierr.New(clierr.CodeAuth, "upstream authentication failed")
	case status >= http.StatusInternalServerError:
		return true, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("upstream unavailable (status %d)", status))
	default:
		return false, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("upstream returned status %d%s", status, errorDetail(body)))
	}
}

// errorDetail prefers the "error" or "message" field of a JSON error body
// and falls back to a truncated raw snippet.
func errorDetail(buf []byte) string {
	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(buf, &decoded) == nil {
		if msg := strings.TrimSpace(decoded.Error + " " + decoded.Message); msg != "" {
			return ": " + msg
		}
	}
	text := strings.TrimSpace(string(buf))
	if text == "" {
		return ""
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return ": " + text
}

// retryAfter reads a delta-seconds Retry-After header. Dates and missing
// values return zero so the caller uses its own backoff.
func retryAfter(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeUnavailable, "upstream timeout", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, "upstream request failed", err)
}

func backoff(attempt int) time.Duration {
	d := min(120*time.Millisecond*time.Duration(1<<uint(attempt-1)), 2*time.Second)
	return d + time.Duration(rand.Intn(75))*time.Millisecond
}
