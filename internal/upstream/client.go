package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"odinboard/internal/config"
	"strconv"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

var (
	// upstream unreachable or answered non-2xx after all attempts
	ErrFetchFailed = errors.New("upstream fetch failed")
)

// Stateless read-only client for the market-data API.
// Every call goes through a bounded retry: up to MaxAttempts with linearly
// increasing backoff (backoff * attempt). 4xx other than 429 is not retried.
type Client struct {
	log         logger.Logger
	httpc       *http.Client
	baseURL     string
	maxAttempts int
	backoff     time.Duration
}

func New(log logger.Logger, cfg *config.UpstreamConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("upstream config is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base_url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Client{
		log:         log,
		httpc:       &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}, nil
}

// Get fetches one resource and returns the raw JSON payload
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, retryable, err := c.doOnce(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable || attempt == c.maxAttempts {
			break
		}

		delay := c.backoff * time.Duration(attempt)
		c.log.Warnf("Upstream attempt %d/%d failed for %s: %v, retrying in %s", attempt, c.maxAttempts, path, err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, path, lastErr)
}

func (c *Client) doOnce(ctx context.Context, u string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		retryable = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	return body, false, nil
}

// ---- typed endpoints, raw payloads ----

func (c *Client) Tokens(ctx context.Context, sort string, limit int) ([]byte, error) {
	q := url.Values{}
	if sort != "" {
		q.Set("sort", sort)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.Get(ctx, "/tokens", q)
}

func (c *Client) Token(ctx context.Context, id string) ([]byte, error) {
	return c.Get(ctx, "/token/"+url.PathEscape(id), nil)
}

func (c *Client) TokenTrades(ctx context.Context, id string, limit int) ([]byte, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.Get(ctx, "/token/"+url.PathEscape(id)+"/trades", q)
}

func (c *Client) TokenHolders(ctx context.Context, id string) ([]byte, error) {
	return c.Get(ctx, "/token/"+url.PathEscape(id)+"/holders", nil)
}

func (c *Client) CreatorTokens(ctx context.Context, principal string, limit int) ([]byte, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.Get(ctx, "/creator/"+url.PathEscape(principal)+"/tokens", q)
}

func (c *Client) User(ctx context.Context, principal string) ([]byte, error) {
	return c.Get(ctx, "/user/"+url.PathEscape(principal), nil)
}

func (c *Client) UserBalances(ctx context.Context, principal string, lp bool, limit int) ([]byte, error) {
	q := url.Values{}
	if lp {
		q.Set("lp", "true")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.Get(ctx, "/user/"+url.PathEscape(principal)+"/balances", q)
}

// NewestTokens is the fast poll window; the upstream caps it at 4
func (c *Client) NewestTokens(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("sort", "created_time:desc")
	q.Set("limit", "4")
	return c.Get(ctx, "/tokens", q)
}

func (c *Client) OlderRecentTokens(ctx context.Context, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("sort", "created_time:desc")
	q.Set("limit", strconv.Itoa(limit))
	return c.Get(ctx, "/tokens", q)
}
