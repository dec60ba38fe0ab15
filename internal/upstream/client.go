// Package upstream translates the three remote leaderboard endpoints
// into typed domain records, tolerating the malformed shapes the real
// APIs produce.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/observability"
)

// Sort selects the leaderboard page ordering. Value 2 is unused by the
// upstream; the gap is preserved for wire compatibility.
type Sort int

const (
	SortWinRate          Sort = 0
	SortAccountValue     Sort = 1
	SortRealizedPnl      Sort = 3
	SortTradesCount      Sort = 4
	SortProfitableTrades Sort = 5
	SortLastOperation    Sort = 6
	SortAvgHoldingPeriod Sort = 7
	SortCurrentPositions Sort = 8
)

// Endpoint names used in errors, logs and metrics.
const (
	EndpointLeaderboard = "leaderboard"
	EndpointAddressStat = "address_stat"
	EndpointPortfolio   = "portfolio"
)

// Default configuration values.
const (
	DefaultTimeout       = 8 * time.Second
	DefaultRetryDelay    = 200 * time.Millisecond
	DefaultPageRetries   = 0 // page boundaries matter more than success
	DefaultStatRetries   = 2
	DefaultSeriesRetries = 1

	decodeSnippetLen = 200
)

// Client is the typed fetcher for the leaderboard page API, the
// per-address stats API and the portfolio-history API. A single client
// (and its HTTP transport) is shared across all calls.
type Client struct {
	leaderboardURL string
	statBaseURL    string
	infoURL        string

	client        *http.Client
	timeout       time.Duration
	retryDelay    time.Duration
	pageRetries   int
	statRetries   int
	seriesRetries int
	log           zerolog.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.client = client }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRetryDelay sets the base of the linear backoff.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

// WithRetries overrides the per-endpoint retry counts.
func WithRetries(page, stat, series int) ClientOption {
	return func(c *Client) {
		c.pageRetries = page
		c.statRetries = stat
		c.seriesRetries = series
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the three upstream endpoints.
func NewClient(leaderboardURL, statBaseURL, infoURL string, opts ...ClientOption) *Client {
	c := &Client{
		leaderboardURL: leaderboardURL,
		statBaseURL:    statBaseURL,
		infoURL:        infoURL,
		client:         &http.Client{},
		timeout:        DefaultTimeout,
		retryDelay:     DefaultRetryDelay,
		pageRetries:    DefaultPageRetries,
		statRetries:    DefaultStatRetries,
		seriesRetries:  DefaultSeriesRetries,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage retrieves one leaderboard page. hasMore reports whether the
// page was full, i.e. pagination may continue.
func (c *Client) FetchPage(ctx context.Context, period, pageNum, pageSize int, sort Sort) ([]*domain.RawLeaderboardEntry, bool, error) {
	endpoint := fmt.Sprintf("%s?pageNum=%d&pageSize=%d&period=%d&sort=%d",
		c.leaderboardURL, pageNum, pageSize, period, int(sort))

	body, err := c.doWithRetry(ctx, EndpointLeaderboard, c.pageRetries, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, false, err
	}

	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, c.decodeError(EndpointLeaderboard, body, err)
	}
	// "data" must be a JSON array; anything else (absent, null, object)
	// is a degraded upstream, never an empty page.
	data := bytes.TrimSpace(payload.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false, c.decodeError(EndpointLeaderboard, body, nil)
	}
	var raw []rawLeaderboardEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, c.decodeError(EndpointLeaderboard, data, err)
	}

	entries := make([]*domain.RawLeaderboardEntry, 0, len(raw))
	for i := range raw {
		if raw[i].Address == "" {
			continue
		}
		entries = append(entries, raw[i].toDomain())
	}
	return entries, len(raw) == pageSize, nil
}

// FetchAddressStat retrieves the per-trader stats for one period.
// A well-formed "no data" response returns (nil, nil); only transport
// and HTTP failures are errors.
func (c *Client) FetchAddressStat(ctx context.Context, address string, period int) (*domain.AddressStats, error) {
	endpoint := fmt.Sprintf("%s/query-addr-stat/%s?period=%d",
		c.statBaseURL, url.PathEscape(address), period)

	body, err := c.doWithRetry(ctx, EndpointAddressStat, c.statRetries, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil
	}
	if len(payload.Data) == 0 || string(payload.Data) == "null" {
		return nil, nil
	}
	var raw rawAddressStats
	if err := json.Unmarshal(payload.Data, &raw); err != nil {
		return nil, nil
	}
	return raw.toDomain(), nil
}

// FetchPortfolioSeries retrieves the exchange-native portfolio history
// for an address: a list of per-window pnl and equity series. Returns
// (nil, nil) on a structurally invalid payload.
func (c *Client) FetchPortfolioSeries(ctx context.Context, address string) ([]domain.WindowSeries, error) {
	reqBody, err := json.Marshal(map[string]string{"type": "portfolio", "user": address})
	if err != nil {
		return nil, fmt.Errorf("marshal portfolio request: %w", err)
	}

	body, err := c.doWithRetry(ctx, EndpointPortfolio, c.seriesRetries, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return parseWindowSeries(body), nil
}

// doWithRetry performs one HTTP call with up to retries re-attempts,
// linear backoff and a per-request deadline. The caller's cancellation
// stops further attempts immediately.
func (c *Client) doWithRetry(ctx context.Context, endpoint string, retries int, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}

		body, err := c.doOnce(ctx, endpoint, build)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Err(err).
			Msg("upstream call failed")
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint string, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(reqCtx)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		uerr := &Error{Kind: classifyTransport(err), Endpoint: endpoint, Err: err}
		observability.RecordUpstreamCall(endpoint, time.Since(start).Seconds(), string(uerr.Kind))
		return nil, uerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	observability.RecordUpstreamCall(endpoint, time.Since(start).Seconds(), "")
	if err != nil {
		return nil, &Error{Kind: classifyTransport(err), Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode >= 400 {
		observability.RecordUpstreamError(endpoint, string(KindHTTP))
		return nil, &Error{Kind: KindHTTP, Endpoint: endpoint, Status: resp.StatusCode}
	}
	return body, nil
}

// decodeError logs a snippet of the offending body and wraps the cause.
func (c *Client) decodeError(endpoint string, body []byte, cause error) error {
	snippet := body
	if len(snippet) > decodeSnippetLen {
		snippet = snippet[:decodeSnippetLen]
	}
	c.log.Warn().
		Str("endpoint", endpoint).
		Str("body", string(snippet)).
		Msg("upstream response shape mismatch")
	observability.RecordUpstreamError(endpoint, string(KindDecode))
	return &Error{Kind: KindDecode, Endpoint: endpoint, Err: cause}
}

func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return KindTimeout
	}
	return KindNetwork
}
