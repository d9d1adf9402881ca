// Package aggregator is the LI.FI quote client used when no direct LayerZero route exists.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"golang.org/x/time/rate"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "aggregator").Logger()
}

// DefaultBaseURL is the public LI.FI API
const DefaultBaseURL = "https://li.quest"

const (
	healthPath = "/v1/tools"
	tokensKey  = "tokens"
	// sender for read-only quotes
	placeholderAddress = "0x0000000000000000000000000000000000000001"
)

var ErrTokenNotFound = errors.New("token not listed by aggregator")

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bridge_aggregator_requests_total",
	Help: "Aggregator API requests, by endpoint and result.",
}, []string{"endpoint", "result"})

// Client provides access to the LI.FI API with failover support.
// It keeps a primary endpoint and switches to backups while the primary is unavailable.
type Client struct {
	httpClient     *http.Client
	primaryURL     string
	backupURLs     []string
	currentURL     string
	integrator     string
	apiKey         string
	mu             sync.RWMutex
	limiter        *rate.Limiter
	tokens         *cache.Cache
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
}

// FailoverConfig controls retry, failover and rate limiting
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed request on the current endpoint
	MaxRetries int
	// RetryDelay is the initial delay between retries (doubles with each retry)
	RetryDelay time.Duration
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// RequestsPerSecond and Burst bound outgoing requests; zero disables the limiter
	RequestsPerSecond float64
	Burst             int
	// TokenCacheTTL is how long token lists are kept
	TokenCacheTTL time.Duration
}

// DefaultFailoverConfig returns the defaults used by the server
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
		RequestsPerSecond:   2,
		Burst:               4,
		TokenCacheTTL:       10 * time.Minute,
	}
}

// Options identifies the caller to the aggregator
type Options struct {
	Integrator string
	APIKey     string // sent as x-lifi-api-key when set
}

type healthChecker struct {
	client    *Client
	stopCh    chan struct{}
	stoppedCh chan struct{}
	isRunning bool
	mu        sync.Mutex
}

// NewClient creates a client with a single endpoint
func NewClient(baseURL string, opts Options) (*Client, error) {
	return NewClientWithFailover(baseURL, nil, opts, DefaultFailoverConfig())
}

// NewClientWithFailover creates a client that fails over across backupURLs
func NewClientWithFailover(primaryURL string, backupURLs []string, opts Options, config FailoverConfig) (*Client, error) {
	if _, err := url.ParseRequestURI(primaryURL); err != nil {
		return nil, fmt.Errorf("invalid aggregator URL %q: %w", primaryURL, err)
	}

	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, strings.TrimRight(u, "/"))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	ttl := config.TokenCacheTTL
	if ttl <= 0 {
		ttl = DefaultFailoverConfig().TokenCacheTTL
	}

	primaryURL = strings.TrimRight(primaryURL, "/")
	client := &Client{
		httpClient:     &http.Client{Timeout: config.Timeout},
		primaryURL:     primaryURL,
		backupURLs:     validBackups,
		currentURL:     primaryURL,
		integrator:     opts.Integrator,
		apiKey:         opts.APIKey,
		limiter:        limiter,
		tokens:         cache.New(ttl, 2*ttl),
		failoverConfig: config,
	}

	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		client.startHealthChecker()
	}

	log.Info().
		Str("primary", primaryURL).
		Int("backups", len(validBackups)).
		Msg("Aggregator client initialized")
	return client, nil
}

func (c *Client) startHealthChecker() {
	c.healthChecker = &healthChecker{
		client:    c,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	c.healthChecker.start()
}

func (h *healthChecker) start() {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	go func() {
		defer close(h.stoppedCh)
		ticker := time.NewTicker(h.client.failoverConfig.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.checkAndRestore()
			}
		}
	}()
}

func (h *healthChecker) stop() {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = false
	h.mu.Unlock()

	close(h.stopCh)
	<-h.stoppedCh
}

func (h *healthChecker) checkAndRestore() {
	if h.client.CurrentURL() == h.client.primaryURL {
		return
	}

	if h.client.isEndpointHealthy(context.Background(), h.client.primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = h.client.primaryURL
		h.client.mu.Unlock()
		log.Info().Str("url", h.client.primaryURL).Msg("Restored primary endpoint")
	}
}

func (c *Client) isEndpointHealthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	log.Debug().Str("url", endpoint).Int("status", resp.StatusCode).Msg("Health check response")
	return resp.StatusCode == http.StatusOK
}

// CurrentURL returns the active endpoint
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// failover switches to the next healthy endpoint after the current one
func (c *Client) failover(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	allURLs := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := 0
	for i, u := range allURLs {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}

	for i := 1; i < len(allURLs); i++ {
		nextURL := allURLs[(currentIdx+i)%len(allURLs)]
		if nextURL == c.currentURL {
			continue
		}
		if c.isEndpointHealthy(ctx, nextURL) {
			c.currentURL = nextURL
			log.Info().Str("url", nextURL).Msg("Failover to endpoint")
			return true
		}
	}

	log.Warn().Str("url", c.currentURL).Msg("All endpoints unhealthy, staying on current")
	return false
}

// Close stops the health checker
func (c *Client) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-lifi-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
}

// doRequestWithFailover performs a GET with retry and failover. Client errors (4xx) are final.
func (c *Client) doRequestWithFailover(ctx context.Context, name, path string) (body []byte, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		requestsTotal.WithLabelValues(name, result).Inc()
	}()

	var lastErr error
	retryDelay := c.failoverConfig.RetryDelay

	for attempt := 0; attempt <= c.failoverConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		body, err := c.get(ctx, c.CurrentURL(), path)
		if err == nil {
			return body, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Str("path", path).Msg("Aggregator request failed")
	}

	if len(c.backupURLs) > 0 && c.failover(ctx) {
		body, err := c.get(ctx, c.CurrentURL(), path)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.failoverConfig.MaxRetries+1, lastErr)
}

// GetChains lists the chains the aggregator supports
func (c *Client) GetChains(ctx context.Context) ([]Chain, error) {
	body, err := c.doRequestWithFailover(ctx, "chains", "/v1/chains")
	if err != nil {
		return nil, err
	}

	var resp ChainsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chains response: %w", err)
	}
	return resp.Chains, nil
}

// GetTokens lists tokens for the given chains, keyed by chain id
func (c *Client) GetTokens(ctx context.Context, chains []uint64) (map[uint64][]Token, error) {
	ids := make([]string, 0, len(chains))
	for _, id := range chains {
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	key := tokensKey + ":" + strings.Join(ids, ",")
	if cached, ok := c.tokens.Get(key); ok {
		return cached.(map[uint64][]Token), nil
	}

	path := "/v1/tokens"
	if len(ids) > 0 {
		path += "?chains=" + url.QueryEscape(strings.Join(ids, ","))
	}
	body, err := c.doRequestWithFailover(ctx, "tokens", path)
	if err != nil {
		return nil, err
	}

	var resp TokensResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse tokens response: %w", err)
	}

	out := make(map[uint64][]Token, len(resp.Tokens))
	for chainKey, list := range resp.Tokens {
		id, err := strconv.ParseUint(chainKey, 10, 64)
		if err != nil {
			log.Debug().Str("chain", chainKey).Msg("Skipping non-numeric chain key")
			continue
		}
		out[id] = list
	}
	c.tokens.SetDefault(key, out)
	return out, nil
}

// FindToken looks symbol up on chainID, case-insensitively. ETH falls back to WETH.
func (c *Client) FindToken(ctx context.Context, chainID uint64, symbol string) (Token, error) {
	tokens, err := c.GetTokens(ctx, []uint64{chainID})
	if err != nil {
		return Token{}, err
	}

	list := tokens[chainID]
	for _, token := range list {
		if strings.EqualFold(token.Symbol, symbol) {
			return token, nil
		}
	}
	if strings.EqualFold(symbol, "ETH") {
		for _, token := range list {
			if token.Symbol == "WETH" {
				return token, nil
			}
		}
	}
	return Token{}, fmt.Errorf("%w: %s on chain %d", ErrTokenNotFound, symbol, chainID)
}

// GetQuote requests a quote with a ready-to-sign transaction
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.FromChain == 0 || req.ToChain == 0 {
		return nil, errors.New("fromChain and toChain are required")
	}
	if req.FromToken == "" || req.ToToken == "" {
		return nil, errors.New("fromToken and toToken are required")
	}
	if req.FromAmount == "" {
		return nil, errors.New("fromAmount is required")
	}
	if req.SlippageBps > codec.MaxSlippageBps {
		return nil, fmt.Errorf("slippage %d bps above %d", req.SlippageBps, codec.MaxSlippageBps)
	}

	fromAddress := req.FromAddress
	if fromAddress == "" {
		fromAddress = placeholderAddress
	}

	params := url.Values{}
	params.Set("fromChain", strconv.FormatUint(req.FromChain, 10))
	params.Set("toChain", strconv.FormatUint(req.ToChain, 10))
	params.Set("fromToken", req.FromToken)
	params.Set("toToken", req.ToToken)
	params.Set("fromAmount", req.FromAmount)
	params.Set("fromAddress", fromAddress)
	if req.ToAddress != "" {
		params.Set("toAddress", req.ToAddress)
	}
	params.Set("slippage", SlippageFraction(req.SlippageBps))
	if c.integrator != "" {
		params.Set("integrator", c.integrator)
	}

	body, err := c.doRequestWithFailover(ctx, "quote", "/v1/quote?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	return &quote, nil
}

// QuoteBySymbol resolves both tokens and converts the human amount before quoting
func (c *Client) QuoteBySymbol(ctx context.Context, req SymbolQuoteRequest) (*Quote, error) {
	fromToken, err := c.FindToken(ctx, req.FromChain, req.FromSymbol)
	if err != nil {
		return nil, err
	}
	toToken, err := c.FindToken(ctx, req.ToChain, req.ToSymbol)
	if err != nil {
		return nil, err
	}

	amount, err := codec.HumanToBaseUnits(req.Amount, fromToken.Decimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q is zero in base units", req.Amount)
	}

	return c.GetQuote(ctx, QuoteRequest{
		FromChain:   req.FromChain,
		ToChain:     req.ToChain,
		FromToken:   fromToken.Address,
		ToToken:     toToken.Address,
		FromAmount:  amount.String(),
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		SlippageBps: req.SlippageBps,
	})
}

// IsChainAvailable reports whether the aggregator lists chainID
func (c *Client) IsChainAvailable(ctx context.Context, chainID uint64) (bool, error) {
	chains, err := c.GetChains(ctx)
	if err != nil {
		return false, err
	}
	for _, chain := range chains {
		if chain.Id == chainID {
			return true, nil
		}
	}
	return false, nil
}

// SlippageFraction renders basis points as the decimal fraction the API expects, e.g. 50 -> "0.005".
func SlippageFraction(bps uint32) string {
	return decimal.New(int64(bps), -4).String()
}
