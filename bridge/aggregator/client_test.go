package aggregator_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/telosbridge/lzbridge/bridge/aggregator"
	"github.com/zeebo/assert"
)

const quoteJSON = `{
	"id": "q-1",
	"type": "lifi",
	"tool": "stargateV2",
	"toolDetails": {"key": "stargateV2", "name": "StargateV2"},
	"action": {"fromChainId": 1, "toChainId": 10, "fromAmount": "1000000"},
	"estimate": {
		"fromAmount": "1000000",
		"toAmount": "998000",
		"toAmountMin": "993010",
		"executionDuration": 180,
		"gasCosts": [
			{"type": "SEND", "amount": "1000", "amountUSD": "1.25"},
			{"type": "APPROVE", "amount": "10", "amountUSD": "0.10"},
			{"type": "SEND", "amount": "1"}
		]
	},
	"transactionRequest": {"chainId": 1, "to": "0xabc", "data": "0x01", "value": "0x0"}
}`

const tokensJSON = `{"tokens": {
	"1": [
		{"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "chainId": 1, "symbol": "USDC", "decimals": 6},
		{"address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "chainId": 1, "symbol": "WETH", "decimals": 18}
	],
	"10": [
		{"address": "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", "chainId": 10, "symbol": "usdc", "decimals": 6}
	]
}}`

func fastConfig() aggregator.FailoverConfig {
	return aggregator.FailoverConfig{
		MaxRetries:    1,
		RetryDelay:    time.Millisecond,
		Timeout:       time.Second,
		TokenCacheTTL: time.Minute,
	}
}

func newAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetQuote(t *testing.T) {
	var query atomicString
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/v1/quote")
		assert.Equal(t, r.Header.Get("x-lifi-api-key"), "secret")
		query.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte(quoteJSON))
	})

	client, err := aggregator.NewClientWithFailover(srv.URL, nil, aggregator.Options{Integrator: "telos-bridge", APIKey: "secret"}, fastConfig())
	assert.NoError(t, err)
	defer client.Close()

	quote, err := client.GetQuote(context.Background(), aggregator.QuoteRequest{
		FromChain:   1,
		ToChain:     10,
		FromToken:   "0xA0b8",
		ToToken:     "0x0b2C",
		FromAmount:  "1000000",
		SlippageBps: 50,
	})
	assert.NoError(t, err)

	assert.Equal(t, quote.ToolName(), "StargateV2")
	assert.Equal(t, quote.Estimate.ToAmountMin, "993010")
	assert.Equal(t, quote.Estimate.ExecutionDuration, float64(180))
	assert.Equal(t, quote.GasCostUSD().String(), "1.35")
	assert.Equal(t, quote.TransactionRequest.To, "0xabc")

	assert.Equal(t, query.Load(), "fromAddress=0x0000000000000000000000000000000000000001&fromAmount=1000000&fromChain=1&fromToken=0xA0b8&integrator=telos-bridge&slippage=0.005&toChain=10&toToken=0x0b2C")
}

func TestGetQuoteValidation(t *testing.T) {
	client, err := aggregator.NewClientWithFailover("http://127.0.0.1:1", nil, aggregator.Options{}, fastConfig())
	assert.NoError(t, err)

	bad := []aggregator.QuoteRequest{
		{ToChain: 10, FromToken: "a", ToToken: "b", FromAmount: "1"},
		{FromChain: 1, ToChain: 10, ToToken: "b", FromAmount: "1"},
		{FromChain: 1, ToChain: 10, FromToken: "a", ToToken: "b"},
		{FromChain: 1, ToChain: 10, FromToken: "a", ToToken: "b", FromAmount: "1", SlippageBps: 10001},
	}
	for _, req := range bad {
		_, err := client.GetQuote(context.Background(), req)
		assert.Error(t, err)
	}

	_, err = aggregator.NewClient("::not a url", aggregator.Options{})
	assert.Error(t, err)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": 1002, "message": "No available quotes for the requested transfer"}`))
	})

	client, err := aggregator.NewClientWithFailover(srv.URL, nil, aggregator.Options{}, fastConfig())
	assert.NoError(t, err)

	_, err = client.GetQuote(context.Background(), aggregator.QuoteRequest{
		FromChain: 40, ToChain: 1, FromToken: "a", ToToken: "b", FromAmount: "1",
	})
	var apiErr *aggregator.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apiErr.Status, http.StatusNotFound)
	assert.Equal(t, apiErr.Code, 1002)
	assert.Equal(t, calls.Load(), int32(1))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"chains": [{"id": 1, "key": "eth", "name": "Ethereum", "chainType": "EVM"}]}`))
	})

	client, err := aggregator.NewClientWithFailover(srv.URL, nil, aggregator.Options{}, fastConfig())
	assert.NoError(t, err)

	chains, err := client.GetChains(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(chains), 1)
	assert.Equal(t, chains[0].Name, "Ethereum")
	assert.Equal(t, calls.Load(), int32(2))
}

func TestFailoverToBackup(t *testing.T) {
	primary := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	backup := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tools":
			_, _ = w.Write([]byte(`{}`))
		case "/v1/chains":
			_, _ = w.Write([]byte(`{"chains": [{"id": 1}, {"id": 40}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	config := fastConfig()
	config.HealthCheckInterval = time.Hour
	client, err := aggregator.NewClientWithFailover(primary.URL, []string{backup.URL, "::bad"}, aggregator.Options{}, config)
	assert.NoError(t, err)
	defer client.Close()

	available, err := client.IsChainAvailable(context.Background(), 40)
	assert.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, client.CurrentURL(), backup.URL)

	available, err = client.IsChainAvailable(context.Background(), 137)
	assert.NoError(t, err)
	assert.False(t, available)
}

func TestAllEndpointsDown(t *testing.T) {
	down := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }
	primary := newAPI(t, down)
	backup := newAPI(t, down)

	client, err := aggregator.NewClientWithFailover(primary.URL, []string{backup.URL}, aggregator.Options{}, fastConfig())
	assert.NoError(t, err)
	defer client.Close()

	_, err = client.GetChains(context.Background())
	assert.Error(t, err)
	assert.Equal(t, client.CurrentURL(), primary.URL)
}

func TestFindTokenAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(tokensJSON))
	})

	client, err := aggregator.NewClientWithFailover(srv.URL, nil, aggregator.Options{}, fastConfig())
	assert.NoError(t, err)

	token, err := client.FindToken(context.Background(), 1, "usdc")
	assert.NoError(t, err)
	assert.Equal(t, token.Decimals, uint8(6))

	weth, err := client.FindToken(context.Background(), 1, "ETH")
	assert.NoError(t, err)
	assert.Equal(t, weth.Symbol, "WETH")

	_, err = client.FindToken(context.Background(), 1, "MST")
	assert.True(t, errors.Is(err, aggregator.ErrTokenNotFound))
	assert.Equal(t, calls.Load(), int32(1))
}

func TestQuoteBySymbol(t *testing.T) {
	var fromAmount atomicString
	srv := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tokens":
			_, _ = w.Write([]byte(tokensJSON))
		case "/v1/quote":
			fromAmount.Store(r.URL.Query().Get("fromAmount") + "|" + r.URL.Query().Get("toToken"))
			_, _ = w.Write([]byte(quoteJSON))
		}
	})

	client, err := aggregator.NewClientWithFailover(srv.URL, nil, aggregator.Options{}, fastConfig())
	assert.NoError(t, err)

	_, err = client.QuoteBySymbol(context.Background(), aggregator.SymbolQuoteRequest{
		FromChain: 1, ToChain: 10, FromSymbol: "USDC", ToSymbol: "USDC", Amount: "2.5", SlippageBps: 100,
	})
	assert.NoError(t, err)
	assert.Equal(t, fromAmount.Load(), "2500000|0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85")

	_, err = client.QuoteBySymbol(context.Background(), aggregator.SymbolQuoteRequest{
		FromChain: 1, ToChain: 10, FromSymbol: "USDC", ToSymbol: "USDC", Amount: "0.0000001",
	})
	assert.Error(t, err)
}

func TestSlippageFraction(t *testing.T) {
	tests := []struct {
		bps  uint32
		want string
	}{
		{0, "0"},
		{1, "0.0001"},
		{50, "0.005"},
		{300, "0.03"},
		{10000, "1"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.bps), func(t *testing.T) {
			assert.Equal(t, aggregator.SlippageFraction(tt.bps), tt.want)
		})
	}
}

type atomicString struct {
	v atomic.Value
}

func (s *atomicString) Store(v string) { s.v.Store(v) }

func (s *atomicString) Load() string {
	v, _ := s.v.Load().(string)
	return v
}
