package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/telosbridge/lzbridge/bridge/aggregator"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/models"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/protocols/protocolstest"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
	"github.com/telosbridge/lzbridge/bridge/rpc"
	"github.com/zeebo/assert"
)

const recipient = "0x2222222222222222222222222222222222222222"

type fakeProvider struct {
	mu     sync.Mutex
	chains map[router.ChainId]*protocolstest.FakeChain
	setup  func(*protocolstest.FakeChain)
}

func (p *fakeProvider) Reader(id router.ChainId) (chain.Reader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fake, ok := p.chains[id]; ok {
		return fake, nil
	}
	fake := protocolstest.NewFakeChain(id, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	if p.setup != nil {
		p.setup(fake)
	}
	p.chains[id] = fake
	return fake, nil
}

type fakeAggregator struct {
	quote *aggregator.Quote
	err   error
	calls []aggregator.SymbolQuoteRequest
}

func (a *fakeAggregator) QuoteBySymbol(_ context.Context, req aggregator.SymbolQuoteRequest) (*aggregator.Quote, error) {
	a.calls = append(a.calls, req)
	return a.quote, a.err
}

func newHandler(t *testing.T, setup func(*protocolstest.FakeChain), agg rpc.Aggregator) http.Handler {
	t.Helper()
	registry, err := router.DefaultRegistry()
	assert.NoError(t, err)

	provider := &fakeProvider{chains: make(map[router.ChainId]*protocolstest.FakeChain), setup: setup}
	engine := quote.NewEngine(protocols.DefaultSet(), provider)
	api := rpc.NewBridgeServer(router.NewClassifier(registry), engine, agg)

	server, err := rpc.NewServer(context.Background(), &rpc.ServerConfig{
		Address:        "localhost:0",
		AllowedOrigins: []string{"*"},
	}, api)
	assert.NoError(t, err)
	return server.Handler()
}

func liveFee(f *protocolstest.FakeChain) {
	f.NativeFee = big.NewInt(5e16)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		assert.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndReady(t *testing.T) {
	h := newHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/server/health", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, decode[map[string]string](t, rec)["status"], "healthy")

	rec = do(t, h, http.MethodGet, "/server/ready", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, decode[map[string]string](t, rec)["status"], "ready")
}

func TestReadyWithoutRegistry(t *testing.T) {
	api := rpc.NewBridgeServer(nil, nil, nil)
	rec := httptest.NewRecorder()
	api.Ready(rec, httptest.NewRequest(http.MethodGet, "/server/ready", nil))
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
}

func TestClassify(t *testing.T) {
	h := newHandler(t, nil, nil)

	rec := do(t, h, http.MethodPost, "/v1/classify", models.ClassifyRequest{Token: "usdc", ChainFrom: 40, ChainTo: 137})
	assert.Equal(t, rec.Code, http.StatusOK)
	resp := decode[models.ClassifyResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, resp.Route.Mechanism, string(router.MechanismStargatePool))
	assert.Equal(t, resp.Route.Token, "USDC")
	assert.Equal(t, resp.Route.Decimals, uint8(6))
	assert.Equal(t, resp.Route.SourceProtocolId, uint32(30199))
	assert.True(t, resp.Route.Pooled)
	assert.False(t, resp.Route.Native)

	rec = do(t, h, http.MethodPost, "/v1/classify", models.ClassifyRequest{Token: "TLOS", ChainFrom: 40, ChainTo: 1})
	resp = decode[models.ClassifyResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, resp.Route.Mechanism, string(router.MechanismNativeOFT))
	assert.True(t, resp.Route.Native)
}

func TestClassifyNoRoute(t *testing.T) {
	h := newHandler(t, nil, nil)

	rec := do(t, h, http.MethodPost, "/v1/classify", models.ClassifyRequest{Token: "DOGE", ChainFrom: 40, ChainTo: 1})
	assert.Equal(t, rec.Code, http.StatusOK)
	resp := decode[models.ClassifyResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Route)
	assert.Equal(t, resp.ErrorCode, "BR-001")

	rec = do(t, h, http.MethodPost, "/v1/classify", models.ClassifyRequest{Token: "TLOS", ChainFrom: 40, ChainTo: 40})
	assert.False(t, decode[models.ClassifyResponse](t, rec).Success)
}

func TestClassifyBadRequest(t *testing.T) {
	h := newHandler(t, nil, nil)

	tests := map[string]any{
		"malformed json": `{"token": `,
		"unknown field":  `{"token": "TLOS", "chain_from": 40, "chain_to": 1, "extra": true}`,
		"missing token":  models.ClassifyRequest{ChainFrom: 40, ChainTo: 1},
		"missing chain":  models.ClassifyRequest{Token: "TLOS", ChainFrom: 40},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/classify", body)
			assert.Equal(t, rec.Code, http.StatusBadRequest)
			assert.Equal(t, decode[models.ErrorResponse](t, rec).Code, models.ErrInvalidIntent.Code)
		})
	}
}

func TestQuoteDirect(t *testing.T) {
	h := newHandler(t, liveFee, nil)

	rec := do(t, h, http.MethodPost, "/v1/quote", models.QuoteRequest{
		Token: "TLOS", ChainFrom: 40, ChainTo: 1, Amount: "1.0", Recipient: recipient,
	})
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Header().Get("Cache-Control"), "no-store, no-cache, must-revalidate")

	resp := decode[models.QuoteResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, resp.RouteType, models.RouteTypeDirect)
	assert.Equal(t, resp.Route.Mechanism, string(router.MechanismNativeOFT))
	assert.Nil(t, resp.Aggregator)

	q := resp.Quote
	assert.Equal(t, q.ProtocolFee, "50000000000000000")
	assert.Equal(t, q.ProtocolFeeHuman, "0.05")
	assert.Equal(t, q.AmountSent, "1000000000000000000")
	assert.Equal(t, q.AmountReceivableHuman, "1")
	assert.Equal(t, q.MinAmount, "995000000000000000")
	assert.False(t, q.IsFeeEstimated)
	assert.Equal(t, q.Notice, "")
}

func TestQuoteEstimatedFee(t *testing.T) {
	h := newHandler(t, func(f *protocolstest.FakeChain) { f.QuoteErr = protocolstest.ErrReadReverted }, nil)

	slippage := uint32(100)
	rec := do(t, h, http.MethodPost, "/v1/quote", models.QuoteRequest{
		Token: "TLOS", ChainFrom: 40, ChainTo: 8453, Amount: "2", SlippageBps: &slippage,
	})
	assert.Equal(t, rec.Code, http.StatusOK)

	q := decode[models.QuoteResponse](t, rec).Quote
	assert.True(t, q.IsFeeEstimated)
	assert.Equal(t, q.ProtocolFeeHuman, "20")
	assert.Equal(t, q.MinAmount, "1980000000000000000")
	assert.Equal(t, q.Notice, models.EstimatedFeeNotice)
}

func TestQuoteAggregatorFallback(t *testing.T) {
	agg := &fakeAggregator{quote: &aggregator.Quote{
		Tool:        "stargateV2",
		ToolDetails: &aggregator.ToolDetails{Key: "stargateV2", Name: "StargateV2"},
		Estimate: aggregator.Estimate{
			FromAmount:        "5000000000000000000",
			ToAmount:          "4990000000000000000",
			ToAmountMin:       "4965000000000000000",
			ExecutionDuration: 95.6,
			GasCosts: []aggregator.GasCost{
				{Type: "SEND", AmountUSD: "0.40"},
				{Type: "APPROVE", AmountUSD: "0.05"},
			},
		},
		TransactionRequest: &aggregator.TransactionRequest{To: "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE", Data: "0x"},
	}}
	h := newHandler(t, nil, agg)

	rec := do(t, h, http.MethodPost, "/v1/quote", models.QuoteRequest{
		Token: "DOGE", ChainFrom: 40, ChainTo: 1, Amount: "5", Recipient: recipient, Sender: recipient,
	})
	assert.Equal(t, rec.Code, http.StatusOK)

	resp := decode[models.QuoteResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, resp.RouteType, models.RouteTypeAggregator)
	assert.Nil(t, resp.Route)
	assert.Nil(t, resp.Quote)
	assert.Equal(t, resp.Aggregator.Provider, "lifi")
	assert.Equal(t, resp.Aggregator.Tool, "StargateV2")
	assert.Equal(t, resp.Aggregator.ToAmountMin, "4965000000000000000")
	assert.Equal(t, resp.Aggregator.ExecutionDuration, int64(96))
	assert.Equal(t, resp.Aggregator.GasCostUSD, "0.45")
	assert.NotNil(t, resp.Aggregator.TransactionRequest)

	assert.Equal(t, len(agg.calls), 1)
	assert.Equal(t, agg.calls[0].FromSymbol, "DOGE")
	assert.Equal(t, agg.calls[0].SlippageBps, protocols.DefaultSlippageBps)
}

func TestQuoteImpossible(t *testing.T) {
	body := models.QuoteRequest{Token: "DOGE", ChainFrom: 40, ChainTo: 1, Amount: "5"}

	for name, agg := range map[string]rpc.Aggregator{
		"no aggregator":     nil,
		"aggregator failed": &fakeAggregator{err: errors.New("no available quotes")},
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, newHandler(t, nil, agg), http.MethodPost, "/v1/quote", body)
			assert.Equal(t, rec.Code, http.StatusOK)

			resp := decode[models.QuoteResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, resp.RouteType, models.RouteTypeImpossible)
			assert.Equal(t, resp.ErrorCode, "BR-001")
		})
	}
}

func TestQuoteBadRequest(t *testing.T) {
	h := newHandler(t, liveFee, nil)
	tooMuch := uint32(10001)

	tests := map[string]models.QuoteRequest{
		"missing amount":  {Token: "TLOS", ChainFrom: 40, ChainTo: 1},
		"bad amount":      {Token: "TLOS", ChainFrom: 40, ChainTo: 1, Amount: "abc"},
		"zero amount":     {Token: "TLOS", ChainFrom: 40, ChainTo: 1, Amount: "0"},
		"bad recipient":   {Token: "TLOS", ChainFrom: 40, ChainTo: 1, Amount: "1", Recipient: "0x12"},
		"bad sender":      {Token: "TLOS", ChainFrom: 40, ChainTo: 1, Amount: "1", Sender: "telos"},
		"slippage > 100%": {Token: "TLOS", ChainFrom: 40, ChainTo: 1, Amount: "1", SlippageBps: &tooMuch},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/quote", body)
			assert.Equal(t, rec.Code, http.StatusBadRequest)
			assert.Equal(t, decode[models.ErrorResponse](t, rec).Code, models.ErrInvalidIntent.Code)
		})
	}
}

func TestRoutes(t *testing.T) {
	h := newHandler(t, liveFee, nil)

	rec := do(t, h, http.MethodGet, "/v1/routes/tlos", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	resp := decode[models.RoutesResponse](t, rec)
	assert.Equal(t, resp.Token, "TLOS")
	assert.True(t, len(resp.Routes) > 0)
	for _, summary := range resp.Routes {
		assert.Equal(t, summary.Route.Token, "TLOS")
		assert.Nil(t, summary.Quote)
	}

	rec = do(t, h, http.MethodGet, "/v1/routes/TLOS?amount=1&recipient="+recipient, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	quoted := decode[models.RoutesResponse](t, rec)
	assert.Equal(t, quoted.Amount, "1")
	assert.Equal(t, len(quoted.Routes), len(resp.Routes))
	for _, summary := range quoted.Routes {
		assert.Equal(t, summary.Error, "")
		assert.NotNil(t, summary.Quote)
		assert.Equal(t, summary.Quote.AmountReceivableHuman, "1")
	}
}

func TestRoutesErrors(t *testing.T) {
	h := newHandler(t, liveFee, nil)

	rec := do(t, h, http.MethodGet, "/v1/routes/DOGE", nil)
	assert.Equal(t, rec.Code, http.StatusNotFound)
	assert.Equal(t, decode[models.ErrorResponse](t, rec).Code, models.ErrNoRouteAvailable.Code)

	rec = do(t, h, http.MethodGet, "/v1/routes/TLOS?amount=1&recipient=nope", nil)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/v1/routes/TLOS?amount=abc", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	for _, summary := range decode[models.RoutesResponse](t, rec).Routes {
		assert.Nil(t, summary.Quote)
		assert.True(t, summary.Error != "")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(t, nil, nil)
	rec := do(t, h, http.MethodGet, "/v1/quote", nil)
	assert.Equal(t, rec.Code, http.StatusMethodNotAllowed)
}
