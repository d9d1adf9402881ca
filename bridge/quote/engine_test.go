package quote_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/models"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/protocols/protocolstest"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
	"github.com/zeebo/assert"
)

var (
	sender    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeProvider struct {
	mu     sync.Mutex
	chains map[router.ChainId]*protocolstest.FakeChain
	setup  func(*protocolstest.FakeChain)
}

func newFakeProvider(setup func(*protocolstest.FakeChain)) *fakeProvider {
	return &fakeProvider{chains: make(map[router.ChainId]*protocolstest.FakeChain), setup: setup}
}

func (p *fakeProvider) Reader(id router.ChainId) (chain.Reader, error) {
	return p.get(id), nil
}

func (p *fakeProvider) get(id router.ChainId) *protocolstest.FakeChain {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fake, ok := p.chains[id]; ok {
		return fake
	}
	fake := protocolstest.NewFakeChain(id, sender)
	if p.setup != nil {
		p.setup(fake)
	}
	p.chains[id] = fake
	return fake
}

type failingProvider struct{}

func (failingProvider) Reader(id router.ChainId) (chain.Reader, error) {
	return nil, fmt.Errorf("no RPC endpoint configured for chain %d", id)
}

func newClassifier(t *testing.T) *router.Classifier {
	t.Helper()
	registry, err := router.DefaultRegistry()
	assert.NoError(t, err)
	return router.NewClassifier(registry)
}

func TestQuoteNativeLiveFee(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 40, 1)
	fake := protocolstest.NewFakeChain(40, sender)
	fake.NativeFee = big.NewInt(5e16)

	engine := quote.NewEngine(protocols.DefaultSet(), nil)
	q, err := engine.QuoteWith(context.Background(), fake, route, "1.0", recipient, 50)
	assert.NoError(t, err)

	assert.Equal(t, q.Mechanism, router.MechanismNativeOFT)
	assert.Equal(t, q.ProtocolFee.String(), "50000000000000000")
	assert.Equal(t, q.AmountSent.String(), "1000000000000000000")
	assert.Equal(t, q.AmountReceivable.String(), "1000000000000000000")
	assert.Equal(t, q.MinAmount.String(), "995000000000000000")
	assert.False(t, q.IsFeeEstimated)
}

func TestQuotePureAdaptersDeliverExactAmount(t *testing.T) {
	classifier := newClassifier(t)
	provider := newFakeProvider(func(f *protocolstest.FakeChain) { f.NativeFee = big.NewInt(1e15) })
	engine := quote.NewEngine(protocols.DefaultSet(), provider)

	for _, symbol := range []string{"TLOS", "WBTC", "BTC.b", "BNB"} {
		for _, route := range classifier.Routes(symbol) {
			if route.Pooled() {
				continue
			}
			q, err := engine.Quote(context.Background(), &route, "1.0", recipient, 50)
			assert.NoError(t, err)

			want, err := codec.HumanToBaseUnits("1.0", route.Token.Decimals)
			assert.NoError(t, err)
			assert.Equal(t, q.AmountReceivable.String(), want.String())
			assert.False(t, q.IsFeeEstimated)
		}
	}
}

func TestQuoteFallsBackOnReadFailure(t *testing.T) {
	classifier := newClassifier(t)
	wrapped := router.NewClassifierWithPriority(classifier.Registry(), []router.Mechanism{router.MechanismWrappedBridge})

	tests := []struct {
		name  string
		route *router.RouteClassification
		units int64
	}{
		{"native oft to ethereum", classifier.Classify("TLOS", 40, 1), 300},
		{"native oft to base", classifier.Classify("TLOS", 40, 8453), 20},
		{"adapter to avalanche", classifier.Classify("WBTC", 40, 43114), 20},
		{"stargate to polygon", classifier.Classify("USDC", 40, 137), 20},
		{"wrapped to bsc", wrapped.Classify("USDC", 40, 56), 49},
		{"wrapped to ethereum", wrapped.Classify("USDC", 40, 1), 227},
		{"wrapped to avalanche", wrapped.Classify("BTC.b", 40, 43114), 48},
		{"wrapped to arbitrum", wrapped.Classify("ETH", 40, 42161), 49},
	}

	engine := quote.NewEngine(protocols.DefaultSet(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.route)
			fake := protocolstest.NewFakeChain(tt.route.Source.Chain, sender)
			fake.QuoteErr = protocolstest.ErrReadReverted

			q, err := engine.QuoteWith(context.Background(), fake, tt.route, "2", recipient, 50)
			assert.NoError(t, err)
			assert.True(t, q.IsFeeEstimated)
			assert.True(t, q.ProtocolFee.Sign() > 0)
			assert.Equal(t, q.ProtocolFee.String(), codec.NativeUnits(tt.units).String())
		})
	}
}

func TestQuoteFallbackFromEthereum(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 1, 40)
	assert.NotNil(t, route)
	fake := protocolstest.NewFakeChain(1, sender)
	fake.QuoteErr = protocolstest.ErrReadReverted

	q, err := quote.NewEngine(protocols.DefaultSet(), nil).QuoteWith(context.Background(), fake, route, "2", recipient, 50)
	assert.NoError(t, err)
	assert.True(t, q.IsFeeEstimated)
	assert.Equal(t, q.ProtocolFee.String(), "50000000000000000")
}

func TestQuoteZeroFeeUsesFallback(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 40, 56)
	fake := protocolstest.NewFakeChain(40, sender)

	q, err := quote.NewEngine(protocols.DefaultSet(), nil).QuoteWith(context.Background(), fake, route, "1", recipient, 50)
	assert.NoError(t, err)
	assert.True(t, q.IsFeeEstimated)
	assert.Equal(t, q.ProtocolFee.String(), codec.NativeUnits(20).String())
}

func TestQuotePooledReadsReceivableFirst(t *testing.T) {
	route := newClassifier(t).Classify("USDC", 40, 8453)
	assert.Equal(t, route.Mechanism, router.MechanismStargatePool)

	fake := protocolstest.NewFakeChain(40, sender)
	fake.NativeFee = big.NewInt(3e17)
	fake.Received = big.NewInt(990_000)

	q, err := quote.NewEngine(protocols.DefaultSet(), nil).QuoteWith(context.Background(), fake, route, "1", recipient, 50)
	assert.NoError(t, err)
	assert.DeepEqual(t, fake.Reads, []string{"quoteOFT", "quoteSend"})
	assert.Equal(t, q.AmountSent.String(), "1000000")
	assert.Equal(t, q.AmountReceivable.String(), "990000")
	assert.Equal(t, q.MinAmount.String(), "985050")
	assert.True(t, q.AmountReceivable.Cmp(q.AmountSent) <= 0)
	assert.False(t, q.IsFeeEstimated)
}

func TestQuotePooledReceivableFailureKeepsAmount(t *testing.T) {
	route := newClassifier(t).Classify("USDT", 40, 1)
	fake := protocolstest.NewFakeChain(40, sender)
	fake.NativeFee = big.NewInt(1e18)
	fake.QuoteOFTErr = protocolstest.ErrReadReverted

	q, err := quote.NewEngine(protocols.DefaultSet(), nil).QuoteWith(context.Background(), fake, route, "10", recipient, 100)
	assert.NoError(t, err)
	assert.Equal(t, q.AmountReceivable.String(), "10000000")
	assert.Equal(t, q.MinAmount.String(), "9900000")
	assert.False(t, q.IsFeeEstimated)
}

func TestQuoteTruncatesAmount(t *testing.T) {
	route := newClassifier(t).Classify("USDC", 40, 137)
	fake := protocolstest.NewFakeChain(40, sender)
	fake.NativeFee = big.NewInt(1)

	q, err := quote.NewEngine(protocols.DefaultSet(), nil).QuoteWith(context.Background(), fake, route, "1.2345678", recipient, 0)
	assert.NoError(t, err)
	assert.Equal(t, q.AmountSent.String(), "1234567")
}

func TestQuoteRemovesDust(t *testing.T) {
	route := newClassifier(t).Classify("ETH", 40, 8453)
	assert.Equal(t, route.Token.SharedDecimals, uint8(6))
	fake := protocolstest.NewFakeChain(40, sender)
	fake.NativeFee = big.NewInt(1)

	q, err := quote.NewEngine(protocols.DefaultSet(), nil).QuoteWith(context.Background(), fake, route, "0.123456789", recipient, 0)
	assert.NoError(t, err)
	assert.Equal(t, q.AmountSent.String(), "123456000000000000")
}

func TestQuoteRejectsBadInput(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 40, 1)
	fake := protocolstest.NewFakeChain(40, sender)
	engine := quote.NewEngine(protocols.DefaultSet(), nil)

	for _, amount := range []string{"", "abc", "-1", "0", "0.0000000000000000001"} {
		_, err := engine.QuoteWith(context.Background(), fake, route, amount, recipient, 50)
		assert.True(t, errors.Is(err, models.ErrInvalidIntent))
	}

	_, err := engine.QuoteWith(context.Background(), fake, route, "1", recipient, 10001)
	assert.True(t, errors.Is(err, models.ErrInvalidIntent))

	_, err = engine.QuoteWith(context.Background(), fake, nil, "1", recipient, 50)
	assert.True(t, errors.Is(err, models.ErrNoRouteAvailable))
}

func TestQuoteMissingReader(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 40, 1)

	_, err := quote.NewEngine(protocols.DefaultSet(), failingProvider{}).Quote(context.Background(), route, "1", recipient, 50)
	assert.True(t, errors.Is(err, models.ErrRpc))

	_, err = quote.NewEngine(protocols.DefaultSet(), nil).Quote(context.Background(), route, "1", recipient, 50)
	assert.True(t, errors.Is(err, models.ErrRpc))
}

func TestQuoteCache(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 40, 137)
	provider := newFakeProvider(func(f *protocolstest.FakeChain) { f.NativeFee = big.NewInt(7e16) })
	engine := quote.NewEngine(protocols.DefaultSet(), provider).WithCache(quote.DefaultCacheTTL)

	first, err := engine.Quote(context.Background(), route, "3", recipient, 50)
	assert.NoError(t, err)

	fake := provider.get(40)
	fake.QuoteErr = protocolstest.ErrReadReverted

	second, err := engine.Quote(context.Background(), route, "3", recipient, 50)
	assert.NoError(t, err)
	assert.Equal(t, second, first)
	assert.Equal(t, len(fake.Reads), 1)

	third, err := engine.Quote(context.Background(), route, "4", recipient, 50)
	assert.NoError(t, err)
	assert.True(t, third.IsFeeEstimated)
}

func TestQuoteCacheReturnsCopies(t *testing.T) {
	route := newClassifier(t).Classify("TLOS", 40, 137)
	provider := newFakeProvider(func(f *protocolstest.FakeChain) { f.NativeFee = big.NewInt(7e16) })
	engine := quote.NewEngine(protocols.DefaultSet(), provider).WithCache(quote.DefaultCacheTTL)

	first, err := engine.Quote(context.Background(), route, "3", recipient, 50)
	assert.NoError(t, err)
	first.ProtocolFee.SetInt64(1)
	first.AmountSent.SetInt64(2)
	first.MinAmount.SetInt64(3)

	second, err := engine.Quote(context.Background(), route, "3", recipient, 50)
	assert.NoError(t, err)
	assert.Equal(t, second.ProtocolFee.String(), "70000000000000000")
	assert.Equal(t, second.AmountSent.String(), "3000000000000000000")
	second.AmountReceivable.SetInt64(4)

	third, err := engine.Quote(context.Background(), route, "3", recipient, 50)
	assert.NoError(t, err)
	assert.Equal(t, third.AmountReceivable.String(), "3000000000000000000")
	assert.Equal(t, len(provider.get(40).Reads), 1)
}

func TestQuoteAll(t *testing.T) {
	classifier := newClassifier(t)
	provider := newFakeProvider(func(f *protocolstest.FakeChain) {
		f.NativeFee = big.NewInt(1e16)
		if f.Chain == 1 {
			f.QuoteErr = protocolstest.ErrReadReverted
		}
	})
	engine := quote.NewEngine(protocols.DefaultSet(), provider)

	routes := classifier.Routes("WBTC")
	results := engine.QuoteAll(context.Background(), routes, "0.5", recipient, 50)
	assert.Equal(t, len(results), len(routes))

	for i, result := range results {
		assert.Equal(t, result.Route.Source.Chain, routes[i].Source.Chain)
		assert.Equal(t, result.Route.Destination.Chain, routes[i].Destination.Chain)
		assert.NoError(t, result.Err)
		assert.Equal(t, result.Quote.IsFeeEstimated, result.Route.Source.Chain == 1)
	}
}
